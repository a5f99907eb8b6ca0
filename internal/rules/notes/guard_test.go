package notes

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/nursing-api/internal/model"
)

var created = time.Date(2024, 5, 2, 9, 30, 0, 0, time.UTC)

func newNote(t *testing.T) model.ClinicalNote {
	t.Helper()
	n, err := NewNote(uuid.New(), uuid.New(), "Paciente estable, sin dolor.", created)
	require.NoError(t, err)
	return n
}

func editBy(text string) EditRequest {
	return EditRequest{Text: text, EditorID: uuid.New(), EditorRole: model.RoleNurse, Reason: "typo"}
}

func TestIsEditable_Window(t *testing.T) {
	g := NewGuard()
	assert.Equal(t, 24*time.Hour, g.Window())
	n := newNote(t)

	e := g.IsEditable(n, created)
	assert.True(t, e.Editable)
	assert.Equal(t, StateCreated, e.State)
	assert.Equal(t, 24*time.Hour, e.Remaining)

	e = g.IsEditable(n, created.Add(23*time.Hour+59*time.Minute))
	assert.True(t, e.Editable)
	assert.Equal(t, StateEditable, e.State)
	assert.Equal(t, time.Minute, e.Remaining)

	e = g.IsEditable(n, created.Add(24*time.Hour))
	assert.False(t, e.Editable)
	assert.Equal(t, StateLocked, e.State)
	assert.Zero(t, e.Remaining)

	e = g.IsEditable(n, created.Add(72*time.Hour))
	assert.False(t, e.Editable)
	assert.Zero(t, e.Remaining)

	e = g.IsEditable(n, created.Add(-time.Minute))
	assert.True(t, e.Editable)
	assert.Zero(t, e.Age)
}

func TestEditabilityJSONUsesSeconds(t *testing.T) {
	e := NewGuard().IsEditable(newNote(t), created.Add(90*time.Minute+500*time.Millisecond))

	raw, err := json.Marshal(e)
	require.NoError(t, err)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, float64(22*3600+29*60+59), got["remaining_seconds"])
	assert.Equal(t, float64(90*60), got["age_seconds"])
	assert.Equal(t, "editable", got["state"])
	assert.NotContains(t, got, "remaining")
	assert.NotContains(t, got, "age")
}

func TestIsEditable_WindowDoesNotRenew(t *testing.T) {
	g := NewGuard()
	n := newNote(t)

	edited, _, err := g.ApplyEdit(n, editBy("v2"), created.Add(23*time.Hour))
	require.NoError(t, err)
	e := g.IsEditable(edited, created.Add(24*time.Hour))
	assert.False(t, e.Editable)
}

func TestApplyEdit(t *testing.T) {
	g := NewGuard()
	n := newNote(t)
	now := created.Add(90 * time.Minute)
	req := editBy("Paciente estable, dolor leve (2/10).")

	out, edit, err := g.ApplyEdit(n, req, now)
	require.NoError(t, err)

	assert.Equal(t, req.Text, out.CurrentText)
	assert.Equal(t, n.OriginalText, out.OriginalText)
	assert.Equal(t, 1, out.EditCount)
	require.NotNil(t, out.LastEditAt)
	assert.Equal(t, now, *out.LastEditAt)
	require.Len(t, out.Edits, 1)
	assert.Equal(t, edit, out.Edits[0])

	assert.Equal(t, n.ID, edit.NoteID)
	assert.Equal(t, n.CurrentText, edit.PreviousText)
	assert.Equal(t, req.Text, edit.NewText)
	assert.Equal(t, req.EditorID, edit.EditorID)
	assert.Equal(t, model.RoleNurse, edit.EditorRole)
	assert.Equal(t, "typo", edit.Reason)
	assert.Equal(t, 90*time.Minute, edit.NoteAge)
	assert.InDelta(t, 1.5, edit.NoteAgeHours, 1e-9)
	assert.Equal(t, now, edit.Timestamp)

	// Input untouched.
	assert.Equal(t, 0, n.EditCount)
	assert.Empty(t, n.Edits)
	assert.Nil(t, n.LastEditAt)
}

func TestApplyEdit_Expired(t *testing.T) {
	g := NewGuard()
	n := newNote(t)

	for _, after := range []time.Duration{24 * time.Hour, 25 * time.Hour, 30 * 24 * time.Hour} {
		out, edit, err := g.ApplyEdit(n, editBy("late"), created.Add(after))
		assert.ErrorIs(t, err, ErrEditWindowExpired)
		assert.Equal(t, n.CurrentText, out.CurrentText)
		assert.Equal(t, model.NoteEdit{}, edit)
	}
}

func TestApplyEdit_InputErrors(t *testing.T) {
	g := NewGuard()
	n := newNote(t)
	now := created.Add(time.Hour)

	_, _, err := g.ApplyEdit(n, editBy("   "), now)
	assert.ErrorIs(t, err, ErrEmptyText)

	_, _, err = g.ApplyEdit(n, editBy(n.CurrentText), now)
	assert.ErrorIs(t, err, ErrNoChange)

	_, _, err = g.ApplyEdit(n, EditRequest{Text: "x", EditorRole: model.RoleNurse}, now)
	assert.ErrorIs(t, err, ErrEditorRequired)

	_, _, err = g.ApplyEdit(n, EditRequest{Text: "x", EditorID: uuid.New(), EditorRole: "janitor"}, now)
	assert.ErrorIs(t, err, ErrEditorRequired)
}

func TestApplyEdit_AppendOnlyTrail(t *testing.T) {
	g := NewGuard()
	note := newNote(t)
	original := note.OriginalText

	var snapshots [][]model.NoteEdit
	const edits = 5
	for i := 1; i <= edits; i++ {
		var err error
		note, _, err = g.ApplyEdit(note, editBy(fmt.Sprintf("version %d", i)), created.Add(time.Duration(i)*time.Hour))
		require.NoError(t, err)
		snapshots = append(snapshots, note.Edits)
	}

	assert.Equal(t, edits, note.EditCount)
	require.Len(t, note.Edits, edits)
	assert.Equal(t, original, note.OriginalText)
	assert.NoError(t, VerifyTrail(note))

	// Earlier snapshots still hold exactly what they held when taken.
	for i, snap := range snapshots {
		require.Len(t, snap, i+1)
		for j, e := range snap {
			assert.Equal(t, note.Edits[j], e)
		}
	}
}

func TestApplyEdit_SnapshotsMissingOriginal(t *testing.T) {
	g := NewGuard()
	n := newNote(t)
	n.OriginalText = ""

	out, _, err := g.ApplyEdit(n, editBy("v2"), created.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "Paciente estable, sin dolor.", out.OriginalText)
}

func TestVerifyTrail(t *testing.T) {
	g := NewGuard()
	n := newNote(t)
	n, _, err := g.ApplyEdit(n, editBy("v2"), created.Add(time.Hour))
	require.NoError(t, err)

	tampered := n
	tampered.Edits = []model.NoteEdit{n.Edits[0]}
	tampered.Edits[0].PreviousText = "something else"
	assert.ErrorIs(t, VerifyTrail(tampered), ErrBrokenTrail)

	short := n
	short.Edits = nil
	assert.ErrorIs(t, VerifyTrail(short), ErrBrokenTrail)
}

func TestNewNote(t *testing.T) {
	_, err := NewNote(uuid.New(), uuid.New(), " ", created)
	assert.ErrorIs(t, err, ErrEmptyText)
	_, err = NewNote(uuid.New(), uuid.Nil, "x", created)
	assert.ErrorIs(t, err, ErrEditorRequired)
}
