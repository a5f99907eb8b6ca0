package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/nursing-api/internal/model"
	"github.com/jwalitptl/nursing-api/internal/rules/visibility"
)

func TestPatientFlow(t *testing.T) {
	s := newTestServer(t)

	t.Run("Requires a token", func(t *testing.T) {
		resp := s.makeRequest(http.MethodGet, "/api/v1/patients", nil, "")
		assert.Equal(t, http.StatusUnauthorized, resp.Status)
	})

	onFloor2 := s.admitPatient(t, "Marta Soler", "", 2)
	onFloor3 := s.admitPatient(t, "Joan Riera", "", 3)

	t.Run("Nurse sees assigned floor only", func(t *testing.T) {
		resp := s.makeRequest(http.MethodGet, "/api/v1/patients", nil, model.RoleNurse)
		require.Equal(t, http.StatusOK, resp.Status, string(resp.Raw))

		var view visibility.View
		resp.Decode(t, &view)
		require.Len(t, view.Patients, 1)
		assert.Equal(t, onFloor2, view.Patients[0].ID)
		assert.True(t, view.Shift.InShift)
		assert.False(t, view.Restricted)
	})

	t.Run("Physician without floors sees everyone", func(t *testing.T) {
		resp := s.makeRequest(http.MethodGet, "/api/v1/patients", nil, model.RolePhysician)
		require.Equal(t, http.StatusOK, resp.Status)

		var view visibility.View
		resp.Decode(t, &view)
		assert.Len(t, view.Patients, 2)
	})

	t.Run("Transfer moves patient into view", func(t *testing.T) {
		resp := s.makeRequest(http.MethodPost, "/api/v1/patients/"+onFloor3.String()+"/transfers", map[string]interface{}{
			"to":     location(2, "204", "B"),
			"reason": "step-down from ICU",
		}, model.RoleNurse)
		require.Equal(t, http.StatusCreated, resp.Status, string(resp.Raw))

		var tr model.Transfer
		resp.Decode(t, &tr)
		assert.Equal(t, 3, tr.From.Floor)
		assert.Equal(t, 2, tr.To.Floor)

		resp = s.makeRequest(http.MethodGet, "/api/v1/patients", nil, model.RoleNurse)
		var view visibility.View
		resp.Decode(t, &view)
		assert.Len(t, view.Patients, 2)

		resp = s.makeRequest(http.MethodGet, "/api/v1/patients/"+onFloor3.String(), nil, model.RoleNurse)
		require.Equal(t, http.StatusOK, resp.Status)
		var got struct {
			CurrentLocation model.Location `json:"current_location"`
		}
		resp.Decode(t, &got)
		assert.Equal(t, "204", got.CurrentLocation.Room)

		resp = s.makeRequest(http.MethodGet, "/api/v1/patients/"+onFloor3.String()+"/transfers", nil, model.RoleNurse)
		var transfers []model.Transfer
		resp.Decode(t, &transfers)
		assert.Len(t, transfers, 1)
	})

	t.Run("Incomplete location is rejected", func(t *testing.T) {
		resp := s.makeRequest(http.MethodPost, "/api/v1/patients", map[string]interface{}{
			"name":     "Pau Vila",
			"location": map[string]interface{}{"floor": 2, "room": "210"},
		}, model.RoleNurse)
		require.Equal(t, http.StatusBadRequest, resp.Status)
		require.NotNil(t, resp.Error)
		assert.Contains(t, string(resp.Error.Details), "bed")
	})

	t.Run("Unknown patient", func(t *testing.T) {
		resp := s.makeRequest(http.MethodGet, "/api/v1/patients/7b1f3c1e-0000-4000-8000-000000000000", nil, model.RoleNurse)
		assert.Equal(t, http.StatusNotFound, resp.Status)
	})

	t.Run("Shift status", func(t *testing.T) {
		resp := s.makeRequest(http.MethodGet, "/api/v1/shift", nil, model.RoleNurse)
		require.Equal(t, http.StatusOK, resp.Status)
		var status visibility.ShiftStatus
		resp.Decode(t, &status)
		assert.Equal(t, model.ShiftMorning, status.Current)
	})
}
