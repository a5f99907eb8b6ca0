package api

import (
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/nursing-api/internal/model"
)

func location(floor int, room, bed string) map[string]interface{} {
	return map[string]interface{}{"floor": floor, "area": "B", "room": room, "bed": bed}
}

func (s *testServer) admitPatient(t *testing.T, name, allergies string, floor int) uuid.UUID {
	t.Helper()
	resp := s.makeRequest(http.MethodPost, "/api/v1/patients", map[string]interface{}{
		"name":      name,
		"allergies": allergies,
		"location":  location(floor, "201", "A"),
	}, model.RoleNurse)
	require.Equal(t, http.StatusCreated, resp.Status, string(resp.Raw))

	var p model.Patient
	resp.Decode(t, &p)
	require.NotEqual(t, uuid.Nil, p.ID)
	return p.ID
}
