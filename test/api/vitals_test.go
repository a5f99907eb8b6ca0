package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/nursing-api/internal/model"
)

type vitalsBody struct {
	Required string              `json:"required_confirmation"`
	Saved    bool                `json:"saved"`
	Reading  *model.VitalReading `json:"reading"`
}

func TestVitalsAcknowledgementFlow(t *testing.T) {
	s := newTestServer(t)
	patientID := s.admitPatient(t, "Joan Riera", "", 2)
	path := "/api/v1/patients/" + patientID.String() + "/vitals"
	critical := map[string]string{"spo2": "85", "heart_rate": "72"}

	t.Run("Classify does not store", func(t *testing.T) {
		resp := s.makeRequest(http.MethodPost, "/api/v1/vitals/classify", map[string]interface{}{"values": critical}, model.RoleNurse)
		require.Equal(t, http.StatusOK, resp.Status, string(resp.Raw))
	})

	t.Run("Critical needs the critical acknowledgement", func(t *testing.T) {
		for _, ack := range []string{"", "warnings"} {
			resp := s.makeRequest(http.MethodPost, path, map[string]interface{}{"values": critical, "acknowledge": ack}, model.RoleNurse)
			require.Equal(t, http.StatusConflict, resp.Status, string(resp.Raw))
			var out vitalsBody
			resp.Decode(t, &out)
			assert.False(t, out.Saved)
			assert.Equal(t, "critical", out.Required)
		}
	})

	t.Run("Acknowledged critical is stored and alerted", func(t *testing.T) {
		resp := s.makeRequest(http.MethodPost, path, map[string]interface{}{"values": critical, "acknowledge": "critical"}, model.RoleNurse)
		require.Equal(t, http.StatusCreated, resp.Status, string(resp.Raw))
		var out vitalsBody
		resp.Decode(t, &out)
		assert.True(t, out.Saved)
		require.NotNil(t, out.Reading)
		assert.Equal(t, model.AckCritical, out.Reading.Acknowledged)

		var critical int
		for _, e := range s.store.Events() {
			if e.EventType == model.EventVitalsCritical {
				critical++
			}
		}
		assert.Equal(t, 1, critical)
	})

	t.Run("Out of bounds is rejected whatever the ack", func(t *testing.T) {
		resp := s.makeRequest(http.MethodPost, path, map[string]interface{}{
			"values":      map[string]string{"spo2": "30"},
			"acknowledge": "critical",
		}, model.RoleNurse)
		assert.Equal(t, http.StatusBadRequest, resp.Status)
	})

	t.Run("Unknown acknowledgement", func(t *testing.T) {
		resp := s.makeRequest(http.MethodPost, path, map[string]interface{}{"values": critical, "acknowledge": "all"}, model.RoleNurse)
		assert.Equal(t, http.StatusBadRequest, resp.Status)
	})

	t.Run("History", func(t *testing.T) {
		resp := s.makeRequest(http.MethodGet, path+"?limit=5", nil, model.RoleNurse)
		require.Equal(t, http.StatusOK, resp.Status)
		var readings []model.VitalReading
		resp.Decode(t, &readings)
		assert.Len(t, readings, 1)
	})
}
