package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionRefShapes(t *testing.T) {
	tests := []struct {
		name  string
		input string
		id    int64
		valid bool
	}{
		{"number", `7`, 7, true},
		{"numeric string", `"7"`, 7, true},
		{"object", `{"id": 7}`, 7, true},
		{"connect", `{"connect": [{"id": "7"}]}`, 7, true},
		{"empty connect", `{"connect": []}`, 0, false},
		{"null", `null`, 0, false},
		{"zero", `0`, 0, false},
		{"garbage string", `"abc"`, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req struct {
				SessionID SessionRef `json:"sessionId"`
			}
			require.NoError(t, json.Unmarshal([]byte(`{"sessionId":`+tt.input+`}`), &req))
			assert.Equal(t, tt.valid, req.SessionID.Valid)
			assert.Equal(t, tt.id, req.SessionID.ID)
		})
	}
}

func TestCreateBookingRequestSessionRef(t *testing.T) {
	var req CreateBookingRequest
	require.NoError(t, json.Unmarshal([]byte(`{"sessionId": 3, "session": {"id": 9}}`), &req))

	id, ok := req.SessionRef()
	assert.True(t, ok)
	assert.Equal(t, int64(3), id)

	req = CreateBookingRequest{}
	require.NoError(t, json.Unmarshal([]byte(`{"session": {"connect": [{"id": 9}]}}`), &req))
	id, ok = req.SessionRef()
	assert.True(t, ok)
	assert.Equal(t, int64(9), id)

	_, ok = (&CreateBookingRequest{}).SessionRef()
	assert.False(t, ok)
}

func TestFlexibleBool(t *testing.T) {
	for _, in := range []string{`true`, `"true"`, `"1"`, `1`, `"yes"`, `"on"`, `"YES"`} {
		var fb FlexibleBool
		require.NoError(t, json.Unmarshal([]byte(in), &fb), in)
		assert.True(t, fb.Bool(), in)
	}
	for _, in := range []string{`false`, `"0"`, `0`, `"no"`, `null`, `""`} {
		fb := FlexibleBool(true)
		require.NoError(t, json.Unmarshal([]byte(in), &fb), in)
		assert.False(t, fb.Bool(), in)
	}

	var fb FlexibleBool
	assert.Error(t, json.Unmarshal([]byte(`"maybe"`), &fb))
}

func TestChangesPricing(t *testing.T) {
	notes := "Allergie"
	assert.False(t, (&UpdateBookingRequest{Notes: &notes}).ChangesPricing())

	vat := false
	assert.True(t, (&UpdateBookingRequest{VATApplicable: &vat}).ChangesPricing())
}

func TestLocationDisplayName(t *testing.T) {
	assert.Equal(t, "Altona", (&Location{Standort: "Altona", City: "Hamburg"}).DisplayName())
	assert.Equal(t, "Weinkeller", (&Location{Venue: "Weinkeller", City: "Hamburg"}).DisplayName())
	assert.Equal(t, "Hamburg", (&Location{City: "Hamburg"}).DisplayName())

	var missing *Location
	assert.Empty(t, missing.DisplayName())
}
