package kafka

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloudEventEnvelope(t *testing.T) {
	type payload struct {
		Title string `json:"title"`
	}

	ce, err := NewCloudEvent("service-booking", "notification.created", payload{Title: "Job completed"})
	require.NoError(t, err)
	assert.Equal(t, "1.0", ce.SpecVersion)
	assert.NotEmpty(t, ce.ID)

	raw, err := json.Marshal(ce)
	require.NoError(t, err)

	parsed, err := ParseCloudEvent(raw)
	require.NoError(t, err)
	assert.Equal(t, "notification.created", parsed.Type)

	var p payload
	require.NoError(t, parsed.ParseData(&p))
	assert.Equal(t, "Job completed", p.Title)
}

func TestParseCloudEventRejectsUntyped(t *testing.T) {
	_, err := ParseCloudEvent([]byte(`{"id":"1"}`))
	assert.Error(t, err)

	_, err = ParseCloudEvent([]byte(`not json`))
	assert.Error(t, err)
}
