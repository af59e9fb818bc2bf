package ctdf

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStopRecord_RoundTrip(t *testing.T) {
	stop := &StopRecord{
		StationID:          "nl.ed",
		MissionID:          "nl.3044",
		Status:             StopStatusPlanned,
		Arrival:            time.Date(2013, 2, 19, 13, 50, 0, 0, CET),
		Departure:          time.Date(2013, 2, 19, 13, 51, 0, 0, CET),
		DelayArrival:       2,
		DelayDeparture:     2.5,
		Destination:        "Amsterdam Centraal",
		AlteredDestination: "Utrecht Centraal",
		Platform:           "3a",
		PlatformChanged:    true,
	}

	assert.Equal(t, stop, DeserializeStopRecord(stop.Serialize()))
}

func TestStopRecord_SerializeOmitsDefaults(t *testing.T) {
	stop := &StopRecord{StationID: "nl.ut", MissionID: "nl.3044", Platform: "5"}

	assert.Equal(t, map[string]any{"si": "nl.ut", "mi": "nl.3044", "p": "5"}, stop.Serialize())
}

func TestStopRecord_ChangedPlatformKey(t *testing.T) {
	stop := DeserializeStopRecord(map[string]any{"si": "nl.ut", "pc": "7b"})

	assert.Equal(t, "7b", stop.Platform)
	assert.True(t, stop.PlatformChanged)
	assert.Equal(t, "7b", stop.Serialize()["pc"])
	assert.NotContains(t, stop.Serialize(), "p")
}

func TestStopRecord_MalformedValuesDefault(t *testing.T) {
	stop := DeserializeStopRecord(map[string]any{
		"si": 12,
		"s":  "bogus",
		"v":  "yesterday",
		"dv": []int{1},
	})

	assert.Equal(t, "", stop.StationID)
	assert.Equal(t, StopStatusAnnounced, stop.Status)
	assert.True(t, stop.Departure.IsZero())
	assert.Equal(t, 0.0, stop.DelayDeparture)
	assert.False(t, stop.PlatformChanged)
}

func TestStopRecord_ISODelay(t *testing.T) {
	stop := DeserializeStopRecord(map[string]any{"dv": "PT5M", "da": "PT1M30S"})

	assert.Equal(t, 5.0, stop.DelayDeparture)
	assert.Equal(t, 1.5, stop.DelayArrival)
}

func TestStopRecord_JSON(t *testing.T) {
	var stop StopRecord
	require.NoError(t, json.Unmarshal([]byte(`{"si":"nl.asd","mi":"nl.3044","s":2,"v":"2013-02-19T14:40:00","dv":3}`), &stop))

	assert.Equal(t, StopStatusCanceled, stop.Status)
	assert.Equal(t, time.Date(2013, 2, 19, 14, 40, 0, 0, CET), stop.Departure)
	assert.Equal(t, time.Date(2013, 2, 19, 14, 43, 0, 0, CET), stop.EstimatedDeparture())

	encoded, err := json.Marshal(&stop)
	require.NoError(t, err)
	assert.JSONEq(t, `{"si":"nl.asd","mi":"nl.3044","s":2,"v":"2013-02-19T14:40:00","dv":3}`, string(encoded))
}

func TestRevokedStopRecord(t *testing.T) {
	stop := RevokedStopRecord("nl.3044", "nl.klp")

	assert.Equal(t, map[string]any{"si": "nl.klp", "mi": "nl.3044", "s": 6}, stop.Serialize())
}
