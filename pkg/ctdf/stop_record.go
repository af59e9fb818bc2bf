package ctdf

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

type StopStatus int

const (
	StopStatusAnnounced StopStatus = iota
	StopStatusExtra
	StopStatusCanceled
	StopStatusAltDestination
	StopStatusFinalDestination
	StopStatusPlanned
	StopStatusRevoked
)

var stopStatusNames = []string{"announced", "extra", "canceled", "altDestination", "finalDestination", "planned", "revoked"}

func (s StopStatus) String() string {
	if s < 0 || int(s) >= len(stopStatusNames) {
		return fmt.Sprintf("StopStatus(%d)", int(s))
	}

	return stopStatusNames[s]
}

// Wire keys of the compact stop record message
const (
	StopRecordKeyStationID          = "si"
	StopRecordKeyMissionID          = "mi"
	StopRecordKeyStatus             = "s"
	StopRecordKeyArrival            = "a"
	StopRecordKeyDeparture          = "v"
	StopRecordKeyDelayArrival       = "da"
	StopRecordKeyDelayDeparture     = "dv"
	StopRecordKeyDestination        = "de"
	StopRecordKeyAlteredDestination = "ad"
	StopRecordKeyPlatform           = "p"
	StopRecordKeyChangedPlatform    = "pc"
	StopRecordKeyObservedAt         = "now"
)

// StopRecord describes one visit of a mission to a station.
// Identity is StationID plus MissionID. Zero values mean absent.
type StopRecord struct {
	StationID string `groups:"basic"`
	MissionID string `groups:"basic"`

	Status StopStatus `groups:"basic"`

	Arrival   time.Time `groups:"basic"`
	Departure time.Time `groups:"basic"`

	DelayArrival   float64 `groups:"basic"`
	DelayDeparture float64 `groups:"basic"`

	Destination        string `groups:"basic"`
	AlteredDestination string `groups:"basic"`

	Platform        string `groups:"basic"`
	PlatformChanged bool   `groups:"basic"`

	ObservedAt time.Time `groups:"detailed"`
}

func RevokedStopRecord(missionID string, stationID string) *StopRecord {
	return &StopRecord{
		MissionID: missionID,
		StationID: stationID,
		Status:    StopStatusRevoked,
	}
}

func (s *StopRecord) EstimatedArrival() time.Time {
	if s.Arrival.IsZero() {
		return s.EstimatedDeparture()
	}

	return s.Arrival.Add(minutesDuration(s.DelayArrival))
}

func (s *StopRecord) EstimatedDeparture() time.Time {
	return s.Departure.Add(minutesDuration(s.DelayDeparture))
}

// RealDestination is the altered destination when one is set
func (s *StopRecord) RealDestination() string {
	if s.AlteredDestination != "" {
		return s.AlteredDestination
	}

	return s.Destination
}

func (s *StopRecord) Up() bool {
	code, ok := ParseMissionID(s.MissionID)
	return ok && code.Up()
}

func (s *StopRecord) Serialize() map[string]any {
	wire := map[string]any{}

	if s.StationID != "" {
		wire[StopRecordKeyStationID] = s.StationID
	}
	if s.MissionID != "" {
		wire[StopRecordKeyMissionID] = s.MissionID
	}
	if s.Status != StopStatusAnnounced {
		wire[StopRecordKeyStatus] = int(s.Status)
	}
	if !s.Arrival.IsZero() {
		wire[StopRecordKeyArrival] = FormatLocalTimestamp(s.Arrival)
	}
	if !s.Departure.IsZero() {
		wire[StopRecordKeyDeparture] = FormatLocalTimestamp(s.Departure)
	}
	if s.DelayArrival != 0 {
		wire[StopRecordKeyDelayArrival] = s.DelayArrival
	}
	if s.DelayDeparture != 0 {
		wire[StopRecordKeyDelayDeparture] = s.DelayDeparture
	}
	if s.Destination != "" {
		wire[StopRecordKeyDestination] = s.Destination
	}
	if s.AlteredDestination != "" {
		wire[StopRecordKeyAlteredDestination] = s.AlteredDestination
	}
	if s.Platform != "" {
		if s.PlatformChanged {
			wire[StopRecordKeyChangedPlatform] = s.Platform
		} else {
			wire[StopRecordKeyPlatform] = s.Platform
		}
	}
	if !s.ObservedAt.IsZero() {
		wire[StopRecordKeyObservedAt] = FormatLocalTimestamp(s.ObservedAt)
	}

	return wire
}

// DeserializeStopRecord never fails, fields it cannot read keep their defaults
func DeserializeStopRecord(wire map[string]any) *StopRecord {
	stop := &StopRecord{Status: StopStatusAnnounced}

	stop.StationID = wireString(wire[StopRecordKeyStationID])
	stop.MissionID = wireString(wire[StopRecordKeyMissionID])

	if status, ok := wireInt(wire[StopRecordKeyStatus]); ok && status >= int(StopStatusAnnounced) && status <= int(StopStatusRevoked) {
		stop.Status = StopStatus(status)
	}

	stop.Arrival = wireTime(wire[StopRecordKeyArrival])
	stop.Departure = wireTime(wire[StopRecordKeyDeparture])
	stop.ObservedAt = wireTime(wire[StopRecordKeyObservedAt])

	stop.DelayArrival = wireMinutes(wire[StopRecordKeyDelayArrival])
	stop.DelayDeparture = wireMinutes(wire[StopRecordKeyDelayDeparture])

	stop.Destination = wireString(wire[StopRecordKeyDestination])
	stop.AlteredDestination = wireString(wire[StopRecordKeyAlteredDestination])

	if platform := wireString(wire[StopRecordKeyChangedPlatform]); platform != "" {
		stop.Platform = platform
		stop.PlatformChanged = true
	} else {
		stop.Platform = wireString(wire[StopRecordKeyPlatform])
	}

	return stop
}

func (s *StopRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Serialize())
}

func (s *StopRecord) UnmarshalJSON(data []byte) error {
	var wire map[string]any
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	*s = *DeserializeStopRecord(wire)
	return nil
}

func wireString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	}

	return ""
}

func wireInt(value any) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	case string:
		n, err := strconv.Atoi(v)
		return n, err == nil
	}

	return 0, false
}

// wireMinutes accepts plain numbers and ISO-8601 durations such as PT5M
func wireMinutes(value any) float64 {
	switch v := value.(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case string:
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			return n
		}
		return MinutesFromISODuration(v)
	}

	return 0
}

func wireTime(value any) time.Time {
	switch v := value.(type) {
	case string:
		parsed, _ := ParseLocalTimestamp(v)
		return parsed
	case time.Time:
		return v.In(CET)
	}

	return time.Time{}
}

func minutesDuration(minutes float64) time.Duration {
	return time.Duration(minutes * float64(time.Minute))
}
