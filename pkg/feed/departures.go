package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/travigo/railtracker/pkg/ctdf"
)

// ErrUpstream is returned when a station feed explicitly reports an error instead of departures
var ErrUpstream = errors.New("upstream reported an error")

// DepartureMessage is what a station agent publishes for one station. Each
// departure is a compact stop record.
type DepartureMessage struct {
	Station    string           `json:"station"`
	Error      string           `json:"error,omitempty"`
	Departures []map[string]any `json:"departures"`
}

// DecodeDepartures turns a departure message into stop records. Departures
// without a station are taken to be at the station of the message.
func DecodeDepartures(body []byte) ([]*ctdf.StopRecord, error) {
	var message DepartureMessage
	if err := json.Unmarshal(body, &message); err != nil {
		return nil, err
	}

	if message.Error != "" {
		return nil, fmt.Errorf("%w: %s: %s", ErrUpstream, message.Station, message.Error)
	}

	stops := make([]*ctdf.StopRecord, 0, len(message.Departures))
	for _, departure := range message.Departures {
		stop := ctdf.DeserializeStopRecord(departure)
		if stop.StationID == "" {
			stop.StationID = message.Station
		}
		if stop.MissionID == "" {
			log.Debug().Str("station", message.Station).Msg("Skipping departure without mission")
			continue
		}

		stops = append(stops, stop)
	}

	return stops, nil
}

type DeparturesHandler interface {
	HandleDepartures(ctx context.Context, stops []*ctdf.StopRecord) error
}

// HandleMessage decodes a departure message and hands the stops to the handler
func HandleMessage(ctx context.Context, handler DeparturesHandler, body []byte) error {
	stops, err := DecodeDepartures(body)
	if err != nil {
		return err
	}

	return handler.HandleDepartures(ctx, stops)
}
