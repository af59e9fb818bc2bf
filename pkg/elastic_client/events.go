package elastic_client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/travigo/railtracker/pkg/tracker"
)

// UpdateEvents indexes processed stop updates into one index per ISO week
type UpdateEvents struct {
	Index func(indexName string, document []byte)
}

func NewUpdateEvents() *UpdateEvents {
	return &UpdateEvents{
		Index: func(indexName string, document []byte) {
			IndexRequest(indexName, bytes.NewReader(document))
		},
	}
}

func UpdateEventsIndexName(event tracker.UpdateEvent) string {
	year, week := event.Timestamp.ISOWeek()
	return fmt.Sprintf("railtracker-updates-%d-%d", year, week)
}

func (u *UpdateEvents) IndexUpdate(ctx context.Context, event tracker.UpdateEvent) {
	document, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("mission", event.MissionID).Msg("Failed to encode update event")
		return
	}

	u.Index(UpdateEventsIndexName(event), document)
}
