package feed

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-stomp/stomp/v3/frame"
	"github.com/travigo/railtracker/pkg/ctdf"
)

type Sender interface {
	Send(destination string, contentType string, body []byte, opts ...func(*frame.Frame) error) error
}

// StationRequest asks the station agent to fetch fresh departures
type StationRequest struct {
	Station     string               `json:"station"`
	Task        string               `json:"task"`
	Instruction ctdf.TaskInstruction `json:"instruction"`
	Sender      string               `json:"sender,omitempty"`
	Expected    *time.Time           `json:"expected,omitempty"`
}

// StationRequester forwards station tasks to the station agents over STOMP
type StationRequester struct {
	Sender      Sender
	Destination string
}

func (r *StationRequester) RequestStation(ctx context.Context, task ctdf.Task) error {
	_, station := ctdf.SplitTarget(task.Target)

	request := StationRequest{
		Station:     station,
		Task:        task.Name,
		Instruction: task.Instruction,
		Sender:      task.Sender,
	}
	if !task.Expected.IsZero() {
		expected := task.Expected
		request.Expected = &expected
	}

	body, err := json.Marshal(request)
	if err != nil {
		return err
	}

	return r.Sender.Send(r.Destination, "application/json", body)
}
