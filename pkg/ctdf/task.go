package ctdf

import (
	"fmt"
	"math/rand"
	"strings"
	"time"
)

type TaskInstruction string

const (
	TaskInstructionPriority TaskInstruction = "prio"
	TaskInstructionCheck    TaskInstruction = "check"
	TaskInstructionForward  TaskInstruction = "fwd"
)

const (
	TaskTargetStation = "station"
	TaskTargetMission = "mission"
)

// Task is an asynchronous notification for a station or mission agent.
// Name doubles as the deduplication key.
type Task struct {
	Name      string
	Target    string
	NotBefore time.Time

	Instruction TaskInstruction
	Sender      string      `json:",omitempty"`
	Expected    time.Time   `json:",omitempty"`
	Stop        *StopRecord `json:",omitempty"`
}

func StationTarget(stationID string) string {
	return fmt.Sprintf("%s/%s", TaskTargetStation, stationID)
}

func MissionTarget(missionID string) string {
	return fmt.Sprintf("%s/%s", TaskTargetMission, missionID)
}

// SplitTarget returns the target kind and the identifier it addresses
func SplitTarget(target string) (string, string) {
	kind, identifier, _ := strings.Cut(target, "/")
	return kind, identifier
}

// TaskName formats DD_HHMM_SS_<label> in UTC. With randomSeconds the seconds are
// replaced by xx and the returned time gets a random second within the minute.
func TaskName(issueTime time.Time, label string, randomSeconds bool) (string, time.Time) {
	utc := issueTime.UTC()

	if randomSeconds {
		notBefore := utc.Truncate(time.Minute).Add(time.Duration(rand.Intn(60)) * time.Second)
		return fmt.Sprintf("%s_xx_%s", utc.Format("02_1504"), label), notBefore
	}

	return fmt.Sprintf("%s_%s", utc.Format("02_1504_05"), label), issueTime
}
