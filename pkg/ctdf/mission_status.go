package ctdf

type MissionStatus int

const (
	MissionStatusInactive MissionStatus = iota
	MissionStatusAnnounced
	MissionStatusRunning
	MissionStatusArrived
	MissionStatusCompleted
	MissionStatusCanceled
	MissionStatusAmbivalent
)

var missionStatusNames = []string{"inactive", "announced", "running", "arrived", "completed", "canceled", "ambivalent"}

func (s MissionStatus) String() string {
	if s < 0 || int(s) >= len(missionStatusNames) {
		return "unknown"
	}

	return missionStatusNames[s]
}
