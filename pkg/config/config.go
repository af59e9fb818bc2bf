package config

import (
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Engine holds the tunables of the mission engine and the chart
type Engine struct {
	// Fraction of the riding time a delayed train can make up
	RidingTimeMargin float64       `yaml:"ridingTimeMargin" validate:"gt=0,lte=1"`
	MinimumStopTime  time.Duration `yaml:"minimumStopTime" validate:"gte=0"`

	IntervalBetweenUpdateMessages time.Duration `yaml:"intervalBetweenUpdateMessages" validate:"gt=0"`
	PeriodForAnnouncementChecks   time.Duration `yaml:"periodForAnnouncementChecks" validate:"gt=0"`
	TimePriorToAnnouncement       time.Duration `yaml:"timePriorToAnnouncement" validate:"gte=0"`
	DelayUpdateInterval           time.Duration `yaml:"delayUpdateInterval" validate:"gt=0"`

	StatisticsNoiseMinutes     int     `yaml:"statisticsNoiseMinutes" validate:"gte=0"`
	StatisticsLargeJumpMinutes int     `yaml:"statisticsLargeJumpMinutes" validate:"gtfield=StatisticsNoiseMinutes"`
	StatisticsMinimumCount     int     `yaml:"statisticsMinimumCount" validate:"gt=0"`
	PlatformShareThreshold     float64 `yaml:"platformShareThreshold" validate:"gt=0,lt=1"`

	OfficialHolidays    []string       `yaml:"officialHolidays" validate:"dive,datetime=2006-01-02"`
	InternationalSeries map[int]string `yaml:"internationalSeries"`
}

func Default() *Engine {
	return &Engine{
		RidingTimeMargin: 0.1,
		MinimumStopTime:  time.Minute,

		IntervalBetweenUpdateMessages: 3 * time.Second,
		PeriodForAnnouncementChecks:   10 * time.Minute,
		TimePriorToAnnouncement:       15 * time.Minute,
		DelayUpdateInterval:           5 * time.Minute,

		StatisticsNoiseMinutes:     0,
		StatisticsLargeJumpMinutes: 30,
		StatisticsMinimumCount:     10,
		PlatformShareThreshold:     0.35,

		InternationalSeries: map[int]string{
			1:  "eu.001",
			2:  "eu.002",
			14: "eu.014",
			24: "eu.024",
		},
	}
}

// Load reads the YAML file at path over the defaults, an empty path gives the defaults
func Load(path string) (*Engine, error) {
	engine := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}

		if err := yaml.Unmarshal(data, engine); err != nil {
			return nil, err
		}
	}

	if err := validator.New().Struct(engine); err != nil {
		return nil, err
	}

	return engine, nil
}
