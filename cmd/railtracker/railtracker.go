package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/travigo/railtracker/pkg/app"
	"github.com/urfave/cli/v2"

	_ "time/tzdata"
)

func main() {
	if os.Getenv("TRAVIGO_LOG_FORMAT") != "JSON" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}

	if os.Getenv("TRAVIGO_DEBUG") == "YES" {
		log.Logger = log.Logger.Level(zerolog.DebugLevel)
	} else {
		log.Logger = log.Logger.Level(zerolog.InfoLevel)
	}

	railtracker := &cli.App{
		Name:        "railtracker",
		Description: "Tracks train missions live against their series timetables",

		Commands: []*cli.Command{
			app.RunCLI(),
			app.SeriesCLI(),
			app.MissionCLI(),
			app.CleanerCLI(),
		},
	}

	err := railtracker.Run(os.Args)
	if err != nil {
		log.Fatal().Err(err).Send()
	}
}
