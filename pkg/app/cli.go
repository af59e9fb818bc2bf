package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/kr/pretty"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"
	"github.com/travigo/railtracker/pkg/api"
	"github.com/travigo/railtracker/pkg/consumer"
	"github.com/travigo/railtracker/pkg/ctdf"
	"github.com/travigo/railtracker/pkg/dispatch"
	"github.com/travigo/railtracker/pkg/feed"
	"github.com/travigo/railtracker/pkg/importer"
	"github.com/travigo/railtracker/pkg/scheduler"
	"github.com/urfave/cli/v2"
)

var memoryFlag = &cli.BoolFlag{
	Name:  "memory",
	Usage: "keep all state in memory instead of MongoDB and Redis",
}

func backendFromContext(c *cli.Context) (*Backend, error) {
	return NewBackend(OptionsFromEnvironment(c.Bool("memory")))
}

func waitForSignal() {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signals)

	<-signals // wait for signal
	go func() {
		<-signals // hard exit on second signal (in case shutdown gets stuck)
		os.Exit(1)
	}()
}

func applyBootstrap(ctx context.Context, backend *Backend, path string) error {
	bootstrap, err := importer.LoadBootstrap(path)
	if err != nil {
		return err
	}

	return backend.Importer.ApplyBootstrap(ctx, bootstrap, filepath.Dir(path))
}

func RunCLI() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "run the mission tracker with its web api, task workers and daily scheduler",
		Flags: []cli.Flag{
			memoryFlag,
			&cli.StringFlag{
				Name:  "listen",
				Value: ":8080",
				Usage: "listen target for the web server",
			},
			&cli.StringFlag{
				Name:  "bootstrap",
				Usage: "YAML file with stations, timetables and planned missions to load at start",
			},
			&cli.StringFlag{
				Name:  "departures-queue",
				Usage: "STOMP queue to read station departures from",
			},
			&cli.IntFlag{
				Name:  "consumers",
				Value: 4,
				Usage: "number of consumers per task queue",
			},
		},
		Action: func(c *cli.Context) error {
			backend, err := backendFromContext(c)
			if err != nil {
				return err
			}
			defer backend.Close()

			ctx, cancel := context.WithCancel(c.Context)
			defer cancel()

			if path := c.String("bootstrap"); path != "" {
				if err := applyBootstrap(ctx, backend, path); err != nil {
					return err
				}
			}

			if err := scheduler.New(backend.Tracker).Start(ctx); err != nil {
				return err
			}

			var workers conc.WaitGroup

			if backend.Connection != nil {
				taskConsumer := &dispatch.TaskConsumer{Handler: backend.Tracker}

				for _, queueName := range []string{dispatch.MissionQueueName, dispatch.StationQueueName} {
					redisConsumer := &consumer.RedisConsumer{
						Connection:      backend.Connection,
						QueueName:       queueName,
						NumberConsumers: c.Int("consumers"),
						BatchSize:       20,
						Timeout:         time.Second,
						Consumer:        taskConsumer,
					}
					if err := redisConsumer.Setup(); err != nil {
						return err
					}
				}

				workers.Go(func() { backend.Dispatcher.Run(ctx, time.Second) })
				workers.Go(func() { dispatch.StartCleaner(ctx, backend.Connection, time.Minute) })
			} else {
				runner := &memoryTaskRunner{Tasks: backend.memoryTasks, Handler: backend.Tracker, Now: time.Now}
				workers.Go(func() { runner.Run(ctx, time.Second) })
			}

			if queue := c.String("departures-queue"); queue != "" {
				departures := feed.NewStompClient(queue)
				if err := departures.Connect(); err != nil {
					return err
				}
				defer departures.Disconnect()

				workers.Go(func() {
					if err := departures.Run(ctx, backend.Tracker); err != nil {
						log.Error().Err(err).Msg("Departure feed stopped")
					}
				})
			}

			server := api.NewServer(backend.ServerOptions())
			workers.Go(func() {
				if err := server.Listen(c.String("listen")); err != nil {
					log.Error().Err(err).Msg("Web server stopped")
				}
			})

			waitForSignal()
			log.Info().Msg("Shutting down")

			cancel()
			if err := server.Shutdown(); err != nil {
				log.Error().Err(err).Msg("Failed to stop web server")
			}
			if backend.Connection != nil {
				<-backend.Connection.StopAllConsuming() // wait for all Consume() calls to finish
			}

			workers.Wait()

			return nil
		},
	}
}

func SeriesCLI() *cli.Command {
	seriesFlag := &cli.StringFlag{
		Name:     "series",
		Usage:    "series identifier, e.g. nl.030",
		Required: true,
	}

	return &cli.Command{
		Name:  "series",
		Usage: "manage train series and their timetables",
		Subcommands: []*cli.Command{
			{
				Name:  "import",
				Usage: "import the timetable CSV of a series",
				Flags: []cli.Flag{
					seriesFlag,
					&cli.StringFlag{
						Name:     "file",
						Usage:    "timetable CSV file",
						Required: true,
					},
				},
				Action: func(c *cli.Context) error {
					backend, err := NewBackend(OptionsFromEnvironment(false))
					if err != nil {
						return err
					}
					defer backend.Close()

					file, err := os.Open(c.String("file"))
					if err != nil {
						return err
					}
					defer file.Close()

					diff, err := backend.Importer.ImportTimetable(c.Context, c.String("series"), file)
					if err != nil {
						return err
					}

					log.Info().
						Str("series", c.String("series")).
						Int("created", len(diff.Create)).
						Int("updated", len(diff.Update)).
						Int("deleted", len(diff.Delete)).
						Msg("Imported timetable")

					return nil
				},
			},
			{
				Name:  "bootstrap",
				Usage: "load stations, timetables and planned missions from a YAML file",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "file",
						Usage:    "bootstrap YAML file",
						Required: true,
					},
				},
				Action: func(c *cli.Context) error {
					backend, err := NewBackend(OptionsFromEnvironment(false))
					if err != nil {
						return err
					}
					defer backend.Close()

					return applyBootstrap(c.Context, backend, c.String("file"))
				},
			},
			{
				Name:  "newday",
				Usage: "roll series over to the current day, all of them when no series is given",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "series",
						Usage: "series identifier",
					},
				},
				Action: func(c *cli.Context) error {
					backend, err := NewBackend(OptionsFromEnvironment(false))
					if err != nil {
						return err
					}
					defer backend.Close()

					if seriesID := c.String("series"); seriesID != "" {
						return backend.Tracker.ActivateNewDay(c.Context, seriesID)
					}

					return backend.Tracker.ActivateAll(c.Context)
				},
			},
			{
				Name:  "optimize",
				Usage: "pick the usual origin and destination for the missions of a series",
				Flags: []cli.Flag{seriesFlag},
				Action: func(c *cli.Context) error {
					backend, err := NewBackend(OptionsFromEnvironment(false))
					if err != nil {
						return err
					}
					defer backend.Close()

					return backend.Tracker.OptimizeODIDs(c.Context, c.String("series"))
				},
			},
			{
				Name:  "show",
				Usage: "print a series with its points and statistics",
				Flags: []cli.Flag{seriesFlag},
				Action: func(c *cli.Context) error {
					backend, err := NewBackend(OptionsFromEnvironment(false))
					if err != nil {
						return err
					}
					defer backend.Close()

					s, err := backend.Tracker.Series(c.Context, c.String("series"))
					if err != nil {
						return err
					}
					statistics, err := backend.Tracker.SeriesStatistics(c.Context, c.String("series"))
					if err != nil {
						return err
					}

					pretty.Println(s, s.Points(), statistics)

					return nil
				},
			},
		},
	}
}

func MissionCLI() *cli.Command {
	missionFlag := &cli.StringFlag{
		Name:     "mission",
		Usage:    "mission identifier, e.g. nl.3044",
		Required: true,
	}

	return &cli.Command{
		Name:  "mission",
		Usage: "inspect tracked missions",
		Subcommands: []*cli.Command{
			{
				Name:  "show",
				Usage: "print a mission with its current status",
				Flags: []cli.Flag{missionFlag},
				Action: func(c *cli.Context) error {
					backend, err := NewBackend(OptionsFromEnvironment(false))
					if err != nil {
						return err
					}
					defer backend.Close()

					m, err := backend.Tracker.Mission(c.Context, c.String("mission"))
					if errors.Is(err, ctdf.ErrNotFound) {
						return fmt.Errorf("mission %s is not tracked", c.String("mission"))
					} else if err != nil {
						return err
					}

					status, delay := m.StatusAt(time.Now().In(ctdf.CET))
					pretty.Println(m)
					log.Info().Str("mission", m.PrimaryIdentifier).Str("status", status.String()).Float64("delay", delay).Send()

					return nil
				},
			},
			{
				Name:  "check",
				Usage: "ask the stations ahead whether the mission is announced",
				Flags: []cli.Flag{missionFlag},
				Action: func(c *cli.Context) error {
					backend, err := NewBackend(OptionsFromEnvironment(false))
					if err != nil {
						return err
					}
					defer backend.Close()

					return backend.Tracker.HandleCheck(c.Context, c.String("mission"))
				},
			},
		},
	}
}

func CleanerCLI() *cli.Command {
	return &cli.Command{
		Name:  "cleaner",
		Usage: "run the cleaner for the task queues",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "once",
				Usage: "clean once and exit",
			},
		},
		Action: func(c *cli.Context) error {
			backend, err := NewBackend(OptionsFromEnvironment(false))
			if err != nil {
				return err
			}
			defer backend.Close()

			if c.Bool("once") {
				returned, err := dispatch.Clean(backend.Connection, []string{dispatch.MissionQueueName, dispatch.StationQueueName})
				if err != nil {
					return err
				}

				log.Info().Int64("returned", returned).Msg("Cleaned task queues")
				return nil
			}

			ctx, cancel := context.WithCancel(c.Context)
			go dispatch.StartCleaner(ctx, backend.Connection, time.Minute)

			waitForSignal()
			cancel()

			return nil
		},
	}
}
