package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/adjust/rmq/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/travigo/railtracker/pkg/api"
	"github.com/travigo/railtracker/pkg/cache"
	"github.com/travigo/railtracker/pkg/config"
	"github.com/travigo/railtracker/pkg/consumer"
	"github.com/travigo/railtracker/pkg/ctdf"
	"github.com/travigo/railtracker/pkg/database"
	"github.com/travigo/railtracker/pkg/dispatch"
	"github.com/travigo/railtracker/pkg/elastic_client"
	"github.com/travigo/railtracker/pkg/feed"
	"github.com/travigo/railtracker/pkg/importer"
	"github.com/travigo/railtracker/pkg/locks"
	"github.com/travigo/railtracker/pkg/metrics"
	"github.com/travigo/railtracker/pkg/redis_client"
	"github.com/travigo/railtracker/pkg/registry"
	"github.com/travigo/railtracker/pkg/tracker"
	"github.com/travigo/railtracker/pkg/util"
)

const (
	missionCacheExpiration = 36 * time.Hour
	stationCacheExpiration = time.Hour
	lockTTL                = 30 * time.Second
	lockWait               = 5 * time.Second
	taskDedupTTL           = 2 * time.Hour
)

type Options struct {
	// Memory keeps all state in process, nothing is shared with other instances
	Memory bool

	ConfigPath string

	// StationRequests is the STOMP destination station tasks are sent to,
	// station tasks are dropped when empty
	StationRequests string
}

// OptionsFromEnvironment reads TRAVIGO_TRACKER_CONFIG and TRAVIGO_STATION_REQUESTS
func OptionsFromEnvironment(memory bool) Options {
	env := util.GetEnvironmentVariables()

	return Options{
		Memory:          memory,
		ConfigPath:      env["TRAVIGO_TRACKER_CONFIG"],
		StationRequests: env["TRAVIGO_STATION_REQUESTS"],
	}
}

// Backend is a wired tracker with everything around it
type Backend struct {
	Tracker  *tracker.Tracker
	Importer *importer.Importer
	Registry *prometheus.Registry

	// nil when running in memory
	Dispatcher *dispatch.Dispatcher
	Connection rmq.Connection

	memoryTasks *tracker.MemoryDispatcher
	stomp       *feed.StompClient
}

func NewBackend(options Options) (*Backend, error) {
	engine, err := config.Load(options.ConfigPath)
	if err != nil {
		return nil, err
	}

	ctdf.LoadSpecialDays(engine.OfficialHolidays)

	promRegistry := prometheus.NewRegistry()
	backend := &Backend{
		Registry: promRegistry,
		Tracker: &tracker.Tracker{
			Config:  engine,
			Metrics: metrics.NewPrometheus(promRegistry),
		},
	}

	if options.Memory {
		backend.setupMemory()
	} else if err := backend.setupShared(); err != nil {
		return nil, err
	}

	if options.StationRequests != "" {
		backend.stomp = feed.NewStompClient("")
		if err := backend.stomp.Connect(); err != nil {
			return nil, err
		}

		backend.Tracker.Stations = &feed.StationRequester{
			Sender:      backend.stomp.Conn(),
			Destination: options.StationRequests,
		}
	}

	return backend, nil
}

func (b *Backend) setupMemory() {
	log.Info().Msg("Running with in-memory state")

	stations := registry.NewStatic(nil)
	b.memoryTasks = &tracker.MemoryDispatcher{}

	b.Tracker.Store = tracker.NewMemoryStore()
	b.Tracker.Cache = tracker.NewMemoryCache()
	b.Tracker.Locks = &tracker.LocalLocker{Timeout: lockWait}
	b.Tracker.Dispatcher = b.memoryTasks
	b.Tracker.Registry = stations

	b.Importer = &importer.Importer{Target: b.Tracker, Stations: stations}
}

func (b *Backend) setupShared() error {
	if err := database.Connect(); err != nil {
		return err
	}
	if err := redis_client.Connect(); err != nil {
		return err
	}
	if err := elastic_client.Connect(false); err != nil {
		return err
	}

	stations := registry.NewMongo(database.GetCollection(database.StationsCollection), redis_client.Client, stationCacheExpiration)

	b.Connection = redis_client.QueueConnection
	b.Dispatcher = dispatch.New(redis_client.Client, redis_client.QueueConnection, taskDedupTTL)

	b.Tracker.Store = database.NewStore(database.MongoGlobalInstance.Database)
	b.Tracker.Cache = cache.New(redis_client.Client, missionCacheExpiration)
	b.Tracker.Locks = &locks.RedisLocker{Client: redis_client.Client, TTL: lockTTL, Wait: lockWait}
	b.Tracker.Dispatcher = b.Dispatcher
	b.Tracker.Registry = stations

	if elastic_client.Client != nil {
		b.Tracker.Events = elastic_client.NewUpdateEvents()
	}

	b.Importer = &importer.Importer{Target: b.Tracker, Stations: stations}

	return nil
}

func (b *Backend) Health(ctx context.Context) error {
	if b.Connection == nil {
		return nil
	}

	return errors.Join(
		database.MongoGlobalInstance.Client.Ping(ctx, nil),
		redis_client.Client.Ping(ctx).Err(),
	)
}

func (b *Backend) ServerOptions() api.Options {
	var queueStats http.Handler
	if b.Connection != nil {
		queueStats = consumer.NewStatsHandler(b.Connection)
	}

	return api.Options{
		Tracker:    b.Tracker,
		Importer:   b.Importer,
		Gatherer:   b.Registry,
		QueueStats: queueStats,
		Health:     b.Health,
	}
}

func (b *Backend) Close() {
	if b.stomp != nil {
		if err := b.stomp.Disconnect(); err != nil {
			log.Error().Err(err).Msg("Failed to disconnect from STOMP server")
		}
	}

	if b.Connection != nil {
		elastic_client.WaitUntilQueueEmpty()
	}
}
