package registry

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/store"
	redisstore "github.com/eko/gocache/store/redis/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/travigo/railtracker/pkg/ctdf"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const notAvailable = "N/A"

// Static resolves stations from a list kept in memory
type Static struct {
	byName map[string]string
	byID   map[string]string

	mutex sync.RWMutex
}

func NewStatic(stations []ctdf.Station) *Static {
	static := &Static{byName: map[string]string{}, byID: map[string]string{}}
	static.add(stations)

	return static
}

func (s *Static) add(stations []ctdf.Station) {
	for _, station := range stations {
		s.byID[station.PrimaryIdentifier] = station.PrimaryName
		s.byName[station.PrimaryName] = station.PrimaryIdentifier
		for _, name := range station.OtherNames {
			s.byName[name] = station.PrimaryIdentifier
		}
	}
}

func (s *Static) PutStations(ctx context.Context, stations []ctdf.Station) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.add(stations)
	return nil
}

func (s *Static) IDForName(name string) (string, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	id, exists := s.byName[name]
	return id, exists
}

func (s *Static) NameForID(id string) (string, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	name, exists := s.byID[id]
	return name, exists
}

// Mongo resolves stations from the stations collection, remembering answers
// and misses in redis
type Mongo struct {
	Collection *mongo.Collection
	Cache      *cache.Cache[string]
}

func NewMongo(collection *mongo.Collection, client *redis.Client, expiration time.Duration) *Mongo {
	redisStore := redisstore.NewRedis(client, store.WithExpiration(expiration))

	return &Mongo{
		Collection: collection,
		Cache:      cache.New[string](redisStore),
	}
}

func (r *Mongo) lookup(cacheKey string, filter bson.M) *ctdf.Station {
	ctx := context.Background()

	if cached, err := r.Cache.Get(ctx, cacheKey); err == nil {
		if cached == notAvailable {
			return nil
		}

		var station *ctdf.Station
		if err := json.Unmarshal([]byte(cached), &station); err == nil {
			return station
		}
	}

	var station *ctdf.Station
	if err := r.Collection.FindOne(ctx, filter).Decode(&station); err != nil {
		if err != mongo.ErrNoDocuments {
			log.Error().Err(err).Str("key", cacheKey).Msg("Failed to look up station")
			return nil
		}
		station = nil
	}

	value := notAvailable
	if station != nil {
		stationJSON, _ := json.Marshal(station)
		value = string(stationJSON)
	}
	if err := r.Cache.Set(ctx, cacheKey, value); err != nil {
		log.Error().Err(err).Str("key", cacheKey).Msg("Failed to cache station")
	}

	return station
}

func (r *Mongo) IDForName(name string) (string, bool) {
	station := r.lookup("station-name:"+name, bson.M{"$or": bson.A{
		bson.M{"primaryname": name},
		bson.M{"othernames": name},
	}})
	if station == nil {
		return "", false
	}

	return station.PrimaryIdentifier, true
}

func (r *Mongo) NameForID(id string) (string, bool) {
	station := r.lookup("station-id:"+id, bson.M{"primaryidentifier": id})
	if station == nil {
		return "", false
	}

	return station.PrimaryName, true
}

// PutStations upserts the stations by identifier
func (r *Mongo) PutStations(ctx context.Context, stations []ctdf.Station) error {
	if len(stations) == 0 {
		return nil
	}

	var operations []mongo.WriteModel
	for _, station := range stations {
		operations = append(operations, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"primaryidentifier": station.PrimaryIdentifier}).
			SetReplacement(station).
			SetUpsert(true))
	}

	_, err := r.Collection.BulkWrite(ctx, operations, options.BulkWrite().SetOrdered(false))

	return err
}
