package database

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/travigo/railtracker/pkg/chart"
	"github.com/travigo/railtracker/pkg/ctdf"
	"github.com/travigo/railtracker/pkg/mission"
	"github.com/travigo/railtracker/pkg/series"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore keeps missions, series, pattern points and charts in one collection each,
// keyed by primaryidentifier
type MongoStore struct {
	Database *mongo.Database
}

func NewStore(database *mongo.Database) *MongoStore {
	return &MongoStore{Database: database}
}

// chartDocument holds the tables as JSON since station identifiers contain dots
type chartDocument struct {
	PrimaryIdentifier    string
	Tables               string
	ModificationDateTime time.Time
}

func notFound(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ctdf.ErrNotFound
	}

	return err
}

func byIdentifier(identifier string) bson.M {
	return bson.M{"primaryidentifier": identifier}
}

func (s *MongoStore) GetMission(ctx context.Context, identifier string) (*mission.Mission, error) {
	var m *mission.Mission
	if err := s.Database.Collection(MissionsCollection).FindOne(ctx, byIdentifier(identifier)).Decode(&m); err != nil {
		return nil, notFound(err)
	}
	m.Normalize()

	return m, nil
}

func (s *MongoStore) PutMission(ctx context.Context, m *mission.Mission) error {
	collection := s.Database.Collection(MissionsCollection)
	previous := m.Version
	m.Version++

	if previous == 0 {
		if _, err := collection.InsertOne(ctx, m); err != nil {
			m.Version = previous
			if mongo.IsDuplicateKeyError(err) {
				return ctdf.ErrConflict
			}
			return err
		}

		return nil
	}

	result, err := collection.ReplaceOne(ctx, bson.M{
		"primaryidentifier": m.PrimaryIdentifier,
		"version":           previous,
	}, m)
	if err != nil {
		m.Version = previous
		return err
	}
	if result.MatchedCount == 0 {
		m.Version = previous
		return ctdf.ErrConflict
	}

	return nil
}

func (s *MongoStore) DeleteMission(ctx context.Context, identifier string) error {
	result, err := s.Database.Collection(MissionsCollection).DeleteOne(ctx, byIdentifier(identifier))
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return ctdf.ErrNotFound
	}

	return nil
}

func (s *MongoStore) MissionsForSeries(ctx context.Context, seriesID string) ([]*mission.Mission, error) {
	opts := options.Find().SetSort(bson.D{{Key: "primaryidentifier", Value: 1}})
	cursor, err := s.Database.Collection(MissionsCollection).Find(ctx, bson.M{"seriesid": seriesID}, opts)
	if err != nil {
		return nil, err
	}

	var missions []*mission.Mission
	if err := cursor.All(ctx, &missions); err != nil {
		return nil, err
	}
	for _, m := range missions {
		m.Normalize()
	}

	return missions, nil
}

func (s *MongoStore) GetSeries(ctx context.Context, identifier string) (*series.Series, error) {
	var decoded *series.Series
	if err := s.Database.Collection(SeriesCollection).FindOne(ctx, byIdentifier(identifier)).Decode(&decoded); err != nil {
		return nil, notFound(err)
	}

	return decoded, nil
}

func (s *MongoStore) PutSeries(ctx context.Context, decoded *series.Series) error {
	decoded.Version++

	opts := options.Replace().SetUpsert(true)
	if _, err := s.Database.Collection(SeriesCollection).ReplaceOne(ctx, byIdentifier(decoded.PrimaryIdentifier), decoded, opts); err != nil {
		decoded.Version--
		return err
	}

	return nil
}

func (s *MongoStore) AllSeriesIDs(ctx context.Context) ([]string, error) {
	values, err := s.Database.Collection(SeriesCollection).Distinct(ctx, "primaryidentifier", bson.M{})
	if err != nil {
		return nil, err
	}

	identifiers := make([]string, 0, len(values))
	for _, value := range values {
		if identifier, ok := value.(string); ok {
			identifiers = append(identifiers, identifier)
		}
	}
	sort.Strings(identifiers)

	return identifiers, nil
}

func (s *MongoStore) PointsForSeries(ctx context.Context, seriesID string) ([]*ctdf.PatternPoint, error) {
	cursor, err := s.Database.Collection(PatternPointsCollection).Find(ctx, bson.M{"seriesid": seriesID})
	if err != nil {
		return nil, err
	}

	var points []*ctdf.PatternPoint
	if err := cursor.All(ctx, &points); err != nil {
		return nil, err
	}

	return points, nil
}

func (s *MongoStore) PutPoints(ctx context.Context, points []*ctdf.PatternPoint) error {
	if len(points) == 0 {
		return nil
	}

	var operations []mongo.WriteModel
	for _, point := range points {
		operations = append(operations, mongo.NewReplaceOneModel().
			SetFilter(byIdentifier(point.PrimaryIdentifier)).
			SetReplacement(point).
			SetUpsert(true))
	}

	_, err := s.Database.Collection(PatternPointsCollection).BulkWrite(ctx, operations, options.BulkWrite().SetOrdered(false))

	return err
}

func (s *MongoStore) DeletePoint(ctx context.Context, identifier string) error {
	result, err := s.Database.Collection(PatternPointsCollection).DeleteOne(ctx, byIdentifier(identifier))
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return ctdf.ErrNotFound
	}

	return nil
}

func (s *MongoStore) GetChart(ctx context.Context, identifier string) (*chart.Chart, error) {
	var document chartDocument
	if err := s.Database.Collection(ChartsCollection).FindOne(ctx, byIdentifier(identifier)).Decode(&document); err != nil {
		return nil, notFound(err)
	}

	c := chart.New(document.PrimaryIdentifier)
	if err := json.Unmarshal([]byte(document.Tables), &c.Tables); err != nil {
		return nil, err
	}

	return c, nil
}

func (s *MongoStore) PutChart(ctx context.Context, c *chart.Chart) error {
	tables, err := json.Marshal(c.Tables)
	if err != nil {
		return err
	}

	document := chartDocument{
		PrimaryIdentifier:    c.PrimaryIdentifier,
		Tables:               string(tables),
		ModificationDateTime: time.Now(),
	}

	opts := options.Replace().SetUpsert(true)
	_, err = s.Database.Collection(ChartsCollection).ReplaceOne(ctx, byIdentifier(c.PrimaryIdentifier), document, opts)

	return err
}
