package database

import (
	"context"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	MissionsCollection      = "missions"
	SeriesCollection        = "series"
	PatternPointsCollection = "pattern_points"
	ChartsCollection        = "charts"
	StationsCollection      = "stations"
)

func createIndexes(database *mongo.Database) {
	uniqueIdentifier := mongo.IndexModel{
		Keys:    bson.D{{Key: "primaryidentifier", Value: 1}},
		Options: options.Index().SetUnique(true),
	}

	indexes := map[string][]mongo.IndexModel{
		MissionsCollection: {
			uniqueIdentifier,
			{
				Keys: bson.D{{Key: "seriesid", Value: 1}},
			},
		},
		SeriesCollection: {uniqueIdentifier},
		PatternPointsCollection: {
			uniqueIdentifier,
			{
				Keys: bson.D{{Key: "seriesid", Value: 1}},
			},
		},
		ChartsCollection: {
			uniqueIdentifier,
			{
				Keys:    bson.D{{Key: "modificationdatetime", Value: 1}},
				Options: options.Index().SetExpireAfterSeconds(35 * 24 * 3600), // Expire after 5 weeks
			},
		},
		StationsCollection: {
			uniqueIdentifier,
			{
				Keys: bson.D{{Key: "name", Value: 1}},
			},
		},
	}

	for collectionName, models := range indexes {
		_, err := database.Collection(collectionName).Indexes().CreateMany(context.Background(), models, options.CreateIndexes())
		if err != nil {
			log.Error().Err(err).Str("collection", collectionName).Msg("Creating Index")
		}
	}
}
