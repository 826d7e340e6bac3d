package persist

import (
	"context"
	"fmt"
	"log"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// TickersCollection and BooksCollection name the two append-only
// time-series collections this sink writes to.
const (
	TickersCollection = "tickers"
	BooksCollection   = "order_books"
)

// EnsureIndexes creates idempotent indexes on all collections. Both sink
// tables are keyed by system_time alone, matching the primary key given
// for each table; a secondary index supports per-product retrieval.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	type idx struct {
		collection string
		model      mongo.IndexModel
	}

	indexes := []idx{
		{
			collection: TickersCollection,
			model: mongo.IndexModel{
				Keys:    bson.D{{Key: "system_time", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		{
			collection: TickersCollection,
			model: mongo.IndexModel{
				Keys: bson.D{{Key: "product_id", Value: 1}, {Key: "system_time", Value: -1}},
			},
		},
		{
			collection: BooksCollection,
			model: mongo.IndexModel{
				Keys:    bson.D{{Key: "system_time", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		{
			collection: BooksCollection,
			model: mongo.IndexModel{
				Keys: bson.D{{Key: "product_id", Value: 1}, {Key: "system_time", Value: -1}},
			},
		},
	}

	for _, i := range indexes {
		_, err := db.Collection(i.collection).Indexes().CreateOne(ctx, i.model)
		if err != nil {
			return fmt.Errorf("create index on %s: %w", i.collection, err)
		}
	}

	log.Println("MongoDB indexes ensured")
	return nil
}
