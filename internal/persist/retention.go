package persist

import (
	"context"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// RunRetention periodically deletes ticker and book-snapshot rows older
// than the retention period. Blocks until ctx is cancelled. Pass
// retentionDays <= 0 to disable.
func RunRetention(ctx context.Context, store *Store, retentionDays int, scanInterval time.Duration) {
	if retentionDays <= 0 {
		log.Println("sink retention disabled (keep forever)")
		return
	}
	if scanInterval <= 0 {
		scanInterval = time.Hour
	}

	log.Printf("sink retention: pruning rows older than %d days every %v", retentionDays, scanInterval)

	// Run once immediately on startup, then on the ticker.
	prune(ctx, store, retentionDays)

	ticker := time.NewTicker(scanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			prune(ctx, store, retentionDays)
		}
	}
}

func prune(ctx context.Context, store *Store, retentionDays int) {
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	cutoffSystemTime := float64(cutoff.UnixNano()) / 1e9

	for _, collection := range []string{TickersCollection, BooksCollection} {
		result, err := store.db.Collection(collection).DeleteMany(ctx, bson.M{
			"system_time": bson.M{"$lt": cutoffSystemTime},
		})
		if err != nil {
			log.Printf("sink retention prune error (%s): %v", collection, err)
			continue
		}
		if result.DeletedCount > 0 {
			log.Printf("sink retention: pruned %d rows from %s older than %s", result.DeletedCount, collection, cutoff.Format(time.DateOnly))
		}
	}
}
