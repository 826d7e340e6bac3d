// Package archive moves aged-out rows from the tickers/order_books
// collections to S3, freeing the live collections while preserving history.
//
// Grounded on the teacher's own archiver (internal/archive/archiver.go):
// the day-batched gzip-NDJSON encoding and Mongo cursor bookkeeping are
// kept, but the destination moves from local disk to S3 PutObject,
// finally giving the teacher's own aws-sdk-go-v2 dependency (present in
// its go.mod but never imported) a real caller.
package archive

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Archiver periodically moves rows older than afterAge from the tickers
// and order_books collections to gzipped NDJSON objects in S3, one object
// per collection per UTC day.
type Archiver struct {
	db       *mongo.Database
	s3       *s3.Client
	bucket   string
	prefix   string
	interval time.Duration
	afterAge time.Duration
}

// New creates an Archiver. If bucket is empty, Run logs once and returns
// without archiving — S3 archival is an opt-in feature.
func New(db *mongo.Database, s3Client *s3.Client, bucket, prefix string, interval, afterAge time.Duration) *Archiver {
	return &Archiver{
		db:       db,
		s3:       s3Client,
		bucket:   bucket,
		prefix:   prefix,
		interval: interval,
		afterAge: afterAge,
	}
}

// Run starts the periodic archive loop. Blocks until ctx is cancelled.
func (a *Archiver) Run(ctx context.Context) {
	if a.bucket == "" {
		log.Println("archiver: no S3 bucket configured, archival disabled")
		return
	}

	log.Printf("archiver: bucket=%s prefix=%s interval=%v age=%v", a.bucket, a.prefix, a.interval, a.afterAge)

	a.cycle(ctx, "tickers")
	a.cycle(ctx, "order_books")

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.cycle(ctx, "tickers")
			a.cycle(ctx, "order_books")
		}
	}
}

func (a *Archiver) cycle(ctx context.Context, collection string) {
	cursor, err := a.loadCursor(ctx, collection)
	if err != nil {
		log.Printf("archiver: load cursor for %s: %v", collection, err)
		return
	}

	cutoff := float64(time.Now().Add(-a.afterAge).UnixNano()) / 1e9
	if cursor >= cutoff {
		return
	}

	rows, err := a.queryRows(ctx, collection, cursor, cutoff)
	if err != nil {
		log.Printf("archiver: query %s: %v", collection, err)
		return
	}
	if len(rows) == 0 {
		a.saveCursor(ctx, collection, cutoff)
		return
	}

	batches := groupByDay(rows)
	for day, batch := range batches {
		if err := a.uploadBatch(ctx, collection, day, batch); err != nil {
			log.Printf("archiver: upload %s/%s: %v", collection, day, err)
			return
		}
		if err := a.deleteBatch(ctx, collection, batch); err != nil {
			log.Printf("archiver: delete %s/%s: %v", collection, day, err)
			return
		}
		log.Printf("archiver: archived %d rows from %s for %s", len(batch), collection, day)
	}

	a.saveCursor(ctx, collection, cutoff)
}

func (a *Archiver) loadCursor(ctx context.Context, collection string) (float64, error) {
	var doc struct {
		Value float64 `bson:"value"`
	}
	err := a.db.Collection("archive_state").FindOne(ctx, bson.M{"key": cursorKey(collection)}).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return 0, nil
		}
		return 0, err
	}
	return doc.Value, nil
}

func (a *Archiver) saveCursor(ctx context.Context, collection string, v float64) {
	_, err := a.db.Collection("archive_state").UpdateOne(ctx,
		bson.M{"key": cursorKey(collection)},
		bson.M{"$set": bson.M{
			"key":        cursorKey(collection),
			"value":      v,
			"updated_at": time.Now(),
		}},
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		log.Printf("archiver: save cursor for %s: %v", collection, err)
	}
}

func cursorKey(collection string) string {
	return collection + "_archive_cursor"
}

func (a *Archiver) queryRows(ctx context.Context, collection string, from, to float64) ([]bson.M, error) {
	filter := bson.M{
		"system_time": bson.M{"$gte": from, "$lt": to},
	}
	opts := options.Find().SetSort(bson.D{{Key: "system_time", Value: 1}})

	cur, err := a.db.Collection(collection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", collection, err)
	}
	defer cur.Close(ctx)

	var rows []bson.M
	if err := cur.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("decode %s: %w", collection, err)
	}
	return rows, nil
}

func groupByDay(rows []bson.M) map[string][]bson.M {
	batches := make(map[string][]bson.M)
	for _, r := range rows {
		st, _ := r["system_time"].(float64)
		day := time.Unix(int64(st), 0).UTC().Format("2006/01/02")
		batches[day] = append(batches[day], r)
	}
	return batches
}

// uploadBatch encodes rows as gzipped NDJSON and puts it at
// prefix/collection/YYYY/MM/DD.jsonl.gz.
func (a *Archiver) uploadBatch(ctx context.Context, collection, day string, rows []bson.M) error {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	enc := json.NewEncoder(gz)
	for _, r := range rows {
		if err := enc.Encode(r); err != nil {
			gz.Close()
			return fmt.Errorf("encode: %w", err)
		}
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("gzip close: %w", err)
	}

	key := fmt.Sprintf("%s/%s/%s.jsonl.gz", a.prefix, collection, day)
	_, err := a.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(buf.Bytes()),
	})
	if err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}
	return nil
}

func (a *Archiver) deleteBatch(ctx context.Context, collection string, rows []bson.M) error {
	times := make([]float64, len(rows))
	for i, r := range rows {
		st, _ := r["system_time"].(float64)
		times[i] = st
	}

	_, err := a.db.Collection(collection).DeleteMany(ctx, bson.M{
		"system_time": bson.M{"$in": times},
	})
	if err != nil {
		return fmt.Errorf("delete archived rows from %s: %w", collection, err)
	}
	return nil
}
