package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ndrandal/tickerbook/internal/api"
	"github.com/ndrandal/tickerbook/internal/archive"
	"github.com/ndrandal/tickerbook/internal/book"
	"github.com/ndrandal/tickerbook/internal/config"
	"github.com/ndrandal/tickerbook/internal/feed"
	"github.com/ndrandal/tickerbook/internal/notify"
	"github.com/ndrandal/tickerbook/internal/persist"
	"github.com/ndrandal/tickerbook/internal/sampler"
	"github.com/ndrandal/tickerbook/internal/sink"
	"github.com/ndrandal/tickerbook/internal/supervisor"
	"github.com/ndrandal/tickerbook/internal/symbol"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml (defaults to ./config.yaml)")
	flag.Parse()

	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)
	log.Println("tickerbook starting")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("received signal %v, shutting down...", sig)
		cancel()
	}()

	products := make([]symbol.Product, len(cfg.Feed.Products))
	for i, p := range cfg.Feed.Products {
		products[i] = symbol.Product{ID: p.ID, PriceCap: p.PriceCap}
	}
	log.Printf("tracking %d products", len(products))

	registry := book.NewRegistry(products)

	store, err := persist.NewStore(ctx, cfg.Sink.MongoURI)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer store.Close(context.Background())

	if err := store.Migrate(ctx); err != nil {
		log.Fatalf("migration failed: %v", err)
	}

	notifier := notify.NewWebhookNotifier(cfg.Notify.WebhookURL, cfg.Notify.MinInterval)
	mongoSink := sink.New(store, notifier)

	demux := feed.NewDemux(registry, mongoSink)
	feedClient := feed.NewClient(cfg.Feed, demux)

	smp := sampler.New(registry, mongoSink, cfg.Sampler.Period, cfg.Sampler.Bands)

	var archiver *archive.Archiver
	if cfg.Archive.S3Bucket != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Archive.S3Region))
		if err != nil {
			log.Fatalf("aws config load failed: %v", err)
		}
		s3Client := s3.NewFromConfig(awsCfg)
		archiver = archive.New(store.DB(), s3Client, cfg.Archive.S3Bucket, cfg.Archive.S3Prefix, cfg.Archive.Interval, cfg.Archive.AfterAge)
	}

	mux := http.NewServeMux()
	apiServer := api.NewServer(registry)
	apiServer.Register(mux)
	diagServer := &http.Server{
		Addr:    cfg.Diag.Addr,
		Handler: mux,
	}

	sup := supervisor.New(feedClient, smp, archiver, store, cfg.Sink.RetentionDays, cfg.Sink.RetentionScan, diagServer)

	if err := sup.Run(ctx); err != nil {
		log.Fatalf("supervisor exited with error: %v", err)
	}

	log.Println("tickerbook stopped")
}
