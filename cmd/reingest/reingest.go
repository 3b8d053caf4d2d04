package main

import (
	"flag"
	"log"

	"github.com/hibiken/asynq"

	"knowledge-ingest-platform/internal/config"
	"knowledge-ingest-platform/internal/queue"
	"knowledge-ingest-platform/internal/watcher"
)

// reingest enqueues a manual pipeline run for one identity, e.g. after a
// provider outage left items failed:
//
//	reingest -project docs -identity /srv/docs/guide.md
//	reingest -project docs -identity https://example.com/page -kind modified
func main() {
	project := flag.String("project", "", "project alias the item belongs to")
	identity := flag.String("identity", "", "absolute path or URL to re-ingest")
	kind := flag.String("kind", "modified", "event kind: created, modified or deleted")
	flag.Parse()

	if *project == "" || *identity == "" {
		log.Fatal("both -project and -identity are required")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	client := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer client.Close()

	task, err := queue.NewReingestTask(*project, *identity, watcher.Kind(*kind))
	if err != nil {
		log.Fatal("Failed to build task:", err)
	}

	info, err := client.Enqueue(task, asynq.Queue(cfg.AsynqQueueName))
	if err != nil {
		log.Fatal("Failed to enqueue task:", err)
	}

	log.Printf("Enqueued re-ingest: id=%s queue=%s identity=%s", info.ID, info.Queue, *identity)
}
