package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"go-catalog-sync/internal/config"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// purged collections and the timestamp field their age is measured on
var purgeTargets = map[string]string{
	"sync_logs":           "created_at",
	"webhook_logs":        "created_at",
	"admin_notifications": "created_at",
}

func main() {
	days := flag.Int("days", 0, "delete entries older than this many days (defaults to LOG_RETENTION_DAYS)")
	dryRun := flag.Bool("dry-run", false, "count matching entries without deleting")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *days <= 0 {
		*days = cfg.LogRetentionDays
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer client.Disconnect(ctx)

	db := client.Database(cfg.DBName)
	cutoff := time.Now().UTC().AddDate(0, 0, -*days)
	fmt.Printf("Purging entries older than %s\n", cutoff.Format(time.RFC3339))

	for coll, field := range purgeTargets {
		filter := bson.M{field: bson.M{"$lt": cutoff}}

		if *dryRun {
			n, err := db.Collection(coll).CountDocuments(ctx, filter)
			if err != nil {
				log.Printf("Failed to count %s: %v", coll, err)
				continue
			}
			fmt.Printf("%s: %d entries would be deleted\n", coll, n)
			continue
		}

		res, err := db.Collection(coll).DeleteMany(ctx, filter)
		if err != nil {
			log.Printf("Failed to purge %s: %v", coll, err)
			continue
		}
		fmt.Printf("%s: deleted %d entries\n", coll, res.DeletedCount)
	}
}
