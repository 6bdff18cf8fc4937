// viewer-cleanup clears orphaned QR viewer registrations from Redis. Run it
// after a crash while the server is down: any id still in the set at that
// point belongs to a socket that no longer exists.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"

	goredis "github.com/redis/go-redis/v9"
)

const viewersKey = "wa:qr:viewers"

func main() {
	var (
		redisURL = flag.String("redis", os.Getenv("REDIS_URL"), "Redis URL (or set REDIS_URL env)")
		dryRun   = flag.Bool("dry-run", false, "Dry run mode (don't write to Redis)")
	)
	flag.Parse()

	if *redisURL == "" {
		log.Fatal("Redis URL required (--redis or REDIS_URL env)")
	}

	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	slog.SetDefault(slog.New(handler))

	opts, err := goredis.ParseURL(*redisURL)
	if err != nil {
		log.Fatalf("Failed to parse Redis URL: %v", err)
	}
	rdb := goredis.NewClient(opts)
	defer rdb.Close()

	ctx := context.Background()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}

	orphans, err := rdb.SCard(ctx, viewersKey).Result()
	if err != nil {
		log.Fatalf("Failed to count viewer registrations: %v", err)
	}

	if orphans == 0 {
		slog.Info("No orphaned viewer registrations found")
		return
	}

	if *dryRun {
		slog.Info("Dry run: would remove orphaned viewer registrations", "count", orphans)
		return
	}

	if err := rdb.Del(ctx, viewersKey).Err(); err != nil {
		log.Fatalf("Failed to clear viewer registrations: %v", err)
	}
	slog.Info("Cleared orphaned viewer registrations", "count", orphans)
}
