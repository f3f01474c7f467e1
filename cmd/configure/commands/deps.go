package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/mailsift/mailsift/internal/cache"
	"github.com/mailsift/mailsift/internal/config"
	"github.com/mailsift/mailsift/internal/database"
	"github.com/redis/go-redis/v9"
)

// deps holds the connections a configure command needs. Commands open only
// the database by default; Redis is attached on demand since only the
// suggestion and rule flows touch the cache.
type deps struct {
	cfg   *config.Config
	db    *database.DB
	redis *redis.Client
	store cache.Store
}

func openDeps(ctx context.Context, withRedis bool) (*deps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	d := &deps{cfg: cfg, db: db}

	if withRedis {
		client, err := cache.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			d.close()
			return nil, err
		}
		d.redis = client
		d.store = cache.NewRedisStore(client)
	}

	return d, nil
}

func (d *deps) close() {
	if d.redis != nil {
		if err := d.redis.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close redis: %v\n", err)
		}
	}
	if d.db != nil {
		if err := d.db.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
		}
	}
}
