package transient

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Options selects and configures a Store backend.
type Options struct {
	Backend       string
	SweepInterval time.Duration
	Redis         RedisOptions
	DSN           string
}

// Open builds the store named by opts.Backend. An empty backend means memory.
func Open(ctx context.Context, opts Options) (Store, error) {
	backend := strings.ToLower(strings.TrimSpace(opts.Backend))
	switch backend {
	case "", "memory":
		return NewMemoryStore(opts.SweepInterval), nil
	case "redis":
		if strings.TrimSpace(opts.Redis.Addr) == "" {
			return nil, fmt.Errorf("transient: redis addr is required")
		}
		return NewRedisStore(opts.Redis), nil
	case "sqlite":
		return OpenSQLStore(ctx, DialectSQLite, opts.DSN, opts.SweepInterval)
	case "mysql":
		return OpenSQLStore(ctx, DialectMySQL, opts.DSN, opts.SweepInterval)
	case "postgres", "postgresql":
		return OpenSQLStore(ctx, DialectPostgres, opts.DSN, opts.SweepInterval)
	default:
		return nil, fmt.Errorf("transient: unknown backend %q", opts.Backend)
	}
}
