package records

import (
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/yeezy-com/stride-track-explore/internal/db"
)

const (
	KindPostgres = "postgres"
	KindRedis    = "redis"
	KindSQLite   = "sqlite"
)

// Open selects the record store named by kind. pg and rdb may be nil when
// the corresponding backend is not in use.
func Open(kind string, pg db.Querier, rdb *redis.Client, sqlitePath string) (Store, error) {
	switch kind {
	case "", KindPostgres:
		return NewPostgresStore(pg), nil
	case KindRedis:
		if rdb == nil {
			return nil, fmt.Errorf("%w: redis store requires REDIS_ADDR", ErrUnavailable)
		}
		return NewRedisStore(rdb), nil
	case KindSQLite:
		return OpenSQLite(sqlitePath)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStore, kind)
	}
}
