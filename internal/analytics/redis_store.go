package analytics

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"

	"pagegen/app/internal/pages"
)

const defaultRedisPrefix = "pagegen:counter"

// RedisOptions configures the Redis backed counter store.
type RedisOptions struct {
	Addr     string
	Password string
	Prefix   string
	Pages    pages.Repository
}

// RedisStore keeps counters in Redis using INCR so increments stay atomic across replicas.
type RedisStore struct {
	client *redis.Client
	prefix string
	pages  pages.Repository
}

// NewRedisStore connects a counter store to the given Redis server.
func NewRedisStore(opts RedisOptions) (*RedisStore, error) {
	addr := strings.TrimSpace(opts.Addr)
	if addr == "" {
		return nil, eris.New("redis addr is required")
	}
	if opts.Pages == nil {
		return nil, eris.New("page repository is required")
	}

	prefix := strings.TrimSpace(opts.Prefix)
	if prefix == "" {
		prefix = defaultRedisPrefix
	}

	return &RedisStore{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: opts.Password,
		}),
		prefix: prefix,
		pages:  opts.Pages,
	}, nil
}

// Increment verifies the page exists and is not trashed, then increments its counter.
func (s *RedisStore) Increment(ctx context.Context, pageID string, metric pages.Metric) (int64, error) {
	page, err := s.pages.Get(ctx, pageID)
	if err != nil {
		return 0, err
	}
	if !page.IsLive() {
		return 0, eris.Wrapf(pages.ErrNotFound, "page %s is trashed", pageID)
	}

	total, err := s.client.Incr(ctx, s.key(metric, pageID)).Result()
	if err != nil {
		return 0, eris.Wrapf(err, "incrementing redis counter for page %s", pageID)
	}
	return total, nil
}

func (s *RedisStore) Totals(ctx context.Context, pageIDs []string) (map[string]pages.Totals, error) {
	keys := make([]string, 0, len(pageIDs)*2)
	for _, id := range pageIDs {
		keys = append(keys, s.key(pages.MetricViews, id), s.key(pages.MetricConversions, id))
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, eris.Wrap(err, "reading redis counters")
	}

	totals := make(map[string]pages.Totals, len(pageIDs))
	for i, id := range pageIDs {
		views, err := parseCounter(values[i*2])
		if err != nil {
			return nil, eris.Wrapf(err, "parsing view counter for page %s", id)
		}
		conversions, err := parseCounter(values[i*2+1])
		if err != nil {
			return nil, eris.Wrapf(err, "parsing conversion counter for page %s", id)
		}
		totals[id] = pages.Totals{Views: views, Conversions: conversions}
	}

	return totals, nil
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close releases the Redis connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) key(metric pages.Metric, pageID string) string {
	return fmt.Sprintf("%s:%s:%s", s.prefix, metric, pageID)
}

func parseCounter(value any) (int64, error) {
	switch v := value.(type) {
	case nil:
		return 0, nil
	case string:
		return strconv.ParseInt(v, 10, 64)
	default:
		return 0, eris.Errorf("unexpected counter value %T", value)
	}
}
