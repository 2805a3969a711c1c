package geocode

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/text/unicode/norm"

	"assessor-dispatch/internal/common/logger"
	"assessor-dispatch/internal/common/metrics"
	"assessor-dispatch/internal/models"
)

const cacheKeyPrefix = "geocode:"

// Geocoder is satisfied by ElasticsearchGeocoder and CachedGeocoder.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (models.Coordinates, error)
}

// CachedGeocoder is a read-through redis cache. Redis failures are logged
// and the lookup goes straight to the wrapped geocoder. Misses are not cached.
type CachedGeocoder struct {
	next   Geocoder
	redis  *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

func NewCachedGeocoder(next Geocoder, rdb *redis.Client, ttl time.Duration, log logger.Logger) *CachedGeocoder {
	return &CachedGeocoder{
		next:   next,
		redis:  rdb,
		ttl:    ttl,
		logger: log.WithFields(map[string]interface{}{"component": "geocode-cache"}),
	}
}

func (c *CachedGeocoder) Geocode(ctx context.Context, address string) (models.Coordinates, error) {
	key := CacheKey(address)

	val, err := c.redis.Get(ctx, key).Result()
	switch {
	case err == nil:
		var coords models.Coordinates
		if jsonErr := json.Unmarshal([]byte(val), &coords); jsonErr == nil {
			metrics.CacheLookups.WithLabelValues("geocode", "hit").Inc()
			return coords, nil
		}
		c.logger.Warn("Discarding corrupt geocode cache entry", map[string]interface{}{"key": key})
	case err != redis.Nil:
		c.logger.Warn("Geocode cache read failed", map[string]interface{}{"key": key, "error": err.Error()})
	}
	metrics.CacheLookups.WithLabelValues("geocode", "miss").Inc()

	coords, err := c.next.Geocode(ctx, address)
	if err != nil {
		return models.Coordinates{}, err
	}

	if b, err := json.Marshal(coords); err == nil {
		if err := c.redis.Set(ctx, key, b, c.ttl).Err(); err != nil {
			c.logger.Warn("Geocode cache write failed", map[string]interface{}{"key": key, "error": err.Error()})
		}
	}
	return coords, nil
}

// CacheKey normalizes an address so trivially different spellings share an
// entry: NFC, lower case, collapsed whitespace.
func CacheKey(address string) string {
	normalized := strings.ToLower(norm.NFC.String(address))
	return cacheKeyPrefix + strings.Join(strings.Fields(normalized), " ")
}
