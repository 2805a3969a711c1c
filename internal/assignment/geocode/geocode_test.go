package geocode

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"assessor-dispatch/internal/common/logger"
	"assessor-dispatch/internal/models"
)

// ==========================
// Test Helper Functions
// ==========================

func newGazetteer(t *testing.T, status int, body string) *elasticsearch.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		if strings.HasSuffix(r.URL.Path, "/_search") {
			assert.Equal(t, "/gazetteer/_search", r.URL.Path)
			q, _ := io.ReadAll(r.Body)
			assert.Contains(t, string(q), `"operator":"and"`)
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	return client
}

func setupRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()}), mr
}

type stubGeocoder struct {
	calls  atomic.Int32
	coords models.Coordinates
	err    error
}

func (s *stubGeocoder) Geocode(context.Context, string) (models.Coordinates, error) {
	s.calls.Add(1)
	return s.coords, s.err
}

// ==========================
// Elasticsearch geocoder
// ==========================

func TestElasticsearchGeocoder_Found(t *testing.T) {
	body := `{"hits":{"total":{"value":1},"hits":[{"_source":{"address":"1 High St, York","location":{"lat":53.959,"lon":-1.081}}}]}}`
	g := NewElasticsearchGeocoder(newGazetteer(t, http.StatusOK, body), "gazetteer", logger.NewTestLogger(t))

	got, err := g.Geocode(context.Background(), "1 High St, York")
	require.NoError(t, err)
	assert.Equal(t, models.Coordinates{Lat: 53.959, Lon: -1.081}, got)
}

func TestElasticsearchGeocoder_NotFound(t *testing.T) {
	body := `{"hits":{"total":{"value":0},"hits":[]}}`
	g := NewElasticsearchGeocoder(newGazetteer(t, http.StatusOK, body), "gazetteer", logger.NewTestLogger(t))

	_, err := g.Geocode(context.Background(), "Nowhere")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAddressNotFound))
}

func TestElasticsearchGeocoder_ServerError(t *testing.T) {
	body := `{"error":{"type":"index_not_found_exception"},"status":404}`
	g := NewElasticsearchGeocoder(newGazetteer(t, http.StatusNotFound, body), "gazetteer", logger.NewTestLogger(t))

	_, err := g.Geocode(context.Background(), "1 High St")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrAddressNotFound))
	assert.Contains(t, err.Error(), "gazetteer search error")
}

// ==========================
// Cache
// ==========================

func TestCachedGeocoder_ReadThrough(t *testing.T) {
	rdb, mr := setupRedis(t)
	next := &stubGeocoder{coords: models.Coordinates{Lat: 51.5, Lon: -0.12}}
	c := NewCachedGeocoder(next, rdb, time.Hour, logger.NewTestLogger(t))

	first, err := c.Geocode(context.Background(), "10 Downing St, London")
	require.NoError(t, err)
	second, err := c.Geocode(context.Background(), "  10 DOWNING st,   london ")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.EqualValues(t, 1, next.calls.Load(), "second lookup must be served from cache")
	assert.True(t, mr.Exists(CacheKey("10 Downing St, London")))
	assert.Equal(t, time.Hour, mr.TTL(CacheKey("10 Downing St, London")))
}

func TestCachedGeocoder_MissesAreNotCached(t *testing.T) {
	rdb, mr := setupRedis(t)
	next := &stubGeocoder{err: ErrAddressNotFound}
	c := NewCachedGeocoder(next, rdb, time.Hour, logger.NewTestLogger(t))

	_, err := c.Geocode(context.Background(), "Atlantis")
	require.Error(t, err)
	_, err = c.Geocode(context.Background(), "Atlantis")
	require.Error(t, err)

	assert.EqualValues(t, 2, next.calls.Load())
	assert.False(t, mr.Exists(CacheKey("Atlantis")))
}

func TestCachedGeocoder_CorruptEntry(t *testing.T) {
	rdb, mr := setupRedis(t)
	require.NoError(t, mr.Set(CacheKey("York"), "not-json"))
	next := &stubGeocoder{coords: models.Coordinates{Lat: 53.9, Lon: -1.08}}
	c := NewCachedGeocoder(next, rdb, time.Hour, logger.NewTestLogger(t))

	got, err := c.Geocode(context.Background(), "York")
	require.NoError(t, err)
	assert.Equal(t, next.coords, got)
	assert.EqualValues(t, 1, next.calls.Load())
}

func TestCachedGeocoder_RedisDown(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	key := CacheKey("York")
	mock.ExpectGet(key).SetErr(errors.New("connection refused"))
	mock.ExpectSet(key, []byte(`{"lat":53.9,"lon":-1.08}`), time.Hour).SetErr(errors.New("connection refused"))

	next := &stubGeocoder{coords: models.Coordinates{Lat: 53.9, Lon: -1.08}}
	c := NewCachedGeocoder(next, rdb, time.Hour, logger.NewTestLogger(t))

	got, err := c.Geocode(context.Background(), "York")
	require.NoError(t, err)
	assert.Equal(t, next.coords, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCacheKey(t *testing.T) {
	// Decomposed "é" (e + combining acute) normalizes to the composed form.
	assert.Equal(t, CacheKey("Caf\u00e9 Row"), CacheKey("Cafe\u0301   row"))
	assert.Equal(t, "geocode:1 high st", CacheKey(" 1  High\tSt "))
}
