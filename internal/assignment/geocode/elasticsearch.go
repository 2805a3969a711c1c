// Package geocode resolves free-text addresses to coordinates from an
// Elasticsearch gazetteer index, with an optional redis cache in front.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/tidwall/gjson"

	"assessor-dispatch/internal/common/logger"
	"assessor-dispatch/internal/models"
)

var ErrAddressNotFound = errors.New("address not found in gazetteer")

// ElasticsearchGeocoder looks addresses up in a gazetteer index whose
// documents carry an "address" text field and a "location" geo_point stored
// as {"lat": ..., "lon": ...}.
type ElasticsearchGeocoder struct {
	client *elasticsearch.Client
	index  string
	logger logger.Logger
}

func NewElasticsearchGeocoder(client *elasticsearch.Client, index string, log logger.Logger) *ElasticsearchGeocoder {
	return &ElasticsearchGeocoder{
		client: client,
		index:  index,
		logger: log.WithFields(map[string]interface{}{"component": "geocoder", "index": index}),
	}
}

func (g *ElasticsearchGeocoder) Geocode(ctx context.Context, address string) (models.Coordinates, error) {
	query, err := buildQuery(address)
	if err != nil {
		return models.Coordinates{}, err
	}

	res, err := g.client.Search(
		g.client.Search.WithContext(ctx),
		g.client.Search.WithIndex(g.index),
		g.client.Search.WithBody(strings.NewReader(query)),
	)
	if err != nil {
		return models.Coordinates{}, fmt.Errorf("gazetteer search: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return models.Coordinates{}, fmt.Errorf("read gazetteer response: %w", err)
	}
	if res.IsError() {
		return models.Coordinates{}, fmt.Errorf("gazetteer search error: %s", res.Status())
	}

	hit := gjson.GetBytes(body, "hits.hits.0._source.location")
	lat, lon := hit.Get("lat"), hit.Get("lon")
	if lat.Type != gjson.Number || lon.Type != gjson.Number {
		g.logger.Debug("Address not found", map[string]interface{}{"address": address})
		return models.Coordinates{}, fmt.Errorf("%w: %q", ErrAddressNotFound, address)
	}

	return models.Coordinates{Lat: lat.Float(), Lon: lon.Float()}, nil
}

func buildQuery(address string) (string, error) {
	q := map[string]interface{}{
		"size": 1,
		"query": map[string]interface{}{
			"match": map[string]interface{}{
				"address": map[string]interface{}{
					"query":    address,
					"operator": "and",
				},
			},
		},
	}
	b, err := json.Marshal(q)
	if err != nil {
		return "", fmt.Errorf("build gazetteer query: %w", err)
	}
	return string(b), nil
}
