package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"assessor-dispatch/internal/common/logger"
	"assessor-dispatch/internal/common/metrics"
	"assessor-dispatch/internal/models"
)

var ErrOrganizationNotFound = errors.New("organization not found")

const settingsKeyPrefix = "org:capacity:"

// SettingsRepository reads the daily capacity setting through a redis cache.
// A nil redis client disables caching.
type SettingsRepository struct {
	db     *sql.DB
	redis  *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

func NewSettingsRepository(db *sql.DB, rdb *redis.Client, ttl time.Duration, log logger.Logger) *SettingsRepository {
	return &SettingsRepository{
		db:     db,
		redis:  rdb,
		ttl:    ttl,
		logger: log.WithFields(map[string]interface{}{"component": "settings-repository"}),
	}
}

func (r *SettingsRepository) Get(ctx context.Context, organizationID string) (models.DailyCapacitySetting, error) {
	key := settingsKeyPrefix + organizationID

	if r.redis != nil {
		if val, err := r.redis.Get(ctx, key).Result(); err == nil {
			var s models.DailyCapacitySetting
			if json.Unmarshal([]byte(val), &s) == nil {
				metrics.CacheLookups.WithLabelValues("settings", "hit").Inc()
				return s, nil
			}
		} else if err != redis.Nil {
			r.logger.Warn("Settings cache read failed", map[string]interface{}{
				"organizationId": organizationID,
				"error":          err.Error(),
			})
		}
		metrics.CacheLookups.WithLabelValues("settings", "miss").Inc()
	}

	var (
		id    string
		limit sql.NullInt64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT o.id, s.max_assessments_per_day
		FROM organizations o
		LEFT JOIN organization_settings s ON s.organization_id = o.id
		WHERE o.id = $1`, organizationID,
	).Scan(&id, &limit)
	if errors.Is(err, sql.ErrNoRows) {
		return models.DailyCapacitySetting{}, fmt.Errorf("%w: %s", ErrOrganizationNotFound, organizationID)
	}
	if err != nil {
		return models.DailyCapacitySetting{}, fmt.Errorf("get settings for %s: %w", organizationID, err)
	}

	setting := models.DailyCapacitySetting{OrganizationID: id}
	if limit.Valid {
		v := int(limit.Int64)
		setting.MaxAssessmentsPerDay = &v
	}

	if r.redis != nil {
		if b, err := json.Marshal(setting); err == nil {
			if err := r.redis.Set(ctx, key, b, r.ttl).Err(); err != nil {
				r.logger.Warn("Settings cache write failed", map[string]interface{}{
					"organizationId": organizationID,
					"error":          err.Error(),
				})
			}
		}
	}
	return setting, nil
}

// Invalidate drops the cached setting after an administrator changes it.
func (r *SettingsRepository) Invalidate(ctx context.Context, organizationID string) error {
	if r.redis == nil {
		return nil
	}
	return r.redis.Del(ctx, settingsKeyPrefix+organizationID).Err()
}
