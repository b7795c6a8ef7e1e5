package appconfig

import (
	"context"
	"encoding/json"
	"time"

	"amulet-controlplane/pkg/config"
	"amulet-controlplane/pkg/errutil"
	"amulet-controlplane/pkg/repository"

	"github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

const cacheKey = "amulet:config:public"

// PublicPayload is the console-facing view of the configuration.
// UpdateLinks is always a list, never null.
type PublicPayload struct {
	LatestVersion      string   `json:"latest_version"`
	ForceUpdate        bool     `json:"force_update"`
	Maintenance        bool     `json:"maintenance"`
	MaintenanceMessage string   `json:"maintenance_message"`
	UpdateDescription  string   `json:"update_description"`
	UpdateLinks        []string `json:"update_links"`
}

type Service struct {
	db       *gorm.DB
	store    repository.Repository[Config]
	cache    *redis.Client
	cacheTTL time.Duration
	group    singleflight.Group
}

type ServiceParams struct {
	fx.In
	DB     *gorm.DB
	Config *config.Config
	Redis  *redis.Client `optional:"true"`
}

func NewService(p ServiceParams) *Service {
	ttl := p.Config.ConfigCacheTTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Service{
		db:       p.DB,
		store:    repository.ProvideStore[Config](p.DB),
		cache:    p.Redis,
		cacheTTL: ttl,
	}
}

// Seed creates the singleton row with defaults when it does not exist yet.
func (s *Service) Seed(ctx context.Context) error {
	existing, err := s.store.FindOne(ctx, &Config{ID: DefaultID})
	if err != nil {
		return errutil.Internal("failed to load config", errutil.WithErr(err))
	}
	if existing != nil {
		return nil
	}

	if err := s.store.Create(ctx, defaultConfig()); err != nil {
		return errutil.Internal("failed to seed config", errutil.WithErr(err))
	}
	zap.L().Info("seeded default application config")
	return nil
}

// Get returns the singleton, creating it on first access.
func (s *Service) Get(ctx context.Context) (*Config, error) {
	cfg, err := s.store.FindOne(ctx, &Config{ID: DefaultID})
	if err != nil {
		return nil, errutil.Internal("failed to load config", errutil.WithErr(err))
	}
	if cfg == nil {
		cfg = defaultConfig()
		if err := s.store.Create(ctx, cfg); err != nil {
			return nil, errutil.Internal("failed to seed config", errutil.WithErr(err))
		}
	}
	if cfg.UpdateLinks == nil {
		cfg.UpdateLinks = pq.StringArray{}
	}
	return cfg, nil
}

// ReplaceInput carries the full replacement state. Admin writes are
// wholesale: every field is taken as given.
type ReplaceInput struct {
	LatestVersion      string
	ForceUpdate        bool
	Maintenance        bool
	MaintenanceMessage string
	UpdateDescription  string
	UpdateLinks        []string
}

// Replace overwrites the singleton and invalidates the public cache.
func (s *Service) Replace(ctx context.Context, in ReplaceInput) (*Config, error) {
	if in.LatestVersion == "" {
		return nil, errutil.ValidationFailed("latest_version is required")
	}
	links := in.UpdateLinks
	if links == nil {
		links = []string{}
	}

	var out *Config
	err := s.db.Transaction(func(tx *gorm.DB) error {
		repo := s.store.WithTrx(tx)

		cfg, err := repo.FindOne(ctx, &Config{ID: DefaultID})
		if err != nil {
			return errutil.Internal("failed to load config", errutil.WithErr(err))
		}

		out = &Config{
			ID:                 DefaultID,
			LatestVersion:      in.LatestVersion,
			ForceUpdate:        in.ForceUpdate,
			Maintenance:        in.Maintenance,
			MaintenanceMessage: in.MaintenanceMessage,
			UpdateDescription:  in.UpdateDescription,
			UpdateLinks:        pq.StringArray(links),
			UpdatedAt:          time.Now().UTC(),
		}

		if cfg == nil {
			if err := repo.Create(ctx, out); err != nil {
				return errutil.Internal("failed to store config", errutil.WithErr(err))
			}
			return nil
		}

		updates := map[string]any{
			"latest_version":      out.LatestVersion,
			"force_update":        out.ForceUpdate,
			"maintenance":         out.Maintenance,
			"maintenance_message": out.MaintenanceMessage,
			"update_description":  out.UpdateDescription,
			"update_links":        out.UpdateLinks,
			"updated_at":          out.UpdatedAt,
		}
		if err := repo.Update(ctx, DefaultID, updates); err != nil {
			return errutil.Internal("failed to store config", errutil.WithErr(err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx)
	return out, nil
}

// Public returns the console payload, served from redis when available.
// Concurrent cache misses collapse into a single database load.
func (s *Service) Public(ctx context.Context) (*PublicPayload, error) {
	if s.cache != nil {
		raw, err := s.cache.Get(ctx, cacheKey).Bytes()
		if err == nil {
			var payload PublicPayload
			if err := json.Unmarshal(raw, &payload); err == nil {
				return &payload, nil
			}
		} else if err != redis.Nil {
			zap.L().Warn("config cache read failed", zap.Error(err))
		}
	}

	v, err, _ := s.group.Do(cacheKey, func() (any, error) {
		cfg, err := s.Get(ctx)
		if err != nil {
			return nil, err
		}

		payload := &PublicPayload{
			LatestVersion:      cfg.LatestVersion,
			ForceUpdate:        cfg.ForceUpdate,
			Maintenance:        cfg.Maintenance,
			MaintenanceMessage: cfg.MaintenanceMessage,
			UpdateDescription:  cfg.UpdateDescription,
			UpdateLinks:        []string(cfg.UpdateLinks),
		}
		if payload.UpdateLinks == nil {
			payload.UpdateLinks = []string{}
		}

		if s.cache != nil {
			if raw, err := json.Marshal(payload); err == nil {
				if err := s.cache.Set(ctx, cacheKey, raw, s.cacheTTL).Err(); err != nil {
					zap.L().Warn("config cache write failed", zap.Error(err))
				}
			}
		}
		return payload, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*PublicPayload), nil
}

func (s *Service) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, cacheKey).Err(); err != nil {
		zap.L().Warn("config cache invalidation failed", zap.Error(err))
	}
}
