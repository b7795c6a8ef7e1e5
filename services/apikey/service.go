package apikey

import (
	"context"
	"errors"
	"strings"
	"time"

	"amulet-controlplane/pkg/db/option"
	"amulet-controlplane/pkg/errutil"
	"amulet-controlplane/pkg/repository"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db   *gorm.DB
	node *snowflake.Node
	keys repository.Repository[ApiKey]
}

type ServiceParams struct {
	fx.In
	DB   *gorm.DB
	Node *snowflake.Node
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:   p.DB,
		node: p.Node,
		keys: repository.ProvideStore[ApiKey](p.DB),
	}
}

// List returns every key, id ascending.
func (s *Service) List(ctx context.Context) ([]*ApiKey, error) {
	rows, err := s.keys.Find(ctx, nil, option.WithSortBy(option.QuerySortBy{SortBy: "id", OrderBy: "asc"}))
	if err != nil {
		zap.L().Error("failed to query api keys", zap.Error(err))
		return nil, errutil.Internal("failed to query api keys", errutil.WithErr(err))
	}
	return rows, nil
}

type CreateInput struct {
	APIKey string
	Status string
}

func (s *Service) Create(ctx context.Context, in CreateInput) (*ApiKey, error) {
	in.APIKey = strings.TrimSpace(in.APIKey)
	if in.APIKey == "" {
		return nil, errutil.ValidationFailed("api_key is required")
	}
	if in.Status == "" {
		in.Status = StatusActive
	}
	if !validStatus(in.Status) {
		return nil, errutil.ValidationFailed("status must be active or disabled")
	}

	now := time.Now().UTC()
	key := &ApiKey{
		ID:        s.node.Generate().String(),
		APIKey:    in.APIKey,
		Status:    in.Status,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		repo := s.keys.WithTrx(tx)

		existing, err := repo.FindOne(ctx, &ApiKey{APIKey: in.APIKey})
		if err != nil {
			return errutil.Internal("failed to check api key", errutil.WithErr(err))
		}
		if existing != nil {
			return errutil.Conflict("api key already exists")
		}

		if err := repo.Create(ctx, key); err != nil {
			return errutil.Internal("failed to create api key", errutil.WithErr(err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return key, nil
}

type UpdateInput struct {
	APIKey *string
	Status *string
}

func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (*ApiKey, error) {
	var updated *ApiKey

	err := s.db.Transaction(func(tx *gorm.DB) error {
		repo := s.keys.WithTrx(tx)

		key, err := repo.FindOne(ctx, &ApiKey{ID: id}, option.WithLockingUpdate())
		if err != nil {
			return errutil.Internal("failed to load api key", errutil.WithErr(err))
		}
		if key == nil {
			return errutil.NotFound("api key not found")
		}

		updates := map[string]any{}
		if in.APIKey != nil && *in.APIKey != key.APIKey {
			trimmed := strings.TrimSpace(*in.APIKey)
			if trimmed == "" {
				return errutil.ValidationFailed("api_key is required")
			}
			other, err := repo.FindOne(ctx, &ApiKey{APIKey: trimmed})
			if err != nil {
				return errutil.Internal("failed to check api key", errutil.WithErr(err))
			}
			if other != nil && other.ID != key.ID {
				return errutil.Conflict("api key already exists")
			}
			updates["api_key"] = trimmed
		}
		if in.Status != nil {
			if !validStatus(*in.Status) {
				return errutil.ValidationFailed("status must be active or disabled")
			}
			updates["status"] = *in.Status
		}

		updates["updated_at"] = time.Now().UTC()
		if err := repo.Update(ctx, key.ID, updates); err != nil {
			return errutil.Internal("failed to update api key", errutil.WithErr(err))
		}

		updated, err = repo.FindOne(ctx, &ApiKey{ID: key.ID})
		if err != nil {
			return errutil.Internal("failed to reload api key", errutil.WithErr(err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	err := s.keys.Delete(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errutil.NotFound("api key not found")
		}
		return errutil.Internal("failed to delete api key", errutil.WithErr(err))
	}
	return nil
}

// NextActive hands out the first active key in id order. Consoles call this
// when their current key is exhausted.
func (s *Service) NextActive(ctx context.Context) (*ApiKey, error) {
	key, err := s.keys.FindOne(ctx, &ApiKey{Status: StatusActive},
		option.WithSortBy(option.QuerySortBy{SortBy: "id", OrderBy: "asc"}))
	if err != nil {
		return nil, errutil.Internal("failed to query api keys", errutil.WithErr(err))
	}
	if key == nil {
		return nil, errutil.NotFound("no active api key available")
	}
	return key, nil
}

// Deactivate marks the key with the given credential disabled. Consoles
// report keys the upstream provider has rejected.
func (s *Service) Deactivate(ctx context.Context, apiKey string) (*ApiKey, error) {
	var updated *ApiKey

	err := s.db.Transaction(func(tx *gorm.DB) error {
		repo := s.keys.WithTrx(tx)

		key, err := repo.FindOne(ctx, &ApiKey{APIKey: apiKey}, option.WithLockingUpdate())
		if err != nil {
			return errutil.Internal("failed to load api key", errutil.WithErr(err))
		}
		if key == nil {
			return errutil.NotFound("api key not found")
		}

		updates := map[string]any{
			"status":     StatusDisabled,
			"updated_at": time.Now().UTC(),
		}
		if err := repo.Update(ctx, key.ID, updates); err != nil {
			return errutil.Internal("failed to deactivate api key", errutil.WithErr(err))
		}

		key.Status = StatusDisabled
		updated = key
		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}
