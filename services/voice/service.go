package voice

import (
	"bufio"
	"context"
	"errors"
	"io"
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
	db     *gorm.DB
	node   *snowflake.Node
	voices repository.Repository[Voice]
}

type ServiceParams struct {
	fx.In
	DB   *gorm.DB
	Node *snowflake.Node
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:     p.DB,
		node:   p.Node,
		voices: repository.ProvideStore[Voice](p.DB),
	}
}

// List returns all voices, id ascending.
func (s *Service) List(ctx context.Context) ([]*Voice, error) {
	rows, err := s.voices.Find(ctx, nil, option.WithSortBy(option.QuerySortBy{SortBy: "id", OrderBy: "asc"}))
	if err != nil {
		zap.L().Error("failed to query voices", zap.Error(err))
		return nil, errutil.Internal("failed to query voices", errutil.WithErr(err))
	}
	return rows, nil
}

// ListActive returns the active voices consoles may offer.
func (s *Service) ListActive(ctx context.Context) ([]*Voice, error) {
	rows, err := s.voices.Find(ctx, nil,
		option.ApplyOperator(option.Condition{Field: "active", Operator: option.EQ, Value: true}),
		option.WithSortBy(option.QuerySortBy{SortBy: "id", OrderBy: "asc"}))
	if err != nil {
		return nil, errutil.Internal("failed to query voices", errutil.WithErr(err))
	}
	return rows, nil
}

type CreateInput struct {
	Name    string
	VoiceID string
	Active  bool
}

func (s *Service) Create(ctx context.Context, in CreateInput) (*Voice, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.VoiceID = strings.TrimSpace(in.VoiceID)
	if in.Name == "" || in.VoiceID == "" {
		return nil, errutil.ValidationFailed("name and voice_id are required")
	}

	now := time.Now().UTC()
	v := &Voice{
		ID:        s.node.Generate().String(),
		Name:      in.Name,
		VoiceID:   in.VoiceID,
		Active:    in.Active,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		repo := s.voices.WithTrx(tx)

		existing, err := repo.FindOne(ctx, &Voice{VoiceID: in.VoiceID})
		if err != nil {
			return errutil.Internal("failed to check voice id", errutil.WithErr(err))
		}
		if existing != nil {
			return errutil.Conflict("voice id already exists")
		}

		if err := repo.Create(ctx, v); err != nil {
			return errutil.Internal("failed to create voice", errutil.WithErr(err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return v, nil
}

type UpdateInput struct {
	Name    *string
	VoiceID *string
	Active  *bool
}

func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (*Voice, error) {
	var updated *Voice

	err := s.db.Transaction(func(tx *gorm.DB) error {
		repo := s.voices.WithTrx(tx)

		v, err := repo.FindOne(ctx, &Voice{ID: id}, option.WithLockingUpdate())
		if err != nil {
			return errutil.Internal("failed to load voice", errutil.WithErr(err))
		}
		if v == nil {
			return errutil.NotFound("voice not found")
		}

		updates := map[string]any{}
		if in.Name != nil {
			name := strings.TrimSpace(*in.Name)
			if name == "" {
				return errutil.ValidationFailed("name is required")
			}
			updates["name"] = name
		}
		if in.VoiceID != nil && *in.VoiceID != v.VoiceID {
			vid := strings.TrimSpace(*in.VoiceID)
			if vid == "" {
				return errutil.ValidationFailed("voice_id is required")
			}
			other, err := repo.FindOne(ctx, &Voice{VoiceID: vid})
			if err != nil {
				return errutil.Internal("failed to check voice id", errutil.WithErr(err))
			}
			if other != nil && other.ID != v.ID {
				return errutil.Conflict("voice id already exists")
			}
			updates["voice_id"] = vid
		}
		if in.Active != nil {
			updates["active"] = *in.Active
		}

		updates["updated_at"] = time.Now().UTC()
		if err := repo.Update(ctx, v.ID, updates); err != nil {
			return errutil.Internal("failed to update voice", errutil.WithErr(err))
		}

		updated, err = repo.FindOne(ctx, &Voice{ID: v.ID})
		if err != nil {
			return errutil.Internal("failed to reload voice", errutil.WithErr(err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	err := s.voices.Delete(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errutil.NotFound("voice not found")
		}
		return errutil.Internal("failed to delete voice", errutil.WithErr(err))
	}
	return nil
}

// BulkUpload ingests a "name:voice_id" line file. Blank lines and lines
// without a separator are skipped, as are voice ids already present. The
// whole batch commits in one transaction and the count of new rows is
// returned.
func (s *Service) BulkUpload(ctx context.Context, r io.Reader) (int, error) {
	added := 0

	err := s.db.Transaction(func(tx *gorm.DB) error {
		repo := s.voices.WithTrx(tx)

		seen := map[string]struct{}{}
		batch := make([]*Voice, 0, 32)
		now := time.Now().UTC()

		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}

			name, vid, ok := strings.Cut(line, ":")
			name = strings.TrimSpace(name)
			vid = strings.TrimSpace(vid)
			if !ok || name == "" || vid == "" {
				continue
			}
			if _, dup := seen[vid]; dup {
				continue
			}
			seen[vid] = struct{}{}

			present, err := repo.Count(ctx, &Voice{VoiceID: vid})
			if err != nil {
				return errutil.Internal("failed to check voice id", errutil.WithErr(err))
			}
			if present > 0 {
				continue
			}

			batch = append(batch, &Voice{
				ID:        s.node.Generate().String(),
				Name:      name,
				VoiceID:   vid,
				Active:    true,
				CreatedAt: now,
				UpdatedAt: now,
			})
		}
		if err := scanner.Err(); err != nil {
			return errutil.BadRequest("failed to read upload", errutil.WithErr(err))
		}

		if err := repo.BatchCreate(ctx, batch); err != nil {
			return errutil.Internal("failed to store voices", errutil.WithErr(err))
		}

		added = len(batch)
		return nil
	})
	if err != nil {
		return 0, err
	}

	return added, nil
}
