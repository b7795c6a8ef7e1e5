package license

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"amulet-controlplane/pkg/db/option"
	"amulet-controlplane/pkg/errutil"
	"amulet-controlplane/pkg/repository"
	"amulet-controlplane/services/activity"

	"github.com/bwmarrin/snowflake"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Service is the ledger engine: the only writer of credit and active on
// License rows. Every mutation commits in one transaction with its audit
// row; per-license serialization comes from the row lock taken on load.
type Service struct {
	db       *gorm.DB
	node     *snowflake.Node
	licenses repository.Repository[License]
	recorder activity.Recorder
}

type ServiceParams struct {
	fx.In
	DB       *gorm.DB
	Node     *snowflake.Node
	Recorder activity.Recorder
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:       p.DB,
		node:     p.Node,
		licenses: repository.ProvideStore[License](p.DB),
		recorder: p.Recorder,
	}
}

// Filter is the AND-combined search criteria for licenses. Nil/empty
// members impose no constraint; an empty Filter matches every row.
type Filter struct {
	Query     string
	MinCredit *int64
	MaxCredit *int64
	Active    *bool
	DateFrom  *time.Time
	DateTo    *time.Time // exclusive upper bound (start of next day)
}

func (f Filter) compile() []option.QueryOption {
	opts := make([]option.QueryOption, 0, 6)

	if f.Query != "" {
		opts = append(opts, option.Match(
			option.Condition{Field: "key", Operator: option.ILike, Value: f.Query},
			option.Condition{Field: "mac_id", Operator: option.ILike, Value: f.Query},
		))
	}
	if f.MinCredit != nil {
		opts = append(opts, option.ApplyOperator(option.Condition{Field: "credit", Operator: option.GTE, Value: *f.MinCredit}))
	}
	if f.MaxCredit != nil {
		opts = append(opts, option.ApplyOperator(option.Condition{Field: "credit", Operator: option.LTE, Value: *f.MaxCredit}))
	}
	if f.Active != nil {
		opts = append(opts, option.ApplyOperator(option.Condition{Field: "active", Operator: option.EQ, Value: *f.Active}))
	}
	if f.DateFrom != nil {
		opts = append(opts, option.ApplyOperator(option.Condition{Field: "created_at", Operator: option.GTE, Value: *f.DateFrom}))
	}
	if f.DateTo != nil {
		opts = append(opts, option.ApplyOperator(option.Condition{Field: "created_at", Operator: option.LT, Value: *f.DateTo}))
	}

	opts = append(opts, option.WithSortBy(option.QuerySortBy{SortBy: "id", OrderBy: "asc"}))
	return opts
}

func traceFields(ctx context.Context) []zap.Field {
	span := trace.SpanFromContext(ctx)
	return []zap.Field{
		zap.String("trace_id", span.SpanContext().TraceID().String()),
		zap.String("span_id", span.SpanContext().SpanID().String()),
	}
}

// List returns licenses matching the filter, id ascending.
func (s *Service) List(ctx context.Context, f Filter) ([]*License, error) {
	rows, err := s.licenses.Find(ctx, nil, f.compile()...)
	if err != nil {
		zap.L().With(traceFields(ctx)...).Error("failed to query licenses", zap.Error(err))
		return nil, errutil.Internal("failed to query licenses", errutil.WithErr(err))
	}
	return rows, nil
}

// Get loads one license by id.
func (s *Service) Get(ctx context.Context, id string) (*License, error) {
	lic, err := s.licenses.FindOne(ctx, &License{ID: id})
	if err != nil {
		return nil, errutil.Internal("failed to load license", errutil.WithErr(err))
	}
	if lic == nil {
		return nil, errutil.NotFound("license not found")
	}
	return lic, nil
}

type CreateInput struct {
	Key    string
	MacID  *string
	Credit int64
	Active bool
}

func (s *Service) Create(ctx context.Context, in CreateInput) (*License, error) {
	if in.Key == "" {
		return nil, errutil.ValidationFailed("key is required")
	}
	if in.Credit < 0 {
		return nil, errutil.InvalidOperation("credit must not be negative")
	}

	now := time.Now().UTC()
	lic := &License{
		ID:        s.node.Generate().String(),
		Key:       in.Key,
		MacID:     in.MacID,
		Credit:    in.Credit,
		Active:    in.Active,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		repo := s.licenses.WithTrx(tx)

		taken, err := repo.Count(ctx, &License{Key: in.Key})
		if err != nil {
			return errutil.Internal("failed to check license key", errutil.WithErr(err))
		}
		if taken > 0 {
			return errutil.Conflict("license key already exists")
		}

		if err := repo.Create(ctx, lic); err != nil {
			if isUniqueViolation(err) {
				return errutil.Conflict("license key already exists")
			}
			return errutil.Internal("failed to create license", errutil.WithErr(err))
		}

		_, err = s.recorder.Record(ctx, tx, activity.Entry{
			LicenseID: &lic.ID,
			Action:    activity.ActionCreate,
			Details:   fmt.Sprintf("created license %s", lic.Key),
		})
		if err != nil {
			return errutil.Internal("failed to record audit entry", errutil.WithErr(err))
		}
		return nil
	})
	if err != nil {
		zap.L().With(traceFields(ctx)...).Warn("create license rejected", zap.Error(err))
		return nil, err
	}

	return lic, nil
}

// UpdateInput carries partial updates: nil members are left untouched. An
// explicit empty MacID clears the device binding.
type UpdateInput struct {
	Key    *string
	MacID  *string
	Credit *int64
	Active *bool
}

func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (*License, error) {
	var updated *License

	err := s.db.Transaction(func(tx *gorm.DB) error {
		repo := s.licenses.WithTrx(tx)

		lic, err := repo.FindOne(ctx, &License{ID: id}, option.WithLockingUpdate())
		if err != nil {
			return errutil.Internal("failed to load license", errutil.WithErr(err))
		}
		if lic == nil {
			return errutil.NotFound("license not found")
		}

		updates := map[string]any{}
		changed := map[string]any{}

		if in.Key != nil && *in.Key != lic.Key {
			if *in.Key == "" {
				return errutil.ValidationFailed("key is required")
			}
			other, err := repo.FindOne(ctx, &License{Key: *in.Key})
			if err != nil {
				return errutil.Internal("failed to check license key", errutil.WithErr(err))
			}
			if other != nil && other.ID != lic.ID {
				return errutil.Conflict("license key already exists")
			}
			updates["key"] = *in.Key
			changed["key"] = *in.Key
		}
		if in.MacID != nil {
			if *in.MacID == "" {
				updates["mac_id"] = gorm.Expr("NULL")
				changed["mac_id"] = nil
			} else {
				updates["mac_id"] = *in.MacID
				changed["mac_id"] = *in.MacID
			}
		}
		if in.Credit != nil {
			if *in.Credit < 0 {
				return errutil.InvalidOperation("credit must not be negative")
			}
			updates["credit"] = *in.Credit
			changed["credit"] = *in.Credit
		}
		if in.Active != nil {
			updates["active"] = *in.Active
			changed["active"] = *in.Active
		}

		// nothing changed, nothing to write or audit
		if len(changed) == 0 {
			updated = lic
			return nil
		}

		updates["updated_at"] = time.Now().UTC()
		if err := repo.Update(ctx, lic.ID, updates); err != nil {
			if isUniqueViolation(err) {
				return errutil.Conflict("license key already exists")
			}
			return errutil.Internal("failed to update license", errutil.WithErr(err))
		}

		meta, _ := json.Marshal(changed)
		_, err = s.recorder.Record(ctx, tx, activity.Entry{
			LicenseID: &lic.ID,
			Action:    activity.ActionUpdate,
			Details:   fmt.Sprintf("updated fields: %s", changedFieldNames(changed)),
			Metadata:  datatypes.JSON(meta),
		})
		if err != nil {
			return errutil.Internal("failed to record audit entry", errutil.WithErr(err))
		}

		updated, err = repo.FindOne(ctx, &License{ID: lic.ID})
		if err != nil {
			return errutil.Internal("failed to reload license", errutil.WithErr(err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		repo := s.licenses.WithTrx(tx)

		lic, err := repo.FindOne(ctx, &License{ID: id}, option.WithLockingUpdate())
		if err != nil {
			return errutil.Internal("failed to load license", errutil.WithErr(err))
		}
		if lic == nil {
			return errutil.NotFound("license not found")
		}

		_, err = s.recorder.Record(ctx, tx, activity.Entry{
			LicenseID: &lic.ID,
			Action:    activity.ActionDelete,
			Details:   fmt.Sprintf("deleted license %s", lic.Key),
		})
		if err != nil {
			return errutil.Internal("failed to record audit entry", errutil.WithErr(err))
		}

		if err := repo.Delete(ctx, lic.ID); err != nil {
			return errutil.Internal("failed to delete license", errutil.WithErr(err))
		}
		return nil
	})
}

// ApplyCreditDelta atomically adjusts the balance by delta and returns the
// new balance. A zero delta is a valid no-op that still advances updated_at
// and logs. The balance can never go negative.
func (s *Service) ApplyCreditDelta(ctx context.Context, id string, delta int64) (int64, error) {
	var newCredit int64

	err := s.db.Transaction(func(tx *gorm.DB) error {
		repo := s.licenses.WithTrx(tx)

		lic, err := repo.FindOne(ctx, &License{ID: id}, option.WithLockingUpdate())
		if err != nil {
			return errutil.Internal("failed to load license", errutil.WithErr(err))
		}
		if lic == nil {
			return errutil.NotFound("license not found")
		}

		newCredit = lic.Credit + delta
		if newCredit < 0 {
			return errutil.InvalidOperation(fmt.Sprintf("credit would become negative (balance=%d, delta=%d)", lic.Credit, delta))
		}

		updates := map[string]any{
			"credit":     newCredit,
			"updated_at": time.Now().UTC(),
		}
		if err := repo.Update(ctx, lic.ID, updates); err != nil {
			return errutil.Internal("failed to update credit", errutil.WithErr(err))
		}

		charCount := delta
		if charCount < 0 {
			charCount = -charCount
		}
		_, err = s.recorder.Record(ctx, tx, activity.Entry{
			LicenseID: &lic.ID,
			Action:    activity.ActionCreditDelta,
			CharCount: &charCount,
			Details:   fmt.Sprintf("delta=%d balance=%d", delta, newCredit),
		})
		if err != nil {
			return errutil.Internal("failed to record audit entry", errutil.WithErr(err))
		}
		return nil
	})
	if err != nil {
		zap.L().With(traceFields(ctx)...).Warn("credit delta rejected", zap.String("license_id", id), zap.Int64("delta", delta), zap.Error(err))
		return 0, err
	}

	return newCredit, nil
}

// ToggleActive flips the active flag and returns the new state.
func (s *Service) ToggleActive(ctx context.Context, id string) (bool, error) {
	var newActive bool

	err := s.db.Transaction(func(tx *gorm.DB) error {
		repo := s.licenses.WithTrx(tx)

		lic, err := repo.FindOne(ctx, &License{ID: id}, option.WithLockingUpdate())
		if err != nil {
			return errutil.Internal("failed to load license", errutil.WithErr(err))
		}
		if lic == nil {
			return errutil.NotFound("license not found")
		}

		newActive = !lic.Active
		updates := map[string]any{
			"active":     newActive,
			"updated_at": time.Now().UTC(),
		}
		if err := repo.Update(ctx, lic.ID, updates); err != nil {
			return errutil.Internal("failed to toggle license", errutil.WithErr(err))
		}

		_, err = s.recorder.Record(ctx, tx, activity.Entry{
			LicenseID: &lic.ID,
			Action:    activity.ActionToggle,
			Details:   fmt.Sprintf("active=%t", newActive),
		})
		if err != nil {
			return errutil.Internal("failed to record audit entry", errutil.WithErr(err))
		}
		return nil
	})
	if err != nil {
		return false, err
	}

	return newActive, nil
}

func changedFieldNames(changed map[string]any) string {
	names := make([]string, 0, len(changed))
	for k := range changed {
		names = append(names, k)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "Duplicate entry")
}
