package activity

import (
	"context"
	"time"

	"amulet-controlplane/pkg/db/option"
	"amulet-controlplane/pkg/errutil"
	"amulet-controlplane/pkg/repository"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Filter is the AND-combined criteria set for log searches. Nil/empty
// members impose no constraint.
type Filter struct {
	Query    string
	MinChars *int64
	MaxChars *int64
	Action   string
	DateFrom *time.Time
	DateTo   *time.Time // exclusive upper bound (start of next day)
}

type Service struct {
	db   *gorm.DB
	logs repository.Repository[ActivityLog]
}

type ServiceParams struct {
	fx.In
	DB *gorm.DB
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:   p.DB,
		logs: repository.ProvideStore[ActivityLog](p.DB),
	}
}

// List returns audit rows matching the filter, id ascending.
func (s *Service) List(ctx context.Context, f Filter) ([]*ActivityLog, error) {
	opts := f.compile()

	rows, err := s.logs.Find(ctx, nil, opts...)
	if err != nil {
		zap.L().Error("failed to query activity log", zap.Error(err))
		return nil, errutil.Internal("failed to query activity log", errutil.WithErr(err))
	}

	return rows, nil
}

func (f Filter) compile() []option.QueryOption {
	opts := make([]option.QueryOption, 0, 6)

	if f.Query != "" {
		opts = append(opts, option.Match(
			option.Condition{Field: "action", Operator: option.ILike, Value: f.Query},
			option.Condition{Field: "details", Operator: option.ILike, Value: f.Query},
		))
	}
	if f.MinChars != nil {
		opts = append(opts, option.ApplyOperator(option.Condition{Field: "char_count", Operator: option.GTE, Value: *f.MinChars}))
	}
	if f.MaxChars != nil {
		opts = append(opts, option.ApplyOperator(option.Condition{Field: "char_count", Operator: option.LTE, Value: *f.MaxChars}))
	}
	if f.Action != "" {
		opts = append(opts, option.ApplyOperator(option.Condition{Field: "action", Operator: option.EQ, Value: f.Action}))
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
