package option

import (
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// QueryOption mutates a gorm query before execution. Options compose; every
// option narrows (AND) the query it is applied to.
type QueryOption func(tx *gorm.DB) *gorm.DB

type Operator string

const (
	EQ    Operator = "="
	GT    Operator = ">"
	GTE   Operator = ">="
	LT    Operator = "<"
	LTE   Operator = "<="
	ILike Operator = "ILIKE"
)

// Condition is a single field comparison appended to the WHERE clause.
type Condition struct {
	Field    string
	Operator Operator
	Value    any
}

// ApplyOperator adds a comparison condition. ILIKE is emulated portably so
// the same query runs on postgres, mysql and sqlite.
func ApplyOperator(c Condition) QueryOption {
	return func(tx *gorm.DB) *gorm.DB {
		if c.Operator == ILike {
			pattern := fmt.Sprintf("%%%s%%", strings.ToLower(fmt.Sprint(c.Value)))
			return tx.Where(fmt.Sprintf("LOWER(%s) LIKE ?", c.Field), pattern)
		}
		return tx.Where(fmt.Sprintf("%s %s ?", c.Field, c.Operator), c.Value)
	}
}

// Match groups several conditions with OR. Used for substring search across
// multiple columns.
func Match(conds ...Condition) QueryOption {
	return func(tx *gorm.DB) *gorm.DB {
		if len(conds) == 0 {
			return tx
		}
		exprs := make([]string, 0, len(conds))
		args := make([]any, 0, len(conds))
		for _, c := range conds {
			if c.Operator == ILike {
				exprs = append(exprs, fmt.Sprintf("LOWER(%s) LIKE ?", c.Field))
				args = append(args, fmt.Sprintf("%%%s%%", strings.ToLower(fmt.Sprint(c.Value))))
				continue
			}
			exprs = append(exprs, fmt.Sprintf("%s %s ?", c.Field, c.Operator))
			args = append(args, c.Value)
		}
		return tx.Where("("+strings.Join(exprs, " OR ")+")", args...)
	}
}

type QuerySortBy struct {
	SortBy  string
	OrderBy string
	Allow   map[string]bool
}

// WithSortBy orders results by an allow-listed column. Unknown columns fall
// back to id so a caller can never inject raw SQL through sort parameters.
func WithSortBy(sort QuerySortBy) QueryOption {
	return func(tx *gorm.DB) *gorm.DB {
		column := sort.SortBy
		if column == "" || (sort.Allow != nil && !sort.Allow[column]) {
			column = "id"
		}
		direction := "ASC"
		if strings.EqualFold(sort.OrderBy, "desc") {
			direction = "DESC"
		}
		return tx.Order(fmt.Sprintf("%s %s", column, direction))
	}
}

// WithLockingUpdate takes a row-level lock (SELECT ... FOR UPDATE) for the
// duration of the surrounding transaction. SQLite has no row locks; its
// single-writer transactions already serialize, so the clause is skipped.
func WithLockingUpdate() QueryOption {
	return func(tx *gorm.DB) *gorm.DB {
		return LockingUpdate(tx)
	}
}

// LockingUpdate is the scope form of WithLockingUpdate, usable via tx.Scopes.
func LockingUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}
