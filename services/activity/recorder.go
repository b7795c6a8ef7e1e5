package activity

import (
	"context"
	"time"

	"amulet-controlplane/pkg/repository"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Entry describes one audit event to append.
type Entry struct {
	LicenseID *string
	Action    string
	CharCount *int64
	Details   string
	Metadata  datatypes.JSON
}

// Recorder is the only writer of ActivityLog. Record runs against the
// caller's transaction: when the append fails the caller's mutation rolls
// back with it, so no mutation ever commits without its audit row.
type Recorder interface {
	Record(ctx context.Context, tx *gorm.DB, e Entry) (*ActivityLog, error)
}

type recorder struct {
	node *snowflake.Node
	logs repository.Repository[ActivityLog]
}

func NewRecorder(db *gorm.DB, node *snowflake.Node) Recorder {
	return &recorder{
		node: node,
		logs: repository.ProvideStore[ActivityLog](db),
	}
}

func (r *recorder) Record(ctx context.Context, tx *gorm.DB, e Entry) (*ActivityLog, error) {
	row := &ActivityLog{
		ID:        r.node.Generate().String(),
		LicenseID: e.LicenseID,
		Action:    e.Action,
		CharCount: e.CharCount,
		Details:   e.Details,
		Metadata:  e.Metadata,
		CreatedAt: time.Now().UTC(),
	}

	if err := r.logs.WithTrx(tx).Create(ctx, row); err != nil {
		return nil, err
	}

	return row, nil
}
