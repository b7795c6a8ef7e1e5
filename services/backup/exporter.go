package backup

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"amulet-controlplane/pkg/config"
	"amulet-controlplane/pkg/errutil"
	"amulet-controlplane/services/activity"
	"amulet-controlplane/services/apikey"
	"amulet-controlplane/services/appconfig"
	"amulet-controlplane/services/license"
	"amulet-controlplane/services/voice"

	"github.com/gosimple/slug"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

const timestampLayout = "20060102T150405Z"

// Snapshot is the full export payload. LicensesOnly exports carry just the
// Licenses member.
type Snapshot struct {
	ExportedAt  time.Time              `json:"exported_at"`
	Licenses    []license.License      `json:"licenses"`
	ApiKeys     []apikey.ApiKey        `json:"api_keys,omitempty"`
	Voices      []voice.Voice          `json:"voices,omitempty"`
	Config      *appconfig.Config      `json:"config,omitempty"`
	ActivityLog []activity.ActivityLog `json:"activity_log,omitempty"`
}

// Export is rendered snapshot bytes with the download filename.
type Export struct {
	Filename string
	Data     []byte
}

type Exporter struct {
	db   *gorm.DB
	base string
}

type ExporterParams struct {
	fx.In
	DB     *gorm.DB
	Config *config.Config
}

func NewExporter(p ExporterParams) *Exporter {
	base := slug.Make(p.Config.AppName)
	if base == "" {
		base = "amulet"
	}
	return &Exporter{db: p.DB, base: base}
}

// snapshotTxOptions pins the export transaction to a single snapshot. Under
// READ COMMITTED (the postgres/mysql default) each statement reads its own
// snapshot, so a write committed mid-export would show up in the later
// tables only. SQLite transactions are serializable already and its driver
// rejects other isolation levels, so it gets no options.
func snapshotTxOptions(dialect string) []*sql.TxOptions {
	if dialect == "sqlite" {
		return nil
	}
	return []*sql.TxOptions{{Isolation: sql.LevelRepeatableRead, ReadOnly: true}}
}

// ExportAll renders every table from one transaction so the snapshot is a
// consistent point-in-time view.
func (e *Exporter) ExportAll(ctx context.Context) (*Export, error) {
	now := time.Now().UTC()
	snap := &Snapshot{ExportedAt: now}

	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Order("id asc").Find(&snap.Licenses).Error; err != nil {
			return err
		}
		if err := tx.Order("id asc").Find(&snap.ApiKeys).Error; err != nil {
			return err
		}
		if err := tx.Order("id asc").Find(&snap.Voices).Error; err != nil {
			return err
		}
		if err := tx.Order("id asc").Find(&snap.ActivityLog).Error; err != nil {
			return err
		}

		var cfg appconfig.Config
		err := tx.First(&cfg, "id = ?", appconfig.DefaultID).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err == nil {
			snap.Config = &cfg
		}
		return nil
	}, snapshotTxOptions(e.db.Dialector.Name())...)
	if err != nil {
		return nil, errutil.Internal("failed to export snapshot", errutil.WithErr(err))
	}

	return e.render(snap, fmt.Sprintf("%s_backup_%s.json", e.base, now.Format(timestampLayout)))
}

// ExportLicensesOnly renders just the license table.
func (e *Exporter) ExportLicensesOnly(ctx context.Context) (*Export, error) {
	now := time.Now().UTC()
	snap := &Snapshot{ExportedAt: now}

	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Order("id asc").Find(&snap.Licenses).Error
	}, snapshotTxOptions(e.db.Dialector.Name())...)
	if err != nil {
		return nil, errutil.Internal("failed to export snapshot", errutil.WithErr(err))
	}

	return e.render(snap, fmt.Sprintf("%s_licenses_backup_%s.json", e.base, now.Format(timestampLayout)))
}

func (e *Exporter) render(snap *Snapshot, filename string) (*Export, error) {
	if snap.Licenses == nil {
		snap.Licenses = []license.License{}
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return nil, errutil.Internal("failed to render snapshot", errutil.WithErr(err))
	}

	return &Export{Filename: filename, Data: data}, nil
}
