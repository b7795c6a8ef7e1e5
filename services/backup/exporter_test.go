package backup

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"amulet-controlplane/pkg/config"
	"amulet-controlplane/services/activity"
	"amulet-controlplane/services/apikey"
	"amulet-controlplane/services/appconfig"
	"amulet-controlplane/services/license"
	"amulet-controlplane/services/testutil"
	"amulet-controlplane/services/voice"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newTestExporter(t *testing.T) (*Exporter, *gorm.DB) {
	t.Helper()

	db := testutil.NewTestDB(t,
		&license.License{}, &apikey.ApiKey{}, &voice.Voice{},
		&appconfig.Config{}, &activity.ActivityLog{})

	cfg := &config.Config{AppName: "Amulet Admin"}
	return NewExporter(ExporterParams{DB: db, Config: cfg}), db
}

func seedData(t *testing.T, db *gorm.DB) {
	t.Helper()
	now := time.Now().UTC()

	require.NoError(t, db.Create(&license.License{
		ID: "1", Key: "AAA-111", Credit: 100, Active: true, CreatedAt: now, UpdatedAt: now,
	}).Error)
	require.NoError(t, db.Create(&apikey.ApiKey{
		ID: "2", APIKey: "sk-1", Status: apikey.StatusActive, CreatedAt: now, UpdatedAt: now,
	}).Error)
	require.NoError(t, db.Create(&voice.Voice{
		ID: "3", Name: "Rachel", VoiceID: "v-100", Active: true, CreatedAt: now, UpdatedAt: now,
	}).Error)
	require.NoError(t, db.Create(&activity.ActivityLog{
		ID: "4", Action: activity.ActionCreate, Details: "created license AAA-111", CreatedAt: now,
	}).Error)
}

func TestExportAll(t *testing.T) {
	exporter, db := newTestExporter(t)
	seedData(t, db)

	export, err := exporter.ExportAll(context.Background())
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(export.Filename, "amulet-admin_backup_"))
	require.True(t, strings.HasSuffix(export.Filename, ".json"))

	var snap Snapshot
	require.NoError(t, json.Unmarshal(export.Data, &snap))
	require.Len(t, snap.Licenses, 1)
	require.Len(t, snap.ApiKeys, 1)
	require.Len(t, snap.Voices, 1)
	require.Len(t, snap.ActivityLog, 1)
	require.Equal(t, "AAA-111", snap.Licenses[0].Key)
	require.False(t, snap.ExportedAt.IsZero())

	// indented output
	require.True(t, strings.Contains(string(export.Data), "\n  "))
}

func TestExportAllIncludesConfig(t *testing.T) {
	exporter, db := newTestExporter(t)

	require.NoError(t, db.Create(&appconfig.Config{
		ID: appconfig.DefaultID, LatestVersion: "2.0.0", UpdatedAt: time.Now().UTC(),
	}).Error)

	export, err := exporter.ExportAll(context.Background())
	require.NoError(t, err)

	var snap Snapshot
	require.NoError(t, json.Unmarshal(export.Data, &snap))
	require.NotNil(t, snap.Config)
	require.Equal(t, "2.0.0", snap.Config.LatestVersion)
}

func TestExportLicensesOnly(t *testing.T) {
	exporter, db := newTestExporter(t)
	seedData(t, db)

	export, err := exporter.ExportLicensesOnly(context.Background())
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(export.Filename, "amulet-admin_licenses_backup_"))

	var snap Snapshot
	require.NoError(t, json.Unmarshal(export.Data, &snap))
	require.Len(t, snap.Licenses, 1)
	require.Empty(t, snap.ApiKeys)
	require.Empty(t, snap.Voices)
	require.Empty(t, snap.ActivityLog)
}

func TestSnapshotTxOptions(t *testing.T) {
	// server backends pin one snapshot for the whole export
	for _, dialect := range []string{"postgres", "mysql"} {
		opts := snapshotTxOptions(dialect)
		require.Len(t, opts, 1, dialect)
		require.Equal(t, sql.LevelRepeatableRead, opts[0].Isolation, dialect)
		require.True(t, opts[0].ReadOnly, dialect)
	}

	// sqlite transactions are serializable already and the driver rejects
	// explicit isolation levels
	require.Empty(t, snapshotTxOptions("sqlite"))
}

func TestExportEmptyDatabase(t *testing.T) {
	exporter, _ := newTestExporter(t)

	export, err := exporter.ExportAll(context.Background())
	require.NoError(t, err)

	// licenses is always a list, never null
	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(export.Data, &raw))
	require.Equal(t, "[]", strings.TrimSpace(string(raw["licenses"])))
}
