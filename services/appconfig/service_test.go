package appconfig

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"amulet-controlplane/pkg/config"
	"amulet-controlplane/pkg/errutil"
	"amulet-controlplane/services/testutil"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newTestService(t *testing.T) *Service {
	t.Helper()

	db := testutil.NewTestDB(t, &Config{})
	return NewService(ServiceParams{DB: db, Config: &config.Config{}})
}

func TestGetSeedsDefaults(t *testing.T) {
	svc := newTestService(t)

	cfg, err := svc.Get(context.Background())
	require.NoError(t, err)
	require.Equal(t, DefaultID, cfg.ID)
	require.Equal(t, "1.0.0", cfg.LatestVersion)
	require.False(t, cfg.ForceUpdate)
	require.False(t, cfg.Maintenance)
	require.NotNil(t, cfg.UpdateLinks)
	require.Empty(t, cfg.UpdateLinks)
}

func TestSeedIsIdempotent(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Seed(ctx))
	require.NoError(t, svc.Seed(ctx))

	cfg, err := svc.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, "1.0.0", cfg.LatestVersion)
}

func TestReplace(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	cfg, err := svc.Replace(ctx, ReplaceInput{
		LatestVersion:      "2.1.0",
		ForceUpdate:        true,
		Maintenance:        true,
		MaintenanceMessage: "back soon",
		UpdateDescription:  "bug fixes",
		UpdateLinks:        []string{"https://example.com/dl"},
	})
	require.NoError(t, err)
	require.Equal(t, "2.1.0", cfg.LatestVersion)

	got, err := svc.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, "2.1.0", got.LatestVersion)
	require.True(t, got.ForceUpdate)
	require.True(t, got.Maintenance)
	require.Equal(t, "back soon", got.MaintenanceMessage)
	require.Equal(t, []string{"https://example.com/dl"}, []string(got.UpdateLinks))
}

func TestReplaceIsWholesale(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Replace(ctx, ReplaceInput{
		LatestVersion:      "2.0.0",
		Maintenance:        true,
		MaintenanceMessage: "down",
		UpdateLinks:        []string{"https://example.com/a"},
	})
	require.NoError(t, err)

	// omitted fields reset, they do not survive from the previous state
	_, err = svc.Replace(ctx, ReplaceInput{LatestVersion: "2.0.1"})
	require.NoError(t, err)

	got, err := svc.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, "2.0.1", got.LatestVersion)
	require.False(t, got.Maintenance)
	require.Empty(t, got.MaintenanceMessage)
	require.Empty(t, got.UpdateLinks)
}

func TestReplaceRequiresVersion(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Replace(context.Background(), ReplaceInput{})
	require.Error(t, err)
	require.Equal(t, errutil.StatusValidationFailed, errutil.StatusOf(err))
}

func TestPublicPayload(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	payload, err := svc.Public(ctx)
	require.NoError(t, err)
	require.Equal(t, "1.0.0", payload.LatestVersion)
	require.NotNil(t, payload.UpdateLinks)

	_, err = svc.Replace(ctx, ReplaceInput{
		LatestVersion: "3.0.0",
		UpdateLinks:   []string{"https://example.com/dl"},
	})
	require.NoError(t, err)

	payload, err = svc.Public(ctx)
	require.NoError(t, err)
	require.Equal(t, "3.0.0", payload.LatestVersion)
	require.Equal(t, []string{"https://example.com/dl"}, payload.UpdateLinks)
}
