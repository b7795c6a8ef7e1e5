package apikey

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"amulet-controlplane/pkg/errutil"
	"amulet-controlplane/services/testutil"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newTestService(t *testing.T) *Service {
	t.Helper()

	db := testutil.NewTestDB(t, &ApiKey{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return NewService(ServiceParams{DB: db, Node: node})
}

func mustCreate(t *testing.T, svc *Service, in CreateInput) *ApiKey {
	t.Helper()
	key, err := svc.Create(context.Background(), in)
	require.NoError(t, err)
	require.NotNil(t, key)
	return key
}

func TestCreateApiKey(t *testing.T) {
	svc := newTestService(t)

	key := mustCreate(t, svc, CreateInput{APIKey: "sk-test-1"})
	require.NotEmpty(t, key.ID)
	require.Equal(t, StatusActive, key.Status)
}

func TestCreateApiKeyDuplicate(t *testing.T) {
	svc := newTestService(t)

	mustCreate(t, svc, CreateInput{APIKey: "sk-test-1"})

	_, err := svc.Create(context.Background(), CreateInput{APIKey: "sk-test-1"})
	require.Error(t, err)
	require.Equal(t, errutil.StatusConflict, errutil.StatusOf(err))
}

func TestCreateApiKeyInvalidStatus(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Create(context.Background(), CreateInput{APIKey: "sk-test-1", Status: "frozen"})
	require.Error(t, err)
	require.Equal(t, errutil.StatusValidationFailed, errutil.StatusOf(err))
}

func TestUpdateApiKeyStatus(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	key := mustCreate(t, svc, CreateInput{APIKey: "sk-test-1"})

	disabled := StatusDisabled
	updated, err := svc.Update(ctx, key.ID, UpdateInput{Status: &disabled})
	require.NoError(t, err)
	require.Equal(t, StatusDisabled, updated.Status)
}

func TestUpdateApiKeyNotFound(t *testing.T) {
	svc := newTestService(t)

	disabled := StatusDisabled
	_, err := svc.Update(context.Background(), "missing", UpdateInput{Status: &disabled})
	require.Error(t, err)
	require.Equal(t, errutil.StatusNotFound, errutil.StatusOf(err))
}

func TestDeleteApiKey(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	key := mustCreate(t, svc, CreateInput{APIKey: "sk-test-1"})
	require.NoError(t, svc.Delete(ctx, key.ID))

	err := svc.Delete(ctx, key.ID)
	require.Error(t, err)
	require.Equal(t, errutil.StatusNotFound, errutil.StatusOf(err))
}

func TestNextActiveSkipsDisabled(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	mustCreate(t, svc, CreateInput{APIKey: "sk-1", Status: StatusDisabled})
	second := mustCreate(t, svc, CreateInput{APIKey: "sk-2"})
	mustCreate(t, svc, CreateInput{APIKey: "sk-3"})

	key, err := svc.NextActive(ctx)
	require.NoError(t, err)
	require.Equal(t, second.APIKey, key.APIKey)
}

func TestNextActiveNoneAvailable(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	mustCreate(t, svc, CreateInput{APIKey: "sk-1", Status: StatusDisabled})

	_, err := svc.NextActive(ctx)
	require.Error(t, err)
	require.Equal(t, errutil.StatusNotFound, errutil.StatusOf(err))
}

func TestDeactivate(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	mustCreate(t, svc, CreateInput{APIKey: "sk-1"})

	key, err := svc.Deactivate(ctx, "sk-1")
	require.NoError(t, err)
	require.Equal(t, StatusDisabled, key.Status)

	_, err = svc.NextActive(ctx)
	require.Error(t, err)
	require.Equal(t, errutil.StatusNotFound, errutil.StatusOf(err))
}

func TestDeactivateUnknownKey(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Deactivate(context.Background(), "missing")
	require.Error(t, err)
	require.Equal(t, errutil.StatusNotFound, errutil.StatusOf(err))
}
