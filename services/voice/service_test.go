package voice

import (
	"context"
	"strings"
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

	db := testutil.NewTestDB(t, &Voice{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return NewService(ServiceParams{DB: db, Node: node})
}

func mustCreate(t *testing.T, svc *Service, in CreateInput) *Voice {
	t.Helper()
	v, err := svc.Create(context.Background(), in)
	require.NoError(t, err)
	require.NotNil(t, v)
	return v
}

func TestCreateVoice(t *testing.T) {
	svc := newTestService(t)

	v := mustCreate(t, svc, CreateInput{Name: "Rachel", VoiceID: "v-100", Active: true})
	require.NotEmpty(t, v.ID)
	require.Equal(t, "Rachel", v.Name)
}

func TestCreateVoiceDuplicate(t *testing.T) {
	svc := newTestService(t)

	mustCreate(t, svc, CreateInput{Name: "Rachel", VoiceID: "v-100", Active: true})

	_, err := svc.Create(context.Background(), CreateInput{Name: "Other", VoiceID: "v-100", Active: true})
	require.Error(t, err)
	require.Equal(t, errutil.StatusConflict, errutil.StatusOf(err))
}

func TestCreateVoiceMissingFields(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Create(context.Background(), CreateInput{Name: "Rachel"})
	require.Error(t, err)
	require.Equal(t, errutil.StatusValidationFailed, errutil.StatusOf(err))
}

func TestUpdateVoice(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	v := mustCreate(t, svc, CreateInput{Name: "Rachel", VoiceID: "v-100", Active: true})

	inactive := false
	name := "Rachel v2"
	updated, err := svc.Update(ctx, v.ID, UpdateInput{Name: &name, Active: &inactive})
	require.NoError(t, err)
	require.Equal(t, "Rachel v2", updated.Name)
	require.False(t, updated.Active)
}

func TestUpdateVoiceNotFound(t *testing.T) {
	svc := newTestService(t)

	name := "x"
	_, err := svc.Update(context.Background(), "missing", UpdateInput{Name: &name})
	require.Error(t, err)
	require.Equal(t, errutil.StatusNotFound, errutil.StatusOf(err))
}

func TestDeleteVoice(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	v := mustCreate(t, svc, CreateInput{Name: "Rachel", VoiceID: "v-100", Active: true})
	require.NoError(t, svc.Delete(ctx, v.ID))

	err := svc.Delete(ctx, v.ID)
	require.Error(t, err)
	require.Equal(t, errutil.StatusNotFound, errutil.StatusOf(err))
}

func TestListActive(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	mustCreate(t, svc, CreateInput{Name: "Rachel", VoiceID: "v-100", Active: true})
	mustCreate(t, svc, CreateInput{Name: "Retired", VoiceID: "v-200", Active: false})

	rows, err := svc.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "v-100", rows[0].VoiceID)
}

func TestBulkUpload(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	mustCreate(t, svc, CreateInput{Name: "Rachel", VoiceID: "v-100", Active: true})

	upload := strings.NewReader(strings.Join([]string{
		"Rachel:v-100",   // already present
		"Antoni:v-200",   // new
		"",               // blank
		"no-separator",   // malformed
		"Antoni:v-200",   // duplicate inside the file
		"  Bella : v-300", // whitespace around fields
	}, "\n"))

	added, err := svc.BulkUpload(ctx, upload)
	require.NoError(t, err)
	require.Equal(t, 2, added)

	rows, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	byVoiceID := map[string]string{}
	for _, v := range rows {
		byVoiceID[v.VoiceID] = v.Name
	}
	require.Equal(t, "Antoni", byVoiceID["v-200"])
	require.Equal(t, "Bella", byVoiceID["v-300"])
}

func TestBulkUploadEmptyFile(t *testing.T) {
	svc := newTestService(t)

	added, err := svc.BulkUpload(context.Background(), strings.NewReader(""))
	require.NoError(t, err)
	require.Zero(t, added)
}
