package license

import (
	"context"
	"sync"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"amulet-controlplane/pkg/errutil"
	"amulet-controlplane/services/activity"
	"amulet-controlplane/services/testutil"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()

	db := testutil.NewTestDB(t, &License{}, &activity.ActivityLog{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := NewService(ServiceParams{
		DB:       db,
		Node:     node,
		Recorder: activity.NewRecorder(db, node),
	})
	return svc, db
}

func mustCreate(t *testing.T, svc *Service, in CreateInput) *License {
	t.Helper()
	lic, err := svc.Create(context.Background(), in)
	require.NoError(t, err)
	require.NotNil(t, lic)
	return lic
}

func auditRows(t *testing.T, db *gorm.DB, licenseID string) []activity.ActivityLog {
	t.Helper()
	var rows []activity.ActivityLog
	require.NoError(t, db.Where("license_id = ?", licenseID).Order("id asc").Find(&rows).Error)
	return rows
}

func TestCreateLicense(t *testing.T) {
	svc, db := newTestService(t)

	lic := mustCreate(t, svc, CreateInput{Key: "AAA-111", Credit: 500, Active: true})
	require.NotEmpty(t, lic.ID)
	require.Equal(t, int64(500), lic.Credit)
	require.True(t, lic.Active)
	require.Nil(t, lic.MacID)

	rows := auditRows(t, db, lic.ID)
	require.Len(t, rows, 1)
	require.Equal(t, activity.ActionCreate, rows[0].Action)
}

func TestCreateLicenseDuplicateKey(t *testing.T) {
	svc, _ := newTestService(t)

	mustCreate(t, svc, CreateInput{Key: "AAA-111", Credit: 10, Active: true})

	_, err := svc.Create(context.Background(), CreateInput{Key: "AAA-111", Credit: 20, Active: true})
	require.Error(t, err)
	require.Equal(t, errutil.StatusConflict, errutil.StatusOf(err))
}

func TestCreateLicenseNegativeCredit(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Create(context.Background(), CreateInput{Key: "AAA-111", Credit: -5, Active: true})
	require.Error(t, err)
	require.Equal(t, errutil.StatusInvalidOperation, errutil.StatusOf(err))
}

func TestUpdateLicense(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	lic := mustCreate(t, svc, CreateInput{Key: "AAA-111", Credit: 100, Active: true})

	mac := "00:11:22:33:44:55"
	credit := int64(250)
	updated, err := svc.Update(ctx, lic.ID, UpdateInput{MacID: &mac, Credit: &credit})
	require.NoError(t, err)
	require.NotNil(t, updated.MacID)
	require.Equal(t, mac, *updated.MacID)
	require.Equal(t, int64(250), updated.Credit)

	rows := auditRows(t, db, lic.ID)
	require.Len(t, rows, 2)
	require.Equal(t, activity.ActionUpdate, rows[1].Action)
	require.Contains(t, rows[1].Details, "credit")
	require.Contains(t, rows[1].Details, "mac_id")
}

func TestUpdateLicenseNoChanges(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	lic := mustCreate(t, svc, CreateInput{Key: "AAA-111", Credit: 100, Active: true})

	updated, err := svc.Update(ctx, lic.ID, UpdateInput{})
	require.NoError(t, err)
	require.False(t, updated.UpdatedAt.After(lic.UpdatedAt))

	// no audit row beyond the create
	require.Len(t, auditRows(t, db, lic.ID), 1)

	// same key resubmitted is also a no-op
	same := "AAA-111"
	_, err = svc.Update(ctx, lic.ID, UpdateInput{Key: &same})
	require.NoError(t, err)
	require.Len(t, auditRows(t, db, lic.ID), 1)
}

func TestUpdateLicenseClearsDeviceBinding(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	mac := "00:11:22:33:44:55"
	lic := mustCreate(t, svc, CreateInput{Key: "AAA-111", MacID: &mac, Credit: 100, Active: true})

	empty := ""
	updated, err := svc.Update(ctx, lic.ID, UpdateInput{MacID: &empty})
	require.NoError(t, err)
	require.Nil(t, updated.MacID)
}

func TestUpdateLicenseKeyConflict(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	mustCreate(t, svc, CreateInput{Key: "AAA-111", Credit: 10, Active: true})
	lic := mustCreate(t, svc, CreateInput{Key: "BBB-222", Credit: 10, Active: true})

	taken := "AAA-111"
	_, err := svc.Update(ctx, lic.ID, UpdateInput{Key: &taken})
	require.Error(t, err)
	require.Equal(t, errutil.StatusConflict, errutil.StatusOf(err))
}

func TestUpdateLicenseNotFound(t *testing.T) {
	svc, _ := newTestService(t)

	credit := int64(1)
	_, err := svc.Update(context.Background(), "missing", UpdateInput{Credit: &credit})
	require.Error(t, err)
	require.Equal(t, errutil.StatusNotFound, errutil.StatusOf(err))
}

func TestDeleteLicense(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	lic := mustCreate(t, svc, CreateInput{Key: "AAA-111", Credit: 10, Active: true})
	require.NoError(t, svc.Delete(ctx, lic.ID))

	_, err := svc.Get(ctx, lic.ID)
	require.Equal(t, errutil.StatusNotFound, errutil.StatusOf(err))

	// the audit trail survives the row
	rows := auditRows(t, db, lic.ID)
	require.Len(t, rows, 2)
	require.Equal(t, activity.ActionDelete, rows[1].Action)
}

func TestDeleteLicenseNotFound(t *testing.T) {
	svc, _ := newTestService(t)

	err := svc.Delete(context.Background(), "missing")
	require.Error(t, err)
	require.Equal(t, errutil.StatusNotFound, errutil.StatusOf(err))
}

func TestApplyCreditDelta(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	lic := mustCreate(t, svc, CreateInput{Key: "AAA-111", Credit: 100, Active: true})

	balance, err := svc.ApplyCreditDelta(ctx, lic.ID, 40)
	require.NoError(t, err)
	require.Equal(t, int64(140), balance)

	balance, err = svc.ApplyCreditDelta(ctx, lic.ID, -90)
	require.NoError(t, err)
	require.Equal(t, int64(50), balance)

	rows := auditRows(t, db, lic.ID)
	require.Len(t, rows, 3)
	require.Equal(t, activity.ActionCreditDelta, rows[1].Action)
	require.NotNil(t, rows[2].CharCount)
	require.Equal(t, int64(90), *rows[2].CharCount)
}

func TestApplyCreditDeltaRejectsOverdraw(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	lic := mustCreate(t, svc, CreateInput{Key: "AAA-111", Credit: 30, Active: true})

	_, err := svc.ApplyCreditDelta(ctx, lic.ID, -31)
	require.Error(t, err)
	require.Equal(t, errutil.StatusInvalidOperation, errutil.StatusOf(err))

	// the rejected mutation must leave neither balance nor audit behind
	got, err := svc.Get(ctx, lic.ID)
	require.NoError(t, err)
	require.Equal(t, int64(30), got.Credit)
	require.Len(t, auditRows(t, db, lic.ID), 1)
}

func TestApplyCreditDeltaZero(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	lic := mustCreate(t, svc, CreateInput{Key: "AAA-111", Credit: 30, Active: true})

	balance, err := svc.ApplyCreditDelta(ctx, lic.ID, 0)
	require.NoError(t, err)
	require.Equal(t, int64(30), balance)
	require.Len(t, auditRows(t, db, lic.ID), 2)
}

func TestApplyCreditDeltaConcurrent(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	lic := mustCreate(t, svc, CreateInput{Key: "AAA-111", Credit: 0, Active: true})

	const workers = 8
	const perWorker = 5

	errs := make(chan error, workers*perWorker)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				_, err := svc.ApplyCreditDelta(ctx, lic.ID, 1)
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err := svc.Get(ctx, lic.ID)
	require.NoError(t, err)
	require.Equal(t, int64(workers*perWorker), got.Credit)
}

func TestToggleActive(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	lic := mustCreate(t, svc, CreateInput{Key: "AAA-111", Credit: 10, Active: true})

	active, err := svc.ToggleActive(ctx, lic.ID)
	require.NoError(t, err)
	require.False(t, active)

	active, err = svc.ToggleActive(ctx, lic.ID)
	require.NoError(t, err)
	require.True(t, active)

	rows := auditRows(t, db, lic.ID)
	require.Len(t, rows, 3)
	require.Equal(t, activity.ActionToggle, rows[1].Action)
	require.Equal(t, activity.ActionToggle, rows[2].Action)
}

func TestListLicensesFilters(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	mac := "AA:BB:CC:DD:EE:FF"
	mustCreate(t, svc, CreateInput{Key: "alpha-key", Credit: 100, Active: true})
	mustCreate(t, svc, CreateInput{Key: "beta-key", MacID: &mac, Credit: 300, Active: false})
	mustCreate(t, svc, CreateInput{Key: "gamma-key", Credit: 500, Active: true})

	rows, err := svc.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, rows, 3)

	// substring match is case-insensitive and covers key and mac_id
	rows, err = svc.List(ctx, Filter{Query: "BETA"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "beta-key", rows[0].Key)

	rows, err = svc.List(ctx, Filter{Query: "dd:ee"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "beta-key", rows[0].Key)

	min := int64(300)
	rows, err = svc.List(ctx, Filter{MinCredit: &min})
	require.NoError(t, err)
	require.Len(t, rows, 2)

	max := int64(300)
	rows, err = svc.List(ctx, Filter{MinCredit: &min, MaxCredit: &max})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "beta-key", rows[0].Key)

	inactive := false
	rows, err = svc.List(ctx, Filter{Active: &inactive})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "beta-key", rows[0].Key)
}

func TestListLicensesOrderedByID(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	a := mustCreate(t, svc, CreateInput{Key: "k-1", Credit: 1, Active: true})
	b := mustCreate(t, svc, CreateInput{Key: "k-2", Credit: 2, Active: true})
	c := mustCreate(t, svc, CreateInput{Key: "k-3", Credit: 3, Active: true})

	rows, err := svc.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, []string{a.ID, b.ID, c.ID}, []string{rows[0].ID, rows[1].ID, rows[2].ID})
}
