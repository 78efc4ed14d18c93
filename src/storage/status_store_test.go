package storage

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/DieForGlory/process-peredach/src/database"
	"github.com/DieForGlory/process-peredach/src/logger"
	"github.com/DieForGlory/process-peredach/src/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	logger.InitLogger("error")
}

func newTestStore(t *testing.T) *SQLStatusStore {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "statuses.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.EnsureSchema(db))
	return NewSQLStatusStore(db)
}

func boolPtr(b bool) *bool { return &b }

func TestGetMissingDeal(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Get(context.Background(), 404)
	assert.ErrorIs(t, err, ErrStatusNotFound)
}

func TestSaveAndGetRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	delivered := time.Date(2025, 5, 10, 9, 30, 0, 0, time.UTC)
	arrived := delivered.Add(48 * time.Hour)
	st := &models.DealStatus{
		DealID:                    7,
		Group:                     models.GroupDebtAndIncrease,
		Status:                    models.StatusAcceptancePending,
		DocumentsDeliveredAt:      &delivered,
		ClientArrivedAt:           &arrived,
		IsActSigned:               boolPtr(true),
		HasDefectList:             boolPtr(false),
		UnilateralActUploadedPath: "uploads/unilateral_act_deal_7.pdf",
	}
	require.NoError(t, store.Save(ctx, st))

	got, err := store.Get(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, models.GroupDebtAndIncrease, got.Group)
	assert.Equal(t, models.StatusAcceptancePending, got.Status)
	require.NotNil(t, got.DocumentsDeliveredAt)
	assert.True(t, got.DocumentsDeliveredAt.Equal(delivered))
	require.NotNil(t, got.ClientArrivedAt)
	assert.True(t, got.ClientArrivedAt.Equal(arrived))
	require.NotNil(t, got.IsActSigned)
	assert.True(t, *got.IsActSigned)
	require.NotNil(t, got.HasDefectList)
	assert.False(t, *got.HasDefectList)
	assert.Equal(t, "uploads/unilateral_act_deal_7.pdf", got.UnilateralActUploadedPath)
	assert.Nil(t, got.UnilateralActDownloadedAt)
	assert.Empty(t, got.SignedActUploadedPath)
}

func TestSaveIsAnUpsert(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	st := &models.DealStatus{DealID: 1, Group: models.GroupNoIssues, Status: models.StatusProcessing}
	require.NoError(t, store.Save(ctx, st))

	st.Status = models.StatusCompleted
	st.SignedActUploadedPath = "uploads/signed_act_deal_1.pdf"
	require.NoError(t, store.Save(ctx, st))

	got, err := store.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, got.Status)
	assert.Equal(t, "uploads/signed_act_deal_1.pdf", got.SignedActUploadedPath)
}

func TestGetMany(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for id := int64(1); id <= 3; id++ {
		require.NoError(t, store.Save(ctx, &models.DealStatus{
			DealID: id, Group: models.GroupNoIssues, Status: models.StatusProcessing,
		}))
	}

	got, err := store.GetMany(ctx, []int64{1, 3, 99})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Contains(t, got, int64(1))
	assert.Contains(t, got, int64(3))
	assert.NotContains(t, got, int64(99))

	empty, err := store.GetMany(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestResetForRunCreatesFreshRows(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.ResetForRun(ctx, []RunAssignment{
		{DealID: 1, Group: models.GroupNoIssues},
		{DealID: 2, Group: models.GroupDebtOnly},
	})
	require.NoError(t, err)

	got, err := store.GetMany(ctx, []int64{1, 2})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, models.GroupNoIssues, got[1].Group)
	assert.Equal(t, models.GroupDebtOnly, got[2].Group)
	for _, st := range got {
		assert.Equal(t, models.StatusProcessing, st.Status)
	}
}

func TestResetForRunWipesWorkflowProgress(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	delivered := time.Now().UTC()
	require.NoError(t, store.Save(ctx, &models.DealStatus{
		DealID:                    5,
		Group:                     models.GroupIncreaseOnly,
		Status:                    models.StatusCompleted,
		DocumentsDeliveredAt:      &delivered,
		IsActSigned:               boolPtr(true),
		HasDefectList:             boolPtr(true),
		SignedActUploadedPath:     "uploads/signed_act_deal_5.pdf",
		DefectListUploadedPath:    "uploads/defect_list_deal_5.pdf",
		UnilateralActUploadedPath: "uploads/unilateral_act_deal_5.pdf",
	}))

	// A second survey run reassigns the deal; all its progress is dropped.
	require.NoError(t, store.ResetForRun(ctx, []RunAssignment{{DealID: 5, Group: models.GroupDebtOnly}}))

	got, err := store.Get(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, models.GroupDebtOnly, got.Group)
	assert.Equal(t, models.StatusProcessing, got.Status)
	assert.Nil(t, got.DocumentsDeliveredAt)
	assert.Nil(t, got.IsActSigned)
	assert.Nil(t, got.HasDefectList)
	assert.Empty(t, got.SignedActUploadedPath)
	assert.Empty(t, got.DefectListUploadedPath)
	assert.Empty(t, got.UnilateralActUploadedPath)
}

func TestResetForRunLeavesUnassignedDealsAlone(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &models.DealStatus{
		DealID: 10, Group: models.GroupNoIssues, Status: models.StatusCompleted,
	}))
	require.NoError(t, store.ResetForRun(ctx, []RunAssignment{{DealID: 11, Group: models.GroupDebtOnly}}))

	untouched, err := store.Get(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, untouched.Status)
}

func TestResetForRunEmptyIsNoOp(t *testing.T) {
	store := newTestStore(t)
	assert.NoError(t, store.ResetForRun(context.Background(), nil))
}
