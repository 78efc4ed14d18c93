package classify

import (
	"context"
	"errors"
	"testing"

	"github.com/DieForGlory/process-peredach/src/logger"
	"github.com/DieForGlory/process-peredach/src/models"
	"github.com/DieForGlory/process-peredach/src/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	logger.InitLogger("error")
}

type fakeDealLookup struct {
	deals map[string]models.ContractualDeal
	err   error
	calls int
}

func (f *fakeDealLookup) LookupActiveDeals(ctx context.Context, houseID int64, propertyIDs []string) (map[string]models.ContractualDeal, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.deals, nil
}

type fakeStatusStore struct {
	assignments []storage.RunAssignment
	resetErr    error
	resetCalls  int
}

func (f *fakeStatusStore) Get(ctx context.Context, dealID int64) (*models.DealStatus, error) {
	return nil, storage.ErrStatusNotFound
}

func (f *fakeStatusStore) GetMany(ctx context.Context, dealIDs []int64) (map[int64]*models.DealStatus, error) {
	return map[int64]*models.DealStatus{}, nil
}

func (f *fakeStatusStore) Save(ctx context.Context, st *models.DealStatus) error {
	return nil
}

func (f *fakeStatusStore) ResetForRun(ctx context.Context, assignments []storage.RunAssignment) error {
	f.resetCalls++
	if f.resetErr != nil {
		return f.resetErr
	}
	f.assignments = assignments
	return nil
}

func deal(id int64, propertyID string, contractArea float64, hasDebt bool) models.ContractualDeal {
	return models.ContractualDeal{
		DealID:       id,
		PropertyID:   propertyID,
		ContractArea: contractArea,
		HasDebt:      hasDebt,
		ClientName:   "Client " + propertyID,
	}
}

func TestClassifyBucketsAllSixGroups(t *testing.T) {
	lookup := &fakeDealLookup{deals: map[string]models.ContractualDeal{
		"1": deal(101, "1", 50.0, false), // diff 0       -> 1_no_issues
		"2": deal(102, "2", 50.0, true),  // diff 0       -> 2_debt_only
		"3": deal(103, "3", 50.0, true),  // diff +3      -> 3_debt_and_increase
		"4": deal(104, "4", 50.0, true),  // diff -3      -> 4_debt_and_decrease
		"5": deal(105, "5", 50.0, false), // diff +3      -> 5_increase_only
		"6": deal(106, "6", 50.0, false), // diff -3      -> 6_decrease_only
	}}
	store := &fakeStatusStore{}
	c := NewClassifier(lookup, store)

	survey := []models.SurveyRecord{
		{PropertyID: "1", Area: 50.0},
		{PropertyID: "2", Area: 50.0},
		{PropertyID: "3", Area: 53.0},
		{PropertyID: "4", Area: 47.0},
		{PropertyID: "5", Area: 53.0},
		{PropertyID: "6", Area: 47.0},
	}

	result, err := c.Classify(context.Background(), 7, survey)
	require.NoError(t, err)
	require.NoError(t, result.SyncErr)

	assert.Len(t, result.Groups, 6)
	for _, group := range models.AllGroups {
		require.Len(t, result.Groups[group], 1, "group %s", group)
		assert.Equal(t, group, result.Groups[group][0].Group)
	}
	assert.Equal(t, int64(103), result.Groups[models.GroupDebtAndIncrease][0].DealID)
	assert.Len(t, store.assignments, 6)
}

func TestClassifyToleranceBoundary(t *testing.T) {
	lookup := &fakeDealLookup{deals: map[string]models.ContractualDeal{
		"10": deal(110, "10", 50.0, false),
		"11": deal(111, "11", 50.0, false),
	}}
	c := NewClassifier(lookup, &fakeStatusStore{})

	// Deltas of exactly +2.0 and -2.0 stay inside the noise band.
	result, err := c.Classify(context.Background(), 7, []models.SurveyRecord{
		{PropertyID: "10", Area: 52.0},
		{PropertyID: "11", Area: 48.0},
	})
	require.NoError(t, err)
	assert.Len(t, result.Groups[models.GroupNoIssues], 2)
}

func TestClassifyAreaDiffRounding(t *testing.T) {
	lookup := &fakeDealLookup{deals: map[string]models.ContractualDeal{
		"12": deal(112, "12", 53.0, false),
	}}
	c := NewClassifier(lookup, &fakeStatusStore{})

	result, err := c.Classify(context.Background(), 7, []models.SurveyRecord{
		{PropertyID: "12", Area: 55.3},
	})
	require.NoError(t, err)

	increased := result.Groups[models.GroupIncreaseOnly]
	require.Len(t, increased, 1)
	assert.InDelta(t, 2.3, increased[0].AreaDiff, 1e-9)
	assert.Equal(t, models.GroupIncreaseOnly, increased[0].Group)
}

func TestClassifySkipsUnmatchedUnits(t *testing.T) {
	lookup := &fakeDealLookup{deals: map[string]models.ContractualDeal{
		"1": deal(101, "1", 50.0, false),
	}}
	store := &fakeStatusStore{}
	c := NewClassifier(lookup, store)

	result, err := c.Classify(context.Background(), 7, []models.SurveyRecord{
		{PropertyID: "1", Area: 50.0},
		{PropertyID: "999", Area: 44.4}, // no tracked sale for this unit
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Skipped)
	assert.Len(t, result.Deals(), 1)
	assert.Len(t, store.assignments, 1)
}

func TestClassifyEmptySurveySkipsLookup(t *testing.T) {
	lookup := &fakeDealLookup{}
	c := NewClassifier(lookup, &fakeStatusStore{})

	result, err := c.Classify(context.Background(), 7, nil)
	require.NoError(t, err)
	assert.Empty(t, result.Groups)
	assert.Equal(t, 0, lookup.calls)
}

func TestClassifyPropagatesRepositoryFailure(t *testing.T) {
	lookup := &fakeDealLookup{err: errors.New("connection refused")}
	store := &fakeStatusStore{}
	c := NewClassifier(lookup, store)

	_, err := c.Classify(context.Background(), 7, []models.SurveyRecord{{PropertyID: "1", Area: 50.0}})
	require.Error(t, err)
	assert.Equal(t, 0, store.resetCalls)
}

func TestClassifySurvivesStatusSyncFailure(t *testing.T) {
	lookup := &fakeDealLookup{deals: map[string]models.ContractualDeal{
		"1": deal(101, "1", 50.0, false),
	}}
	store := &fakeStatusStore{resetErr: errors.New("disk full")}
	c := NewClassifier(lookup, store)

	result, err := c.Classify(context.Background(), 7, []models.SurveyRecord{{PropertyID: "1", Area: 50.0}})
	require.NoError(t, err)
	assert.Error(t, result.SyncErr)
	assert.Len(t, result.Groups[models.GroupNoIssues], 1)
}

func TestClassifyIsDeterministic(t *testing.T) {
	lookup := &fakeDealLookup{deals: map[string]models.ContractualDeal{
		"1": deal(101, "1", 50.0, true),
		"2": deal(102, "2", 48.0, false),
	}}
	c := NewClassifier(lookup, &fakeStatusStore{})
	survey := []models.SurveyRecord{
		{PropertyID: "1", Area: 53.5},
		{PropertyID: "2", Area: 48.2},
	}

	first, err := c.Classify(context.Background(), 7, survey)
	require.NoError(t, err)
	second, err := c.Classify(context.Background(), 7, survey)
	require.NoError(t, err)

	assert.Equal(t, first.Groups, second.Groups)
}
