package services

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/DieForGlory/process-peredach/src/classify"
	"github.com/DieForGlory/process-peredach/src/logger"
	"github.com/DieForGlory/process-peredach/src/models"
	"github.com/DieForGlory/process-peredach/src/storage"
	"github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	logger.InitLogger("error")
}

type stubParser struct {
	records []models.SurveyRecord
	err     error
}

func (p *stubParser) Parse(file io.Reader) ([]models.SurveyRecord, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.records, nil
}

type stubDealLookup struct {
	deals map[string]models.ContractualDeal
}

func (s *stubDealLookup) LookupActiveDeals(ctx context.Context, houseID int64, propertyIDs []string) (map[string]models.ContractualDeal, error) {
	return s.deals, nil
}

type stubStatusStore struct{}

func (s *stubStatusStore) Get(ctx context.Context, dealID int64) (*models.DealStatus, error) {
	return nil, storage.ErrStatusNotFound
}

func (s *stubStatusStore) GetMany(ctx context.Context, dealIDs []int64) (map[int64]*models.DealStatus, error) {
	return map[int64]*models.DealStatus{}, nil
}

func (s *stubStatusStore) Save(ctx context.Context, st *models.DealStatus) error { return nil }

func (s *stubStatusStore) ResetForRun(ctx context.Context, assignments []storage.RunAssignment) error {
	return nil
}

func newTestService(parser *stubParser, ttl time.Duration) SurveyService {
	classifier := classify.NewClassifier(&stubDealLookup{deals: map[string]models.ContractualDeal{
		"1": {DealID: 101, PropertyID: "1", ContractArea: 50.0, ClientName: "Иванов"},
		"2": {DealID: 102, PropertyID: "2", ContractArea: 48.0, HasDebt: true},
	}}, &stubStatusStore{})
	return NewSurveyService(parser, classifier, cache.New(ttl, time.Minute), ttl)
}

func TestProcessSurveyRegistersRun(t *testing.T) {
	parser := &stubParser{records: []models.SurveyRecord{
		{PropertyID: "1", Area: 50.0},
		{PropertyID: "2", Area: 48.0},
	}}
	svc := newTestService(parser, time.Minute)

	run, err := svc.ProcessSurvey(context.Background(), strings.NewReader("workbook"), 7)
	require.NoError(t, err)
	assert.NotEmpty(t, run.RunID)
	assert.Equal(t, int64(7), run.HouseID)
	assert.False(t, run.StatusSyncFailed)
	assert.Len(t, run.Deals(), 2)
	assert.InDelta(t, 50.0, run.SurveyAreas["1"], 1e-9)

	// The run id is the handle for follow-up calls.
	fetched, err := svc.Run(run.RunID)
	require.NoError(t, err)
	assert.Equal(t, run.RunID, fetched.RunID)
}

func TestProcessSurveyWrapsParseErrors(t *testing.T) {
	parser := &stubParser{err: errors.New("not a workbook")}
	svc := newTestService(parser, time.Minute)

	_, err := svc.ProcessSurvey(context.Background(), strings.NewReader("junk"), 7)
	assert.ErrorIs(t, err, ErrParsingFailed)
}

func TestRunUnknownID(t *testing.T) {
	svc := newTestService(&stubParser{}, time.Minute)
	_, err := svc.Run("no-such-run")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestRunExpires(t *testing.T) {
	parser := &stubParser{records: []models.SurveyRecord{{PropertyID: "1", Area: 50.0}}}
	svc := newTestService(parser, time.Nanosecond)

	run, err := svc.ProcessSurvey(context.Background(), strings.NewReader("workbook"), 7)
	require.NoError(t, err)

	time.Sleep(time.Millisecond)
	_, err = svc.Run(run.RunID)
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestRunDeal(t *testing.T) {
	parser := &stubParser{records: []models.SurveyRecord{
		{PropertyID: "1", Area: 50.0},
		{PropertyID: "2", Area: 48.0},
	}}
	svc := newTestService(parser, time.Minute)

	run, err := svc.ProcessSurvey(context.Background(), strings.NewReader("workbook"), 7)
	require.NoError(t, err)

	deal, err := svc.RunDeal(run.RunID, models.GroupNoIssues, "1")
	require.NoError(t, err)
	assert.Equal(t, int64(101), deal.DealID)
	assert.Equal(t, "Иванов", deal.ClientName)

	_, err = svc.RunDeal(run.RunID, models.GroupNoIssues, "999")
	assert.ErrorIs(t, err, ErrDealNotInRun)

	// Wrong group is just as absent as a wrong unit.
	_, err = svc.RunDeal(run.RunID, models.GroupIncreaseOnly, "1")
	assert.ErrorIs(t, err, ErrDealNotInRun)
}
