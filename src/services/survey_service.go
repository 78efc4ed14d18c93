package services

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/DieForGlory/process-peredach/src/classify"
	"github.com/DieForGlory/process-peredach/src/logger"
	"github.com/DieForGlory/process-peredach/src/models"
	"github.com/DieForGlory/process-peredach/src/parsers"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

const ckRun = "run_%s"

type surveyServiceImpl struct {
	parser     parsers.SurveyParser
	classifier *classify.Classifier
	runCache   *cache.Cache
	runTTL     time.Duration
}

func NewSurveyService(
	parser parsers.SurveyParser,
	classifier *classify.Classifier,
	runCache *cache.Cache,
	runTTL time.Duration,
) SurveyService {
	return &surveyServiceImpl{
		parser:     parser,
		classifier: classifier,
		runCache:   runCache,
		runTTL:     runTTL,
	}
}

// ProcessSurvey runs the full pipeline: parse the uploaded workbook, classify
// against the CRM, register the result under a fresh run id.
func (s *surveyServiceImpl) ProcessSurvey(ctx context.Context, fileReader io.Reader, houseID int64) (*RunResult, error) {
	overallStartTime := time.Now()
	logger.L.Info("ProcessSurvey START", "houseID", houseID)

	records, err := s.parser.Parse(fileReader)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParsingFailed, err)
	}

	result, err := s.classifier.Classify(ctx, houseID, records)
	if err != nil {
		return nil, err
	}

	surveyAreas := make(map[string]float64, len(records))
	for _, rec := range records {
		surveyAreas[rec.PropertyID] = rec.Area
	}

	run := &RunResult{
		RunID:            uuid.NewString(),
		HouseID:          houseID,
		Groups:           result.Groups,
		Skipped:          result.Skipped,
		CreatedAt:        time.Now().UTC(),
		StatusSyncFailed: result.SyncErr != nil,
		SurveyAreas:      surveyAreas,
	}
	s.runCache.Set(fmt.Sprintf(ckRun, run.RunID), run, s.runTTL)

	logger.L.Info("ProcessSurvey END", "houseID", houseID, "runID", run.RunID,
		"surveyRows", len(records), "skipped", run.Skipped, "duration", time.Since(overallStartTime))
	return run, nil
}

func (s *surveyServiceImpl) Run(runID string) (*RunResult, error) {
	if cached, found := s.runCache.Get(fmt.Sprintf(ckRun, runID)); found {
		return cached.(*RunResult), nil
	}
	return nil, ErrRunNotFound
}

func (s *surveyServiceImpl) RunDeal(runID string, group models.GroupKey, propertyID string) (*models.CategorizedDeal, error) {
	run, err := s.Run(runID)
	if err != nil {
		return nil, err
	}
	for _, deal := range run.Groups[group] {
		if deal.PropertyID == propertyID {
			return &deal, nil
		}
	}
	return nil, ErrDealNotInRun
}
