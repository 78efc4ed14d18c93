package services

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/DieForGlory/process-peredach/src/models"
)

var (
	// ErrParsingFailed wraps survey workbook parsing errors.
	ErrParsingFailed = errors.New("failed to parse survey file")
	// ErrRunNotFound means the run id is unknown or the run has expired.
	ErrRunNotFound = errors.New("classification run not found or expired")
	// ErrDealNotInRun means the requested deal is not part of the cached run.
	ErrDealNotInRun = errors.New("deal not found in classification run")
)

// RunResult is one classification run, addressable by RunID for as long as it
// stays in the run registry. The run id is the explicit handle the operator's
// follow-up calls (listings, archives, documents) carry.
type RunResult struct {
	RunID     string                                       `json:"run_id"`
	HouseID   int64                                        `json:"house_id"`
	Groups    map[models.GroupKey][]models.CategorizedDeal `json:"groups"`
	Skipped   int                                          `json:"skipped"`
	CreatedAt time.Time                                    `json:"created_at"`

	// StatusSyncFailed is set when workflow bookkeeping could not be persisted
	// for this run; the categorized result itself is still valid.
	StatusSyncFailed bool `json:"status_sync_failed,omitempty"`

	// SurveyAreas keeps the raw uploaded areas by unit for exports.
	SurveyAreas map[string]float64 `json:"-"`
}

// Deals flattens the run's groups in display order.
func (r *RunResult) Deals() []models.CategorizedDeal {
	var all []models.CategorizedDeal
	for _, group := range models.AllGroups {
		all = append(all, r.Groups[group]...)
	}
	return all
}

// SurveyService defines the interface for the survey-to-classification
// pipeline.
type SurveyService interface {
	ProcessSurvey(ctx context.Context, fileReader io.Reader, houseID int64) (*RunResult, error)
	Run(runID string) (*RunResult, error)
	RunDeal(runID string, group models.GroupKey, propertyID string) (*models.CategorizedDeal, error)
}
