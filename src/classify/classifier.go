package classify

import (
	"context"
	"fmt"

	"github.com/DieForGlory/process-peredach/src/crm"
	"github.com/DieForGlory/process-peredach/src/logger"
	"github.com/DieForGlory/process-peredach/src/models"
	"github.com/DieForGlory/process-peredach/src/storage"
	"github.com/DieForGlory/process-peredach/src/utils"
)

// Result holds one classification run: survey rows reconciled against CRM
// deals and bucketed into the six groups, preserving survey input order within
// each group.
type Result struct {
	Groups  map[models.GroupKey][]models.CategorizedDeal `json:"groups"`
	Skipped int                                          `json:"skipped"`

	// SyncErr is set when the status store could not be synchronized with this
	// run. The classification itself is still valid; the caller decides how to
	// surface the bookkeeping failure.
	SyncErr error `json:"-"`
}

// Deals flattens the grouped result in display-group order.
func (r *Result) Deals() []models.CategorizedDeal {
	var all []models.CategorizedDeal
	for _, group := range models.AllGroups {
		all = append(all, r.Groups[group]...)
	}
	return all
}

// Classifier reconciles surveyed areas against contractual deals and keeps the
// status store in step with the latest run.
type Classifier struct {
	deals    crm.DealLookup
	statuses storage.StatusStore
}

func NewClassifier(deals crm.DealLookup, statuses storage.StatusStore) *Classifier {
	return &Classifier{deals: deals, statuses: statuses}
}

// Classify buckets every survey record with a matching active deal in the
// house. Records without one are dropped (cadastral data routinely covers
// units with no tracked sale). A CRM failure aborts the whole run; a status
// store failure does not, see Result.SyncErr.
//
// Each classified deal's workflow row is reset to 'processing', so re-running
// classification restarts the paperwork workflow for those deals.
func (c *Classifier) Classify(ctx context.Context, houseID int64, survey []models.SurveyRecord) (*Result, error) {
	result := &Result{Groups: make(map[models.GroupKey][]models.CategorizedDeal)}
	if len(survey) == 0 {
		return result, nil
	}

	propertyIDs := make([]string, 0, len(survey))
	for _, rec := range survey {
		propertyIDs = append(propertyIDs, rec.PropertyID)
	}

	deals, err := c.deals.LookupActiveDeals(ctx, houseID, propertyIDs)
	if err != nil {
		return nil, fmt.Errorf("classification aborted, CRM lookup failed: %w", err)
	}

	var assignments []storage.RunAssignment
	for _, rec := range survey {
		deal, ok := deals[rec.PropertyID]
		if !ok {
			result.Skipped++
			logger.L.Info("Survey row skipped: no active deal for unit", "houseID", houseID, "propertyID", rec.PropertyID)
			continue
		}

		areaDiff := utils.RoundFloat(rec.Area-deal.ContractArea, 2)
		group := models.GroupForDeal(deal.HasDebt, areaDiff)

		result.Groups[group] = append(result.Groups[group], models.CategorizedDeal{
			DealID:     deal.DealID,
			PropertyID: rec.PropertyID,
			AreaDiff:   areaDiff,
			ClientID:   deal.ClientID,
			ClientName: deal.ClientName,
			Group:      group,
		})
		assignments = append(assignments, storage.RunAssignment{DealID: deal.DealID, Group: group})
	}

	if err := c.statuses.ResetForRun(ctx, assignments); err != nil {
		logger.L.Error("Failed to synchronize status store with classification run", "houseID", houseID, "error", err)
		result.SyncErr = err
	}

	logger.L.Info("Classification run complete", "houseID", houseID,
		"classified", len(assignments), "skipped", result.Skipped, "groups", len(result.Groups))
	return result, nil
}
