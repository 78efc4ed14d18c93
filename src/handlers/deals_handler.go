package handlers

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/DieForGlory/process-peredach/src/config"
	"github.com/DieForGlory/process-peredach/src/crm"
	"github.com/DieForGlory/process-peredach/src/logger"
	"github.com/DieForGlory/process-peredach/src/models"
	"github.com/DieForGlory/process-peredach/src/services"
	"github.com/DieForGlory/process-peredach/src/storage"
	"github.com/DieForGlory/process-peredach/src/utils"
	"github.com/DieForGlory/process-peredach/src/workflow"
)

type DealsHandler struct {
	surveyService services.SurveyService
	crmRepo       *crm.Repository
	statusStore   storage.StatusStore
}

func NewDealsHandler(surveyService services.SurveyService, crmRepo *crm.Repository, statusStore storage.StatusStore) *DealsHandler {
	return &DealsHandler{surveyService: surveyService, crmRepo: crmRepo, statusStore: statusStore}
}

type dealsPage struct {
	Deals      []models.DealListItem      `json:"deals"`
	GroupNames map[models.GroupKey]string `json:"group_names"`
	Page       int                        `json:"page"`
	TotalPages int                        `json:"total_pages"`
	Total      int                        `json:"total"`
}

// HandleGetRunDeals returns one page of a run's deals, optionally filtered by
// group, enriched with workflow statuses and deadlines. Statuses are read
// fresh on every call.
func (h *DealsHandler) HandleGetRunDeals(w http.ResponseWriter, r *http.Request) {
	run, err := h.surveyService.Run(r.PathValue("runID"))
	if err != nil {
		utils.SendJSONError(w, "classification run not found or expired, please re-upload the survey", http.StatusNotFound)
		return
	}

	allDeals := run.Deals()
	if groupFilter := models.GroupKey(r.URL.Query().Get("group_key")); groupFilter != "" {
		if !groupFilter.Valid() {
			utils.SendJSONError(w, "unknown group_key", http.StatusBadRequest)
			return
		}
		allDeals = run.Groups[groupFilter]
	}

	perPage := config.Cfg.DealsPerPage
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	total := len(allDeals)
	totalPages := int(math.Ceil(float64(total) / float64(perPage)))

	start := (page - 1) * perPage
	if start > total {
		start = total
	}
	end := start + perPage
	if end > total {
		end = total
	}
	pageDeals := allDeals[start:end]

	dealIDs := make([]int64, 0, len(pageDeals))
	for _, d := range pageDeals {
		dealIDs = append(dealIDs, d.DealID)
	}
	statuses, err := h.statusStore.GetMany(r.Context(), dealIDs)
	if err != nil {
		logger.L.Error("Error fetching workflow statuses", "runID", run.RunID, "error", err)
		utils.SendJSONError(w, "Error fetching workflow statuses", http.StatusInternalServerError)
		return
	}

	now := time.Now().UTC()
	items := make([]models.DealListItem, 0, len(pageDeals))
	for _, d := range pageDeals {
		diff := d.AreaDiff
		item := models.DealListItem{
			DealID:     d.DealID,
			PropertyID: d.PropertyID,
			ClientName: d.ClientName,
			AreaDiff:   &diff,
			Group:      d.Group,
		}
		enrichWithStatus(&item, statuses[d.DealID], now)
		items = append(items, item)
	}

	utils.SendJSON(w, dealsPage{
		Deals:      items,
		GroupNames: models.GroupNames,
		Page:       page,
		TotalPages: totalPages,
		Total:      total,
	}, http.StatusOK)
}

// HandleGetDeals returns one page of the CRM-wide deals listing, enriched with
// local workflow statuses where present.
func (h *DealsHandler) HandleGetDeals(w http.ResponseWriter, r *http.Request) {
	filter := crm.DealFilter{ComplexName: r.URL.Query().Get("complex_name")}
	if houseIDStr := r.URL.Query().Get("house_id"); houseIDStr != "" {
		houseID, err := strconv.ParseInt(houseIDStr, 10, 64)
		if err != nil {
			utils.SendJSONError(w, "invalid house_id", http.StatusBadRequest)
			return
		}
		filter.HouseID = houseID
	}

	perPage := config.Cfg.DealsPerPage
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}

	items, total, err := h.crmRepo.FilteredDeals(r.Context(), filter, page, perPage)
	if err != nil {
		logger.L.Error("Error fetching deals from CRM", "error", err)
		utils.SendJSONError(w, "Error fetching deals from CRM", http.StatusBadGateway)
		return
	}

	dealIDs := make([]int64, 0, len(items))
	for _, item := range items {
		dealIDs = append(dealIDs, item.DealID)
	}
	statuses, err := h.statusStore.GetMany(r.Context(), dealIDs)
	if err != nil {
		logger.L.Error("Error fetching workflow statuses for deals page", "error", err)
		utils.SendJSONError(w, "Error fetching workflow statuses", http.StatusInternalServerError)
		return
	}

	now := time.Now().UTC()
	for i := range items {
		enrichWithStatus(&items[i], statuses[items[i].DealID], now)
	}
	if items == nil {
		items = []models.DealListItem{}
	}

	utils.SendJSON(w, dealsPage{
		Deals:      items,
		GroupNames: models.GroupNames,
		Page:       page,
		TotalPages: int(math.Ceil(float64(total) / float64(perPage))),
		Total:      total,
	}, http.StatusOK)
}

func enrichWithStatus(item *models.DealListItem, st *models.DealStatus, now time.Time) {
	if st == nil {
		return
	}
	item.Workflow = st
	if item.Group == "" {
		item.Group = st.Group
	}
	if deadline := workflow.Deadline(st); deadline != nil {
		item.DeadlineISO = deadline.Format(time.RFC3339)
		item.IsTimedOut = workflow.IsTimedOut(st, now)
	}
}
