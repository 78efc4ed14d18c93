package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/DieForGlory/process-peredach/src/documents"
	"github.com/DieForGlory/process-peredach/src/logger"
	"github.com/DieForGlory/process-peredach/src/models"
	"github.com/DieForGlory/process-peredach/src/services"
	"github.com/DieForGlory/process-peredach/src/utils"
)

type DocumentsHandler struct {
	surveyService services.SurveyService
}

func NewDocumentsHandler(surveyService services.SurveyService) *DocumentsHandler {
	return &DocumentsHandler{surveyService: surveyService}
}

// HandleGetGroupArchive streams a zip with one notification document per deal
// in the requested group of a run.
func (h *DocumentsHandler) HandleGetGroupArchive(w http.ResponseWriter, r *http.Request) {
	group := models.GroupKey(r.PathValue("groupKey"))
	if !group.Valid() {
		utils.SendJSONError(w, "unknown group_key", http.StatusBadRequest)
		return
	}

	run, err := h.surveyService.Run(r.PathValue("runID"))
	if err != nil {
		utils.SendJSONError(w, "classification run not found or expired, please re-upload the survey", http.StatusNotFound)
		return
	}

	buf, err := documents.GroupArchive(run.Groups[group], group)
	if err != nil {
		logger.L.Error("Error generating group archive", "runID", run.RunID, "group", group, "error", err)
		utils.SendJSONError(w, "Error generating notification archive", http.StatusInternalServerError)
		return
	}

	sendAttachment(w, buf.Bytes(), fmt.Sprintf("archive_%s.zip", group), mimeZIP)
}

// HandleGetNotification streams the notification document for one deal of a
// run.
func (h *DocumentsHandler) HandleGetNotification(w http.ResponseWriter, r *http.Request) {
	group := models.GroupKey(r.PathValue("groupKey"))
	if !group.Valid() {
		utils.SendJSONError(w, "unknown group_key", http.StatusBadRequest)
		return
	}

	deal, err := h.surveyService.RunDeal(r.PathValue("runID"), group, r.PathValue("propertyID"))
	if err != nil {
		if errors.Is(err, services.ErrRunNotFound) {
			utils.SendJSONError(w, "classification run not found or expired, please re-upload the survey", http.StatusNotFound)
		} else {
			utils.SendJSONError(w, "deal not found in this run", http.StatusNotFound)
		}
		return
	}

	buf, err := documents.Notification(*deal, group)
	if err != nil {
		logger.L.Error("Error generating notification", "propertyID", deal.PropertyID, "error", err)
		utils.SendJSONError(w, "Error generating notification document", http.StatusInternalServerError)
		return
	}

	sendAttachment(w, buf.Bytes(), fmt.Sprintf("notification_%s.docx", deal.PropertyID), mimeDOCX)
}
