package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/DieForGlory/process-peredach/src/config"
	"github.com/DieForGlory/process-peredach/src/crm"
	"github.com/DieForGlory/process-peredach/src/export"
	"github.com/DieForGlory/process-peredach/src/logger"
	"github.com/DieForGlory/process-peredach/src/security/validation"
	"github.com/DieForGlory/process-peredach/src/services"
	"github.com/DieForGlory/process-peredach/src/utils"
)

const (
	mimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	mimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	mimeZIP  = "application/zip"
)

type SurveyHandler struct {
	surveyService services.SurveyService
	crmRepo       *crm.Repository
}

func NewSurveyHandler(surveyService services.SurveyService, crmRepo *crm.Repository) *SurveyHandler {
	return &SurveyHandler{surveyService: surveyService, crmRepo: crmRepo}
}

// HandleGetHouses returns all houses grouped by residential complex, for the
// upload screen filters.
func (h *SurveyHandler) HandleGetHouses(w http.ResponseWriter, r *http.Request) {
	houses, err := h.crmRepo.ComplexesAndHouses(r.Context())
	if err != nil {
		logger.L.Error("Error fetching houses from CRM", "error", err)
		utils.SendJSONError(w, "Error fetching houses from CRM", http.StatusBadGateway)
		return
	}
	utils.SendJSON(w, houses, http.StatusOK)
}

// HandleGetSurveyTemplate streams the survey template workbook for a house.
func (h *SurveyHandler) HandleGetSurveyTemplate(w http.ResponseWriter, r *http.Request) {
	houseID, err := strconv.ParseInt(r.PathValue("houseID"), 10, 64)
	if err != nil {
		utils.SendJSONError(w, "invalid house id", http.StatusBadRequest)
		return
	}

	flats, err := h.crmRepo.ApartmentsForHouse(r.Context(), houseID)
	if err != nil {
		logger.L.Error("Error fetching apartments for template", "houseID", houseID, "error", err)
		utils.SendJSONError(w, "Error fetching apartments from CRM", http.StatusBadGateway)
		return
	}
	if len(flats) == 0 {
		utils.SendJSONError(w, "no apartments with active deals in the selected house", http.StatusNotFound)
		return
	}

	buf, err := export.SurveyTemplate(flats)
	if err != nil {
		logger.L.Error("Error generating survey template", "houseID", houseID, "error", err)
		utils.SendJSONError(w, "Error generating survey template", http.StatusInternalServerError)
		return
	}

	sendAttachment(w, buf.Bytes(), fmt.Sprintf("template_house_%d.xlsx", houseID), mimeXLSX)
}

// HandleProcessSurvey accepts the filled survey workbook, runs classification
// and returns the run handle with the categorized result.
func (h *SurveyHandler) HandleProcessSurvey(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(config.Cfg.MaxUploadSizeBytes); err != nil {
		logger.L.Warn("Failed to parse multipart form or request too large", "error", err, "limit", config.Cfg.MaxUploadSizeBytes)
		utils.SendJSONError(w, fmt.Sprintf("Failed to parse form or request too large (max %d MB)", config.Cfg.MaxUploadSizeBytes/(1024*1024)), http.StatusBadRequest)
		return
	}

	houseID, err := strconv.ParseInt(r.FormValue("house_id"), 10, 64)
	if err != nil {
		utils.SendJSONError(w, "house_id form field is required and must be an integer", http.StatusBadRequest)
		return
	}

	file, fileHeader, err := r.FormFile("survey_file")
	if err != nil {
		logger.L.Warn("Failed to retrieve survey file from request", "error", err)
		utils.SendJSONError(w, "Failed to retrieve file from request. Ensure 'survey_file' field is used.", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if fileHeader.Size > config.Cfg.MaxUploadSizeBytes {
		utils.SendJSONError(w, fmt.Sprintf("File too large, max %d MB", config.Cfg.MaxUploadSizeBytes/(1024*1024)), http.StatusBadRequest)
		return
	}
	if err := validation.ValidateSurveyContentType(fileHeader.Header.Get("Content-Type")); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := validation.ValidateXLSXMagicBytes(file); err != nil {
		logger.L.Warn("Survey upload failed magic byte validation", "filename", fileHeader.Filename, "error", err)
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	logger.L.Info("Processing survey upload", "houseID", houseID, "filename", fileHeader.Filename)
	run, err := h.surveyService.ProcessSurvey(r.Context(), file, houseID)
	if err != nil {
		if errors.Is(err, services.ErrParsingFailed) {
			logger.L.Warn("Survey upload rejected", "filename", fileHeader.Filename, "error", err)
			utils.SendJSONError(w, fmt.Sprintf("Error reading survey file: %v", err), http.StatusBadRequest)
		} else {
			logger.L.Error("Internal error processing survey upload", "houseID", houseID, "error", err)
			utils.SendJSONError(w, "An internal error occurred while processing the survey. Please try again later.", http.StatusBadGateway)
		}
		return
	}

	utils.SendJSON(w, run, http.StatusOK)
}

// HandleGetRun returns the full categorized result of a run.
func (h *SurveyHandler) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.surveyService.Run(r.PathValue("runID"))
	if err != nil {
		utils.SendJSONError(w, "classification run not found or expired, please re-upload the survey", http.StatusNotFound)
		return
	}
	utils.SendJSON(w, run, http.StatusOK)
}

// HandleGetCheckerboard streams the three-sheet reconciliation workbook for a
// run.
func (h *SurveyHandler) HandleGetCheckerboard(w http.ResponseWriter, r *http.Request) {
	run, err := h.surveyService.Run(r.PathValue("runID"))
	if err != nil {
		utils.SendJSONError(w, "classification run not found or expired, please re-upload the survey", http.StatusNotFound)
		return
	}

	units, err := h.crmRepo.UnitsForHouse(r.Context(), run.HouseID)
	if err != nil {
		logger.L.Error("Error fetching units for checkerboard", "houseID", run.HouseID, "error", err)
		utils.SendJSONError(w, "Error fetching units from CRM", http.StatusBadGateway)
		return
	}

	areaDiffs := make(map[string]float64)
	for _, deal := range run.Deals() {
		areaDiffs[deal.PropertyID] = deal.AreaDiff
	}

	buf, err := export.Checkerboard(units, run.SurveyAreas, areaDiffs)
	if err != nil {
		logger.L.Error("Error generating checkerboard", "runID", run.RunID, "error", err)
		utils.SendJSONError(w, "Error generating checkerboard workbook", http.StatusInternalServerError)
		return
	}

	sendAttachment(w, buf.Bytes(), fmt.Sprintf("checkerboard_house_%d.xlsx", run.HouseID), mimeXLSX)
}

func sendAttachment(w http.ResponseWriter, data []byte, filename, contentType string) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	if _, err := w.Write(data); err != nil {
		logger.L.Error("Error streaming attachment", "filename", filename, "error", err)
	}
}
