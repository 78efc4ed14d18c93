package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/DieForGlory/process-peredach/src/config"
	"github.com/DieForGlory/process-peredach/src/crm"
	"github.com/DieForGlory/process-peredach/src/documents"
	"github.com/DieForGlory/process-peredach/src/logger"
	"github.com/DieForGlory/process-peredach/src/security/validation"
	"github.com/DieForGlory/process-peredach/src/storage"
	"github.com/DieForGlory/process-peredach/src/utils"
	"github.com/DieForGlory/process-peredach/src/workflow"
)

type WorkflowHandler struct {
	engine    *workflow.Engine
	crmRepo   *crm.Repository
	uploadDir string
}

func NewWorkflowHandler(engine *workflow.Engine, crmRepo *crm.Repository, uploadDir string) *WorkflowHandler {
	return &WorkflowHandler{engine: engine, crmRepo: crmRepo, uploadDir: uploadDir}
}

// applyAction runs one workflow action and writes the uniform success/failure
// response. A deal without a status row reports 404 and nothing is created.
func (h *WorkflowHandler) applyAction(w http.ResponseWriter, r *http.Request, action workflow.Action) {
	dealID, err := strconv.ParseInt(r.PathValue("dealID"), 10, 64)
	if err != nil {
		utils.SendJSONError(w, "invalid deal id", http.StatusBadRequest)
		return
	}

	if err := h.engine.Apply(r.Context(), dealID, action); err != nil {
		if errors.Is(err, storage.ErrStatusNotFound) {
			utils.SendJSONError(w, "deal has no workflow record; classify the house first", http.StatusNotFound)
			return
		}
		logger.L.Error("Workflow action failed", "dealID", dealID, "error", err)
		utils.SendJSONError(w, "failed to update deal status", http.StatusInternalServerError)
		return
	}

	utils.SendJSON(w, map[string]string{"status": "success"}, http.StatusOK)
}

func (h *WorkflowHandler) HandleMarkDelivered(w http.ResponseWriter, r *http.Request) {
	h.applyAction(w, r, workflow.MarkDelivered{})
}

func (h *WorkflowHandler) HandleMarkArrived(w http.ResponseWriter, r *http.Request) {
	h.applyAction(w, r, workflow.MarkArrived{})
}

// HandleAcceptanceResult records the outcome of the handover visit.
func (h *WorkflowHandler) HandleAcceptanceResult(w http.ResponseWriter, r *http.Request) {
	var body struct {
		IsSigned   bool `json:"is_signed"`
		HasDefects bool `json:"has_defects"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		utils.SendJSONError(w, "invalid JSON body, expected {is_signed, has_defects}", http.StatusBadRequest)
		return
	}
	h.applyAction(w, r, workflow.ProcessAcceptance{IsSigned: body.IsSigned, HasDefects: body.HasDefects})
}

// HandleDownloadUnilateralAct generates the unilateral act for a deal and
// records the download. The document is still served when the status update
// fails: the operator needs the paper either way.
func (h *WorkflowHandler) HandleDownloadUnilateralAct(w http.ResponseWriter, r *http.Request) {
	dealID, err := strconv.ParseInt(r.PathValue("dealID"), 10, 64)
	if err != nil {
		utils.SendJSONError(w, "invalid deal id", http.StatusBadRequest)
		return
	}

	details, err := h.crmRepo.DealDetails(r.Context(), dealID)
	if err != nil {
		if errors.Is(err, crm.ErrDealNotFound) {
			utils.SendJSONError(w, "deal not found in CRM", http.StatusNotFound)
		} else {
			logger.L.Error("Error fetching deal details from CRM", "dealID", dealID, "error", err)
			utils.SendJSONError(w, "Error fetching deal details from CRM", http.StatusBadGateway)
		}
		return
	}

	if err := h.engine.Apply(r.Context(), dealID, workflow.ActDownloaded{}); err != nil {
		logger.L.Warn("Could not record unilateral act download", "dealID", dealID, "error", err)
	}

	buf, err := documents.UnilateralAct(details)
	if err != nil {
		logger.L.Error("Error generating unilateral act", "dealID", dealID, "error", err)
		utils.SendJSONError(w, "Error generating unilateral act", http.StatusInternalServerError)
		return
	}
	sendAttachment(w, buf.Bytes(), fmt.Sprintf("unilateral_act_deal_%d.docx", dealID), mimeDOCX)
}

// HandleDownloadAcceptanceAct generates the acceptance act and records the
// download.
func (h *WorkflowHandler) HandleDownloadAcceptanceAct(w http.ResponseWriter, r *http.Request) {
	dealID, err := strconv.ParseInt(r.PathValue("dealID"), 10, 64)
	if err != nil {
		utils.SendJSONError(w, "invalid deal id", http.StatusBadRequest)
		return
	}

	details, err := h.crmRepo.DealDetails(r.Context(), dealID)
	if err != nil {
		if errors.Is(err, crm.ErrDealNotFound) {
			utils.SendJSONError(w, "deal not found in CRM", http.StatusNotFound)
		} else {
			logger.L.Error("Error fetching deal details from CRM", "dealID", dealID, "error", err)
			utils.SendJSONError(w, "Error fetching deal details from CRM", http.StatusBadGateway)
		}
		return
	}

	if err := h.engine.Apply(r.Context(), dealID, workflow.AcceptanceActDownloaded{}); err != nil {
		logger.L.Warn("Could not record acceptance act download", "dealID", dealID, "error", err)
	}

	buf, err := documents.AcceptanceAct(details)
	if err != nil {
		logger.L.Error("Error generating acceptance act", "dealID", dealID, "error", err)
		utils.SendJSONError(w, "Error generating acceptance act", http.StatusInternalServerError)
		return
	}
	sendAttachment(w, buf.Bytes(), fmt.Sprintf("acceptance_act_deal_%d.docx", dealID), mimeDOCX)
}

// HandleUploadUnilateralAct stores the scan of the executed unilateral act and
// completes the deal.
func (h *WorkflowHandler) HandleUploadUnilateralAct(w http.ResponseWriter, r *http.Request) {
	dealID, err := strconv.ParseInt(r.PathValue("dealID"), 10, 64)
	if err != nil {
		utils.SendJSONError(w, "invalid deal id", http.StatusBadRequest)
		return
	}

	if err := r.ParseMultipartForm(config.Cfg.MaxUploadSizeBytes); err != nil {
		utils.SendJSONError(w, "Failed to parse form or request too large", http.StatusBadRequest)
		return
	}
	file, fileHeader, err := r.FormFile("scan")
	if err != nil {
		utils.SendJSONError(w, "Failed to retrieve file from request. Ensure 'scan' field is used.", http.StatusBadRequest)
		return
	}
	defer file.Close()

	path, err := h.saveScan(file, fileHeader, fmt.Sprintf("unilateral_act_deal_%d.pdf", dealID))
	if err != nil {
		logger.L.Error("Error saving unilateral act scan", "dealID", dealID, "error", err)
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	h.applyActionForDeal(w, r, dealID, workflow.ActUploaded{Path: path})
}

// HandleUploadFinalDocs stores the signed acceptance act and/or the defect
// list scans. Either file may arrive alone; completion is order-independent.
func (h *WorkflowHandler) HandleUploadFinalDocs(w http.ResponseWriter, r *http.Request) {
	dealID, err := strconv.ParseInt(r.PathValue("dealID"), 10, 64)
	if err != nil {
		utils.SendJSONError(w, "invalid deal id", http.StatusBadRequest)
		return
	}

	if err := r.ParseMultipartForm(config.Cfg.MaxUploadSizeBytes); err != nil {
		utils.SendJSONError(w, "Failed to parse form or request too large", http.StatusBadRequest)
		return
	}

	uploaded := 0
	if file, fileHeader, err := r.FormFile("signed_act"); err == nil {
		defer file.Close()
		path, saveErr := h.saveScan(file, fileHeader, fmt.Sprintf("signed_act_deal_%d.pdf", dealID))
		if saveErr != nil {
			logger.L.Error("Error saving signed act scan", "dealID", dealID, "error", saveErr)
			utils.SendJSONError(w, saveErr.Error(), http.StatusBadRequest)
			return
		}
		if applyErr := h.engine.Apply(r.Context(), dealID, workflow.UploadSignedAct{Path: path}); applyErr != nil {
			h.reportApplyError(w, dealID, applyErr)
			return
		}
		uploaded++
	}
	if file, fileHeader, err := r.FormFile("defect_list"); err == nil {
		defer file.Close()
		path, saveErr := h.saveScan(file, fileHeader, fmt.Sprintf("defect_list_deal_%d.pdf", dealID))
		if saveErr != nil {
			logger.L.Error("Error saving defect list scan", "dealID", dealID, "error", saveErr)
			utils.SendJSONError(w, saveErr.Error(), http.StatusBadRequest)
			return
		}
		if applyErr := h.engine.Apply(r.Context(), dealID, workflow.UploadDefectList{Path: path}); applyErr != nil {
			h.reportApplyError(w, dealID, applyErr)
			return
		}
		uploaded++
	}

	if uploaded == 0 {
		utils.SendJSONError(w, "no files uploaded; use 'signed_act' and/or 'defect_list' fields", http.StatusBadRequest)
		return
	}
	utils.SendJSON(w, map[string]interface{}{"status": "success", "uploaded": uploaded}, http.StatusOK)
}

func (h *WorkflowHandler) applyActionForDeal(w http.ResponseWriter, r *http.Request, dealID int64, action workflow.Action) {
	if err := h.engine.Apply(r.Context(), dealID, action); err != nil {
		h.reportApplyError(w, dealID, err)
		return
	}
	utils.SendJSON(w, map[string]string{"status": "success"}, http.StatusOK)
}

func (h *WorkflowHandler) reportApplyError(w http.ResponseWriter, dealID int64, err error) {
	if errors.Is(err, storage.ErrStatusNotFound) {
		utils.SendJSONError(w, "deal has no workflow record; classify the house first", http.StatusNotFound)
		return
	}
	logger.L.Error("Workflow action failed", "dealID", dealID, "error", err)
	utils.SendJSONError(w, "failed to update deal status", http.StatusInternalServerError)
}

func (h *WorkflowHandler) saveScan(file multipart.File, fileHeader *multipart.FileHeader, name string) (string, error) {
	if err := validation.ValidateScanContentType(fileHeader.Header.Get("Content-Type")); err != nil {
		return "", err
	}
	if err := validation.ValidatePDFMagicBytes(file); err != nil {
		return "", err
	}

	if err := os.MkdirAll(h.uploadDir, 0o755); err != nil {
		return "", fmt.Errorf("error creating upload directory: %w", err)
	}
	path := filepath.Join(h.uploadDir, name)
	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("error creating scan file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, file); err != nil {
		return "", fmt.Errorf("error writing scan file: %w", err)
	}
	return path, nil
}
