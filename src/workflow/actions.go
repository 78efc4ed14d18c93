package workflow

import (
	"time"

	"github.com/DieForGlory/process-peredach/src/models"
)

// Action is one named step of the handover workflow. The set is closed: every
// variant carries its own typed payload and encodes its effect on the status
// record. Adding a variant without an apply method fails at compile time.
type Action interface {
	apply(st *models.DealStatus, now time.Time)
}

// MarkDelivered records that notification documents were handed to delivery.
type MarkDelivered struct{}

// MarkArrived records that the client showed up for the handover appointment.
type MarkArrived struct{}

// ActDownloaded records that the unilateral act was generated for printing.
type ActDownloaded struct{}

// ActUploaded stores the scan of the executed unilateral act and closes the
// deal: a unilateral act is terminal by definition.
type ActUploaded struct {
	Path string
}

// AcceptanceActDownloaded records that the acceptance act was generated.
type AcceptanceActDownloaded struct{}

// ProcessAcceptance records the outcome of the handover visit. A client who
// neither signed nor reported defects effectively refused the handover, which
// routes the deal to the unilateral-act branch.
type ProcessAcceptance struct {
	IsSigned   bool
	HasDefects bool
}

// UploadSignedAct stores the scan of the signed acceptance act. The deal
// completes unless a defect list was flagged and is still missing.
type UploadSignedAct struct {
	Path string
}

// UploadDefectList stores the scan of the client's defect list. The deal
// completes once the signed act is also on file, in either upload order.
type UploadDefectList struct {
	Path string
}

func (MarkDelivered) apply(st *models.DealStatus, now time.Time) {
	st.DocumentsDeliveredAt = &now
	st.Status = models.StatusPendingArrival
}

func (MarkArrived) apply(st *models.DealStatus, now time.Time) {
	st.ClientArrivedAt = &now
	st.Status = models.StatusAcceptancePending
}

func (ActDownloaded) apply(st *models.DealStatus, now time.Time) {
	st.UnilateralActDownloadedAt = &now
}

func (a ActUploaded) apply(st *models.DealStatus, now time.Time) {
	st.UnilateralActUploadedPath = a.Path
	st.Status = models.StatusCompleted
}

func (AcceptanceActDownloaded) apply(st *models.DealStatus, now time.Time) {
	st.AcceptanceActDownloadedAt = &now
}

func (a ProcessAcceptance) apply(st *models.DealStatus, now time.Time) {
	isSigned, hasDefects := a.IsSigned, a.HasDefects
	st.IsActSigned = &isSigned
	st.HasDefectList = &hasDefects
	if !isSigned && !hasDefects {
		st.Status = models.StatusUnilateralPending
	}
}

func (a UploadSignedAct) apply(st *models.DealStatus, now time.Time) {
	st.SignedActUploadedPath = a.Path
	defectListMissing := st.HasDefectList != nil && *st.HasDefectList && st.DefectListUploadedPath == ""
	if !defectListMissing {
		st.Status = models.StatusCompleted
	}
}

func (a UploadDefectList) apply(st *models.DealStatus, now time.Time) {
	st.DefectListUploadedPath = a.Path
	if st.SignedActUploadedPath != "" {
		st.Status = models.StatusCompleted
	}
}
