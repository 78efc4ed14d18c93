package workflow

import (
	"context"
	"time"

	"github.com/DieForGlory/process-peredach/src/logger"
	"github.com/DieForGlory/process-peredach/src/models"
	"github.com/DieForGlory/process-peredach/src/storage"
)

// HandoverWindow is how long a client has to appear after documents were
// delivered. Past it the deal is reported as timed out and becomes eligible
// for a unilateral act.
const HandoverWindow = 30 * 24 * time.Hour

// Engine applies workflow actions to deal status records. One action is one
// load-apply-save cycle; the save is a single atomic upsert, so a persistence
// failure leaves the stored row exactly as it was.
type Engine struct {
	store storage.StatusStore
	now   func() time.Time
}

func NewEngine(store storage.StatusStore) *Engine {
	return &Engine{store: store, now: time.Now}
}

// Apply executes one action against the deal's status record. Returns
// storage.ErrStatusNotFound (without creating anything) when the deal was
// never classified.
func (e *Engine) Apply(ctx context.Context, dealID int64, action Action) error {
	st, err := e.store.Get(ctx, dealID)
	if err != nil {
		return err
	}

	action.apply(st, e.now().UTC())

	if err := e.store.Save(ctx, st); err != nil {
		return err
	}
	logger.L.Info("Workflow action applied", "dealID", dealID, "action", actionName(action), "status", st.Status)
	return nil
}

// Deadline returns when the handover window closes for the deal, or nil when
// documents were never delivered. Computed at read time, never stored.
func Deadline(st *models.DealStatus) *time.Time {
	if st == nil || st.DocumentsDeliveredAt == nil {
		return nil
	}
	d := st.DocumentsDeliveredAt.Add(HandoverWindow)
	return &d
}

// IsTimedOut reports whether the handover window has elapsed as of now. The
// comparison is strict: exactly at the deadline is not yet timed out.
func IsTimedOut(st *models.DealStatus, now time.Time) bool {
	deadline := Deadline(st)
	return deadline != nil && now.After(*deadline)
}

func actionName(a Action) string {
	switch a.(type) {
	case MarkDelivered:
		return "mark_delivered"
	case MarkArrived:
		return "mark_arrived"
	case ActDownloaded:
		return "act_downloaded"
	case ActUploaded:
		return "act_uploaded"
	case AcceptanceActDownloaded:
		return "acceptance_act_downloaded"
	case ProcessAcceptance:
		return "process_acceptance"
	case UploadSignedAct:
		return "upload_signed_act"
	case UploadDefectList:
		return "upload_defect_list"
	default:
		return "unknown"
	}
}
