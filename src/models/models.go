package models

import "time"

// SurveyRecord is a single row of the uploaded cadastral survey: one apartment
// and its officially measured area.
type SurveyRecord struct {
	PropertyID string  `json:"property_id"`
	Area       float64 `json:"area"`
}

// ContractualDeal is the CRM's view of a sale, read-only for this service.
type ContractualDeal struct {
	DealID       int64   `json:"deal_id"`
	PropertyID   string  `json:"property_id"`
	ContractArea float64 `json:"contract_area"`
	HasDebt      bool    `json:"has_debt"`
	ClientID     int64   `json:"client_id"`
	ClientName   string  `json:"client_name"`
	ClientPhone  string  `json:"client_phone"`
	ClientType   string  `json:"client_type"`
}

// CategorizedDeal is the result of reconciling one survey row against its deal.
// AreaDiff is surveyed area minus contract area, rounded to 2 decimal places.
type CategorizedDeal struct {
	DealID     int64    `json:"deal_id"`
	PropertyID string   `json:"property_id"`
	AreaDiff   float64  `json:"area_diff"`
	ClientID   int64    `json:"client_id"`
	ClientName string   `json:"client_name"`
	Group      GroupKey `json:"group_key"`
}

// Status is the workflow stage of a deal's paperwork. Values outside the named
// constants can appear from legacy manual edits and are passed through as-is.
type Status string

const (
	StatusProcessing        Status = "processing"
	StatusPendingArrival    Status = "pending_arrival"
	StatusAcceptancePending Status = "acceptance_pending"
	StatusUnilateralPending Status = "unilateral_pending"
	StatusCompleted         Status = "completed"
)

// DealStatus is the persisted workflow record for one deal, keyed by DealID.
// It is created (or reset) whenever the deal is classified and mutated only by
// workflow actions.
type DealStatus struct {
	DealID int64    `json:"deal_id"`
	Group  GroupKey `json:"group_key"`
	Status Status   `json:"status"`

	DocumentsDeliveredAt      *time.Time `json:"documents_delivered_at,omitempty"`
	ClientArrivedAt           *time.Time `json:"client_arrived_at,omitempty"`
	UnilateralActDownloadedAt *time.Time `json:"unilateral_act_downloaded_at,omitempty"`
	UnilateralActUploadedPath string     `json:"unilateral_act_uploaded_path,omitempty"`

	AcceptanceActDownloadedAt *time.Time `json:"acceptance_act_downloaded_at,omitempty"`
	IsActSigned               *bool      `json:"is_act_signed,omitempty"`
	HasDefectList             *bool      `json:"has_defect_list,omitempty"`
	SignedActUploadedPath     string     `json:"signed_act_uploaded_path,omitempty"`
	DefectListUploadedPath    string     `json:"defect_list_uploaded_path,omitempty"`
}

// DealListItem is one row of the deals screen: CRM data enriched with the local
// workflow status and the derived handover deadline.
type DealListItem struct {
	DealID         int64       `json:"deal_id"`
	DealStatusName string      `json:"deal_status_name,omitempty"`
	PropertyID     string      `json:"property_id"`
	ComplexName    string      `json:"complex_name,omitempty"`
	HouseName      string      `json:"house_name,omitempty"`
	ClientName     string      `json:"client_name,omitempty"`
	ClientPhone    string      `json:"client_phone,omitempty"`
	AreaDiff       *float64    `json:"area_diff,omitempty"`
	Group          GroupKey    `json:"group_key,omitempty"`
	Workflow       *DealStatus `json:"workflow,omitempty"`
	DeadlineISO    string      `json:"deadline_iso,omitempty"`
	IsTimedOut     bool        `json:"is_timed_out"`
}

// House is one building of a residential complex, as listed in the CRM.
type House struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}
