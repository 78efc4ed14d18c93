package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/DieForGlory/process-peredach/src/logger"
	"github.com/DieForGlory/process-peredach/src/models"
)

// ErrStatusNotFound is returned when a deal has no workflow row. Workflow
// actions never create rows implicitly; only classification does.
var ErrStatusNotFound = errors.New("deal status not found")

// RunAssignment is one deal's bucket assignment from a classification run.
type RunAssignment struct {
	DealID int64
	Group  models.GroupKey
}

// StatusStore persists per-deal workflow records. Every call is atomic: Save is
// a single-row upsert and ResetForRun runs in one transaction.
type StatusStore interface {
	Get(ctx context.Context, dealID int64) (*models.DealStatus, error)
	GetMany(ctx context.Context, dealIDs []int64) (map[int64]*models.DealStatus, error)
	Save(ctx context.Context, st *models.DealStatus) error
	ResetForRun(ctx context.Context, assignments []RunAssignment) error
}

type SQLStatusStore struct {
	db *sql.DB
}

func NewSQLStatusStore(db *sql.DB) *SQLStatusStore {
	return &SQLStatusStore{db: db}
}

const statusColumns = `deal_id, group_key, status,
	documents_delivered_at, client_arrived_at,
	unilateral_act_downloaded_at, unilateral_act_uploaded_path,
	acceptance_act_downloaded_at, is_act_signed, has_defect_list,
	signed_act_uploaded_path, defect_list_uploaded_path`

func (s *SQLStatusStore) Get(ctx context.Context, dealID int64) (*models.DealStatus, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+statusColumns+` FROM deal_statuses WHERE deal_id = ?`, dealID)
	st, err := scanStatus(row)
	if err == sql.ErrNoRows {
		return nil, ErrStatusNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error querying status for deal %d: %w", dealID, err)
	}
	return st, nil
}

func (s *SQLStatusStore) GetMany(ctx context.Context, dealIDs []int64) (map[int64]*models.DealStatus, error) {
	result := make(map[int64]*models.DealStatus, len(dealIDs))
	if len(dealIDs) == 0 {
		return result, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(dealIDs)), ",")
	args := make([]interface{}, len(dealIDs))
	for i, id := range dealIDs {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+statusColumns+` FROM deal_statuses WHERE deal_id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying statuses: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		st, scanErr := scanStatus(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("error scanning status row: %w", scanErr)
		}
		result[st.DealID] = st
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over status rows: %w", err)
	}
	return result, nil
}

const upsertStatusStatement = `INSERT INTO deal_statuses (` + statusColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(deal_id) DO UPDATE SET
		group_key = excluded.group_key,
		status = excluded.status,
		documents_delivered_at = excluded.documents_delivered_at,
		client_arrived_at = excluded.client_arrived_at,
		unilateral_act_downloaded_at = excluded.unilateral_act_downloaded_at,
		unilateral_act_uploaded_path = excluded.unilateral_act_uploaded_path,
		acceptance_act_downloaded_at = excluded.acceptance_act_downloaded_at,
		is_act_signed = excluded.is_act_signed,
		has_defect_list = excluded.has_defect_list,
		signed_act_uploaded_path = excluded.signed_act_uploaded_path,
		defect_list_uploaded_path = excluded.defect_list_uploaded_path`

func (s *SQLStatusStore) Save(ctx context.Context, st *models.DealStatus) error {
	_, err := s.db.ExecContext(ctx, upsertStatusStatement, upsertArgs(st)...)
	if err != nil {
		return fmt.Errorf("error saving status for deal %d: %w", st.DealID, err)
	}
	return nil
}

// ResetForRun synchronizes the store with a classification run: every assigned
// deal gets its row created or reset in place to status 'processing' with all
// workflow fields cleared. All-or-nothing; a failure rolls the whole run back.
// Note: a deal mid-workflow that is reclassified loses its progress.
func (s *SQLStatusStore) ResetForRun(ctx context.Context, assignments []RunAssignment) error {
	if len(assignments) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error beginning status transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertStatusStatement)
	if err != nil {
		return fmt.Errorf("error preparing status upsert: %w", err)
	}
	defer stmt.Close()

	for _, a := range assignments {
		fresh := &models.DealStatus{
			DealID: a.DealID,
			Group:  a.Group,
			Status: models.StatusProcessing,
		}
		if _, err := stmt.ExecContext(ctx, upsertArgs(fresh)...); err != nil {
			return fmt.Errorf("error resetting status for deal %d: %w", a.DealID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing status reset: %w", err)
	}
	logger.L.Info("Status store synchronized with classification run", "deals", len(assignments))
	return nil
}

func upsertArgs(st *models.DealStatus) []interface{} {
	return []interface{}{
		st.DealID,
		string(st.Group),
		string(st.Status),
		timeToDB(st.DocumentsDeliveredAt),
		timeToDB(st.ClientArrivedAt),
		timeToDB(st.UnilateralActDownloadedAt),
		stringToDB(st.UnilateralActUploadedPath),
		timeToDB(st.AcceptanceActDownloadedAt),
		boolToDB(st.IsActSigned),
		boolToDB(st.HasDefectList),
		stringToDB(st.SignedActUploadedPath),
		stringToDB(st.DefectListUploadedPath),
	}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanStatus(row rowScanner) (*models.DealStatus, error) {
	var (
		st                                  models.DealStatus
		group, status                       sql.NullString
		deliveredAt, arrivedAt              sql.NullString
		actDownloadedAt, acceptDownloadedAt sql.NullString
		actPath, signedPath, defectPath     sql.NullString
		isActSigned, hasDefectList          sql.NullBool
	)
	err := row.Scan(&st.DealID, &group, &status,
		&deliveredAt, &arrivedAt,
		&actDownloadedAt, &actPath,
		&acceptDownloadedAt, &isActSigned, &hasDefectList,
		&signedPath, &defectPath)
	if err != nil {
		return nil, err
	}

	st.Group = models.GroupKey(group.String)
	st.Status = models.Status(status.String)
	st.DocumentsDeliveredAt = timeFromDB(deliveredAt)
	st.ClientArrivedAt = timeFromDB(arrivedAt)
	st.UnilateralActDownloadedAt = timeFromDB(actDownloadedAt)
	st.UnilateralActUploadedPath = actPath.String
	st.AcceptanceActDownloadedAt = timeFromDB(acceptDownloadedAt)
	st.SignedActUploadedPath = signedPath.String
	st.DefectListUploadedPath = defectPath.String
	if isActSigned.Valid {
		v := isActSigned.Bool
		st.IsActSigned = &v
	}
	if hasDefectList.Valid {
		v := hasDefectList.Bool
		st.HasDefectList = &v
	}
	return &st, nil
}

func timeToDB(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func timeFromDB(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		logger.L.Warn("Unparseable timestamp in deal_statuses, treating as unset", "value", s.String, "error", err)
		return nil
	}
	return &t
}

func stringToDB(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func boolToDB(b *bool) interface{} {
	if b == nil {
		return nil
	}
	return *b
}
