package database

import (
	"database/sql"
	stdlog "log"

	"github.com/DieForGlory/process-peredach/src/logger"
	_ "modernc.org/sqlite"
)

var DB *sql.DB

// InitDB opens the local workflow database and ensures its schema. When
// resetOnStart is set, the deal_statuses table is dropped first (used in
// staging where every upload season starts from a clean slate).
func InitDB(databasePath string, resetOnStart bool) {
	db, err := sql.Open("sqlite", databasePath)
	if err != nil {
		stdlog.Fatalf("failed to open database at %s: %v", databasePath, err)
	}

	DB = db

	if logger.L != nil {
		logger.L.Info("Ensuring workflow database schema", "databasePath", databasePath, "resetOnStart", resetOnStart)
	} else {
		stdlog.Println("Ensuring workflow database schema for:", databasePath)
	}

	if resetOnStart {
		if _, err := DB.Exec(`DROP TABLE IF EXISTS deal_statuses`); err != nil {
			stdlog.Fatalf("failed to reset deal_statuses table: %v", err)
		}
	}

	if err := EnsureSchema(DB); err != nil {
		if logger.L != nil {
			logger.L.Error("failed to create tables", "error", err)
		}
		stdlog.Fatalf("failed to create tables: %v", err)
	}
	if logger.L != nil {
		logger.L.Info("Database tables ensured/created.")
	} else {
		stdlog.Println("Database tables ensured/created.")
	}
}

// EnsureSchema creates the deal_statuses table if it does not exist. Timestamps
// are RFC3339 UTC text; all workflow fields default to NULL per the workflow
// contract.
func EnsureSchema(db *sql.DB) error {
	createTableStatement := `
	CREATE TABLE IF NOT EXISTS deal_statuses (
		deal_id INTEGER PRIMARY KEY,
		group_key TEXT,
		status TEXT NOT NULL DEFAULT 'processing',
		documents_delivered_at TEXT,
		client_arrived_at TEXT,
		unilateral_act_downloaded_at TEXT,
		unilateral_act_uploaded_path TEXT,
		acceptance_act_downloaded_at TEXT,
		is_act_signed BOOLEAN,
		has_defect_list BOOLEAN,
		signed_act_uploaded_path TEXT,
		defect_list_uploaded_path TEXT
	);
	`
	_, err := db.Exec(createTableStatement)
	return err
}
