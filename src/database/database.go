package database

import (
	"database/sql"
	stdlog "log"

	"github.com/username/fimaledger/src/logger"
	_ "modernc.org/sqlite"
)

var DB *sql.DB

func InitDB(databasePath string) {
	db, err := sql.Open("sqlite", databasePath)
	if err != nil {
		stdlog.Fatalf("failed to open database at %s: %v", databasePath, err)
	}

	DB = db

	if logger.L != nil {
		logger.L.Info("Ensuring database schema", "databasePath", databasePath)
	} else {
		stdlog.Println("Ensuring database schema for:", databasePath)
	}

	// Decimal columns are stored as canonical strings; nothing in the schema
	// or the Go side ever converts them through float64.
	createTableStatement := `
	CREATE TABLE IF NOT EXISTS operations (
		id TEXT PRIMARY KEY,
		fund_id TEXT NOT NULL,
		op_date TEXT NOT NULL,
		kind TEXT NOT NULL,
		direction TEXT NOT NULL DEFAULT '',
		quantity TEXT NOT NULL,
		unit_value TEXT NOT NULL,
		amount TEXT NOT NULL,
		amount_stated INTEGER NOT NULL DEFAULT 1,
		status TEXT NOT NULL DEFAULT 'ok',
		source_ref TEXT NOT NULL,
		page INTEGER NOT NULL DEFAULT 0,
		line INTEGER NOT NULL DEFAULT 0,
		raw_text TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(fund_id, op_date, source_ref)
	);

	CREATE TABLE IF NOT EXISTS positions (
		fund_id TEXT PRIMARY KEY,
		as_of_date TEXT NOT NULL,
		quantity_balance TEXT NOT NULL,
		cost_basis TEXT NOT NULL,
		last_updated TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS ingested_statements (
		file_hash TEXT PRIMARY KEY,
		filename TEXT NOT NULL,
		operation_count INTEGER NOT NULL DEFAULT 0,
		inserted_count INTEGER NOT NULL DEFAULT 0,
		issue_count INTEGER NOT NULL DEFAULT 0,
		ingested_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_operations_fund_date ON operations(fund_id, op_date);
	`

	if _, err := DB.Exec(createTableStatement); err != nil {
		stdlog.Fatalf("failed to create tables: %v", err)
	}

	if logger.L != nil {
		logger.L.Info("Database schema ready")
	}
}
