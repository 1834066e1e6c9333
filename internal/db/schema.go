package db

// SchemaVersion is the current database schema version
const SchemaVersion = 3

const schema = `
-- Scan records, newest kept by the eviction pass
CREATE TABLE IF NOT EXISTS scans (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    timestamp TEXT NOT NULL,
    disease_label TEXT NOT NULL DEFAULT '',
    image_ref TEXT NOT NULL DEFAULT '',
    synced INTEGER NOT NULL DEFAULT 0
);

-- Disease reference data, refreshed in bulk and never evicted
CREATE TABLE IF NOT EXISTS diseases (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL UNIQUE,
    category TEXT NOT NULL DEFAULT '',
    fields TEXT NOT NULL DEFAULT '{}'
);

-- Outbreak predictions
CREATE TABLE IF NOT EXISTS predictions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    date TEXT NOT NULL,
    data TEXT NOT NULL DEFAULT '{}'
);

-- Pending outbound actions; a row is deleted once delivered
CREATE TABLE IF NOT EXISTS sync_queue (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    action TEXT NOT NULL,
    payload TEXT NOT NULL DEFAULT '{}',
    timestamp TEXT NOT NULL,
    retries INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_scans_timestamp ON scans(timestamp);
CREATE INDEX IF NOT EXISTS idx_scans_disease ON scans(disease_label);
CREATE INDEX IF NOT EXISTS idx_scans_synced ON scans(synced);
CREATE INDEX IF NOT EXISTS idx_diseases_category ON diseases(category);
CREATE INDEX IF NOT EXISTS idx_predictions_date ON predictions(date);
CREATE INDEX IF NOT EXISTS idx_sync_queue_action ON sync_queue(action);
CREATE INDEX IF NOT EXISTS idx_sync_queue_timestamp ON sync_queue(timestamp);
`

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// Migrations is the list of all database migrations in order
var Migrations = []Migration{
	{
		Version:     2,
		Description: "Scan detail columns and sync item links",
		SQL: `
ALTER TABLE scans ADD COLUMN crop TEXT NOT NULL DEFAULT '';
ALTER TABLE scans ADD COLUMN confidence REAL NOT NULL DEFAULT 0;
ALTER TABLE scans ADD COLUMN severity TEXT NOT NULL DEFAULT '';

ALTER TABLE sync_queue ADD COLUMN scan_id INTEGER;
ALTER TABLE sync_queue ADD COLUMN idempotency_key TEXT NOT NULL DEFAULT '';
CREATE INDEX IF NOT EXISTS idx_sync_queue_scan ON sync_queue(scan_id);
`,
	},
	{
		Version:     3,
		Description: "Documents table for whole-value state (achievements)",
		SQL: `
CREATE TABLE IF NOT EXISTS documents (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at TEXT NOT NULL
);
`,
	},
}
