package sqlite

const schema = `
-- Backend runs, one row per spawned process
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    profile_name TEXT NOT NULL,
    server TEXT NOT NULL,
    backend_type TEXT NOT NULL,
    backend_path TEXT NOT NULL,
    pid INTEGER NOT NULL,
    started_at TIMESTAMP NOT NULL,
    stopped_at TIMESTAMP,
    exit_code INTEGER,
    requested BOOLEAN DEFAULT 0,
    error TEXT
);

-- Latency probe results
CREATE TABLE IF NOT EXISTS latency_tests (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    profile_name TEXT NOT NULL,
    server TEXT NOT NULL,
    latency_ms INTEGER,
    success BOOLEAN NOT NULL,
    error_message TEXT,
    test_strategy TEXT DEFAULT 'tcp',
    tested_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
CREATE INDEX IF NOT EXISTS idx_runs_profile_name ON runs(profile_name);
CREATE INDEX IF NOT EXISTS idx_latency_tests_profile_name ON latency_tests(profile_name);
CREATE INDEX IF NOT EXISTS idx_latency_tests_tested_at ON latency_tests(tested_at);
`

// runMigrations executes the database schema
func runMigrations(db *DB) error {
	_, err := db.db.Exec(schema)
	return err
}
