package persistor

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// SQLitePersistor stores checkpoints in a local sqlite file, for single-
// process runs that want crash recovery without standing up a database
// server.
type SQLitePersistor struct {
	db *sql.DB
}

// OpenSQLite opens (and migrates) a sqlite-backed Persistor at path. Pass
// ":memory:" for a throwaway store.
func OpenSQLite(path string) (*SQLitePersistor, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("persistor: open sqlite: %w", err)
	}
	const schema = `
CREATE TABLE IF NOT EXISTS checkpoints (
	id         TEXT PRIMARY KEY,
	run_id     TEXT NOT NULL,
	node_name  TEXT NOT NULL,
	statuses   TEXT NOT NULL,
	content    TEXT NOT NULL,
	metadata   TEXT NOT NULL,
	timestamp  DATETIME NOT NULL,
	version    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_checkpoints_run_id ON checkpoints(run_id);
`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("persistor: migrate sqlite: %w", err)
	}
	return &SQLitePersistor{db: db}, nil
}

func (s *SQLitePersistor) Close() error { return s.db.Close() }

func (s *SQLitePersistor) Save(ctx context.Context, cp *Checkpoint) error {
	statuses, err := json.Marshal(cp.Statuses)
	if err != nil {
		return err
	}
	content, err := json.Marshal(cp.Content)
	if err != nil {
		return err
	}
	metadata, err := json.Marshal(cp.Metadata)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO checkpoints (id, run_id, node_name, statuses, content, metadata, timestamp, version)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	statuses=excluded.statuses, content=excluded.content,
	metadata=excluded.metadata, timestamp=excluded.timestamp, version=excluded.version
`, cp.ID, cp.RunID, cp.NodeName, statuses, content, metadata, cp.Timestamp, cp.Version)
	return err
}

func (s *SQLitePersistor) Load(ctx context.Context, checkpointID string) (*Checkpoint, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, run_id, node_name, statuses, content, metadata, timestamp, version
FROM checkpoints WHERE id = ?`, checkpointID)
	return scanCheckpoint(row)
}

func (s *SQLitePersistor) List(ctx context.Context, runID string) ([]*Checkpoint, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, run_id, node_name, statuses, content, metadata, timestamp, version
FROM checkpoints WHERE run_id = ?`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Checkpoint
	for rows.Next() {
		cp, err := scanCheckpoint(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, cp)
	}
	return out, rows.Err()
}

func (s *SQLitePersistor) Delete(ctx context.Context, checkpointID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM checkpoints WHERE id = ?`, checkpointID)
	return err
}

func (s *SQLitePersistor) Clear(ctx context.Context, runID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM checkpoints WHERE run_id = ?`, runID)
	return err
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanCheckpoint(row rowScanner) (*Checkpoint, error) {
	var cp Checkpoint
	var statuses, content, metadata []byte
	if err := row.Scan(&cp.ID, &cp.RunID, &cp.NodeName, &statuses, &content, &metadata, &cp.Timestamp, &cp.Version); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if err := json.Unmarshal(statuses, &cp.Statuses); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(content, &cp.Content); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(metadata, &cp.Metadata); err != nil {
		return nil, err
	}
	return &cp, nil
}
