package persistor

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgxConn is the slice of *pgxpool.Pool's API PostgresPersistor actually
// calls, narrow enough for github.com/pashagolub/pgxmock/v3's PgxPoolIface
// (or a plain PgxConnIface) to satisfy it in tests without a real server.
type pgxConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresPersistor stores checkpoints in Postgres, for multi-instance
// deployments where several cannoli-run processes share one checkpoint
// store.
type PostgresPersistor struct {
	pool   pgxConn
	closer func()
}

func OpenPostgres(ctx context.Context, dsn string) (*PostgresPersistor, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("persistor: open postgres: %w", err)
	}
	p := &PostgresPersistor{pool: pool, closer: pool.Close}
	if err := p.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

// NewPostgresWithConn wraps an already-open pgxConn (a real *pgxpool.Pool or
// a pgxmock connection in tests) without opening or migrating anything,
// letting callers control connection lifecycle and schema themselves.
func NewPostgresWithConn(conn pgxConn) *PostgresPersistor {
	return &PostgresPersistor{pool: conn}
}

func (p *PostgresPersistor) migrate(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS checkpoints (
	id         TEXT PRIMARY KEY,
	run_id     TEXT NOT NULL,
	node_name  TEXT NOT NULL,
	statuses   JSONB NOT NULL,
	content    JSONB NOT NULL,
	metadata   JSONB NOT NULL,
	timestamp  TIMESTAMPTZ NOT NULL,
	version    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_checkpoints_run_id ON checkpoints(run_id);
`
	if _, err := p.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("persistor: migrate postgres: %w", err)
	}
	return nil
}

func (p *PostgresPersistor) Close() {
	if p.closer != nil {
		p.closer()
	}
}

func (p *PostgresPersistor) Save(ctx context.Context, cp *Checkpoint) error {
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
	_, err = p.pool.Exec(ctx, `
INSERT INTO checkpoints (id, run_id, node_name, statuses, content, metadata, timestamp, version)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (id) DO UPDATE SET
	statuses = excluded.statuses, content = excluded.content,
	metadata = excluded.metadata, timestamp = excluded.timestamp, version = excluded.version
`, cp.ID, cp.RunID, cp.NodeName, statuses, content, metadata, cp.Timestamp, cp.Version)
	return err
}

func (p *PostgresPersistor) Load(ctx context.Context, checkpointID string) (*Checkpoint, error) {
	row := p.pool.QueryRow(ctx, `
SELECT id, run_id, node_name, statuses, content, metadata, timestamp, version
FROM checkpoints WHERE id = $1`, checkpointID)
	return scanPGCheckpoint(row)
}

func (p *PostgresPersistor) List(ctx context.Context, runID string) ([]*Checkpoint, error) {
	rows, err := p.pool.Query(ctx, `
SELECT id, run_id, node_name, statuses, content, metadata, timestamp, version
FROM checkpoints WHERE run_id = $1`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Checkpoint
	for rows.Next() {
		cp, err := scanPGCheckpoint(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, cp)
	}
	return out, rows.Err()
}

func (p *PostgresPersistor) Delete(ctx context.Context, checkpointID string) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM checkpoints WHERE id = $1`, checkpointID)
	return err
}

func (p *PostgresPersistor) Clear(ctx context.Context, runID string) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM checkpoints WHERE run_id = $1`, runID)
	return err
}

type pgRowScanner interface {
	Scan(dest ...any) error
}

func scanPGCheckpoint(row pgRowScanner) (*Checkpoint, error) {
	var cp Checkpoint
	var statuses, content, metadata []byte
	if err := row.Scan(&cp.ID, &cp.RunID, &cp.NodeName, &statuses, &content, &metadata, &cp.Timestamp, &cp.Version); err != nil {
		if err == pgx.ErrNoRows {
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
