package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const notifyChannel = "document_changes"

// PostgresStore keeps documents as jsonb rows. Merges use the jsonb concatenation operator,
// which replaces top-level keys, and changes are pushed with LISTEN/NOTIFY.
type PostgresStore struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

func NewPostgresStore(pool *pgxpool.Pool, log *zap.Logger) *PostgresStore {
	return &PostgresStore{pool: pool, log: log}
}

func (p *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS documents (
			path       TEXT PRIMARY KEY,
			body       JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`)
	if err != nil {
		return fmt.Errorf("create documents table: %w", err)
	}
	return nil
}

func (p *PostgresStore) WriteInitial(ctx context.Context, path string, doc Document) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		INSERT INTO documents (path, body, updated_at)
		VALUES ($1, $2::jsonb, now())
		ON CONFLICT (path) DO NOTHING
	`, path, string(body))
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil
	}
	if err := notify(ctx, tx, path); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (p *PostgresStore) MergeUpdate(ctx context.Context, path string, partial Document) error {
	body, err := json.Marshal(partial)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE documents
		SET body = body || $2::jsonb,
		    updated_at = now()
		WHERE path = $1
	`, path, string(body))
	if err != nil {
		return fmt.Errorf("merge document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDocumentNotFound
	}
	if err := notify(ctx, tx, path); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func notify(ctx context.Context, tx pgx.Tx, path string) error {
	if _, err := tx.Exec(ctx, `SELECT pg_notify($1, $2)`, notifyChannel, path); err != nil {
		return fmt.Errorf("notify document change: %w", err)
	}
	return nil
}

func (p *PostgresStore) load(ctx context.Context, path string) (Document, bool, error) {
	var raw []byte
	err := p.pool.QueryRow(ctx, `SELECT body FROM documents WHERE path = $1`, path).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("load document: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, false, fmt.Errorf("decode document: %w", err)
	}
	return doc, true, nil
}

func (p *PostgresStore) Subscribe(ctx context.Context, path string, fn Listener) (func(), error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire listen connection: %w", err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{notifyChannel}.Sanitize()); err != nil {
		conn.Release()
		return nil, fmt.Errorf("listen for document changes: %w", err)
	}

	doc, found, err := p.load(ctx, path)
	if err != nil {
		conn.Release()
		return nil, err
	}
	fn(doc, found)

	listenCtx, stop := context.WithCancel(ctx)
	go func() {
		defer conn.Release()
		for {
			n, err := conn.Conn().WaitForNotification(listenCtx)
			if err != nil {
				if listenCtx.Err() == nil {
					p.log.Warn("document listener stopped", zap.String("path", path), zap.Error(err))
				}
				return
			}
			if n.Payload != path {
				continue
			}
			doc, found, err := p.load(listenCtx, path)
			if err != nil {
				p.log.Warn("reload document after change", zap.String("path", path), zap.Error(err))
				continue
			}
			fn(doc, found)
		}
	}()

	return stop, nil
}
