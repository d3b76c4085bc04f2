package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/dmelim/folio/internal/util/compression"
)

// SQLiteStore keeps documents in a single table, the field set as
// zstd-compressed JSON. Subscriptions poll a cheap probe (row count plus
// latest modification stamp) and only re-read the collection when it moved.
type SQLiteStore struct {
	conn         *sql.DB
	pollInterval time.Duration
	compressor   compression.Compressor
}

func NewSQLiteStore(path string, pollInterval time.Duration) (*SQLiteStore, error) {
	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	// SQLite is single-writer; one pooled connection also keeps :memory:
	// databases from splitting across connections.
	conn.SetMaxOpenConns(1)

	_, err = conn.Exec(`
CREATE TABLE IF NOT EXISTS documents (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    collection TEXT NOT NULL,
    id TEXT NOT NULL,
    fields BLOB,
    modified_at INTEGER NOT NULL,
    UNIQUE(collection, id)
);
CREATE INDEX IF NOT EXISTS idx_documents_collection ON documents(collection);`)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("error initializing database: %w", err)
	}

	return &SQLiteStore{
		conn:         conn,
		pollInterval: pollInterval,
		compressor:   compression.ZstdCompressor{},
	}, nil
}

func (s *SQLiteStore) Subscribe(ctx context.Context, collection string) (<-chan Event, error) {
	docs, err := s.queryDocuments(collection)
	if err != nil {
		return nil, fmt.Errorf("error reading collection %s: %w", collection, err)
	}

	count, stamp, err := s.probe(collection)
	if err != nil {
		return nil, fmt.Errorf("error probing collection %s: %w", collection, err)
	}

	ch := make(chan Event, 16)
	ch <- Event{Docs: docs}

	go s.poll(ctx, collection, ch, count, stamp)

	return ch, nil
}

func (s *SQLiteStore) poll(ctx context.Context, collection string, ch chan Event, lastCount, lastStamp int64) {
	defer close(ch)

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		count, stamp, err := s.probe(collection)
		if err != nil {
			storeLogger.Error().Err(err).Str("collection", collection).Msg("Error probing collection")
			ch <- Event{Err: err}
			return
		}

		if count == lastCount && stamp == lastStamp {
			continue
		}

		docs, err := s.queryDocuments(collection)
		if err != nil {
			storeLogger.Error().Err(err).Str("collection", collection).Msg("Error reloading collection")
			ch <- Event{Err: err}
			return
		}

		lastCount, lastStamp = count, stamp
		ch <- Event{Docs: docs}
	}
}

func (s *SQLiteStore) probe(collection string) (count, stamp int64, err error) {
	row := s.conn.QueryRow(
		`SELECT COUNT(*), COALESCE(MAX(modified_at), 0) FROM documents WHERE collection = ?`,
		collection,
	)
	if err := row.Scan(&count, &stamp); err != nil {
		return 0, 0, fmt.Errorf("error scanning probe: %w", err)
	}
	return count, stamp, nil
}

func (s *SQLiteStore) queryDocuments(collection string) ([]Document, error) {
	rows, err := s.conn.Query(
		`SELECT id, fields FROM documents WHERE collection = ? ORDER BY seq`,
		collection,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var id string
		var compressed []byte
		if err := rows.Scan(&id, &compressed); err != nil {
			return nil, fmt.Errorf("error scanning document: %w", err)
		}

		fields, err := s.decodeFields(compressed)
		if err != nil {
			return nil, err
		}

		docs = append(docs, Document{ID: id, Fields: fields})
	}
	return docs, rows.Err()
}

func (s *SQLiteStore) Create(ctx context.Context, collection string, fields map[string]any) (string, error) {
	id := uuid.New().String()

	blob, err := s.encodeFields(fields)
	if err != nil {
		return "", err
	}

	_, err = s.conn.ExecContext(ctx,
		`INSERT INTO documents (collection, id, fields, modified_at) VALUES (?, ?, ?, ?)`,
		collection, id, blob, time.Now().UnixNano(),
	)
	if err != nil {
		return "", fmt.Errorf("error creating document: %w", err)
	}
	return id, nil
}

func (s *SQLiteStore) Update(ctx context.Context, doc string, fields map[string]any) error {
	collection, id, err := SplitDoc(doc)
	if err != nil {
		return err
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}
	defer tx.Rollback()

	var compressed []byte
	row := tx.QueryRowContext(ctx,
		`SELECT fields FROM documents WHERE collection = ? AND id = ?`, collection, id)
	if err := row.Scan(&compressed); err != nil {
		if err == sql.ErrNoRows {
			// Updating a missing document is a silent no-op here.
			return nil
		}
		return fmt.Errorf("error reading document: %w", err)
	}

	existing, err := s.decodeFields(compressed)
	if err != nil {
		return err
	}
	for k, v := range fields {
		existing[k] = v
	}

	blob, err := s.encodeFields(existing)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE documents SET fields = ?, modified_at = ? WHERE collection = ? AND id = ?`,
		blob, time.Now().UnixNano(), collection, id,
	)
	if err != nil {
		return fmt.Errorf("error updating document: %w", err)
	}

	return tx.Commit()
}

func (s *SQLiteStore) Delete(ctx context.Context, doc string) error {
	collection, id, err := SplitDoc(doc)
	if err != nil {
		return err
	}

	_, err = s.conn.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = ? AND id = ?`, collection, id)
	if err != nil {
		return fmt.Errorf("error deleting document: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.conn.Close()
}

func (s *SQLiteStore) encodeFields(fields map[string]any) ([]byte, error) {
	raw, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("error encoding fields: %w", err)
	}
	blob, err := s.compressor.Compress(raw)
	if err != nil {
		return nil, fmt.Errorf("error compressing fields: %w", err)
	}
	return blob, nil
}

func (s *SQLiteStore) decodeFields(blob []byte) (map[string]any, error) {
	raw, err := s.compressor.Decompress(blob)
	if err != nil {
		return nil, fmt.Errorf("error decompressing fields: %w", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("error decoding fields: %w", err)
	}
	return fields, nil
}
