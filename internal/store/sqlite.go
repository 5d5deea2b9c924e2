package store

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/rcliao/layered-memory/internal/model"
	"github.com/rcliao/layered-memory/internal/namespace"
	"github.com/rcliao/layered-memory/internal/observe"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db   *sql.DB
	path string
	opts Options
}

// NewSQLiteStore opens or creates a SQLite database at the given path.
func NewSQLiteStore(dbPath string, opts Options) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// One connection serializes writers; transactions keep read-check-write atomic.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, path: dbPath, opts: opts.withDefaults()}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.path
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS items (
		seq         INTEGER PRIMARY KEY AUTOINCREMENT,
		id          TEXT NOT NULL UNIQUE,
		ns          TEXT NOT NULL,
		key         TEXT NOT NULL,
		value       TEXT NOT NULL,
		embedding   BLOB,
		revision    INTEGER NOT NULL,
		created_at  TEXT NOT NULL,
		updated_at  TEXT NOT NULL,
		UNIQUE (ns, key)
	);
	CREATE INDEX IF NOT EXISTS idx_items_ns ON items(ns, seq);
	`
	_, err := s.db.Exec(schema)
	return err
}

func encodeNamespace(ns namespace.Namespace) string {
	b, _ := json.Marshal([]string(ns))
	return string(b)
}

func decodeNamespace(s string) (namespace.Namespace, error) {
	var segs []string
	if err := json.Unmarshal([]byte(s), &segs); err != nil {
		return nil, fmt.Errorf("decode namespace: %w", err)
	}
	return namespace.Namespace(segs), nil
}

func encodeVector(vec []float32) ([]byte, error) {
	if vec == nil {
		return nil, nil
	}
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, vec); err != nil {
		return nil, fmt.Errorf("encode vector: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeVector(blob []byte) ([]float32, error) {
	if blob == nil {
		return nil, nil
	}
	vec := make([]float32, len(blob)/4)
	if err := binary.Read(bytes.NewReader(blob), binary.LittleEndian, &vec); err != nil {
		return nil, fmt.Errorf("decode vector: %w", err)
	}
	return vec, nil
}

func (s *SQLiteStore) Put(ctx context.Context, ns namespace.Namespace, key string, value model.Value) (*model.Item, error) {
	return s.put(ctx, ns, key, value, nil)
}

func (s *SQLiteStore) PutIf(ctx context.Context, ns namespace.Namespace, key string, value model.Value, revision uint64) (*model.Item, error) {
	return s.put(ctx, ns, key, value, &revision)
}

func (s *SQLiteStore) put(ctx context.Context, ns namespace.Namespace, key string, value model.Value, expect *uint64) (_ *model.Item, err error) {
	ctx, span := s.opts.Observer.StartSpan(ctx, "store.put", "namespace", ns.String(), "key", key)
	defer func() { observe.EndSpan(span, err) }()

	if err := validate(ns, key); err != nil {
		return nil, err
	}
	if value == nil {
		value = model.Value{}
	}
	vec, err := embedValue(ctx, s.opts, ns, value)
	if err != nil {
		s.opts.Observer.Log().Warn().Str("namespace", ns.String()).Str("key", key).Err(err).Msg("put rejected")
		return nil, fmt.Errorf("put %s/%s: %w", ns, key, err)
	}
	valueJSON, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("put %s/%s: %w: %w", ns, key, ErrInvalidValue, err)
	}
	blob, err := encodeVector(vec)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	nsText := encodeNamespace(ns)
	var (
		id        string
		revision  uint64
		createdAt string
	)
	err = tx.QueryRowContext(ctx,
		`SELECT id, revision, created_at FROM items WHERE ns = ? AND key = ?`,
		nsText, key).Scan(&id, &revision, &createdAt)
	exists := err == nil
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("lookup item: %w", err)
	}
	if expect != nil && revision != *expect {
		return nil, fmt.Errorf("put %s/%s: %w: have revision %d, want %d", ns, key, ErrRevisionConflict, revision, *expect)
	}

	now := time.Now().UTC()
	nowText := now.Format(time.RFC3339Nano)
	if exists {
		revision++
		_, err = tx.ExecContext(ctx,
			`UPDATE items SET value = ?, embedding = ?, revision = ?, updated_at = ? WHERE ns = ? AND key = ?`,
			string(valueJSON), blob, revision, nowText, nsText, key)
		if err != nil {
			return nil, fmt.Errorf("update item: %w", err)
		}
	} else {
		id, revision, createdAt = newID(), 1, nowText
		_, err = tx.ExecContext(ctx,
			`INSERT INTO items (id, ns, key, value, embedding, revision, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			id, nsText, key, string(valueJSON), blob, revision, createdAt, nowText)
		if err != nil {
			return nil, fmt.Errorf("insert item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	created, _ := time.Parse(time.RFC3339Nano, createdAt)
	s.opts.Observer.Log().Debug().Str("namespace", ns.String()).Str("key", key).Int("revision", int(revision)).Msg("put")
	return &model.Item{
		ID:        id,
		Namespace: append(namespace.Namespace(nil), ns...),
		Key:       key,
		Value:     value.Clone(),
		Embedding: vec,
		Revision:  revision,
		CreatedAt: created,
		UpdatedAt: now,
	}, nil
}

const itemColumns = `seq, id, ns, key, value, embedding, revision, created_at, updated_at`

func (s *SQLiteStore) Get(ctx context.Context, ns namespace.Namespace, key string) (*model.Item, error) {
	if err := validate(ns, key); err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE ns = ? AND key = ?`,
		encodeNamespace(ns), key)
	c, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get %s/%s: %w", ns, key, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return c.item, nil
}

func (s *SQLiteStore) Search(ctx context.Context, ns namespace.Namespace, p SearchParams) (_ []model.Result, err error) {
	ctx, span := s.opts.Observer.StartSpan(ctx, "store.search", "namespace", ns.String())
	defer func() { observe.EndSpan(span, err) }()

	if err := ns.Validate(); err != nil {
		return nil, err
	}
	var query []float32
	if p.Query != "" {
		if p.Limit <= 0 {
			return []model.Result{}, nil
		}
		query, err = embed(ctx, s.opts, p.Query)
		if err != nil {
			s.opts.Observer.Log().Warn().Str("namespace", ns.String()).Err(err).Msg("query embedding failed")
			return nil, fmt.Errorf("search %s: %w", ns, err)
		}
	}

	cands, err := s.scanNamespace(ctx, ns)
	if err != nil {
		return nil, err
	}
	results := selectResults(cands, query, p)
	s.opts.Observer.Log().Debug().Str("namespace", ns.String()).Int("results", len(results)).Msg("search")
	return results, nil
}

func (s *SQLiteStore) scanNamespace(ctx context.Context, ns namespace.Namespace) ([]candidate, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE ns = ? ORDER BY seq`,
		encodeNamespace(ns))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cands []candidate
	for rows.Next() {
		c, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		cands = append(cands, c)
	}
	return cands, rows.Err()
}

func (s *SQLiteStore) Delete(ctx context.Context, ns namespace.Namespace, key string) error {
	if err := validate(ns, key); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM items WHERE ns = ? AND key = ?`, encodeNamespace(ns), key)
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	s.opts.Observer.Log().Debug().Str("namespace", ns.String()).Str("key", key).Msg("delete")
	return nil
}

func (s *SQLiteStore) ListNamespaces(ctx context.Context, prefix namespace.Namespace) ([]namespace.Namespace, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT ns FROM items`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []namespace.Namespace
	for rows.Next() {
		var text string
		if err := rows.Scan(&text); err != nil {
			return nil, err
		}
		ns, err := decodeNamespace(text)
		if err != nil {
			return nil, err
		}
		if ns.HasPrefix(prefix) {
			out = append(out, ns)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sortNamespaces(out)
	return out, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanItem(row scanner) (candidate, error) {
	var (
		c                    candidate
		it                   model.Item
		nsText, valueJSON    string
		blob                 []byte
		createdAt, updatedAt string
	)
	err := row.Scan(&c.seq, &it.ID, &nsText, &it.Key, &valueJSON, &blob, &it.Revision, &createdAt, &updatedAt)
	if err != nil {
		return c, err
	}
	if it.Namespace, err = decodeNamespace(nsText); err != nil {
		return c, err
	}
	if err := json.Unmarshal([]byte(valueJSON), &it.Value); err != nil {
		return c, fmt.Errorf("decode value: %w", err)
	}
	if it.Embedding, err = decodeVector(blob); err != nil {
		return c, err
	}
	it.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	it.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	c.item = &it
	return c, nil
}
