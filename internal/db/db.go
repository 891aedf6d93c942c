package db

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

type DB struct {
	conn     *sql.DB
	embedDim int
}

// Source is one imported dump file.
type Source struct {
	ID         int64
	Path       string
	IndexName  string
	ModifiedAt int64
	IndexedAt  int64
}

// Record is one hit object from a dump, in dump order.
type Record struct {
	ID        int64
	SourceID  int64
	IndexName string
	ObjectID  string
	Name      string
	// Body is the text that keyword and semantic search match against.
	Body     string
	Payload  string
	Position int
}

type RecordWithScore struct {
	Record
	Distance float64
}

var recordColumns = []string{
	"r.id", "r.source_id", "r.index_name", "r.object_id", "r.name", "r.body", "r.payload", "r.position",
}

func init() {
	sqlite_vec.Auto()
}

func Open(path string, embedDim int) (*DB, error) {
	conn, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db := &DB{conn: conn, embedDim: embedDim}
	if err := db.init(); err != nil {
		conn.Close() //nolint:errcheck
		return nil, err
	}

	return db, nil
}

func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) EmbedDim() int {
	return db.embedDim
}

func (db *DB) init() error {
	var vecVersion string
	if err := db.conn.QueryRow("SELECT vec_version()").Scan(&vecVersion); err != nil {
		return fmt.Errorf("sqlite-vec not available: %w", err)
	}

	schema := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS sources (
			id INTEGER PRIMARY KEY,
			path TEXT UNIQUE NOT NULL,
			index_name TEXT NOT NULL,
			modified_at INTEGER,
			indexed_at INTEGER
		);

		CREATE TABLE IF NOT EXISTS records (
			id INTEGER PRIMARY KEY,
			source_id INTEGER NOT NULL REFERENCES sources(id) ON DELETE CASCADE,
			index_name TEXT NOT NULL,
			object_id TEXT NOT NULL,
			name TEXT,
			body TEXT NOT NULL,
			payload TEXT NOT NULL,
			position INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_records_source_id ON records(source_id);
		CREATE INDEX IF NOT EXISTS idx_records_index_name ON records(index_name);

		CREATE VIRTUAL TABLE IF NOT EXISTS vec_records USING vec0(
			record_id INTEGER PRIMARY KEY,
			index_name TEXT PARTITION KEY,
			embedding float[%d]
		);
	`, db.embedDim)

	if err := db.dropUnpartitionedVectors(); err != nil {
		return err
	}
	_, err := db.conn.Exec(schema)
	return err
}

// dropUnpartitionedVectors removes a vector table created before vectors
// were partitioned by index. The records stay and are embedded again on
// the next import.
func (db *DB) dropUnpartitionedVectors() error {
	var ddl string
	err := db.conn.QueryRow("SELECT sql FROM sqlite_master WHERE name = 'vec_records'").Scan(&ddl)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("inspect vector table: %w", err)
	}
	if strings.Contains(strings.ToUpper(ddl), "PARTITION KEY") {
		return nil
	}
	if _, err := db.conn.Exec("DROP TABLE vec_records"); err != nil {
		return fmt.Errorf("drop vector table: %w", err)
	}
	return nil
}

func (db *DB) GetSource(path string) (*Source, error) {
	var src Source
	err := db.conn.QueryRow(
		"SELECT id, path, index_name, modified_at, indexed_at FROM sources WHERE path = ?",
		path,
	).Scan(&src.ID, &src.Path, &src.IndexName, &src.ModifiedAt, &src.IndexedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &src, nil
}

func (db *DB) GetAllSources() ([]Source, error) {
	rows, err := db.conn.Query("SELECT id, path, index_name, modified_at, indexed_at FROM sources ORDER BY path")
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var sources []Source
	for rows.Next() {
		var src Source
		if err := rows.Scan(&src.ID, &src.Path, &src.IndexName, &src.ModifiedAt, &src.IndexedAt); err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	return sources, rows.Err()
}

func (db *DB) UpsertSource(path, indexName string, modifiedAt, indexedAt int64) (int64, error) {
	_, err := db.conn.Exec(`
		INSERT INTO sources (path, index_name, modified_at, indexed_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			index_name = excluded.index_name,
			modified_at = excluded.modified_at,
			indexed_at = excluded.indexed_at
	`, path, indexName, modifiedAt, indexedAt)
	if err != nil {
		return 0, err
	}

	var id int64
	if err := db.conn.QueryRow("SELECT id FROM sources WHERE path = ?", path).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// DeleteSource removes a dump with its records and their embeddings.
func (db *DB) DeleteSource(path string) error {
	src, err := db.GetSource(path)
	if err != nil || src == nil {
		return err
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	if err := deleteRecords(tx, src.ID); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM sources WHERE id = ?", src.ID); err != nil {
		return fmt.Errorf("delete source %s: %w", path, err)
	}
	return tx.Commit()
}

// ReplaceRecords swaps the records of a source for recs and returns the
// new record IDs in the same order.
func (db *DB) ReplaceRecords(sourceID int64, recs []Record) ([]int64, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback() //nolint:errcheck

	if err := deleteRecords(tx, sourceID); err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(recs))
	for _, r := range recs {
		res, err := sq.Insert("records").
			Columns("source_id", "index_name", "object_id", "name", "body", "payload", "position").
			Values(sourceID, r.IndexName, r.ObjectID, r.Name, r.Body, r.Payload, r.Position).
			RunWith(tx).
			Exec()
		if err != nil {
			return nil, fmt.Errorf("insert record %s/%s: %w", r.IndexName, r.ObjectID, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return ids, nil
}

func deleteRecords(tx *sql.Tx, sourceID int64) error {
	rows, err := tx.Query("SELECT id FROM records WHERE source_id = ?", sourceID)
	if err != nil {
		return err
	}

	var recordIDs []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close() //nolint:errcheck
			return err
		}
		recordIDs = append(recordIDs, id)
	}
	rows.Close() //nolint:errcheck
	if err := rows.Err(); err != nil {
		return err
	}

	for _, id := range recordIDs {
		if _, err := tx.Exec("DELETE FROM vec_records WHERE record_id = ?", id); err != nil {
			return fmt.Errorf("delete embedding %d: %w", id, err)
		}
	}
	if _, err := tx.Exec("DELETE FROM records WHERE source_id = ?", sourceID); err != nil {
		return fmt.Errorf("delete records: %w", err)
	}
	return nil
}

// InsertEmbedding stores the vector of a record in the partition of the
// index the record belongs to.
func (db *DB) InsertEmbedding(recordID int64, indexName string, embedding []byte) error {
	_, err := db.conn.Exec(
		"INSERT INTO vec_records (record_id, index_name, embedding) VALUES (?, ?, ?)",
		recordID, indexName, embedding,
	)
	return err
}

// RecordsWithoutEmbedding lists up to limit records that have no vector yet.
func (db *DB) RecordsWithoutEmbedding(limit int) ([]Record, error) {
	query := sq.Select(recordColumns...).
		From("records r").
		LeftJoin("vec_records v ON v.record_id = r.id").
		Where(sq.Eq{"v.record_id": nil}).
		OrderBy("r.id")
	if limit > 0 {
		query = query.Limit(uint64(limit))
	}
	return db.queryRecords(query)
}

// AllRecords returns every record grouped by index in dump order.
func (db *DB) AllRecords() ([]Record, error) {
	return db.queryRecords(
		sq.Select(recordColumns...).
			From("records r").
			OrderBy("r.index_name", "r.source_id", "r.position"),
	)
}

// GetRecords returns the records for ids in the order of ids. Unknown IDs
// are skipped.
func (db *DB) GetRecords(ids []int64) ([]Record, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	recs, err := db.queryRecords(sq.Select(recordColumns...).From("records r").Where(sq.Eq{"r.id": ids}))
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]Record, len(recs))
	for _, r := range recs {
		byID[r.ID] = r
	}

	out := make([]Record, 0, len(ids))
	for _, id := range ids {
		if r, ok := byID[id]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (db *DB) queryRecords(query sq.SelectBuilder) ([]Record, error) {
	rows, err := query.RunWith(db.conn).Query()
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var recs []Record
	for rows.Next() {
		var r Record
		var name sql.NullString
		if err := rows.Scan(&r.ID, &r.SourceID, &r.IndexName, &r.ObjectID, &name, &r.Body, &r.Payload, &r.Position); err != nil {
			return nil, err
		}
		r.Name = name.String
		recs = append(recs, r)
	}
	return recs, rows.Err()
}

// SearchSimilar returns the limit nearest records of indexName to the
// query vector.
func (db *DB) SearchSimilar(indexName string, queryEmbedding []byte, limit int) ([]RecordWithScore, error) {
	rows, err := db.conn.Query(`
		SELECT
			r.id, r.source_id, r.index_name, r.object_id, r.name, r.body, r.payload, r.position,
			knn.distance
		FROM (
			SELECT record_id, distance
			FROM vec_records
			WHERE embedding MATCH ? AND k = ? AND index_name = ?
		) knn
		JOIN records r ON r.id = knn.record_id
		ORDER BY knn.distance
	`, queryEmbedding, limit, indexName)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var results []RecordWithScore
	for rows.Next() {
		var r RecordWithScore
		var name sql.NullString
		err := rows.Scan(
			&r.ID, &r.SourceID, &r.IndexName, &r.ObjectID, &name, &r.Body, &r.Payload, &r.Position,
			&r.Distance,
		)
		if err != nil {
			return nil, err
		}
		r.Name = name.String
		results = append(results, r)
	}

	return results, rows.Err()
}

func (db *DB) SourceCount() (int, error) {
	var count int
	err := db.conn.QueryRow("SELECT COUNT(*) FROM sources").Scan(&count)
	return count, err
}

func (db *DB) RecordCount() (int, error) {
	var count int
	err := db.conn.QueryRow("SELECT COUNT(*) FROM records").Scan(&count)
	return count, err
}

func (db *DB) EmbeddingCount() (int, error) {
	var count int
	err := db.conn.QueryRow("SELECT COUNT(*) FROM vec_records").Scan(&count)
	return count, err
}
