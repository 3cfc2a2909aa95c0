package kv

import (
	"context"
	"database/sql"
	"errors"

	_ "github.com/go-sql-driver/mysql"

	"filescan-service/internal/config"
)

// MySQLStore keeps every collection in one kv_records table; the
// auto-increment seq column provides the insertion order.
type MySQLStore struct {
	db *sql.DB
}

func NewMySQLStore(cfg *config.Config) (*MySQLStore, error) {
	db, err := sql.Open("mysql", cfg.MySQLDSN())
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.MySQL.MaxConnections)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConnections)
	db.SetConnMaxLifetime(cfg.MySQL.ConnectionLifetime)

	if err := db.Ping(); err != nil {
		return nil, err
	}

	store := &MySQLStore{db: db}
	if err := store.migrate(); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *MySQLStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS kv_records (
			seq        BIGINT NOT NULL AUTO_INCREMENT,
			collection VARCHAR(64) NOT NULL,
			id         VARCHAR(128) NOT NULL,
			doc        MEDIUMBLOB NOT NULL,
			PRIMARY KEY (seq),
			UNIQUE KEY uq_collection_id (collection, id)
		)`)
	return err
}

func (s *MySQLStore) Close() error {
	return s.db.Close()
}

func (s *MySQLStore) Get(ctx context.Context, collection, id string) ([]byte, bool, error) {
	var doc []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT doc FROM kv_records WHERE collection = ? AND id = ?`,
		collection, id,
	).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return doc, true, nil
}

func (s *MySQLStore) Put(ctx context.Context, collection, id string, value []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv_records (collection, id, doc) VALUES (?, ?, ?)
		 ON DUPLICATE KEY UPDATE doc = VALUES(doc)`,
		collection, id, value,
	)
	return err
}

func (s *MySQLStore) Delete(ctx context.Context, collection, id string) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM kv_records WHERE collection = ? AND id = ?`,
		collection, id,
	)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (s *MySQLStore) Keys(ctx context.Context, collection string, afterSeq int64, limit int) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, id FROM kv_records WHERE collection = ? AND seq > ? ORDER BY seq LIMIT ?`,
		collection, afterSeq, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Seq, &e.ID); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *MySQLStore) Count(ctx context.Context, collection string) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM kv_records WHERE collection = ?`,
		collection,
	).Scan(&count)
	return count, err
}
