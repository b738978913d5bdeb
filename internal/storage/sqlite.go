package storage

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	logx "bridgekit/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

// sqliteStore mirrors the file layout with two tables: blobs (working)
// and archive (keyed by stamp name).
type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
	cfg Config

	mu sync.Mutex
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, ioErr("open", "", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, ioErr("open", "", err)
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log, cfg: cfg}

	pragmas := []string{"PRAGMA journal_mode = WAL", "PRAGMA synchronous = NORMAL"}
	if cfg.BusyTimeout > 0 {
		pragmas = append(pragmas, fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			log.Debug("sqlite pragma not applied", logx.String("pragma", p), logx.Err(err))
		}
	}

	if err := st.migrate(); err != nil {
		_ = db.Close()
		return nil, ioErr("migrate", "", err)
	}
	log.Debug("sqlite store opened", logx.String("path", path))
	return st, nil
}

func (s *sqliteStore) migrate() error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.Exec(string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) Exists(fileID string) bool {
	if validateFileID(fileID) != nil {
		return false
	}
	var n int
	err := s.db.QueryRow(`SELECT COUNT(1) FROM blobs WHERE file_id = ?`, fileID).Scan(&n)
	if err != nil {
		s.log.Debug("exists check failed", logx.String("file_id", fileID), logx.Err(err))
		return false
	}
	return n > 0
}

func (s *sqliteStore) Load(fileID string) (string, error) {
	if err := validateFileID(fileID); err != nil {
		return "", err
	}
	var content string
	err := s.db.QueryRow(`SELECT content FROM blobs WHERE file_id = ?`, fileID).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", ioErr("load", fileID, err)
	}
	return content, nil
}

func (s *sqliteStore) Save(fileID, content string) error {
	if err := validateFileID(fileID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(
		`INSERT INTO blobs(file_id, content, updated_at) VALUES(?,?,?)
		 ON CONFLICT(file_id) DO UPDATE SET content=excluded.content, updated_at=excluded.updated_at`,
		fileID, content, s.cfg.now().UnixMilli(),
	)
	if err != nil {
		return ioErr("save", fileID, err)
	}
	s.log.Debug("blob saved", logx.String("file_id", fileID), logx.Int("bytes", len(content)))
	return nil
}

func (s *sqliteStore) Delete(fileID string) (bool, error) {
	if err := validateFileID(fileID); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.Exec(`DELETE FROM blobs WHERE file_id = ?`, fileID)
	if err != nil {
		return false, ioErr("delete", fileID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, ioErr("delete", fileID, err)
	}
	if n > 0 {
		s.log.Debug("blob deleted", logx.String("file_id", fileID))
	}
	return n > 0, nil
}

func (s *sqliteStore) ListFiles() ([]string, error) {
	return s.list("list", `SELECT file_id FROM blobs ORDER BY file_id`)
}

func (s *sqliteStore) ListArchive() ([]string, error) {
	return s.list("list archive", `SELECT stamp_name FROM archive ORDER BY stamp_name`)
}

func (s *sqliteStore) list(op, query string) ([]string, error) {
	rows, err := s.db.Query(query)
	if err != nil {
		return nil, ioErr(op, "", err)
	}
	defer rows.Close()
	out := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, ioErr(op, "", err)
		}
		out = append(out, name)
	}
	if err := rows.Err(); err != nil {
		return nil, ioErr(op, "", err)
	}
	return out, nil
}

func (s *sqliteStore) Archive(fileID string) (bool, error) {
	if err := validateFileID(fileID); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return false, ioErr("archive", fileID, err)
	}
	defer func() { _ = tx.Rollback() }()

	var content string
	err = tx.QueryRow(`SELECT content FROM blobs WHERE file_id = ?`, fileID).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, ioErr("archive", fileID, err)
	}

	now := s.cfg.now()
	stamp := StampName(fileID, now)
	if _, err := tx.Exec(`DELETE FROM archive WHERE stamp_name IN (?, ?)`, fileID, stamp); err != nil {
		return false, ioErr("archive", fileID, err)
	}
	if _, err := tx.Exec(
		`INSERT INTO archive(stamp_name, file_id, content, archived_at) VALUES(?,?,?,?)`,
		stamp, fileID, content, now.UnixMilli(),
	); err != nil {
		return false, ioErr("archive", fileID, err)
	}
	if _, err := tx.Exec(`DELETE FROM blobs WHERE file_id = ?`, fileID); err != nil {
		return false, ioErr("archive", fileID, err)
	}
	if err := tx.Commit(); err != nil {
		return false, ioErr("archive", fileID, err)
	}
	s.log.Debug("blob archived", logx.String("file_id", fileID), logx.String("stamp", stamp))
	return true, nil
}

func (s *sqliteStore) ModTime(fileID string) (time.Time, error) {
	if err := validateFileID(fileID); err != nil {
		return time.Time{}, err
	}
	var ms int64
	err := s.db.QueryRow(`SELECT updated_at FROM blobs WHERE file_id = ?`, fileID).Scan(&ms)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, ErrNotFound
	}
	if err != nil {
		return time.Time{}, ioErr("stat", fileID, err)
	}
	return time.UnixMilli(ms), nil
}

func (s *sqliteStore) HasDefaultSettings(class, id string) bool {
	return s.Exists(SettingsFileID(class, id))
}

func (s *sqliteStore) LoadDefaultSettings(class, id string) (string, error) {
	return s.Load(SettingsFileID(class, id))
}

func (s *sqliteStore) SaveDefaultSettings(class, id, content string) error {
	return s.Save(SettingsFileID(class, id), content)
}
