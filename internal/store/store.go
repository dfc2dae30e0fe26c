// Package store persists a local history of deployments next to the env
// file, so `status` can show what was deployed when without asking the
// platform.
package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// DbFileName is the default filename for the deployment history database.
const DbFileName = "ocrdeploy.db"

// Record is one deployment as it was performed.
type Record struct {
	ID         int64
	EndpointID string
	Name       string
	Image      string
	TemplateID string
	Action     string // created, updated, skipped
	DeployedAt time.Time
}

// Actions recorded in history.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionSkipped = "skipped"
)

// Store persists deployment records in a SQLite database.
type Store struct {
	DB *sql.DB
}

// Open creates or connects to the history database at dbPath.
func Open(dbPath string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_fk=1", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	st := &Store{DB: db}
	if err := st.EnsureSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *Store) Close() error {
	if s == nil || s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

func (s *Store) EnsureSchema() error {
	_, err := s.DB.Exec(`CREATE TABLE IF NOT EXISTS deployments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		endpoint_id TEXT NOT NULL,
		name TEXT NOT NULL,
		image TEXT NOT NULL,
		template_id TEXT,
		action TEXT NOT NULL,
		deployed_at TEXT NOT NULL
	)`)
	return err
}

// Append records one deployment.
func (s *Store) Append(r Record) error {
	at := r.DeployedAt
	if at.IsZero() {
		at = time.Now()
	}
	_, err := s.DB.Exec(
		`INSERT INTO deployments(endpoint_id, name, image, template_id, action, deployed_at)
		 VALUES(?, ?, ?, ?, ?, ?)`,
		r.EndpointID, r.Name, r.Image, r.TemplateID, r.Action, at.UTC().Format(time.RFC3339))
	return err
}

// History returns the most recent deployments, newest first. limit <= 0
// returns everything.
func (s *Store) History(limit int) ([]Record, error) {
	q := `SELECT id, endpoint_id, name, image, template_id, action, deployed_at
	      FROM deployments ORDER BY id DESC`
	var rows *sql.Rows
	var err error
	if limit > 0 {
		rows, err = s.DB.Query(q+" LIMIT ?", limit)
	} else {
		rows, err = s.DB.Query(q)
	}
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Record
	for rows.Next() {
		r, err := scanRecord(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Last returns the most recent deployment for the named endpoint, or nil.
func (s *Store) Last(name string) (*Record, error) {
	row := s.DB.QueryRow(
		`SELECT id, endpoint_id, name, image, template_id, action, deployed_at
		 FROM deployments WHERE name = ? ORDER BY id DESC LIMIT 1`, name)

	r, err := scanRecord(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func scanRecord(scan func(dest ...any) error) (Record, error) {
	var r Record
	var tmpl sql.NullString
	var at string
	if err := scan(&r.ID, &r.EndpointID, &r.Name, &r.Image, &tmpl, &r.Action, &at); err != nil {
		return Record{}, err
	}
	r.TemplateID = tmpl.String
	if t, err := time.Parse(time.RFC3339, at); err == nil {
		r.DeployedAt = t
	}
	return r, nil
}
