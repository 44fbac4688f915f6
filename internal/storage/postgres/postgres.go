package postgres

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	_ "github.com/lib/pq"

	"github.com/AaronLay10/protoflow/internal/config"
)

// ErrNoProject is returned by LoadProject when no snapshot is stored.
var ErrNoProject = errors.New("no stored project")

// EventRow represents an event stored in Postgres.
type EventRow struct {
	EventID   int64                  `json:"event_id"`
	Timestamp time.Time              `json:"ts"`
	Level     string                 `json:"level"`
	Event     string                 `json:"event"`
	Message   *string                `json:"msg,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
	ProjectID string                 `json:"project_id"`
}

// ProjectRow is a stored project snapshot.
type ProjectRow struct {
	ProjectID string
	Revision  int64
	SavedAt   time.Time
	Document  []byte
}

// Client manages the Postgres connection for events and project snapshots.
type Client struct {
	db        *sql.DB
	projectID string

	mu          sync.Mutex
	errorLogged bool
}

// New creates a new Postgres client using environment variables.
// Returns nil if connection fails (caller should handle gracefully).
func New(projectID string) (*Client, error) {
	dsn, err := connString()
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	client := &Client{
		db:        db,
		projectID: projectID,
	}

	if err := client.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return client, nil
}

// connString builds a lib/pq connection string from PG* variables. The
// password may also come from the file named by PGPASSWORD_FILE.
func connString() (string, error) {
	host := getEnv("PGHOST", "127.0.0.1")
	port := getEnv("PGPORT", "5432")
	user := getEnv("PGUSER", "protoflow")
	dbname := getEnv("PGDATABASE", "protoflow")
	password, err := config.ResolveSecret("PGPASSWORD")
	if err != nil {
		return "", err
	}

	if password != "" {
		return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
			host, port, user, password, dbname), nil
	}
	return fmt.Sprintf("host=%s port=%s user=%s dbname=%s sslmode=disable",
		host, port, user, dbname), nil
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func (c *Client) createTables() error {
	query := `
		CREATE TABLE IF NOT EXISTS events (
			event_id   BIGSERIAL PRIMARY KEY,
			ts         TIMESTAMPTZ NOT NULL,
			level      TEXT NOT NULL,
			event      TEXT NOT NULL,
			msg        TEXT,
			fields     JSONB,
			project_id TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_events_ts ON events(ts DESC);
		CREATE INDEX IF NOT EXISTS idx_events_project_id ON events(project_id);

		CREATE TABLE IF NOT EXISTS projects (
			project_id TEXT NOT NULL,
			revision   BIGINT NOT NULL,
			saved_at   TIMESTAMPTZ NOT NULL,
			document   JSONB NOT NULL,
			PRIMARY KEY (project_id, revision)
		);
	`
	_, err := c.db.Exec(query)
	return err
}

// Append inserts an event into the database.
// Returns error if insert fails.
func (c *Client) Append(ts time.Time, level, event, msg string, fields map[string]interface{}) error {
	var fieldsJSON []byte
	var err error
	if fields != nil {
		fieldsJSON, err = json.Marshal(fields)
		if err != nil {
			return fmt.Errorf("failed to marshal fields: %w", err)
		}
	}

	var msgPtr *string
	if msg != "" {
		msgPtr = &msg
	}

	query := `
		INSERT INTO events (ts, level, event, msg, fields, project_id)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = c.db.Exec(query, ts, level, event, msgPtr, fieldsJSON, c.projectID)
	return err
}

// Query returns the last N events from the database in descending order by timestamp.
func (c *Client) Query(limit int) ([]EventRow, error) {
	limit = clampLimit(limit)

	query := `
		SELECT event_id, ts, level, event, msg, fields, project_id
		FROM events
		WHERE project_id = $1
		ORDER BY ts DESC
		LIMIT $2
	`
	rows, err := c.db.Query(query, c.projectID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []EventRow
	for rows.Next() {
		var e EventRow
		var fieldsJSON []byte
		var msg sql.NullString

		if err := rows.Scan(&e.EventID, &e.Timestamp, &e.Level, &e.Event, &msg, &fieldsJSON, &e.ProjectID); err != nil {
			return nil, err
		}

		if msg.Valid {
			e.Message = &msg.String
		}
		if len(fieldsJSON) > 0 {
			if err := json.Unmarshal(fieldsJSON, &e.Fields); err != nil {
				return nil, fmt.Errorf("failed to unmarshal fields: %w", err)
			}
		}

		events = append(events, e)
	}

	return events, rows.Err()
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 200
	}
	if limit > 10000 {
		return 10000
	}
	return limit
}

// SaveProject stores doc as the next revision of the project and returns
// the revision number.
func (c *Client) SaveProject(doc []byte) (int64, error) {
	if !json.Valid(doc) {
		return 0, errors.New("project document is not valid JSON")
	}

	query := `
		INSERT INTO projects (project_id, revision, saved_at, document)
		SELECT $1, COALESCE(MAX(revision), 0) + 1, $2, $3
		FROM projects WHERE project_id = $1
		RETURNING revision
	`
	var rev int64
	if err := c.db.QueryRow(query, c.projectID, time.Now().UTC(), doc).Scan(&rev); err != nil {
		return 0, fmt.Errorf("failed to save project: %w", err)
	}
	return rev, nil
}

// LoadProject returns the latest stored revision of the project.
func (c *Client) LoadProject() (*ProjectRow, error) {
	query := `
		SELECT project_id, revision, saved_at, document
		FROM projects
		WHERE project_id = $1
		ORDER BY revision DESC
		LIMIT 1
	`
	var row ProjectRow
	err := c.db.QueryRow(query, c.projectID).Scan(&row.ProjectID, &row.Revision, &row.SavedAt, &row.Document)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoProject
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load project: %w", err)
	}
	return &row, nil
}

// Ping checks the connection.
func (c *Client) Ping() error {
	return c.db.Ping()
}

// Close closes the database connection.
func (c *Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// MarkErrorLogged marks that an error has been logged (to avoid spam).
func (c *Client) MarkErrorLogged() {
	c.mu.Lock()
	c.errorLogged = true
	c.mu.Unlock()
}

// HasLoggedError returns true if an error has been logged.
func (c *Client) HasLoggedError() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errorLogged
}
