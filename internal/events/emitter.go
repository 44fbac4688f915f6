package events

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/AaronLay10/protoflow/internal/storage/postgres"
)

var buffer = NewRingBuffer(256)

var totalEmitted atomic.Int64

var (
	sinkMu   sync.RWMutex
	pgClient *postgres.Client
	output   io.Writer
)

// SetPostgresClient attaches a client that persists every non-debug event.
// nil detaches it.
func SetPostgresClient(client *postgres.Client) {
	sinkMu.Lock()
	pgClient = client
	sinkMu.Unlock()
}

// GetPostgresClient returns the attached client, or nil.
func GetPostgresClient() *postgres.Client {
	sinkMu.RLock()
	defer sinkMu.RUnlock()
	return pgClient
}

// SetOutput makes Emit write each event as one JSON line to w. nil stops
// line output.
func SetOutput(w io.Writer) {
	sinkMu.Lock()
	output = w
	sinkMu.Unlock()
}

type Event struct {
	Timestamp string                 `json:"ts"`
	Level     string                 `json:"level"`
	Name      string                 `json:"event"`
	Message   string                 `json:"msg,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// Emit records a runtime event: it is buffered, broadcast to live
// subscribers, written to the output and persisted. It returns the
// encoded event.
func Emit(level, name, msg string, fields map[string]interface{}) ([]byte, error) {
	if err := Validate(name); err != nil {
		return nil, err
	}

	ts := time.Now().UTC()
	e := Event{
		Timestamp: ts.Format(time.RFC3339Nano),
		Level:     level,
		Name:      name,
		Message:   msg,
		Fields:    fields,
	}
	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}

	buffer.Add(e)
	totalEmitted.Add(1)
	live.send(e)

	sinkMu.RLock()
	client, w := pgClient, output
	sinkMu.RUnlock()

	if w != nil {
		w.Write(append(b, '\n'))
	}
	// Debug events are per-pass noise and stay in memory only.
	if client != nil && level != "debug" {
		persist(client, ts, e)
	}
	return b, nil
}

// persist appends e to Postgres. The first failure is reported once as a
// system.error straight into the buffer; going through Emit would recurse.
func persist(client *postgres.Client, ts time.Time, e Event) {
	err := client.Append(ts, e.Level, e.Name, e.Message, e.Fields)
	if err == nil || client.HasLoggedError() {
		return
	}
	client.MarkErrorLogged()
	buffer.Add(Event{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Level:     "error",
		Name:      "system.error",
		Message:   "postgres append failed",
		Fields:    map[string]interface{}{"error": err.Error()},
	})
}

// TotalCount returns the number of events emitted since startup.
func TotalCount() int64 {
	return totalEmitted.Load()
}

func Snapshot() []Event {
	return buffer.Snapshot()
}

// Clear empties the recent-event buffer.
func Clear() {
	buffer.Clear()
}
