package telemetry

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubConn records every statement executed through database/sql, so the
// handler's DDL and inserts can be asserted without a live server.
type stubConn struct {
	mu    sync.Mutex
	execs []stubExec
}

type stubExec struct {
	query string
	args  []driver.Value
}

func (c *stubConn) take() []stubExec {
	c.mu.Lock()
	defer c.mu.Unlock()
	execs := c.execs
	c.execs = nil
	return execs
}

type stubDriver struct{ conn *stubConn }

func (d *stubDriver) Open(name string) (driver.Conn, error) { return d.conn, nil }

func (c *stubConn) Prepare(query string) (driver.Stmt, error) {
	return &stubStmt{conn: c, query: query}, nil
}
func (c *stubConn) Close() error              { return nil }
func (c *stubConn) Begin() (driver.Tx, error) { return nil, driver.ErrSkip }

type stubStmt struct {
	conn  *stubConn
	query string
}

func (s *stubStmt) Close() error  { return nil }
func (s *stubStmt) NumInput() int { return -1 }

func (s *stubStmt) Exec(args []driver.Value) (driver.Result, error) {
	s.conn.mu.Lock()
	defer s.conn.mu.Unlock()
	s.conn.execs = append(s.conn.execs, stubExec{query: s.query, args: args})
	return driver.RowsAffected(1), nil
}

func (s *stubStmt) Query(args []driver.Value) (driver.Rows, error) {
	return nil, driver.ErrSkip
}

var recordingConn = &stubConn{}

func init() {
	sql.Register("telemetryrecorder", &stubDriver{conn: recordingConn})
}

func openRecordingDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("telemetryrecorder", "recorder")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	recordingConn.take()
	return db
}

func TestSQLHandlerCreatesTable(t *testing.T) {
	db := openRecordingDB(t)

	_, err := NewSQLHandler(slog.NewTextHandler(io.Discard, nil), db)
	require.NoError(t, err)

	execs := recordingConn.take()
	require.Len(t, execs, 1)
	assert.Contains(t, execs[0].query, "CREATE TABLE IF NOT EXISTS chunkgraph_telemetry")
}

func TestSQLHandlerMirrorsErrors(t *testing.T) {
	db := openRecordingDB(t)

	h, err := NewSQLHandler(slog.NewTextHandler(io.Discard, nil), db)
	require.NoError(t, err)
	recordingConn.take()

	log := slog.New(h)
	ctx := WithBatchID(context.Background(), "batch-7")

	log.InfoContext(ctx, "routine progress")
	assert.Empty(t, recordingConn.take(), "below-error records must not reach the table")

	log.ErrorContext(ctx, "enrichment failed", "chunk_id", "chunk-3")

	execs := recordingConn.take()
	require.Len(t, execs, 1)
	assert.Contains(t, execs[0].query, "INSERT INTO chunkgraph_telemetry")
	require.Len(t, execs[0].args, 8)

	assert.Equal(t, "ERROR", execs[0].args[2])
	assert.Equal(t, "enrichment failed", execs[0].args[3])
	assert.Equal(t, "batch-7", execs[0].args[4])

	attrs := map[string]any{}
	rawAttrs, ok := execs[0].args[7].(string)
	require.True(t, ok)
	require.NoError(t, json.Unmarshal([]byte(rawAttrs), &attrs))
	assert.Equal(t, "chunk-3", attrs["chunk_id"])
}

func TestSQLHandlerWithAttrsKeepsTable(t *testing.T) {
	db := openRecordingDB(t)

	h, err := NewSQLHandler(slog.NewTextHandler(io.Discard, nil), db)
	require.NoError(t, err)
	recordingConn.take()

	derived := h.WithAttrs([]slog.Attr{slog.String("stage", "resolve")}).WithGroup("pipeline")
	slog.New(derived).Error("resolution failed")

	execs := recordingConn.take()
	require.Len(t, execs, 1)
	assert.True(t, strings.Contains(execs[0].query, "chunkgraph_telemetry"))
}
