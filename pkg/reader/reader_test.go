package reader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	bolt "go.etcd.io/bbolt"

	"github.com/0xmhha/quota-monitor/pkg/logger"
	"github.com/0xmhha/quota-monitor/pkg/parser"
)

func newTestReader(t *testing.T) Reader {
	t.Helper()

	r, err := New(Config{
		PositionStore: NewMemoryPositionStore(),
		Parser:        parser.New(),
	}, logger.Noop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	t.Cleanup(func() { _ = r.Close() })
	return r
}

func usageLine(msgID, reqID string, output int) string {
	return fmt.Sprintf(`{"timestamp":"2026-01-15T10:00:00Z","type":"assistant","requestId":%q,"message":{"id":%q,"model":"claude-sonnet-4","usage":{"input_tokens":10,"output_tokens":%d}}}`,
		reqID, msgID, output) + "\n"
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
}

func appendFile(t *testing.T, path, content string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		t.Fatalf("Failed to open %s: %v", path, err)
	}
	defer f.Close()
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("Failed to append to %s: %v", path, err)
	}
}

func TestNewValidation(t *testing.T) {
	if _, err := New(Config{Parser: parser.New()}, logger.Noop()); err == nil {
		t.Error("New() without position store should fail")
	}

	if _, err := New(Config{PositionStore: NewMemoryPositionStore()}, logger.Noop()); err == nil {
		t.Error("New() without parser should fail")
	}
}

func TestReadIncremental(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "session.jsonl")

	writeFile(t, path, usageLine("msg1", "req1", 100)+usageLine("msg2", "req2", 200))

	r := newTestReader(t)
	ctx := context.Background()

	records, _, err := r.Read(ctx, path)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("first Read() returned %d records, want 2", len(records))
	}

	// No new data: second read is empty.
	records, _, err = r.Read(ctx, path)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if len(records) != 0 {
		t.Errorf("second Read() returned %d records, want 0", len(records))
	}

	// Appended data is picked up without re-reading old lines.
	appendFile(t, path, usageLine("msg3", "req3", 300))

	records, _, err = r.Read(ctx, path)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("third Read() returned %d records, want 1", len(records))
	}
	if records[0].MessageID != "msg3" {
		t.Errorf("record MessageID = %s, want msg3", records[0].MessageID)
	}
}

func TestReadUnterminatedLine(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "session.jsonl")

	// Second line has no trailing newline: a writer is mid-append.
	partial := `{"timestamp":"2026-01-15T10:01:00Z","type":"assistant","requestId":"req2","message":{"id":"msg2","model":"claude-sonnet-4","usage":{"output_tokens":2`
	writeFile(t, path, usageLine("msg1", "req1", 100)+partial)

	r := newTestReader(t)
	ctx := context.Background()

	records, _, err := r.Read(ctx, path)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("Read() returned %d records, want 1 (partial line not consumed)", len(records))
	}

	// Complete the line; the next read must return exactly it.
	appendFile(t, path, "00}}}\n")

	records, _, err = r.Read(ctx, path)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("Read() after completion returned %d records, want 1", len(records))
	}
	if records[0].Tokens.OutputValue() != 200 {
		t.Errorf("OutputValue = %d, want 200", records[0].Tokens.OutputValue())
	}
}

func TestReadTruncatedFile(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "session.jsonl")

	writeFile(t, path, usageLine("msg1", "req1", 100)+usageLine("msg2", "req2", 200))

	r := newTestReader(t)
	ctx := context.Background()

	if _, _, err := r.Read(ctx, path); err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	// Rewrite the file shorter than the stored offset.
	writeFile(t, path, usageLine("msg9", "req9", 900))

	records, _, err := r.Read(ctx, path)
	if err != nil {
		t.Fatalf("Read() after truncation error = %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("Read() returned %d records, want 1 (offset reset)", len(records))
	}
	if records[0].MessageID != "msg9" {
		t.Errorf("record MessageID = %s, want msg9", records[0].MessageID)
	}
}

func TestReadFrom(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "session.jsonl")

	line1 := usageLine("msg1", "req1", 100)
	writeFile(t, path, line1+usageLine("msg2", "req2", 200))

	r := newTestReader(t)
	ctx := context.Background()

	records, _, newOffset, err := r.ReadFrom(ctx, path, int64(len(line1)))
	if err != nil {
		t.Fatalf("ReadFrom() error = %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("ReadFrom() returned %d records, want 1", len(records))
	}
	if records[0].MessageID != "msg2" {
		t.Errorf("record MessageID = %s, want msg2", records[0].MessageID)
	}
	if newOffset <= int64(len(line1)) {
		t.Errorf("newOffset = %d, want > %d", newOffset, len(line1))
	}

	// ReadFrom must not touch the stored position.
	records, _, err = r.Read(ctx, path)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if len(records) != 2 {
		t.Errorf("Read() returned %d records, want 2 (position untouched)", len(records))
	}
}

func TestReadFromInvalidOffset(t *testing.T) {
	r := newTestReader(t)

	if _, _, _, err := r.ReadFrom(context.Background(), "/tmp/x.jsonl", -1); err != ErrInvalidOffset {
		t.Errorf("ReadFrom(-1) error = %v, want ErrInvalidOffset", err)
	}
}

func TestReset(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "session.jsonl")

	writeFile(t, path, usageLine("msg1", "req1", 100))

	r := newTestReader(t)
	ctx := context.Background()

	if _, _, err := r.Read(ctx, path); err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if err := r.Reset(path); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}

	records, _, err := r.Read(ctx, path)
	if err != nil {
		t.Fatalf("Read() after Reset error = %v", err)
	}
	if len(records) != 1 {
		t.Errorf("Read() after Reset returned %d records, want 1", len(records))
	}
}

func TestClosedReader(t *testing.T) {
	r := newTestReader(t)
	if err := r.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if _, _, err := r.Read(context.Background(), "/tmp/x.jsonl"); err != ErrReaderClosed {
		t.Errorf("Read() on closed reader error = %v, want ErrReaderClosed", err)
	}
	if err := r.Reset("/tmp/x.jsonl"); err != ErrReaderClosed {
		t.Errorf("Reset() on closed reader error = %v, want ErrReaderClosed", err)
	}

	// Close is idempotent.
	if err := r.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestReadContextCancelled(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "session.jsonl")
	writeFile(t, path, usageLine("msg1", "req1", 100))

	r := newTestReader(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, _, err := r.Read(ctx, path); err == nil {
		t.Error("Read() with cancelled context should fail")
	}
}

func TestMemoryPositionStore(t *testing.T) {
	store := NewMemoryPositionStore()

	// Unknown path starts at 0.
	offset, err := store.GetPosition("/unknown")
	if err != nil {
		t.Fatalf("GetPosition() error = %v", err)
	}
	if offset != 0 {
		t.Errorf("GetPosition() = %d, want 0", offset)
	}

	if err := store.SetPosition("/a", 1234); err != nil {
		t.Fatalf("SetPosition() error = %v", err)
	}

	offset, err = store.GetPosition("/a")
	if err != nil {
		t.Fatalf("GetPosition() error = %v", err)
	}
	if offset != 1234 {
		t.Errorf("GetPosition() = %d, want 1234", offset)
	}
}

func TestBoltPositionStore(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "positions.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		t.Fatalf("bolt.Open() error = %v", err)
	}
	defer db.Close()

	store, err := NewBoltPositionStore(db)
	if err != nil {
		t.Fatalf("NewBoltPositionStore() error = %v", err)
	}

	// Unknown path starts at 0.
	offset, err := store.GetPosition("/unknown")
	if err != nil {
		t.Fatalf("GetPosition() error = %v", err)
	}
	if offset != 0 {
		t.Errorf("GetPosition() = %d, want 0", offset)
	}

	if err := store.SetPosition("/a", 9876); err != nil {
		t.Fatalf("SetPosition() error = %v", err)
	}

	offset, err = store.GetPosition("/a")
	if err != nil {
		t.Fatalf("GetPosition() error = %v", err)
	}
	if offset != 9876 {
		t.Errorf("GetPosition() = %d, want 9876", offset)
	}

	// Overwrites are visible.
	if err := store.SetPosition("/a", 10); err != nil {
		t.Fatalf("SetPosition() error = %v", err)
	}
	offset, _ = store.GetPosition("/a")
	if offset != 10 {
		t.Errorf("GetPosition() after overwrite = %d, want 10", offset)
	}
}
