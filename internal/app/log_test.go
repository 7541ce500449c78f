package app

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestClosetHandler_Handle(t *testing.T) {
	ts := time.Date(2024, 6, 15, 14, 30, 45, 0, time.UTC)

	tests := []struct {
		name    string
		opID    string
		level   slog.Level
		message string
		attrs   []slog.Attr
		want    string
	}{
		{
			name:    "basic info message",
			opID:    "op-123",
			level:   slog.LevelInfo,
			message: "collection loaded",
			want:    "2024-06-15T14:30:45Z\tINFO\top-123\tcollection loaded\n",
		},
		{
			name:    "warn level",
			opID:    "op-456",
			level:   slog.LevelWarn,
			message: "discarding persisted session",
			want:    "2024-06-15T14:30:45Z\tWARN\top-456\tdiscarding persisted session\n",
		},
		{
			name:    "with record attrs",
			opID:    "op-789",
			level:   slog.LevelInfo,
			message: "item uploaded",
			attrs:   []slog.Attr{slog.String("id", "srv-1"), slog.Int("size", 42)},
			want:    "2024-06-15T14:30:45Z\tINFO\top-789\titem uploaded\tid=srv-1\tsize=42\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			h := newClosetHandler(&buf, tt.opID)

			r := slog.NewRecord(ts, tt.level, tt.message, 0)
			for _, a := range tt.attrs {
				r.AddAttrs(a)
			}

			if err := h.Handle(context.Background(), r); err != nil {
				t.Fatalf("Handle() error = %v", err)
			}

			if got := buf.String(); got != tt.want {
				t.Errorf("Handle() output =\n%q\nwant:\n%q", got, tt.want)
			}
		})
	}
}

func TestClosetHandler_WithAttrs(t *testing.T) {
	var buf bytes.Buffer
	h := newClosetHandler(&buf, "op-1")

	h2 := h.WithAttrs([]slog.Attr{slog.String("component", "gateway")}).(*closetHandler)

	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	r := slog.NewRecord(ts, slog.LevelInfo, "request", 0)
	r.AddAttrs(slog.String("path", "/items"))

	if err := h2.Handle(context.Background(), r); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	got := buf.String()
	if !strings.Contains(got, "component=gateway") {
		t.Errorf("expected pre-set attr component=gateway, got: %q", got)
	}
	if !strings.Contains(got, "path=/items") {
		t.Errorf("expected record attr path=/items, got: %q", got)
	}
}

func TestClosetHandler_WithAttrs_doesNotMutateOriginal(t *testing.T) {
	h := newClosetHandler(&bytes.Buffer{}, "op-1")
	h.attrs = []slog.Attr{slog.String("a", "1")}

	h2 := h.WithAttrs([]slog.Attr{slog.String("b", "2")}).(*closetHandler)

	if len(h.attrs) != 1 {
		t.Errorf("original handler attrs modified: got %d, want 1", len(h.attrs))
	}
	if len(h2.attrs) != 2 {
		t.Errorf("new handler attrs: got %d, want 2", len(h2.attrs))
	}
}

func TestClosetHandler_ConcurrentRecordsStayWhole(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newClosetHandler(&buf, "op-1"))

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			logger.Info("toggled", "id", "item-1", "favorite", true)
		}()
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	if len(lines) != n {
		t.Fatalf("got %d lines, want %d", len(lines), n)
	}
	for _, line := range lines {
		if !strings.HasSuffix(line, "\ttoggled\tid=item-1\tfavorite=true") {
			t.Errorf("malformed line: %q", line)
		}
	}
}

func TestNewLogger(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "log")

	logger, f, err := newLogger(dir, "test-op", false)
	if err != nil {
		t.Fatalf("newLogger() error = %v", err)
	}
	defer f.Close()

	logger.Info("hello", "k", "v")

	data, err := os.ReadFile(filepath.Join(dir, LogFileName))
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(data), "\ttest-op\thello\tk=v\n") {
		t.Errorf("log file = %q", data)
	}
}
