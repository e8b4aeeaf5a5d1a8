package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/jsamuelsen/go-ambient-pipeline/internal/platform/ambient"
)

// TestFactory creates loggers that write to a test's output, so log lines
// appear next to the test that produced them.
type TestFactory struct {
	tb testing.TB
}

// NewTestFactory returns a factory writing to tb.
func NewTestFactory(tb testing.TB) *TestFactory {
	return &TestFactory{tb: tb}
}

// CreateForCategory implements Factory. The category is not rendered.
func (f *TestFactory) CreateForCategory(string) *Logger {
	return NewLogger(&testSink{tb: f.tb})
}

type testSink struct {
	tb testing.TB
}

// LogSync writes rec in the layout
//
//	|<correlation-id>|<location>
//	      |data.<key> = <json>
//	    <message>
func (s *testSink) LogSync(ctx context.Context, rec Record) { //nolint:gocritic // Sink interface passes Record by value
	s.tb.Helper()

	var b strings.Builder

	if cid := ambient.CorrelationID(ctx); cid != "" {
		b.WriteString("|" + cid)
	}

	if rec.Location != "" {
		b.WriteString("|" + rec.Location)
	}

	keys := make([]string, 0, len(rec.Data))
	for k := range rec.Data {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, k := range keys {
		raw, err := json.Marshal(rec.Data[k])
		if err != nil {
			raw = []byte(fmt.Sprintf("%q", fmt.Sprint(rec.Data[k])))
		}

		fmt.Fprintf(&b, "\n      |data.%s = %s", k, raw)
	}

	fmt.Fprintf(&b, "\n    %s", rec.Message)

	if rec.Err != nil {
		s.tb.Logf("EXCEPTION: %s", rec.Message)
	}

	s.tb.Log(b.String())
}

// RecordingSink keeps every record it receives. It is safe for concurrent
// use and is intended for assertions in tests.
type RecordingSink struct {
	mu      sync.Mutex
	entries []RecordedEntry
}

// RecordedEntry is a record together with the ambient values that were
// visible when it was emitted.
type RecordedEntry struct {
	Record
	Ambient map[string]any
}

// LogSync implements Sink.
func (s *RecordingSink) LogSync(ctx context.Context, rec Record) { //nolint:gocritic // Sink interface passes Record by value
	entry := RecordedEntry{Record: rec, Ambient: ambient.Snapshot(ctx)}

	s.mu.Lock()
	s.entries = append(s.entries, entry)
	s.mu.Unlock()
}

// Entries returns a copy of the recorded entries.
func (s *RecordingSink) Entries() []RecordedEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	return slices.Clone(s.entries)
}

// CreateForCategory implements Factory; every category shares the sink.
func (s *RecordingSink) CreateForCategory(string) *Logger {
	return NewLogger(s)
}
