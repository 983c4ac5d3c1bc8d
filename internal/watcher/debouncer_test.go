package watcher

import (
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
)

const testInterval = 30 * time.Millisecond

func receiveBatch(t *testing.T, d *Debouncer, timeout time.Duration) []Event {
	t.Helper()
	select {
	case batch := <-d.Output():
		return batch
	case <-time.After(timeout):
		t.Fatal("timed out waiting for debouncer batch")
		return nil
	}
}

func TestDebouncerSingleEvent(t *testing.T) {
	t.Parallel()
	d := NewDebouncer(testInterval)

	d.Add("main.c", OpWrite)

	batch := receiveBatch(t, d, time.Second)
	if len(batch) != 1 {
		t.Fatalf("expected 1 event, got %d", len(batch))
	}
	if batch[0].Path != "main.c" || batch[0].Op != OpWrite {
		t.Errorf("unexpected event %+v", batch[0])
	}
}

func TestDebouncerCollapsesSamePath(t *testing.T) {
	t.Parallel()
	d := NewDebouncer(testInterval)

	d.Add("main.c", OpCreate)
	d.Add("main.c", OpWrite)

	batch := receiveBatch(t, d, time.Second)
	if len(batch) != 1 {
		t.Fatalf("expected 1 event (collapsed), got %d", len(batch))
	}
	if batch[0].Op != OpWrite {
		t.Errorf("expected latest op write, got %s", batch[0].Op)
	}
}

func TestDebouncerSortsBatch(t *testing.T) {
	t.Parallel()
	d := NewDebouncer(testInterval)

	d.Add("z.h", OpWrite)
	d.Add("a.c", OpRemove)
	d.Add("m.h", OpCreate)

	batch := receiveBatch(t, d, time.Second)
	if len(batch) != 3 {
		t.Fatalf("expected 3 events, got %d", len(batch))
	}
	for i, want := range []string{"a.c", "m.h", "z.h"} {
		if batch[i].Path != want {
			t.Errorf("batch[%d] = %s, want %s", i, batch[i].Path, want)
		}
	}
}

func TestDebouncerStopDropsPending(t *testing.T) {
	t.Parallel()
	d := NewDebouncer(testInterval)

	d.Add("main.c", OpWrite)
	d.Stop()

	select {
	case batch := <-d.Output():
		t.Fatalf("unexpected batch after Stop: %+v", batch)
	case <-time.After(5 * testInterval):
	}
}

func TestOpString(t *testing.T) {
	t.Parallel()

	tests := map[Op]string{
		OpCreate: "create",
		OpWrite:  "write",
		OpRemove: "remove",
		OpRename: "rename",
		Op(42):   "unknown",
	}
	for op, want := range tests {
		if got := op.String(); got != want {
			t.Errorf("Op(%d).String() = %q, want %q", int(op), got, want)
		}
	}
}

func TestConvertOp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		op   fsnotify.Op
		want Op
		ok   bool
	}{
		{fsnotify.Create, OpCreate, true},
		{fsnotify.Write, OpWrite, true},
		{fsnotify.Remove, OpRemove, true},
		{fsnotify.Rename, OpRename, true},
		{fsnotify.Chmod, 0, false},
	}
	for _, tt := range tests {
		got, ok := convertOp(fsnotify.Event{Name: "x.c", Op: tt.op})
		if got != tt.want || ok != tt.ok {
			t.Errorf("convertOp(%s) = %v, %v; want %v, %v", tt.op, got, ok, tt.want, tt.ok)
		}
	}
}
