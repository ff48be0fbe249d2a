package logstore

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestStorePageNewestFirst(t *testing.T) {
	s := New(t.TempDir())
	s.Append(Info, "one")
	s.Append(Info, "two")
	s.Append(Info, "three")

	page, end := s.Page(0, 2, 0, false)
	if len(page) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(page))
	}
	if page[0].Text != "three" || page[1].Text != "two" {
		t.Fatalf("expected newest-first ordering, got %+v", page)
	}
	if end {
		t.Fatalf("expected more pages to remain")
	}
}

func TestStorePagePaginationAcross45Entries(t *testing.T) {
	s := New(t.TempDir())
	for i := 1; i <= 45; i++ {
		s.Append(Info, "e")
	}

	page0, end0 := s.Page(0, 20, 0, false)
	if len(page0) != 20 || end0 {
		t.Fatalf("page 0: expected 20 entries and end=false, got %d end=%v", len(page0), end0)
	}
	page1, end1 := s.Page(1, 20, 0, false)
	if len(page1) != 20 || end1 {
		t.Fatalf("page 1: expected 20 entries and end=false, got %d end=%v", len(page1), end1)
	}
	page2, end2 := s.Page(2, 20, 0, false)
	if len(page2) != 5 || !end2 {
		t.Fatalf("page 2: expected 5 entries and end=true, got %d end=%v", len(page2), end2)
	}
}

func TestStoreFirstReturnsOldestEntries(t *testing.T) {
	s := New(t.TempDir())
	s.Append(Info, "one")
	s.Append(Info, "two")
	s.Append(Info, "three")

	first := s.First(2)
	if len(first) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(first))
	}
	if first[0].Text != "one" || first[1].Text != "two" {
		t.Fatalf("expected insertion-order prefix, got %+v", first)
	}

	if all := s.First(10); len(all) != 3 {
		t.Fatalf("expected every entry when n exceeds length, got %d", len(all))
	}
}

func TestStorePagePastEndReturnsEmptyAndEnd(t *testing.T) {
	s := New(t.TempDir())
	s.Append(Info, "one")

	page, end := s.Page(10, 20, 0, false)
	if len(page) != 0 {
		t.Fatalf("expected empty page past the end, got %+v", page)
	}
	if !end {
		t.Fatalf("expected end=true past the end")
	}
}

func TestStorePageRevReversesWindow(t *testing.T) {
	s := New(t.TempDir())
	s.Append(Info, "one")
	s.Append(Info, "two")
	s.Append(Info, "three")

	fwd, _ := s.Page(0, 3, 0, false)
	rev, _ := s.Page(0, 3, 0, true)
	if len(fwd) != len(rev) {
		t.Fatalf("expected equal length, got %d and %d", len(fwd), len(rev))
	}
	for i := range fwd {
		if fwd[i].Text != rev[len(rev)-1-i].Text {
			t.Fatalf("expected rev to be the reverse of fwd, got %+v vs %+v", fwd, rev)
		}
	}
}

func TestStoreTickFreshnessWindow(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)
	s.Append(Error, "boom")

	base := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	if err := s.Tick(base, false); err != nil {
		t.Fatalf("first tick: %v", err)
	}

	path := filepath.Join(dir, "2026-07-31.log")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("expected flush on first tick: %v", err)
	}
	if !strings.Contains(string(data), "boom") {
		t.Fatalf("expected flushed entry, got %q", data)
	}

	s.Append(Info, "too-soon")
	if err := s.Tick(base.Add(30*time.Second), false); err != nil {
		t.Fatalf("second tick: %v", err)
	}
	data, _ = os.ReadFile(path)
	if strings.Contains(string(data), "too-soon") {
		t.Fatalf("did not expect flush within freshness window, got %q", data)
	}

	if err := s.Tick(base.Add(61*time.Second), false); err != nil {
		t.Fatalf("third tick: %v", err)
	}
	data, _ = os.ReadFile(path)
	if !strings.Contains(string(data), "too-soon") {
		t.Fatalf("expected flush after freshness window elapsed, got %q", data)
	}
}

func TestStoreTickForceBypassesFreshnessWindow(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)
	s.Append(Info, "first")
	base := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	if err := s.Tick(base, false); err != nil {
		t.Fatalf("first tick: %v", err)
	}

	s.Append(Info, "immediate")
	if err := s.Tick(base.Add(time.Second), true); err != nil {
		t.Fatalf("forced tick: %v", err)
	}

	path := filepath.Join(dir, "2026-07-31.log")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), "immediate") {
		t.Fatalf("expected forced flush to write immediately, got %q", data)
	}
}
