package cleanup

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestCleanupTempFiles_RemovesMatchingPatterns(t *testing.T) {
	dir := t.TempDir()
	mustWrite(t, filepath.Join(dir, "printeer-abc123"), "x")
	mustWrite(t, filepath.Join(dir, "keep-me.txt"), "x")

	m := New(dir, zerolog.Nop())
	n := m.CleanupTempFiles()

	if n != 1 {
		t.Fatalf("expected 1 removal, got %d", n)
	}
	if _, err := os.Stat(filepath.Join(dir, "keep-me.txt")); err != nil {
		t.Fatalf("unrelated file should survive cleanup: %v", err)
	}
}

func TestCleanupOlderThan_SkipsRecentFiles(t *testing.T) {
	dir := t.TempDir()
	mustWrite(t, filepath.Join(dir, "chrome_profile"), "x")

	m := New(dir, zerolog.Nop())
	n := m.CleanupOlderThan(time.Hour)
	if n != 0 {
		t.Fatalf("expected recent file to survive, got %d removals", n)
	}

	n = m.CleanupOlderThan(0)
	if n != 1 {
		t.Fatalf("expected file older than 0 to be removed, got %d", n)
	}
}

func TestScheduleCleanup_TwiceIsNoOp(t *testing.T) {
	m := New(t.TempDir(), zerolog.Nop())
	m.ScheduleCleanup(time.Minute)
	first := m.cronJob
	m.ScheduleCleanup(time.Minute)
	if m.cronJob != first {
		t.Fatal("expected second ScheduleCleanup call to be a no-op")
	}
	m.StopScheduled()
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}
