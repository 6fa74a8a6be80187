package internal

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func readManifest(t *testing.T, path string) []ManifestEvent {
	t.Helper()
	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("Failed to open manifest: %v", err)
	}
	defer file.Close()

	var events []ManifestEvent
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var event ManifestEvent
		if err := json.Unmarshal(scanner.Bytes(), &event); err != nil {
			t.Fatalf("Failed to parse JSON line %d: %v", len(events)+1, err)
		}
		events = append(events, event)
	}
	return events
}

func TestNewSession(t *testing.T) {
	tempDir := t.TempDir()

	session, err := NewSession(tempDir, "/input/test", FormatYearMonthDay, false, false)
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	defer session.Close()

	want := filepath.Join(tempDir, ".mediaorganiser", "sessions", session.ID)
	if session.SessionDir != want {
		t.Errorf("Expected session dir %s, got %s", want, session.SessionDir)
	}
	if _, err := os.Stat(session.ManifestPath()); os.IsNotExist(err) {
		t.Errorf("Manifest file not created: %s", session.ManifestPath())
	}
}

func TestSession_Manifest(t *testing.T) {
	tempDir := t.TempDir()

	session, err := NewSession(tempDir, "/input/photos", FormatYearMonth, false, false)
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}

	r := Resolution{Time: utc(2015, 2, 15, 10, 20, 30, 0), Source: "filename:date_time"}
	steps := []func() error{
		func() error { return session.LogSessionStart(4) },
		func() error {
			return session.LogMoved("/input/a.jpg", SaveResult{Outcome: OutcomeMoved, Dest: "/out/2015/02/a.jpg", Size: 10}, r)
		},
		func() error {
			return session.LogMoved("/input/b.jpg", SaveResult{Outcome: OutcomeRenamed, Dest: "/out/2015/02/b0.jpg", Size: 10}, r)
		},
		func() error {
			return session.LogSkippedDuplicate("/input/c.jpg", SaveResult{Outcome: OutcomeDuplicate, Dest: "/out/2015/02/c.jpg", Hash: "abc"})
		},
		func() error {
			return session.LogError("/input/d.jpg", CategorizeError("/input/d.jpg", &InvalidDateError{Name: "d"}))
		},
		func() error {
			return session.LogError("/input/e.jpg", CategorizeError("/input/e.jpg", os.ErrNotExist))
		},
		session.LogSessionEnd,
	}
	for i, step := range steps {
		if err := step(); err != nil {
			t.Fatalf("step %d failed: %v", i, err)
		}
	}
	session.Close()

	events := readManifest(t, session.ManifestPath())
	expected := []string{"session_start", "moved", "moved_renamed", "skipped_duplicate", "error", "error", "session_end"}
	if len(events) != len(expected) {
		t.Fatalf("Expected %d events, got %d", len(expected), len(events))
	}
	for i, want := range expected {
		if events[i].Event != want {
			t.Errorf("Event %d: expected '%s', got '%s'", i, want, events[i].Event)
		}
	}

	if events[0].Format != "YYYY/MM" || events[0].TotalFiles != 4 {
		t.Errorf("Unexpected session_start event: %+v", events[0])
	}
	if events[1].Taken != "2015-02-15T10:20:30Z" || events[1].Source != "filename:date_time" {
		t.Errorf("Unexpected moved event: %+v", events[1])
	}
	if events[3].Existing != "/out/2015/02/c.jpg" {
		t.Errorf("Expected existing path on duplicate, got %q", events[3].Existing)
	}
	if events[4].ErrorCategory != string(ErrorCategoryDate) {
		t.Errorf("Expected invalid_date category, got %q", events[4].ErrorCategory)
	}

	end := events[6]
	if end.Moved != 1 || end.Renamed != 1 || end.SkippedDuplicate != 1 || end.Unresolved != 1 || end.ErrorCount != 1 {
		t.Errorf("Unexpected session_end counts: %+v", end)
	}
}

func TestSession_Hardlinks(t *testing.T) {
	tempDir := t.TempDir()

	session, err := NewSession(tempDir, "/input", FormatYearMonthDay, false, true)
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	defer session.Close()

	r := Resolution{Time: utc(2020, 1, 1, 0, 0, 0, 0), Source: "metadata:exif"}
	var names []string
	for _, dir := range []string{"lib1", "lib2", "lib3"} {
		path := filepath.Join(tempDir, dir, "test.jpg")
		writeFile(t, path, []byte(dir))
		if err := session.LogMoved("/input/test.jpg", SaveResult{Outcome: OutcomeMoved, Dest: path}, r); err != nil {
			t.Fatalf("LogMoved failed: %v", err)
		}
		names = append(names, path)
	}
	session.Close()

	events := readManifest(t, session.ManifestPath())
	want := []string{"test.jpg", "test_2.jpg", "test_3.jpg"}
	for i, event := range events {
		if event.Browse != want[i] {
			t.Errorf("Expected browse name %s, got %s", want[i], event.Browse)
		}
		srcInfo, _ := os.Stat(names[i])
		linkInfo, err := os.Stat(filepath.Join(session.SessionDir, event.Browse))
		if err != nil {
			t.Fatalf("Hardlink not created: %v", err)
		}
		if !os.SameFile(srcInfo, linkInfo) {
			t.Errorf("Not a hardlink - different inodes")
		}
	}
}

func TestSession_DryRunHasNoLinks(t *testing.T) {
	tempDir := t.TempDir()

	session, err := NewSession(tempDir, "/input", FormatYearMonthDay, true, true)
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	defer session.Close()

	r := Resolution{Time: utc(2020, 1, 1, 0, 0, 0, 0), Source: "metadata:exif"}
	if err := session.LogMoved("/input/a.jpg", SaveResult{Outcome: OutcomeDryRun, Dest: "/out/a.jpg"}, r); err != nil {
		t.Fatalf("LogMoved failed: %v", err)
	}
	if stats := session.Stats(); stats.Moved != 0 {
		t.Errorf("Expected dry run not to count as moved, got %d", stats.Moved)
	}
}

func TestSession_WriteAfterClose(t *testing.T) {
	session, err := NewSession(t.TempDir(), "/input", FormatYearMonthDay, false, false)
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	session.Close()

	if err := session.LogSessionEnd(); err == nil {
		t.Error("Expected error writing to a closed session")
	}
	if err := session.Close(); err != nil {
		t.Errorf("Expected second Close to succeed, got %v", err)
	}
}
