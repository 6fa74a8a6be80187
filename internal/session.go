package internal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Session records one organise run as an append-only manifest under
// <output>/.mediaorganiser/sessions/<id>/. With links enabled, every moved
// file is also hard-linked into the session directory for browsing.
type Session struct {
	ID         string // Session ID (timestamp: 2025-01-15-103045)
	OutputDir  string
	SessionDir string
	InputDir   string
	Format     PathFormat
	DryRun     bool

	mu            sync.Mutex
	manifest      *os.File
	links         bool
	usedFilenames map[string]int
	stats         SessionStats
}

// SessionStats tracks what happened to the files of a session.
type SessionStats struct {
	TotalScanned     int
	Moved            int
	Renamed          int
	SkippedDuplicate int
	Unresolved       int
	Errors           int
}

// ManifestEvent represents a single event in the manifest log
type ManifestEvent struct {
	Event    string `json:"event"`
	Ts       string `json:"ts"`
	Src      string `json:"src,omitempty"`
	Dest     string `json:"dest,omitempty"`
	Hash     string `json:"hash,omitempty"`
	Browse   string `json:"browse,omitempty"`
	Size     int64  `json:"size,omitempty"`
	Existing string `json:"existing,omitempty"`
	Taken    string `json:"taken,omitempty"`
	Source   string `json:"source,omitempty"`
	Error    string `json:"error,omitempty"`

	ErrorCategory   string `json:"error_category,omitempty"`
	ErrorSeverity   string `json:"error_severity,omitempty"`
	ErrorSuggestion string `json:"error_suggestion,omitempty"`

	// Session start/end fields
	InputDir         string `json:"input_dir,omitempty"`
	Format           string `json:"format,omitempty"`
	DryRun           bool   `json:"dry_run,omitempty"`
	TotalFiles       int    `json:"total_files,omitempty"`
	TotalScanned     int    `json:"total_scanned,omitempty"`
	Moved            int    `json:"moved,omitempty"`
	Renamed          int    `json:"renamed,omitempty"`
	SkippedDuplicate int    `json:"skipped_duplicate,omitempty"`
	Unresolved       int    `json:"unresolved,omitempty"`
	ErrorCount       int    `json:"errors,omitempty"`
}

// NewSession creates the session directory and opens its manifest.
func NewSession(outputDir, inputDir string, format PathFormat, dryRun, links bool) (*Session, error) {
	sessionID := time.Now().Format("2006-01-02-150405")
	sessionDir := filepath.Join(outputDir, sessionDirName, "sessions", sessionID)

	if err := os.MkdirAll(sessionDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}

	manifestPath := filepath.Join(sessionDir, "manifest.jsonl")
	manifest, err := os.OpenFile(manifestPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create manifest file: %w", err)
	}

	return &Session{
		ID:            sessionID,
		OutputDir:     outputDir,
		SessionDir:    sessionDir,
		InputDir:      inputDir,
		Format:        format,
		DryRun:        dryRun,
		manifest:      manifest,
		links:         links && !dryRun,
		usedFilenames: make(map[string]int),
	}, nil
}

// ManifestPath is the location of the session's JSON lines log.
func (s *Session) ManifestPath() string {
	return filepath.Join(s.SessionDir, "manifest.jsonl")
}

func (s *Session) LogSessionStart(totalFiles int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.TotalScanned = totalFiles
	return s.writeEvent(ManifestEvent{
		Event:      "session_start",
		InputDir:   s.InputDir,
		Format:     string(s.Format),
		DryRun:     s.DryRun,
		TotalFiles: totalFiles,
	})
}

// LogMoved records a file placed in the library, hard-linking it into the
// session directory when links are enabled.
func (s *Session) LogMoved(src string, res SaveResult, r Resolution) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	event := ManifestEvent{
		Event:  "moved",
		Src:    src,
		Dest:   res.Dest,
		Hash:   res.Hash,
		Size:   res.Size,
		Taken:  r.Time.UTC().Format(time.RFC3339Nano),
		Source: r.Source,
	}
	switch res.Outcome {
	case OutcomeRenamed:
		event.Event = "moved_renamed"
		s.stats.Renamed++
	case OutcomeDryRun:
		event.Event = "dry_run"
	default:
		s.stats.Moved++
	}

	if s.links && res.Outcome != OutcomeDryRun {
		browse, err := s.createHardlink(res.Dest)
		if err != nil {
			return err
		}
		event.Browse = browse
	}
	return s.writeEvent(event)
}

func (s *Session) LogSkippedDuplicate(src string, res SaveResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.SkippedDuplicate++
	return s.writeEvent(ManifestEvent{
		Event:    "skipped_duplicate",
		Src:      src,
		Existing: res.Dest,
		Hash:     res.Hash,
		Size:     res.Size,
	})
}

// LogError records a categorized error. Unresolved dates are counted apart
// from other failures.
func (s *Session) LogError(src string, procErr *ProcessError) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if procErr.Category == ErrorCategoryDate {
		s.stats.Unresolved++
	} else {
		s.stats.Errors++
	}

	event := ManifestEvent{
		Event:           "error",
		Src:             src,
		Error:           procErr.OriginalErr.Error(),
		ErrorCategory:   string(procErr.Category),
		ErrorSeverity:   string(procErr.Severity),
		ErrorSuggestion: procErr.Suggestion,
	}
	if dest, ok := procErr.Context["dest"]; ok {
		event.Dest = dest
	}
	return s.writeEvent(event)
}

func (s *Session) LogSessionEnd() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeEvent(ManifestEvent{
		Event:            "session_end",
		TotalScanned:     s.stats.TotalScanned,
		Moved:            s.stats.Moved,
		Renamed:          s.stats.Renamed,
		SkippedDuplicate: s.stats.SkippedDuplicate,
		Unresolved:       s.stats.Unresolved,
		ErrorCount:       s.stats.Errors,
	})
}

// createHardlink links a library file into the session directory and
// returns the name used there. Callers hold s.mu.
func (s *Session) createHardlink(libraryFilePath string) (string, error) {
	basename := filepath.Base(libraryFilePath)

	count, exists := s.usedFilenames[basename]
	finalBasename := basename
	if exists {
		ext := filepath.Ext(basename)
		nameNoExt := strings.TrimSuffix(basename, ext)
		finalBasename = fmt.Sprintf("%s_%d%s", nameNoExt, count+1, ext)
	}
	s.usedFilenames[basename] = count + 1

	browsePath := filepath.Join(s.SessionDir, finalBasename)
	if err := os.Link(libraryFilePath, browsePath); err != nil {
		return "", fmt.Errorf("hardlink failed: %w", err)
	}
	return finalBasename, nil
}

func (s *Session) Stats() SessionStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.manifest == nil {
		return nil
	}
	err := s.manifest.Close()
	s.manifest = nil
	return err
}

// writeEvent writes a manifest event as a JSON line. Callers hold s.mu.
func (s *Session) writeEvent(event ManifestEvent) error {
	if s.manifest == nil {
		return fmt.Errorf("session %s is closed", s.ID)
	}
	event.Ts = time.Now().UTC().Format(time.RFC3339)

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if _, err := s.manifest.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write to manifest: %w", err)
	}
	return s.manifest.Sync()
}
