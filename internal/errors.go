package internal

import (
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"sync"
	"syscall"

	"github.com/fatih/color"
)

// ErrorCategory represents the type of error encountered
type ErrorCategory string

const (
	ErrorCategoryIO          ErrorCategory = "io_error"           // File system, permissions, disk space
	ErrorCategoryDate        ErrorCategory = "invalid_date"       // No capture time could be resolved
	ErrorCategoryMetadata    ErrorCategory = "metadata_error"     // File could not be read for metadata
	ErrorCategoryUnsupported ErrorCategory = "unsupported_format" // Unrecognized file format
	ErrorCategoryUnknown     ErrorCategory = "unknown_error"
)

// ErrorSeverity indicates how critical the error is
type ErrorSeverity string

const (
	ErrorSeverityCritical ErrorSeverity = "critical" // System-level issues (disk full, permissions)
	ErrorSeverityError    ErrorSeverity = "error"    // File-level issues (unreadable, move failed)
	ErrorSeverityWarning  ErrorSeverity = "warning"  // File left in place (no date)
)

// ProcessError represents a categorized error during file processing
type ProcessError struct {
	FilePath    string
	Category    ErrorCategory
	Severity    ErrorSeverity
	OriginalErr error
	Context     map[string]string // Additional context (dest, hash, ...)
	Suggestion  string
}

func (e *ProcessError) Error() string {
	return fmt.Sprintf("[%s/%s] %s: %v", e.Severity, e.Category, e.FilePath, e.OriginalErr)
}

func (e *ProcessError) Unwrap() error { return e.OriginalErr }

// CategorizeError classifies err for the run report and the session manifest.
func CategorizeError(filePath string, err error) *ProcessError {
	if err == nil {
		return nil
	}

	procErr := &ProcessError{
		FilePath:    filePath,
		OriginalErr: err,
		Context:     make(map[string]string),
	}

	var probeErr *ProbeError
	errStr := strings.ToLower(err.Error())

	switch {
	case errors.Is(err, ErrInvalidDate):
		procErr.Category = ErrorCategoryDate
		procErr.Severity = ErrorSeverityWarning
		procErr.Suggestion = "No metadata or recognised file name pattern - file left in place"

	case errors.Is(err, syscall.ENOSPC):
		procErr.Category = ErrorCategoryIO
		procErr.Severity = ErrorSeverityCritical
		procErr.Suggestion = "Free up disk space on the output drive and run again"

	case errors.Is(err, fs.ErrPermission):
		procErr.Category = ErrorCategoryIO
		procErr.Severity = ErrorSeverityCritical
		procErr.Suggestion = "Check file permissions on both input and output directories"

	case errors.Is(err, syscall.EROFS):
		procErr.Category = ErrorCategoryIO
		procErr.Severity = ErrorSeverityCritical
		procErr.Suggestion = "Output filesystem is read-only - check mount options"

	case errors.Is(err, syscall.EMFILE):
		procErr.Category = ErrorCategoryIO
		procErr.Severity = ErrorSeverityCritical
		procErr.Suggestion = "File descriptor limit reached - lower --workers or raise ulimit"

	case errors.Is(err, syscall.EIO):
		procErr.Category = ErrorCategoryIO
		procErr.Severity = ErrorSeverityError
		procErr.Suggestion = "I/O error - check disk health with SMART tools"

	case errors.Is(err, fs.ErrNotExist):
		procErr.Category = ErrorCategoryIO
		procErr.Severity = ErrorSeverityError
		procErr.Suggestion = "File disappeared during the run - check if the drive was disconnected"

	case errors.As(err, &probeErr):
		procErr.Category = ErrorCategoryMetadata
		procErr.Severity = ErrorSeverityError
		procErr.Suggestion = "File could not be read - check that it is not truncated"

	case strings.Contains(errStr, "unsupported") || strings.Contains(errStr, "unknown format"):
		procErr.Category = ErrorCategoryUnsupported
		procErr.Severity = ErrorSeverityWarning
		procErr.Suggestion = "File format not recognized - will be skipped"

	default:
		procErr.Category = ErrorCategoryUnknown
		procErr.Severity = ErrorSeverityError
		procErr.Suggestion = "Unexpected error - check logs for details"
	}

	return procErr
}

// ErrorStats tracks error statistics during a run. It is safe for
// concurrent use.
type ErrorStats struct {
	mu         sync.Mutex
	Total      int
	Critical   int
	Errors     int
	Warnings   int
	ByCategory map[ErrorCategory]int
	LastErrors []*ProcessError // Last 5 errors for quick diagnosis
}

func NewErrorStats() *ErrorStats {
	return &ErrorStats{
		ByCategory: make(map[ErrorCategory]int),
		LastErrors: make([]*ProcessError, 0, 5),
	}
}

func (s *ErrorStats) Add(err *ProcessError) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Total++
	s.ByCategory[err.Category]++

	switch err.Severity {
	case ErrorSeverityCritical:
		s.Critical++
	case ErrorSeverityError:
		s.Errors++
	case ErrorSeverityWarning:
		s.Warnings++
	}

	if len(s.LastErrors) >= 5 {
		s.LastErrors = s.LastErrors[1:]
	}
	s.LastErrors = append(s.LastErrors, err)
}

// Count returns the number of errors recorded so far.
func (s *ErrorStats) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Total
}

// GenerateReport creates a human-readable error report
func (s *ErrorStats) GenerateReport() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var report strings.Builder
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	bold := color.New(color.Bold).SprintFunc()

	fmt.Fprintf(&report, "\n%s\n\n", red(fmt.Sprintf("Run encountered %d errors:", s.Total)))

	if s.Critical > 0 {
		fmt.Fprintf(&report, "  %s %d (system-level issues)\n", red("Critical:"), s.Critical)
	}
	if s.Errors > 0 {
		fmt.Fprintf(&report, "  %s   %d (file-level issues)\n", red("Errors:"), s.Errors)
	}
	if s.Warnings > 0 {
		fmt.Fprintf(&report, "  %s %d (files left in place)\n", yellow("Warnings:"), s.Warnings)
	}

	report.WriteString("\n")
	report.WriteString(bold("Error categories:") + "\n")
	cats := make([]string, 0, len(s.ByCategory))
	for cat := range s.ByCategory {
		cats = append(cats, string(cat))
	}
	sort.Strings(cats)
	for _, cat := range cats {
		fmt.Fprintf(&report, "  - %s: %d\n", cat, s.ByCategory[ErrorCategory(cat)])
	}

	report.WriteString("\n")
	report.WriteString(bold("Recent errors:") + "\n")
	for i, err := range s.LastErrors {
		fmt.Fprintf(&report, "\n%d. %s\n", i+1, err.FilePath)
		fmt.Fprintf(&report, "   Category: %s | Severity: %s\n", err.Category, err.Severity)
		fmt.Fprintf(&report, "   Error: %v\n", err.OriginalErr)
		if err.Suggestion != "" {
			fmt.Fprintf(&report, "   Suggestion: %s\n", err.Suggestion)
		}
	}

	report.WriteString("\n")
	report.WriteString(s.generateSuggestions())

	return report.String()
}

func (s *ErrorStats) generateSuggestions() string {
	var suggestions strings.Builder
	suggestions.WriteString("Suggested next steps:\n")

	if s.ByCategory[ErrorCategoryIO] > 0 {
		suggestions.WriteString("  - Check disk space and permissions\n")
		suggestions.WriteString("  - Verify source media (SD card, external drive) is properly connected\n")
	}

	if s.ByCategory[ErrorCategoryDate] > 0 {
		suggestions.WriteString("  - Files without a date were left in the input directory\n")
		if s.ByCategory[ErrorCategoryDate] > s.Total/2 {
			suggestions.WriteString("  - Many files without a date - consider the --exiftool flag\n")
		}
	}

	suggestions.WriteString("  - Check the session manifest for the detailed error log\n")

	return suggestions.String()
}
