package internal

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// OrganiseOptions configures an organise run.
type OrganiseOptions struct {
	InputDir        string
	OutputDir       string
	Format          PathFormat
	DryRun          bool
	Workers         int
	RemoveEmptyDirs bool
	MediaTypes      []string

	Resolver *Resolver
	Session  *Session // optional
	Progress Progress // optional
	Log      *Logger  // optional
}

// FileResult is what happened to one file.
type FileResult struct {
	Src        string
	Dest       string
	Resolution Resolution
	Outcome    SaveOutcome
	Err        error
}

// Report summarises an organise run.
type Report struct {
	Scanned     int
	Moved       int
	Renamed     int
	Duplicates  int
	DryRun      int
	Unresolved  int
	Failed      int
	Results     []FileResult // ordered by source path
	RemovedDirs []string
	Errors      *ErrorStats
	Duration    time.Duration
}

// Organiser resolves, formats and moves single files. It is safe for
// concurrent use.
type Organiser struct {
	opts OrganiseOptions
	log  *Logger

	mu         sync.Mutex
	report     *Report
	sourceDirs map[string]struct{}
}

// NewOrganiser validates opts and prepares an empty report.
func NewOrganiser(opts OrganiseOptions) (*Organiser, error) {
	if strings.TrimSpace(opts.OutputDir) == "" {
		return nil, fmt.Errorf("an output directory should be provided")
	}
	if opts.Resolver == nil {
		return nil, fmt.Errorf("a resolver should be provided")
	}
	if _, ok := pathLayouts[opts.Format]; !ok {
		return nil, fmt.Errorf("unsupported path format %q", string(opts.Format))
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Progress == nil {
		opts.Progress = nopProgress{}
	}
	log := opts.Log
	if log == nil {
		log = NopLogger()
	}
	return &Organiser{
		opts:       opts,
		log:        log,
		report:     &Report{Errors: NewErrorStats()},
		sourceDirs: make(map[string]struct{}),
	}, nil
}

// OrganiseFile moves one file to <output>/<formatted date>/<name>. Errors are
// recorded in the report and the session as well as returned.
func (o *Organiser) OrganiseFile(file MediaFile) FileResult {
	result := FileResult{Src: file.Path}
	logger := o.log.WithField("file", file.Path)

	res, err := o.opts.Resolver.Resolve(file)
	if err != nil {
		return o.fail(result, err)
	}
	result.Resolution = res

	rel, err := FormatPath(res.Time, o.opts.Format)
	if err != nil {
		return o.fail(result, err)
	}
	destDir := filepath.Join(o.opts.OutputDir, filepath.FromSlash(rel))

	saved, err := SaveFile(destDir, file.Path, o.opts.DryRun)
	if err != nil {
		return o.fail(result, err)
	}
	result.Dest = saved.Dest
	result.Outcome = saved.Outcome

	logger = logger.WithFields(logrus.Fields{
		"dest":   saved.Dest,
		"source": res.Source,
		"taken":  res.Time.Format(time.RFC3339),
	})

	o.mu.Lock()
	switch saved.Outcome {
	case OutcomeMoved:
		o.report.Moved++
	case OutcomeRenamed:
		o.report.Renamed++
	case OutcomeDuplicate:
		o.report.Duplicates++
	case OutcomeDryRun:
		o.report.DryRun++
	}
	if saved.Outcome == OutcomeMoved || saved.Outcome == OutcomeRenamed {
		o.sourceDirs[filepath.Dir(file.Path)] = struct{}{}
	}
	o.report.Results = append(o.report.Results, result)
	o.mu.Unlock()

	if saved.Outcome == OutcomeDuplicate {
		logger.Info("skipped duplicate")
		if o.opts.Session != nil {
			if err := o.opts.Session.LogSkippedDuplicate(file.Path, saved); err != nil {
				logger.Warnf("session: %v", err)
			}
		}
		return result
	}

	logger.Info(saved.Outcome.String())
	if o.opts.Session != nil {
		if err := o.opts.Session.LogMoved(file.Path, saved, res); err != nil {
			logger.Warnf("session: %v", err)
		}
	}
	return result
}

func (o *Organiser) fail(result FileResult, err error) FileResult {
	result.Err = err
	procErr := CategorizeError(result.Src, err)
	o.report.Errors.Add(procErr)

	o.mu.Lock()
	if procErr.Category == ErrorCategoryDate {
		o.report.Unresolved++
	} else {
		o.report.Failed++
	}
	o.report.Results = append(o.report.Results, result)
	o.mu.Unlock()

	logger := o.log.WithFields(logrus.Fields{
		"file":     result.Src,
		"category": procErr.Category,
	})
	if procErr.Severity == ErrorSeverityWarning {
		logger.Warn(err)
	} else {
		logger.Error(err)
	}
	if o.opts.Session != nil {
		if err := o.opts.Session.LogError(result.Src, procErr); err != nil {
			logger.Warnf("session: %v", err)
		}
	}
	return result
}

// Run organises files with a bounded worker pool. A failing file never
// stops the batch; only cancellation of ctx does.
func (o *Organiser) Run(ctx context.Context, files []MediaFile) error {
	o.mu.Lock()
	o.report.Scanned += len(files)
	o.mu.Unlock()
	o.opts.Progress.SetTotal(len(files))
	defer o.opts.Progress.Done()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.opts.Workers)
	for _, file := range files {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			o.OrganiseFile(file)
			o.opts.Progress.Inc()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// CleanupSourceDirs removes directories emptied by moves, deepest first,
// walking up towards the input directory without removing it.
func (o *Organiser) CleanupSourceDirs() []string {
	if o.opts.DryRun || o.opts.InputDir == "" {
		return nil
	}
	root := filepath.Clean(o.opts.InputDir)

	o.mu.Lock()
	dirs := make([]string, 0, len(o.sourceDirs))
	for dir := range o.sourceDirs {
		dirs = append(dirs, filepath.Clean(dir))
	}
	o.sourceDirs = make(map[string]struct{})
	o.mu.Unlock()

	sort.Slice(dirs, func(i, j int) bool {
		di, dj := strings.Count(dirs[i], string(filepath.Separator)), strings.Count(dirs[j], string(filepath.Separator))
		if di != dj {
			return di > dj
		}
		return dirs[i] < dirs[j]
	})

	var removed []string
	for _, dir := range dirs {
		for isBelow(root, dir) {
			ok, err := RemoveEmptyDir(dir)
			if err != nil {
				o.log.WithField("dir", dir).Warnf("failed to remove empty directory: %v", err)
				break
			}
			if !ok {
				break
			}
			o.log.WithField("dir", dir).Info("removed empty directory")
			removed = append(removed, dir)
			dir = filepath.Dir(dir)
		}
	}

	o.mu.Lock()
	o.report.RemovedDirs = append(o.report.RemovedDirs, removed...)
	o.mu.Unlock()
	return removed
}

// isBelow reports whether dir is strictly inside root.
func isBelow(root, dir string) bool {
	rel, err := filepath.Rel(root, dir)
	if err != nil || rel == "." {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// Report returns a snapshot of the run so far, results ordered by source.
func (o *Organiser) Report() *Report {
	o.mu.Lock()
	defer o.mu.Unlock()
	r := *o.report
	r.Results = append([]FileResult(nil), o.report.Results...)
	r.RemovedDirs = append([]string(nil), o.report.RemovedDirs...)
	sort.Slice(r.Results, func(i, j int) bool { return r.Results[i].Src < r.Results[j].Src })
	return &r
}

// Organise scans opts.InputDir and organises every media file found there
// into opts.OutputDir.
func Organise(ctx context.Context, opts OrganiseOptions) (*Report, error) {
	start := time.Now()

	o, err := NewOrganiser(opts)
	if err != nil {
		return nil, err
	}

	files, err := ScanMediaFiles(opts.InputDir, &Config{Output: opts.OutputDir, MediaTypes: opts.MediaTypes})
	if err != nil {
		return nil, err
	}
	o.log.WithFields(logrus.Fields{
		"input":  opts.InputDir,
		"output": opts.OutputDir,
		"files":  len(files),
	}).Info("scan complete")

	if opts.Session != nil {
		if err := opts.Session.LogSessionStart(len(files)); err != nil {
			o.log.Warnf("session: %v", err)
		}
	}

	runErr := o.Run(ctx, files)
	if opts.RemoveEmptyDirs {
		o.CleanupSourceDirs()
	}

	if opts.Session != nil {
		if err := opts.Session.LogSessionEnd(); err != nil {
			o.log.Warnf("session: %v", err)
		}
	}

	report := o.Report()
	report.Duration = time.Since(start)
	return report, runErr
}
