package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"golang.org/x/sync/errgroup"
)

// InspectOptions configures a dry look at a folder.
type InspectOptions struct {
	Format   PathFormat
	Workers  int
	Resolver *Resolver
	Progress Progress // optional
}

// InspectResults describes how the media files of a folder would be dated.
type InspectResults struct {
	FolderPath   string         `json:"folder_path"`
	TotalFiles   int            `json:"total_files"`
	TotalSize    int64          `json:"total_size_bytes"`
	BySource     map[string]int `json:"by_source"`
	ByFolder     map[string]int `json:"by_folder"`
	DateRange    DateRange      `json:"date_range"`
	Unresolved   []string       `json:"unresolved"`
	Failed       []string       `json:"failed"`
	Entries      []InspectEntry `json:"entries"`
	ScanDuration time.Duration  `json:"scan_duration"`
}

type DateRange struct {
	Earliest time.Time `json:"earliest"`
	Latest   time.Time `json:"latest"`
}

// InspectEntry is one resolved file and the folder it would go to.
type InspectEntry struct {
	Path   string    `json:"path"`
	Taken  time.Time `json:"taken"`
	Source string    `json:"source"`
	Folder string    `json:"folder"`
}

// Inspect resolves every media file under folder without moving anything.
func Inspect(ctx context.Context, folder string, cfg *Config, opts InspectOptions) (*InspectResults, error) {
	start := time.Now()
	if opts.Resolver == nil {
		return nil, fmt.Errorf("a resolver should be provided")
	}
	if _, ok := pathLayouts[opts.Format]; !ok {
		return nil, fmt.Errorf("unsupported path format %q", string(opts.Format))
	}
	progress := opts.Progress
	if progress == nil {
		progress = nopProgress{}
	}
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}

	files, err := ScanMediaFiles(folder, cfg)
	if err != nil {
		return nil, err
	}

	results := &InspectResults{
		FolderPath: folder,
		TotalFiles: len(files),
		BySource:   make(map[string]int),
		ByFolder:   make(map[string]int),
		Unresolved: []string{},
		Failed:     []string{},
	}

	var mu sync.Mutex
	progress.SetTotal(len(files))
	defer progress.Done()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, file := range files {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			defer progress.Inc()

			var size int64
			if info, err := os.Stat(file.Path); err == nil {
				size = info.Size()
			}
			res, err := opts.Resolver.Resolve(file)

			mu.Lock()
			defer mu.Unlock()
			results.TotalSize += size
			if err != nil {
				if CategorizeError(file.Path, err).Category == ErrorCategoryDate {
					results.Unresolved = append(results.Unresolved, file.Path)
				} else {
					results.Failed = append(results.Failed, file.Path)
				}
				return nil
			}
			rel, err := FormatPath(res.Time, opts.Format)
			if err != nil {
				return err
			}
			results.BySource[res.Source]++
			results.ByFolder[rel]++
			results.Entries = append(results.Entries, InspectEntry{
				Path:   file.Path,
				Taken:  res.Time,
				Source: res.Source,
				Folder: rel,
			})
			if results.DateRange.Earliest.IsZero() || res.Time.Before(results.DateRange.Earliest) {
				results.DateRange.Earliest = res.Time
			}
			if res.Time.After(results.DateRange.Latest) {
				results.DateRange.Latest = res.Time
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.Slice(results.Entries, func(i, j int) bool { return results.Entries[i].Path < results.Entries[j].Path })
	sort.Strings(results.Unresolved)
	sort.Strings(results.Failed)
	results.ScanDuration = time.Since(start)
	return results, nil
}

// DisplayInspect writes results to w as "table" or "json".
func DisplayInspect(w io.Writer, results *InspectResults, format string) error {
	switch format {
	case "json":
		return displayJSON(w, results)
	case "table", "":
		displayTable(w, results)
		return nil
	}
	return fmt.Errorf("unsupported output format %q (want table or json)", format)
}

func displayJSON(w io.Writer, results *InspectResults) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}

func displayTable(w io.Writer, results *InspectResults) {
	bold := color.New(color.Bold).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	fmt.Fprintf(w, "%s\n\n", bold("=== Media inspection: "+results.FolderPath+" ==="))

	fmt.Fprintf(w, "%s\n", bold("Overview:"))
	fmt.Fprintf(w, "  - %s media files (%s)\n", humanize.Comma(int64(results.TotalFiles)), humanize.Bytes(uint64(results.TotalSize)))
	resolved := results.TotalFiles - len(results.Unresolved) - len(results.Failed)
	fmt.Fprintf(w, "  - %s dated (%d%%)\n", green(humanize.Comma(int64(resolved))), percentage(resolved, results.TotalFiles))
	fmt.Fprintf(w, "  - Scan completed in %v\n", results.ScanDuration.Round(time.Millisecond))
	if !results.DateRange.Earliest.IsZero() {
		fmt.Fprintf(w, "  - Date range: %s to %s\n",
			results.DateRange.Earliest.Format("2006-01-02"),
			results.DateRange.Latest.Format("2006-01-02"))
	}

	if len(results.BySource) > 0 {
		fmt.Fprintf(w, "\n%s\n", bold("Dated by:"))
		for _, kv := range sortedCounts(results.BySource) {
			fmt.Fprintf(w, "  - %s: %d\n", kv.key, kv.count)
		}
	}

	if len(results.ByFolder) > 0 {
		fmt.Fprintf(w, "\n%s\n", bold("Target folders:"))
		folders := sortedCounts(results.ByFolder)
		for _, kv := range folders[:min(10, len(folders))] {
			fmt.Fprintf(w, "  - %s: %d\n", kv.key, kv.count)
		}
		if len(folders) > 10 {
			fmt.Fprintf(w, "  - ...and %d more folders\n", len(folders)-10)
		}
	}

	if len(results.Unresolved) > 0 {
		fmt.Fprintf(w, "\n%s\n", yellow(fmt.Sprintf("No date found (%d):", len(results.Unresolved))))
		for _, p := range results.Unresolved[:min(10, len(results.Unresolved))] {
			fmt.Fprintf(w, "  - %s\n", p)
		}
		if len(results.Unresolved) > 10 {
			fmt.Fprintf(w, "  - ...and %d more\n", len(results.Unresolved)-10)
		}
	}

	if len(results.Failed) > 0 {
		fmt.Fprintf(w, "\n%s\n", red(fmt.Sprintf("Unreadable (%d):", len(results.Failed))))
		for _, p := range results.Failed {
			fmt.Fprintf(w, "  - %s\n", p)
		}
	}

	if resolved > 0 {
		fmt.Fprintf(w, "\n%s\n", bold("Recommendations:"))
		fmt.Fprintf(w, "  - Ready to organise: %d media files\n", resolved)
		fmt.Fprintf(w, "    Run: mediaorganiser organise %s\n", results.FolderPath)
	}
}

type keyCount struct {
	key   string
	count int
}

// sortedCounts orders by count, descending, then by key.
func sortedCounts(m map[string]int) []keyCount {
	list := make([]keyCount, 0, len(m))
	for k, v := range m {
		list = append(list, keyCount{k, v})
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].count != list[j].count {
			return list[i].count > list[j].count
		}
		return strings.Compare(list[i].key, list[j].key) < 0
	})
	return list
}

func percentage(part, total int) int {
	if total == 0 {
		return 0
	}
	return (part * 100) / total
}
