package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"mediaorganiser/internal"
)

var (
	formatFlag   string
	dryRunFlag   bool
	exiftoolFlag bool
	workersFlag  int
	linksFlag    bool
)

var organiseCmd = &cobra.Command{
	Use:     "organise <input> [output]",
	Aliases: []string{"organize"},
	Short:   "Move media files into dated folders",
	Args:    cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, err := loadConfig()
		if err != nil {
			return err
		}
		applyFlags(cmd, conf)

		input := args[0]
		output := conf.Output
		if len(args) == 2 {
			output = args[1]
		}
		if output == "" {
			return fmt.Errorf("missing output directory and no default set")
		}

		progress := internal.NewBarProgress(os.Stderr, "organising")
		_, err = runOrganise(cmd.Context(), conf, input, output, dryRunFlag, cmd.OutOrStdout(), progress)
		return err
	},
}

// applyFlags lets explicitly set flags override the config file.
func applyFlags(cmd *cobra.Command, conf *internal.Config) {
	if cmd.Flags().Changed("format") {
		conf.Format = formatFlag
	}
	if cmd.Flags().Changed("exiftool") {
		conf.ExifTool = exiftoolFlag
	}
	if cmd.Flags().Changed("workers") {
		conf.Workers = workersFlag
	}
	if cmd.Flags().Changed("links") {
		conf.SessionLinks = linksFlag
	}
}

// runOrganise organises input into output and prints a summary to out.
func runOrganise(ctx context.Context, conf *internal.Config, input, output string, dryRun bool, out io.Writer, progress internal.Progress) (*internal.Report, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	info, err := os.Stat(input)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("folder does not exist or is not a directory: %s", input)
	}
	format, err := conf.PathFormat()
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(conf)
	if err != nil {
		return nil, err
	}
	defer logger.Close()

	resolver, closeResolver := newResolver(conf, logger)
	defer closeResolver()

	var session *internal.Session
	if conf.Session && !dryRun {
		session, err = internal.NewSession(output, input, format, dryRun, conf.SessionLinks)
		if err != nil {
			return nil, err
		}
		defer session.Close()
	}

	if dryRun {
		fmt.Fprintln(out, "Dry run mode: no files will be moved")
	}

	report, err := internal.Organise(ctx, internal.OrganiseOptions{
		InputDir:        input,
		OutputDir:       output,
		Format:          format,
		DryRun:          dryRun,
		Workers:         conf.Workers,
		RemoveEmptyDirs: conf.RemoveEmptyDirs,
		MediaTypes:      conf.MediaTypes,
		Resolver:        resolver,
		Session:         session,
		Progress:        progress,
		Log:             logger,
	})
	if report != nil {
		printReport(out, report, session)
	}
	return report, err
}

func printReport(out io.Writer, report *internal.Report, session *internal.Session) {
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	fmt.Fprintf(out, "Found %s media files\n", humanize.Comma(int64(report.Scanned)))
	if report.DryRun > 0 {
		for _, r := range report.Results {
			if r.Err == nil {
				fmt.Fprintf(out, "  %s -> %s (%s)\n", r.Src, r.Dest, r.Resolution.Source)
			}
		}
		fmt.Fprintf(out, "%s would be moved\n", green(humanize.Comma(int64(report.DryRun))))
	}
	if moved := report.Moved + report.Renamed; moved > 0 {
		fmt.Fprintf(out, "%s moved (%d under an indexed name)\n", green(humanize.Comma(int64(moved))), report.Renamed)
	}
	if report.Duplicates > 0 {
		fmt.Fprintf(out, "%s duplicates left in place\n", yellow(humanize.Comma(int64(report.Duplicates))))
	}
	if report.Unresolved > 0 {
		fmt.Fprintf(out, "%s without a date left in place\n", yellow(humanize.Comma(int64(report.Unresolved))))
	}
	if len(report.RemovedDirs) > 0 {
		fmt.Fprintf(out, "%d empty folders removed\n", len(report.RemovedDirs))
	}
	fmt.Fprintf(out, "Done in %s\n", report.Duration.Round(time.Millisecond))

	if report.Failed > 0 || report.Unresolved > 0 {
		fmt.Fprint(out, report.Errors.GenerateReport())
	}
	if session != nil {
		fmt.Fprintf(out, "Session manifest: %s\n", session.ManifestPath())
	}
}

func init() {
	organiseCmd.Flags().StringVar(&formatFlag, "format", string(internal.FormatYearMonthDay),
		fmt.Sprintf("Folder layout, one of %q", internal.PathFormats()))
	organiseCmd.Flags().BoolVar(&dryRunFlag, "dry-run", false, "Show where files would go without moving them")
	organiseCmd.Flags().BoolVar(&exiftoolFlag, "exiftool", false, "Also ask the exiftool binary for container dates")
	organiseCmd.Flags().IntVar(&workersFlag, "workers", 0, "Files processed in parallel (default: number of CPUs)")
	organiseCmd.Flags().BoolVar(&linksFlag, "links", false, "Hard-link moved files into the session folder for browsing")

	rootCmd.AddCommand(organiseCmd)
}
