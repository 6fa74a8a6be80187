package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"mediaorganiser/internal"
)

var watchCmd = &cobra.Command{
	Use:   "watch <input> [output]",
	Short: "Organise media files as they appear in a folder",
	Args:  cobra.RangeArgs(1, 2),
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

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runWatch(ctx, conf, input, output, cmd.OutOrStdout())
	},
}

// runWatch organises files dropped into input until ctx is done.
func runWatch(ctx context.Context, conf *internal.Config, input, output string, out io.Writer) error {
	if err := conf.Validate(); err != nil {
		return err
	}
	info, err := os.Stat(input)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("folder does not exist or is not a directory: %s", input)
	}
	format, err := conf.PathFormat()
	if err != nil {
		return err
	}

	logger, err := newLogger(conf)
	if err != nil {
		return err
	}
	defer logger.Close()

	resolver, closeResolver := newResolver(conf, logger)
	defer closeResolver()

	var session *internal.Session
	if conf.Session {
		session, err = internal.NewSession(output, input, format, false, conf.SessionLinks)
		if err != nil {
			return err
		}
		defer session.Close()
		if err := session.LogSessionStart(0); err != nil {
			logger.Warnf("session: %v", err)
		}
	}

	organiser, err := internal.NewOrganiser(internal.OrganiseOptions{
		InputDir:        input,
		OutputDir:       output,
		Format:          format,
		Workers:         1,
		RemoveEmptyDirs: conf.RemoveEmptyDirs,
		Resolver:        resolver,
		Session:         session,
		Log:             logger,
	})
	if err != nil {
		return err
	}

	watcher, err := internal.NewWatcher(conf.SettleDelay, []string{output}, input)
	if err != nil {
		return fmt.Errorf("failed to start filesystem watcher: %w", err)
	}
	defer watcher.Close()

	fmt.Fprintf(out, "Watching %s, organising into %s (Ctrl-C to stop)\n", input, output)
	logger.WithField("input", input).Info("filesystem watcher started")

	for {
		select {
		case <-ctx.Done():
			// Folders are only cleaned up on the way out: a camera may
			// still be copying into a directory that is empty for a moment.
			if conf.RemoveEmptyDirs {
				organiser.CleanupSourceDirs()
			}
			if session != nil {
				if err := session.LogSessionEnd(); err != nil {
					logger.Warnf("session: %v", err)
				}
			}
			report := organiser.Report()
			fmt.Fprintf(out, "Stopped: %d moved, %d duplicates, %d without a date, %d failed, %d empty folders removed\n",
				report.Moved+report.Renamed, report.Duplicates, report.Unresolved, report.Failed, len(report.RemovedDirs))
			return nil

		case event := <-watcher.Events():
			file, ok, err := internal.DetectMedia(event.Path, conf.MediaTypes)
			if err != nil {
				logger.WithField("file", event.Path).Warnf("failed to sniff file: %v", err)
				continue
			}
			if !ok {
				continue
			}
			result := organiser.OrganiseFile(file)
			switch {
			case result.Err != nil:
				fmt.Fprintf(out, "%s: %v\n", result.Src, result.Err)
			case result.Outcome == internal.OutcomeDuplicate:
				fmt.Fprintf(out, "%s: duplicate of %s\n", result.Src, result.Dest)
			default:
				fmt.Fprintf(out, "%s -> %s\n", result.Src, result.Dest)
			}

		case err := <-watcher.Errors():
			logger.Warnf("watcher error: %v", err)
		}
	}
}

func init() {
	watchCmd.Flags().StringVar(&formatFlag, "format", string(internal.FormatYearMonthDay),
		fmt.Sprintf("Folder layout, one of %q", internal.PathFormats()))
	watchCmd.Flags().BoolVar(&exiftoolFlag, "exiftool", false, "Also ask the exiftool binary for container dates")
	watchCmd.Flags().BoolVar(&linksFlag, "links", false, "Hard-link moved files into the session folder for browsing")

	rootCmd.AddCommand(watchCmd)
}
