package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"mediaorganiser/internal"
)

var (
	outputFormatFlag  string
	inspectFormatFlag string
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <input>",
	Short: "Show how media files would be dated, without moving them",
	Long: `Resolve the capture date of every media file under a folder and report
which strategy dated it, the date range, the target folders and the files no
strategy could date.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, err := loadConfig()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("format") {
			conf.Format = inspectFormatFlag
		}
		var progress internal.Progress
		if outputFormatFlag != "json" {
			progress = internal.NewBarProgress(os.Stderr, "inspecting")
		}
		return runInspect(cmd.Context(), conf, args[0], outputFormatFlag, cmd.OutOrStdout(), progress)
	},
}

func runInspect(ctx context.Context, conf *internal.Config, folder, outputFormat string, out io.Writer, progress internal.Progress) error {
	if err := conf.Validate(); err != nil {
		return err
	}
	info, err := os.Stat(folder)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("folder does not exist or is not a directory: %s", folder)
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

	results, err := internal.Inspect(ctx, folder, conf, internal.InspectOptions{
		Format:   format,
		Workers:  conf.Workers,
		Resolver: resolver,
		Progress: progress,
	})
	if err != nil {
		return fmt.Errorf("failed to inspect folder: %w", err)
	}
	return internal.DisplayInspect(out, results, outputFormat)
}

func init() {
	inspectCmd.Flags().StringVar(&outputFormatFlag, "format-output", "table", "Output format: table, json")
	inspectCmd.Flags().StringVar(&inspectFormatFlag, "format", string(internal.FormatYearMonthDay),
		fmt.Sprintf("Folder layout, one of %q", internal.PathFormats()))

	rootCmd.AddCommand(inspectCmd)
}
