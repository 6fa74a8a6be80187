package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"mediaorganiser/internal"
)

// Version is replaced at startup by the embedded VERSION file.
var Version = "dev"

var configFlag string

var rootCmd = &cobra.Command{
	Use:   "mediaorganiser",
	Short: "Sort photos and videos into dated folders",
	Long: `Move photos and videos into <output>/<year>/<month>/<day> folders. The
capture date comes from embedded metadata first and from well-known camera and
messenger file name patterns second.`,
	Version:      Version,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "mediaorganiser", Version)
	},
}

func Execute() error {
	return rootCmd.Execute()
}

// ApplyVersion copies Version onto the root command.
func ApplyVersion() {
	rootCmd.Version = Version
}

func loadConfig() (*internal.Config, error) {
	conf, err := internal.LoadConfig(configFlag)
	if err != nil {
		return nil, err
	}
	return conf, nil
}

// newLogger opens the configured log file, or discards logs when none is set.
func newLogger(conf *internal.Config) (*internal.Logger, error) {
	if conf.LogFile == "" {
		return internal.NopLogger(), nil
	}
	return internal.NewLogger(conf.LogFile, conf.LogLevel)
}

// newResolver builds the date resolver. The returned func releases the
// exiftool process when one was started.
func newResolver(conf *internal.Config, logger *internal.Logger) (*internal.Resolver, func()) {
	var et *internal.ExifTool
	if conf.ExifTool {
		var err error
		et, err = internal.NewExifTool()
		if err != nil {
			logger.Warnf("exiftool unavailable, continuing without it: %v", err)
			et = nil
		}
	}
	probe := internal.NewFileProbe(logger, et)
	return internal.NewResolver(probe, internal.DefaultMatchers()), func() {
		if et != nil {
			et.Close()
		}
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "Config file (default: <user config dir>/mediaorganiser/mediaorganiser.toml)")
	rootCmd.AddCommand(versionCmd)
}
