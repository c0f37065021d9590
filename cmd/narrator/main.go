// Narrator is a text-to-voice service. Long texts are split into chunks,
// each chunk is synthesized by the configured speech backend and the
// results are joined into one audio file.
//
// Usage:
//
//	narrator serve --config /path/to/narrator.yaml
//	narrator say -o hello.wav "Hello there"
//	narrator voices --gender female
//
// @title       Narrator API
// @version     1.0
// @description Chunked text-to-speech: long texts are split, synthesized per chunk and returned as one audio file.
// @license.name MIT
// @BasePath    /
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nadzzz/narrator/internal/config"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// loader loads configuration once the persistent flags are parsed.
type loader func() (*config.Config, error)

func newRootCmd() *cobra.Command {
	var configFile string

	root := &cobra.Command{
		Use:          "narrator",
		Short:        "Chunked text-to-voice generator",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "path to config file (e.g. configs/narrator.yaml)")

	load := func() (*config.Config, error) {
		cfg, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("loading configuration: %w", err)
		}
		config.SetupLogging(cfg.Logging)
		return cfg, nil
	}

	root.AddCommand(
		newServeCmd(load),
		newSayCmd(load),
		newVoicesCmd(load),
		newLanguagesCmd(load),
		newHistoryCmd(load),
		newHashPasswordCmd(),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "narrator %s\n", version)
		},
	}
}
