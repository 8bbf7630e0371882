// Package cmd wires the fi command tree.
package cmd

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/quininer/fi/internal/config"
	"github.com/quininer/fi/internal/output"
)

var Version = "dev"

var (
	verboseFlag bool
	noColorFlag bool
	ConfigDir   string
)

func NewRootCmd() *cobra.Command {
	cmd := newRootCmd()
	addListenCommand(cmd)
	addSearchCommand(cmd)
	addShowCommand(cmd)
	addCompleteCommand(cmd)
	return cmd
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "fi",
		Short:         "Interactive binary analysis tool",
		Long:          "fi — session-based analysis of ELF, Mach-O and WebAssembly binaries.",
		Version:       fmt.Sprintf("fi v%s", Version),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			config.SetConfigDir(ConfigDir)
			output.SetFlags(verboseFlag, noColorFlag)
			if verboseFlag {
				log.SetLevel(log.DebugLevel)
			} else {
				log.SetLevel(log.WarnLevel)
			}
			return nil
		},
	}

	rootCmd.SetVersionTemplate("{{.Version}}\n")

	pflags := rootCmd.PersistentFlags()
	pflags.BoolVarP(&verboseFlag, "verbose", "v", false, "Extra detail to stderr")
	pflags.BoolVar(&noColorFlag, "no-color", false, "Disable ANSI colors")
	pflags.StringVar(&ConfigDir, "config-dir", "", "Override config directory (default: ~/.fi)")

	// Environment variable bindings
	if v := os.Getenv("FI_HOME"); v != "" && ConfigDir == "" {
		ConfigDir = v
	}
	if os.Getenv("NO_COLOR") != "" {
		noColorFlag = true
	}

	return rootCmd
}

func Execute() error {
	cmd := NewRootCmd()
	return cmd.Execute()
}
