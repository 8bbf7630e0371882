package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/quininer/fi/internal/config"
	"github.com/quininer/fi/internal/output"
	"github.com/quininer/fi/internal/session"
)

// runRemote ships a command to the session server and exits the process
// with the relayed status.
func runRemote(cmd *cobra.Command, start *session.Start) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	colored := cfg.WantColor(isTTY(os.Stdout)) && !output.NoColor()
	start.Colored = colored
	start.Hyperlink = cfg.WantHyperlink(colored)

	var socketPath string
	if env := os.Getenv(session.EnvSession); env != "" {
		socketPath = env
	} else {
		dir, err := session.RuntimeDir(cfg)
		if err != nil {
			return err
		}
		socketPath, err = session.Discover(dir)
		if err != nil {
			return err
		}
	}

	if output.IsVerbose() {
		fmt.Fprintf(cmd.ErrOrStderr(), "session socket: %s\n", socketPath)
	}

	code, err := session.Call(socketPath, start)
	if err != nil {
		return err
	}
	if code != output.ExitSuccess {
		os.Exit(code)
	}
	return nil
}

func isTTY(f *os.File) bool {
	st, err := f.Stat()
	if err != nil {
		return false
	}
	return st.Mode()&os.ModeCharDevice != 0
}

// demangleDefault folds the config default into the --demangle flag.
func demangleDefault(flag bool) bool {
	if flag {
		return true
	}
	cfg, err := config.Load()
	if err != nil {
		return false
	}
	return cfg.Demangle
}
