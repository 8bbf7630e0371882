package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/quininer/fi/internal/config"
	"github.com/quininer/fi/internal/object"
	"github.com/quininer/fi/internal/session"
)

func addListenCommand(parent *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "listen PATH",
		Short: "Open a binary and serve queries over a session socket",
		Long: `Open a binary once and keep serving queries against it.

The session socket path is printed as a shell assignment; export it (or rely
on same-directory discovery) and run search/show commands against the
running session. The server exits on Ctrl+C and removes its socket.

Examples:
  fi listen ./a.out
  FI_SESSION=/tmp/fi.sock fi listen ./a.out`,
		Args: cobra.ExactArgs(1),
		RunE: runListen,
	}
	parent.AddCommand(cmd)
}

func runListen(cmd *cobra.Command, args []string) error {
	target := args[0]

	explorer, err := object.Open(target)
	if err != nil {
		return fmt.Errorf("opening %s: %w", target, err)
	}

	socketPath := os.Getenv(session.EnvSession)
	if socketPath == "" {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		dir, err := session.RuntimeDir(cfg)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("creating runtime directory: %w", err)
		}
		socketPath, err = session.SocketPath(dir, target)
		if err != nil {
			return err
		}
	}

	srv, err := session.NewServer(socketPath, explorer)
	if err != nil {
		return err
	}
	// Unlinks the socket on every exit path.
	defer srv.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(cmd.OutOrStdout(), "set -x %s %s\n", session.EnvSession, socketPath)
	log.WithField("socket", socketPath).Debug("session listening")

	return srv.Listen(ctx)
}
