package session

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/quininer/fi/internal/object"
	"github.com/quininer/fi/internal/search"
)

func serverExplorer() *object.Explorer {
	return &object.Explorer{
		File: &object.File{
			Format: object.FormatELF,
			Arch:   object.ArchX86_64,
			Sections: []*object.Section{
				{Index: 0, Name: ".text", Addr: 0x1000, Size: 0x100, Kind: object.SectionText},
			},
			Symbols: []*object.Symbol{
				{Index: 0, Name: "foo", Addr: 0x1000, Size: 7, Kind: object.SymText, Section: 0, Global: true},
			},
		},
	}
}

// callSession drives one connection by hand: frame, descriptor triple, exit
// frame.
func callSession(t *testing.T, socketPath string, start *Start) (ExitCode, string, string) {
	t.Helper()
	code, stdout, stderr, err := fullSession(socketPath, t.TempDir(), start)
	require.NoError(t, err)
	return code, stdout, stderr
}

// rawSession is callSession without test plumbing, safe off the test
// goroutine.
func rawSession(socketPath, dir string, start *Start) (string, error) {
	_, stdout, _, err := fullSession(socketPath, dir, start)
	return stdout, err
}

func fullSession(socketPath, dir string, start *Start) (ExitCode, string, string, error) {
	conn, err := net.DialUnix("unix", nil, &net.UnixAddr{Name: socketPath, Net: "unix"})
	if err != nil {
		return ExitFailure, "", "", err
	}
	defer conn.Close()

	if err := WriteFrame(conn, start); err != nil {
		return ExitFailure, "", "", err
	}

	var files []*os.File
	for _, name := range []string{"stdin", "stdout", "stderr"} {
		f, err := os.Create(filepath.Join(dir, name))
		if err != nil {
			return ExitFailure, "", "", err
		}
		defer f.Close()
		files = append(files, f)
		if err := SendFd(conn, f); err != nil {
			return ExitFailure, "", "", err
		}
	}

	var exit Exit
	if err := ReadFrame(conn, &exit); err != nil {
		return ExitFailure, "", "", err
	}

	stdout, err := os.ReadFile(files[1].Name())
	if err != nil {
		return ExitFailure, "", "", err
	}
	stderr, err := os.ReadFile(files[2].Name())
	if err != nil {
		return ExitFailure, "", "", err
	}
	return exit.Code, string(stdout), string(stderr), nil
}

func startServer(t *testing.T) string {
	t.Helper()
	socketPath := filepath.Join(t.TempDir(), "fi.sock")

	srv, err := NewServer(socketPath, serverExplorer())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		srv.Listen(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("server did not stop")
		}
	})
	return socketPath
}

func TestServerRunsSearchCommand(t *testing.T) {
	socketPath := startServer(t)

	code, stdout, stderr := callSession(t, socketPath, &Start{
		Search: &search.Options{Keyword: "^foo$", Size: true},
	})
	require.Equal(t, ExitOk, code)
	require.Empty(t, stderr)
	require.Contains(t, stdout, " T foo\n")
	require.Contains(t, stdout, "sum: 7\n")
}

func TestServerReportsQueryFailure(t *testing.T) {
	socketPath := startServer(t)

	code, _, stderr := callSession(t, socketPath, &Start{
		Search: &search.Options{Keyword: "0x9999", Callsite: true},
	})
	require.Equal(t, ExitFailure, code)
	require.Contains(t, stderr, "fi: ")
}

func TestServerRejectsEmptyStart(t *testing.T) {
	socketPath := startServer(t)

	code, _, stderr := callSession(t, socketPath, &Start{})
	require.Equal(t, ExitFailure, code)
	require.Contains(t, stderr, "no command")
}

func TestServerConcurrentClients(t *testing.T) {
	socketPath := startServer(t)

	type outcome struct {
		stdout string
		err    error
	}
	results := make(chan outcome, 2)
	dirs := []string{t.TempDir(), t.TempDir()}
	for i := 0; i < 2; i++ {
		go func() {
			stdout, err := rawSession(socketPath, dirs[i], &Start{
				Search: &search.Options{Keyword: ""},
			})
			results <- outcome{stdout, err}
		}()
	}

	first := <-results
	second := <-results
	require.NoError(t, first.err)
	require.NoError(t, second.err)
	require.Equal(t, first.stdout, second.stdout, "both clients observe the same index")
	require.True(t, strings.Contains(first.stdout, "foo"))
}

func TestServerRemovesSocketOnShutdown(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "fi.sock")
	srv, err := NewServer(socketPath, serverExplorer())
	require.NoError(t, err)

	_, err = os.Stat(socketPath)
	require.NoError(t, err, "socket file exists while listening")

	srv.Shutdown()
	_, err = os.Stat(socketPath)
	require.True(t, os.IsNotExist(err), "socket file removed on shutdown")
}
