package session

import (
	"fmt"
	"net"
	"os"

	"github.com/quininer/fi/internal/output"
)

// Call connects to the session socket, sends the command and the three
// standard descriptors, and returns the exit status relayed by the server.
// A connection that closes without an exit frame counts as failure.
func Call(socketPath string, start *Start) (int, error) {
	addr := &net.UnixAddr{Name: socketPath, Net: "unix"}
	conn, err := net.DialUnix("unix", nil, addr)
	if err != nil {
		return output.ExitError, fmt.Errorf("session connect failed: %w", err)
	}
	defer conn.Close()

	if err := WriteFrame(conn, start); err != nil {
		return output.ExitError, fmt.Errorf("sending command: %w", err)
	}

	for _, f := range []*os.File{os.Stdin, os.Stdout, os.Stderr} {
		if err := SendFd(conn, f); err != nil {
			return output.ExitError, err
		}
	}

	var exit Exit
	if err := ReadFrame(conn, &exit); err != nil {
		return output.ExitError, fmt.Errorf("session closed without exit frame: %w", err)
	}

	if exit.Code == ExitOk {
		return output.ExitSuccess, nil
	}
	return output.ExitError, nil
}
