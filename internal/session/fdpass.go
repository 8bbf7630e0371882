package session

import (
	"fmt"
	"net"
	"os"

	"golang.org/x/sys/unix"
)

// Descriptors cross the socket one per ancillary message, each alongside a
// single placeholder data byte, in the fixed order stdin, stdout, stderr.

// SendFd passes one descriptor over the connection.
func SendFd(conn *net.UnixConn, f *os.File) error {
	rights := unix.UnixRights(int(f.Fd()))
	if _, _, err := conn.WriteMsgUnix([]byte{0}, rights, nil); err != nil {
		return fmt.Errorf("sending descriptor: %w", err)
	}
	return nil
}

// RecvFd receives one descriptor from the connection.
func RecvFd(conn *net.UnixConn, name string) (*os.File, error) {
	buf := make([]byte, 1)
	oob := make([]byte, unix.CmsgSpace(4))

	_, oobn, _, _, err := conn.ReadMsgUnix(buf, oob)
	if err != nil {
		return nil, fmt.Errorf("receiving descriptor: %w", err)
	}

	msgs, err := unix.ParseSocketControlMessage(oob[:oobn])
	if err != nil {
		return nil, fmt.Errorf("parsing control message: %w", err)
	}
	if len(msgs) != 1 {
		return nil, fmt.Errorf("expected one control message, got %d", len(msgs))
	}

	fds, err := unix.ParseUnixRights(&msgs[0])
	if err != nil {
		return nil, fmt.Errorf("parsing descriptor rights: %w", err)
	}
	if len(fds) != 1 {
		return nil, fmt.Errorf("expected one descriptor, got %d", len(fds))
	}

	return os.NewFile(uintptr(fds[0]), name), nil
}
