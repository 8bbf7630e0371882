package session

import (
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"
)

func unixPair(t *testing.T) (*net.UnixConn, *net.UnixConn) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pair.sock")
	addr := &net.UnixAddr{Name: path, Net: "unix"}

	ln, err := net.ListenUnix("unix", addr)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	type accepted struct {
		conn *net.UnixConn
		err  error
	}
	ch := make(chan accepted, 1)
	go func() {
		conn, err := ln.AcceptUnix()
		ch <- accepted{conn, err}
	}()

	client, err := net.DialUnix("unix", nil, addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	server := <-ch
	if server.err != nil {
		t.Fatalf("accept: %v", server.err)
	}

	t.Cleanup(func() {
		client.Close()
		server.conn.Close()
	})
	return client, server.conn
}

func TestFdPassRoundTrip(t *testing.T) {
	client, server := unixPair(t)

	path := filepath.Join(t.TempDir(), "payload")
	if err := os.WriteFile(path, []byte("through the socket"), 0o600); err != nil {
		t.Fatal(err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	if err := SendFd(client, f); err != nil {
		t.Fatalf("send: %v", err)
	}

	received, err := RecvFd(server, "payload")
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	defer received.Close()

	content, err := io.ReadAll(received)
	if err != nil {
		t.Fatalf("reading received fd: %v", err)
	}
	if string(content) != "through the socket" {
		t.Errorf("got %q through the passed descriptor", content)
	}
}

func TestFdPassOrderedTriple(t *testing.T) {
	client, server := unixPair(t)

	dir := t.TempDir()
	names := []string{"stdin", "stdout", "stderr"}
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(name), 0o600); err != nil {
			t.Fatal(err)
		}
	}

	done := make(chan error, 1)
	go func() {
		for _, name := range names {
			f, err := os.Open(filepath.Join(dir, name))
			if err != nil {
				done <- err
				return
			}
			err = SendFd(client, f)
			f.Close()
			if err != nil {
				done <- err
				return
			}
		}
		done <- nil
	}()

	for _, want := range names {
		f, err := RecvFd(server, want)
		if err != nil {
			t.Fatalf("recv %s: %v", want, err)
		}
		content, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			t.Fatal(err)
		}
		if string(content) != want {
			t.Errorf("descriptor order broken: got %q, want %q", content, want)
		}
	}

	if err := <-done; err != nil {
		t.Fatalf("send side: %v", err)
	}
}
