// Package session implements the per-file query session: socket naming and
// discovery, the framed wire protocol, descriptor passing, and the server
// and client endpoints.
package session

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/quininer/fi/internal/config"
)

// EnvSession names the environment variable that pins the session socket
// and disables discovery.
const EnvSession = "FI_SESSION"

// HashPath hashes a path into the 8-byte lowercase-hex form used in socket
// file names. It is a pure function of the path's bytes.
func HashPath(path string) string {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], xxhash.Sum64String(path))
	return hex.EncodeToString(buf[:])
}

// RuntimeDir returns the directory session sockets live in: the config
// override, the user runtime directory, or the cache directory.
func RuntimeDir(cfg *config.Config) (string, error) {
	if cfg != nil && cfg.RuntimeDir != "" {
		return cfg.RuntimeDir, nil
	}
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return dir, nil
	}
	cache, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("no runtime or cache directory: %w", err)
	}
	return filepath.Join(cache, "fi"), nil
}

// SocketPath builds the session socket path for a target file, encoding the
// working directory and the absolute target path.
func SocketPath(dir, target string) (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting working directory: %w", err)
	}
	abs, err := filepath.Abs(target)
	if err != nil {
		return "", fmt.Errorf("resolving target path: %w", err)
	}
	return filepath.Join(dir, HashPath(cwd)+"-"+HashPath(abs)), nil
}

// Discover locates a session socket: FI_SESSION wins outright; otherwise
// the runtime directory is listed, sockets whose name starts with the
// working directory's hash sort first, and the first entry is taken.
func Discover(dir string) (string, error) {
	if path := os.Getenv(EnvSession); path != "" {
		return path, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("listing %s: %w", dir, err)
	}

	var sockets []string
	for _, entry := range entries {
		if entry.Type()&fs.ModeSocket != 0 {
			sockets = append(sockets, entry.Name())
		}
	}
	if len(sockets) == 0 {
		return "", fmt.Errorf("no session socket found in %s; run `fi listen` first", dir)
	}
	sort.Strings(sockets)

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting working directory: %w", err)
	}
	prefix := HashPath(cwd) + "-"
	for _, name := range sockets {
		if strings.HasPrefix(name, prefix) {
			return filepath.Join(dir, name), nil
		}
	}
	return filepath.Join(dir, sockets[0]), nil
}
