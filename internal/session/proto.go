package session

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"

	"github.com/quininer/fi/internal/search"
	"github.com/quininer/fi/internal/show"
)

// MaxFrame is the frame payload cap; a u16 length prefix cannot express
// more.
const MaxFrame = 65535

// ErrTooLong reports a frame payload over MaxFrame bytes.
var ErrTooLong = errors.New("frame too long")

// ExitCode is the command outcome relayed to the client.
type ExitCode uint8

const (
	ExitOk      ExitCode = 0
	ExitFailure ExitCode = 1
)

// Start opens a connection's single command. Exactly one of Search and Show
// is set; listen and complete never travel the wire.
type Start struct {
	Search    *search.Options `cbor:"search,omitempty"`
	Show      *show.Options   `cbor:"show,omitempty"`
	Colored   bool            `cbor:"colored,omitempty"`
	Hyperlink bool            `cbor:"hyperlink,omitempty"`
}

// Exit closes a connection's command.
type Exit struct {
	Code ExitCode `cbor:"code"`
}

var encMode cbor.EncMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
}

// WriteFrame encodes v and writes it as a length-prefixed frame: a
// little-endian u16 length followed by the canonical CBOR payload.
func WriteFrame(w io.Writer, v any) error {
	payload, err := encMode.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding frame: %w", err)
	}
	return writeRawFrame(w, payload)
}

func writeRawFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxFrame {
		return ErrTooLong
	}
	var hdr [2]byte
	binary.LittleEndian.PutUint16(hdr[:], uint16(len(payload)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// ReadFrame reads one length-prefixed frame and decodes it into v.
func ReadFrame(r io.Reader, v any) error {
	payload, err := readRawFrame(r)
	if err != nil {
		return err
	}
	if err := cbor.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("decoding frame: %w", err)
	}
	return nil
}

func readRawFrame(r io.Reader) ([]byte, error) {
	var hdr [2]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	payload := make([]byte, binary.LittleEndian.Uint16(hdr[:]))
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	return payload, nil
}
