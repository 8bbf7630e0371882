package session

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quininer/fi/internal/search"
	"github.com/quininer/fi/internal/show"
)

func TestStartFrameRoundTrip(t *testing.T) {
	start := Start{
		Search: &search.Options{
			Keyword:  "^main$",
			Demangle: true,
			Size:     true,
		},
		Colored:   true,
		Hyperlink: true,
	}

	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, &start))

	var got Start
	require.NoError(t, ReadFrame(&buf, &got))
	require.Equal(t, start, got)
	require.Zero(t, buf.Len(), "frame must consume exactly its length")
}

func TestShowFrameRoundTrip(t *testing.T) {
	length := uint64(64)
	start := Start{
		Show: &show.Options{
			Address: "0x401000",
			Length:  &length,
			Dwarf:   true,
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, &start))

	var got Start
	require.NoError(t, ReadFrame(&buf, &got))
	require.Equal(t, start, got)
}

func TestExitFrameRoundTrip(t *testing.T) {
	for _, code := range []ExitCode{ExitOk, ExitFailure} {
		var buf bytes.Buffer
		require.NoError(t, WriteFrame(&buf, &Exit{Code: code}))

		var got Exit
		require.NoError(t, ReadFrame(&buf, &got))
		require.Equal(t, code, got.Code)
	}
}

func TestFrameLengthBoundary(t *testing.T) {
	var buf bytes.Buffer

	payload := make([]byte, MaxFrame)
	require.NoError(t, writeRawFrame(&buf, payload))

	got, err := readRawFrame(&buf)
	require.NoError(t, err)
	require.Len(t, got, MaxFrame)

	require.ErrorIs(t, writeRawFrame(&buf, make([]byte, MaxFrame+1)), ErrTooLong)
}

func TestFrameTruncatedPayload(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeRawFrame(&buf, []byte{1, 2, 3, 4}))

	short := buf.Bytes()[:4]
	_, err := readRawFrame(bytes.NewReader(short))
	require.Error(t, err)
}
