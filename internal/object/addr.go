package object

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ParseAddr parses a user-supplied address: decimal, or 0x-prefixed hex of
// up to 64 bits read big-endian.
func ParseAddr(value string) (uint64, error) {
	if hexval, ok := strings.CutPrefix(value, "0x"); ok {
		if hexval == "" {
			return 0, errors.New("empty hex value")
		}
		v, err := strconv.ParseUint(hexval, 16, 64)
		if err != nil {
			return 0, errors.Wrap(err, "hex decode failed")
		}
		return v, nil
	}

	v, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, errors.Wrap(err, "number parse failed")
	}
	return v, nil
}
