package object

import (
	"fmt"
	"testing"
)

func TestParseAddrDecimal(t *testing.T) {
	v, err := ParseAddr("4096")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 4096 {
		t.Errorf("got %d, want 4096", v)
	}
}

func TestParseAddrHex(t *testing.T) {
	cases := []struct {
		in   string
		want uint64
	}{
		{"0x0", 0},
		{"0x1000", 0x1000},
		{"0xdeadbeef", 0xdeadbeef},
		{"0xffffffffffffffff", 0xffffffffffffffff},
		{"0x00000000000001", 1},
	}
	for _, c := range cases {
		v, err := ParseAddr(c.in)
		if err != nil {
			t.Fatalf("ParseAddr(%q): %v", c.in, err)
		}
		if v != c.want {
			t.Errorf("ParseAddr(%q) = %#x, want %#x", c.in, v, c.want)
		}
	}
}

func TestParseAddrRoundTrip(t *testing.T) {
	for _, x := range []uint64{0, 1, 0x7f, 0x1000, 1<<63 - 1, 1 << 63, 0xffffffffffffffff} {
		v, err := ParseAddr(fmt.Sprintf("0x%x", x))
		if err != nil {
			t.Fatalf("round trip %#x: %v", x, err)
		}
		if v != x {
			t.Errorf("round trip %#x came back as %#x", x, v)
		}
	}
}

func TestParseAddrErrors(t *testing.T) {
	for _, in := range []string{"", "0x", "0xfffffffffffffffff", "zzz", "-1"} {
		if _, err := ParseAddr(in); err == nil {
			t.Errorf("ParseAddr(%q) should fail", in)
		}
	}
}
