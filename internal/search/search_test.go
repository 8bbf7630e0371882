package search

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/quininer/fi/internal/object"
	"github.com/quininer/fi/internal/output"
)

func testStdio() (*output.Stdio, *bytes.Buffer, *bytes.Buffer) {
	var out, errw bytes.Buffer
	return output.NewStdio(false, false, strings.NewReader(""), &out, &errw), &out, &errw
}

func testExplorer() *object.Explorer {
	text := &object.Section{
		Index: 0, Name: ".text", Addr: 0x1000, Size: 0x1000, Align: 16,
		Kind: object.SectionText,
	}
	rodata := &object.Section{
		Index: 1, Name: ".rodata", Addr: 0x4000, Size: 0x40, Align: 8,
		Kind: object.SectionReadOnlyData,
		Raw: func() ([]byte, error) {
			return []byte("....GCC: (GNU) 13.2....GCC: (clang)"), nil
		},
	}
	return &object.Explorer{
		File: &object.File{
			Format:   object.FormatELF,
			Arch:     object.ArchX86_64,
			Sections: []*object.Section{text, rodata},
			Symbols: []*object.Symbol{
				{Index: 0, Name: "foo", Addr: 0x1000, Size: 7, Kind: object.SymText, Section: 0, Global: true},
				{Index: 1, Name: "bar", Addr: 0x1010, Size: 3, Kind: object.SymText, Section: 0},
				{Index: 2, Name: "bar.cold", Addr: 0x1020, Size: 5, Kind: object.SymText, Section: 0},
			},
		},
	}
}

func TestValidateMutuallyExclusive(t *testing.T) {
	o := &Options{Keyword: "x", Callsite: true, Data: true}
	if err := o.Validate(); !errors.Is(err, ErrMutuallyExclusive) {
		t.Fatalf("want ErrMutuallyExclusive, got %v", err)
	}
}

func TestBySymbolWithSize(t *testing.T) {
	stdio, out, _ := testStdio()
	o := &Options{Keyword: "^foo$", Size: true}

	if err := Run(context.Background(), testExplorer(), o, stdio); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := fmt.Sprintf("0x%016x %10d T foo\nsum: 7\n", 0x1000, 7)
	if out.String() != want {
		t.Errorf("output:\n%q\nwant:\n%q", out.String(), want)
	}
}

func TestBySymbolEmptyMatchSum(t *testing.T) {
	stdio, out, _ := testStdio()
	o := &Options{Keyword: "^nothing$", Size: true}

	if err := Run(context.Background(), testExplorer(), o, stdio); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.String() != "sum: 0\n" {
		t.Errorf("output %q, want just the zero sum", out.String())
	}
}

func TestBySymbolSortName(t *testing.T) {
	stdio, out, _ := testStdio()
	o := &Options{Keyword: ".", SortName: true}

	if err := Run(context.Background(), testExplorer(), o, stdio); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3", len(lines))
	}
	for i, name := range []string{"bar", "bar.cold", "foo"} {
		if !strings.HasSuffix(lines[i], " "+name) {
			t.Errorf("line %d = %q, want suffix %q", i, lines[i], name)
		}
	}
}

func TestBySymbolOnlyDuplicate(t *testing.T) {
	stdio, out, _ := testStdio()
	o := &Options{Keyword: ".", OnlyDuplicate: true}

	if err := Run(context.Background(), testExplorer(), o, stdio); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// bar and bar.cold share the base name "bar"; only the second
	// occurrence survives.
	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	if len(lines) != 1 || !strings.HasSuffix(lines[0], " bar.cold") {
		t.Errorf("output %q, want only bar.cold", out.String())
	}
}

func TestBySymbolFilterSection(t *testing.T) {
	stdio, out, _ := testStdio()
	o := &Options{Keyword: ".", FilterSection: `\.data`}

	if err := Run(context.Background(), testExplorer(), o, stdio); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.String() != "" {
		t.Errorf("no symbol lives in .data, got %q", out.String())
	}
}

func TestByDataScan(t *testing.T) {
	stdio, out, _ := testStdio()
	o := &Options{Keyword: "GCC:", Data: true}

	if err := Run(context.Background(), testExplorer(), o, stdio); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d matches, want 2:\n%s", len(lines), out.String())
	}
	first := fmt.Sprintf("0x%016x\t%q\tGCC:", uint64(0x4004), ".rodata")
	if lines[0] != first {
		t.Errorf("first match = %q, want %q", lines[0], first)
	}
}

func TestSortResultsBySizeThenDefault(t *testing.T) {
	rs := []result{
		{idx: 2, name: "c", size: 30},
		{idx: 0, name: "a", size: 20},
		{idx: 1, name: "b", size: 10},
	}

	sortResults(rs, &Options{SortSize: true}, false)
	if rs[0].size != 10 || rs[2].size != 30 {
		t.Errorf("size sort broken: %+v", rs)
	}

	sortResults(rs, &Options{}, true)
	if rs[0].idx != 0 || rs[1].idx != 1 || rs[2].idx != 2 {
		t.Errorf("index tiebreak broken: %+v", rs)
	}
}

func TestBySymbolBadRegex(t *testing.T) {
	stdio, _, _ := testStdio()
	o := &Options{Keyword: "("}
	if err := Run(context.Background(), testExplorer(), o, stdio); err == nil {
		t.Fatal("bad regex must fail")
	}
}
