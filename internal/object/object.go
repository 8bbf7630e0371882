// Package object provides a format-neutral read-only view over ELF, Mach-O
// and WebAssembly files, plus the lazily built indices every query runs on.
package object

import (
	"bytes"

	"github.com/pkg/errors"
)

var (
	// ErrBadFormat reports a target whose headers could not be parsed.
	ErrBadFormat = errors.New("bad object format")
	// ErrNotFound reports an address that resolves to no symbol or section.
	ErrNotFound = errors.New("not found")
)

// Format identifies the container format of a parsed file.
type Format int

const (
	FormatELF Format = iota + 1
	FormatMachO
	FormatWasm
)

// Arch identifies the instruction set of a parsed file.
type Arch int

const (
	ArchUnknown Arch = iota
	ArchX86_64
	ArchAArch64
	ArchRISCV64
	ArchWasm32
	ArchWasm64
)

func (a Arch) String() string {
	switch a {
	case ArchX86_64:
		return "x86-64"
	case ArchAArch64:
		return "aarch64"
	case ArchRISCV64:
		return "riscv64"
	case ArchWasm32:
		return "wasm32"
	case ArchWasm64:
		return "wasm64"
	default:
		return "unknown"
	}
}

// SectionKind classifies a section's contents.
type SectionKind int

const (
	SectionUnknown SectionKind = iota
	SectionText
	SectionData
	SectionReadOnlyData
	SectionReadOnlyDataWithRel
	SectionReadOnlyString
	SectionTls
	SectionTlsVariables
	SectionUninitializedData
	SectionUninitializedTls
	SectionNote
	SectionDebug
	SectionDebugString
	SectionOtherString
	SectionCommon
)

// IsData reports whether the section holds scannable program data.
func (k SectionKind) IsData() bool {
	switch k {
	case SectionData, SectionReadOnlyData, SectionReadOnlyDataWithRel,
		SectionReadOnlyString, SectionTls, SectionTlsVariables,
		SectionOtherString, SectionDebugString, SectionNote:
		return true
	}
	return false
}

// Uninitialized reports whether the section has no bytes on disk.
func (k SectionKind) Uninitialized() bool {
	return k == SectionUninitializedData || k == SectionUninitializedTls
}

// SymbolKind classifies a symbol.
type SymbolKind int

const (
	SymUnknown SymbolKind = iota
	SymText
	SymData
	SymSection
	SymTls
	SymFile
	SymLabel
)

// Markers for Symbol.Section when the symbol is not placed in a section.
const (
	SecUndefined = -1
	SecAbsolute  = -2
	SecCommon    = -3
)

// Symbol is one entry of the file's symbol table. Symbols are never mutated
// after parsing.
type Symbol struct {
	Index   int
	Name    string
	Addr    uint64
	Size    uint64
	Kind    SymbolKind
	Section int // section index, or one of the Sec* markers
	Global  bool
	Weak    bool
}

// Section is an address range of the file image.
type Section struct {
	Index int
	Name  string
	Addr  uint64
	Size  uint64
	Align uint64
	Kind  SectionKind

	// Raw is the byte source installed by the parser. Callers go through
	// ReadData, which handles uninitialized kinds.
	Raw func() ([]byte, error)
}

// End returns the address one past the section's last byte.
func (s *Section) End() uint64 { return s.Addr + s.Size }

// Contains reports whether addr falls inside the section.
func (s *Section) Contains(addr uint64) bool {
	return addr >= s.Addr && addr < s.End()
}

// ReadData returns the section's uncompressed contents. Uninitialized
// sections yield an empty slice.
func (s *Section) ReadData() ([]byte, error) {
	if s.Kind.Uninitialized() || s.Raw == nil {
		return nil, nil
	}
	return s.Raw()
}

// RelaTarget tells what a dynamic relocation writes.
type RelaTarget int

const (
	TargetNone RelaTarget = iota
	TargetSymbol
	TargetAbsolute
)

// DynRela is one dynamic relocation: the loader writes the resolved target
// at Addr.
type DynRela struct {
	Addr   uint64
	Target RelaTarget
	Symbol int // symbol index when Target == TargetSymbol
	Addend int64
}

// File is the parsed object view. It is immutable and safe to share.
type File struct {
	Format   Format
	Arch     Arch
	Sections []*Section
	Symbols  []*Symbol
	DynRelas []DynRela
}

// Section returns the section with the given index.
func (f *File) Section(idx int) (*Section, error) {
	if idx < 0 || idx >= len(f.Sections) {
		return nil, errors.Wrapf(ErrNotFound, "section index %d", idx)
	}
	return f.Sections[idx], nil
}

// Symbol returns the symbol with the given index.
func (f *File) Symbol(idx int) (*Symbol, error) {
	if idx < 0 || idx >= len(f.Symbols) {
		return nil, errors.Wrapf(ErrNotFound, "symbol index %d", idx)
	}
	return f.Symbols[idx], nil
}

// SectionByName returns the first section with the given name, or nil.
func (f *File) SectionByName(name string) *Section {
	for _, s := range f.Sections {
		if s.Name == name {
			return s
		}
	}
	return nil
}

var (
	elfMagic     = []byte{0x7f, 'E', 'L', 'F'}
	wasmMagic    = []byte{0x00, 'a', 's', 'm'}
	machoMagic64 = []byte{0xcf, 0xfa, 0xed, 0xfe}
	machoMagicBE = []byte{0xfe, 0xed, 0xfa, 0xcf}
)

func parseFile(data []byte) (*File, error) {
	if len(data) < 4 {
		return nil, errors.Wrap(ErrBadFormat, "file too short")
	}
	magic := data[:4]
	switch {
	case bytes.Equal(magic, elfMagic):
		return parseELF(data)
	case bytes.Equal(magic, wasmMagic):
		return parseWasm(data)
	case bytes.Equal(magic, machoMagic64), bytes.Equal(magic, machoMagicBE):
		return parseMachO(data)
	default:
		return nil, errors.Wrap(ErrBadFormat, "unrecognized magic")
	}
}
