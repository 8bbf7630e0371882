package object

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"strings"

	"github.com/pkg/errors"
)

func parseELF(data []byte) (*File, error) {
	ef, err := elf.NewFile(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(ErrBadFormat, err.Error())
	}

	f := &File{Format: FormatELF}
	switch ef.Machine {
	case elf.EM_X86_64:
		f.Arch = ArchX86_64
	case elf.EM_AARCH64:
		f.Arch = ArchAArch64
	case elf.EM_RISCV:
		if ef.Class == elf.ELFCLASS64 {
			f.Arch = ArchRISCV64
		}
	}

	for i, sect := range ef.Sections {
		sect := sect
		f.Sections = append(f.Sections, &Section{
			Index: i,
			Name:  sect.Name,
			Addr:  sect.Addr,
			Size:  sect.Size,
			Align: sect.Addralign,
			Kind:  elfSectionKind(sect),
			Raw: func() ([]byte, error) {
				if sect.Type == elf.SHT_NOBITS {
					return nil, nil
				}
				// Section.Data decompresses SHF_COMPRESSED contents.
				return sect.Data()
			},
		})
	}

	// Static symtab first, then the dynamic table; dynamic relocation
	// symbol numbers index the latter.
	staticSyms, err := ef.Symbols()
	if err != nil && err != elf.ErrNoSymbols {
		return nil, errors.Wrap(err, "reading symtab")
	}
	dynSyms, err := ef.DynamicSymbols()
	if err != nil && err != elf.ErrNoSymbols {
		return nil, errors.Wrap(err, "reading dynsym")
	}
	dynStart := len(staticSyms)

	for _, sym := range staticSyms {
		f.Symbols = append(f.Symbols, elfSymbol(len(f.Symbols), sym, len(ef.Sections)))
	}
	for _, sym := range dynSyms {
		f.Symbols = append(f.Symbols, elfSymbol(len(f.Symbols), sym, len(ef.Sections)))
	}

	if err := parseELFRelas(ef, f, dynStart, len(dynSyms)); err != nil {
		return nil, err
	}

	return f, nil
}

func elfSymbol(idx int, sym elf.Symbol, nsect int) *Symbol {
	s := &Symbol{
		Index:  idx,
		Name:   sym.Name,
		Addr:   sym.Value,
		Size:   sym.Size,
		Global: elf.ST_BIND(sym.Info) != elf.STB_LOCAL,
		Weak:   elf.ST_BIND(sym.Info) == elf.STB_WEAK,
	}

	switch sym.Section {
	case elf.SHN_UNDEF:
		s.Section = SecUndefined
	case elf.SHN_ABS:
		s.Section = SecAbsolute
	case elf.SHN_COMMON:
		s.Section = SecCommon
	default:
		if int(sym.Section) < nsect {
			s.Section = int(sym.Section)
		} else {
			s.Section = SecUndefined
		}
	}

	switch elf.ST_TYPE(sym.Info) {
	case elf.STT_FUNC:
		s.Kind = SymText
	case elf.STT_OBJECT:
		s.Kind = SymData
	case elf.STT_SECTION:
		s.Kind = SymSection
	case elf.STT_TLS:
		s.Kind = SymTls
	case elf.STT_FILE:
		s.Kind = SymFile
	case elf.STT_NOTYPE:
		s.Kind = SymLabel
	}

	return s
}

const elfRelaSize = 24 // Elf64_Rela

// parseELFRelas reads .rela.dyn and .rela.plt. Symbol numbers are indices
// into the dynamic symbol table; zero means the relocation target is the
// addend itself.
func parseELFRelas(ef *elf.File, f *File, dynStart, ndyn int) error {
	for _, sect := range ef.Sections {
		if sect.Type != elf.SHT_RELA {
			continue
		}
		if sect.Name != ".rela.dyn" && sect.Name != ".rela.plt" {
			continue
		}

		data, err := sect.Data()
		if err != nil {
			return errors.Wrapf(err, "reading %s", sect.Name)
		}

		for off := 0; off+elfRelaSize <= len(data); off += elfRelaSize {
			addr := binary.LittleEndian.Uint64(data[off:])
			info := binary.LittleEndian.Uint64(data[off+8:])
			addend := int64(binary.LittleEndian.Uint64(data[off+16:]))
			symno := int(info >> 32)

			rela := DynRela{Addr: addr, Addend: addend}
			switch {
			case symno == 0:
				rela.Target = TargetAbsolute
			case symno <= ndyn:
				// debug/elf drops the leading null symbol.
				rela.Target = TargetSymbol
				rela.Symbol = dynStart + symno - 1
			default:
				rela.Target = TargetNone
			}
			f.DynRelas = append(f.DynRelas, rela)
		}
	}
	return nil
}

func elfSectionKind(sect *elf.Section) SectionKind {
	switch sect.Type {
	case elf.SHT_NOBITS:
		if sect.Flags&elf.SHF_TLS != 0 {
			return SectionUninitializedTls
		}
		return SectionUninitializedData
	case elf.SHT_NOTE:
		return SectionNote
	}

	switch {
	case sect.Flags&elf.SHF_EXECINSTR != 0:
		return SectionText
	case sect.Flags&elf.SHF_TLS != 0:
		return SectionTls
	case sect.Flags&elf.SHF_ALLOC != 0 && sect.Flags&elf.SHF_WRITE != 0:
		return SectionData
	case sect.Flags&elf.SHF_ALLOC != 0:
		if sect.Flags&elf.SHF_STRINGS != 0 {
			return SectionReadOnlyString
		}
		return SectionReadOnlyData
	case sect.Name == ".debug_str" || sect.Name == ".debug_line_str":
		return SectionDebugString
	case strings.HasPrefix(sect.Name, ".debug_") || strings.HasPrefix(sect.Name, ".zdebug_"):
		return SectionDebug
	case sect.Flags&elf.SHF_STRINGS != 0:
		return SectionOtherString
	case sect.Name == ".comment":
		return SectionOtherString
	default:
		return SectionUnknown
	}
}
