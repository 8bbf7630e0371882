package object

import (
	"bytes"
	"debug/macho"

	"github.com/pkg/errors"
)

const machoStabMask = 0xe0 // N_STAB bits of n_type

func parseMachO(data []byte) (*File, error) {
	mf, err := macho.NewFile(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(ErrBadFormat, err.Error())
	}

	f := &File{Format: FormatMachO}
	switch mf.Cpu {
	case macho.CpuAmd64:
		f.Arch = ArchX86_64
	case macho.CpuArm64:
		f.Arch = ArchAArch64
	}

	for i, sect := range mf.Sections {
		sect := sect
		kind := machoSectionKind(sect)
		f.Sections = append(f.Sections, &Section{
			Index: i,
			Name:  sect.Name,
			Addr:  sect.Addr,
			Size:  sect.Size,
			Align: uint64(1) << sect.Align,
			Kind:  kind,
			Raw: func() ([]byte, error) {
				return sect.Data()
			},
		})
	}

	if mf.Symtab != nil {
		for _, sym := range mf.Symtab.Syms {
			if sym.Type&machoStabMask != 0 {
				continue // debugging stab
			}

			s := &Symbol{
				Index:  len(f.Symbols),
				Name:   sym.Name,
				Addr:   sym.Value,
				Global: sym.Type&0x01 != 0, // N_EXT
			}

			// n_sect is 1-based over all segment sections in order.
			switch {
			case sym.Sect > 0 && int(sym.Sect) <= len(mf.Sections):
				s.Section = int(sym.Sect) - 1
				switch f.Sections[s.Section].Kind {
				case SectionText:
					s.Kind = SymText
				case SectionTls, SectionTlsVariables, SectionUninitializedTls:
					s.Kind = SymTls
				case SectionUnknown:
					s.Kind = SymUnknown
				default:
					s.Kind = SymData
				}
			case sym.Type&0x0e == 0x02: // N_ABS
				s.Section = SecAbsolute
			default:
				s.Section = SecUndefined
			}

			f.Symbols = append(f.Symbols, s)
		}
	}

	// debug/macho exposes no dyld bind info, so the view carries no
	// dynamic relocations for this format.
	return f, nil
}

func machoSectionKind(sect *macho.Section) SectionKind {
	switch {
	case sect.Flags&0x80000000 != 0 || sect.Name == "__text" || sect.Name == "__stubs":
		// S_ATTR_PURE_INSTRUCTIONS
		return SectionText
	case sect.Flags&0xff == 0x1: // S_ZEROFILL
		return SectionUninitializedData
	case sect.Flags&0xff == 0x12: // S_THREAD_LOCAL_ZEROFILL
		return SectionUninitializedTls
	case sect.Flags&0xff == 0x11: // S_THREAD_LOCAL_REGULAR
		return SectionTls
	case sect.Flags&0xff == 0x13: // S_THREAD_LOCAL_VARIABLES
		return SectionTlsVariables
	case sect.Flags&0xff == 0x2: // S_CSTRING_LITERALS
		return SectionReadOnlyString
	case sect.Seg == "__TEXT":
		return SectionReadOnlyData
	case sect.Seg == "__DATA_CONST":
		return SectionReadOnlyDataWithRel
	case sect.Seg == "__DATA":
		return SectionData
	case sect.Seg == "__DWARF" && sect.Name == "__debug_str":
		return SectionDebugString
	case sect.Seg == "__DWARF":
		return SectionDebug
	default:
		return SectionUnknown
	}
}
