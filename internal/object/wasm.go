package object

import (
	"encoding/binary"
	"fmt"

	"github.com/pkg/errors"
)

// Wasm section ids.
const (
	wasmSecCustom   = 0
	wasmSecType     = 1
	wasmSecImport   = 2
	wasmSecFunction = 3
	wasmSecTable    = 4
	wasmSecMemory   = 5
	wasmSecGlobal   = 6
	wasmSecExport   = 7
	wasmSecStart    = 8
	wasmSecElement  = 9
	wasmSecCode     = 10
	wasmSecData     = 11
)

// parseWasm walks the binary's section stream by hand. Symbol "addresses"
// are file offsets of the function bodies, matching how the rest of the
// tool addresses the image.
func parseWasm(data []byte) (*File, error) {
	if len(data) < 8 || binary.LittleEndian.Uint32(data[4:]) != 1 {
		return nil, errors.Wrap(ErrBadFormat, "bad wasm header")
	}

	f := &File{Format: FormatWasm, Arch: ArchWasm32}

	var (
		importedFuncs int
		exportNames   = map[int]string{}
		funcNames     = map[int]string{}
		codePayload   []byte
		codeOffset    uint64
	)

	p := &wasmReader{data: data, off: 8}
	for p.off < len(p.data) {
		id, err := p.byteVal()
		if err != nil {
			return nil, errors.Wrap(ErrBadFormat, "truncated section id")
		}
		size, err := p.uleb()
		if err != nil {
			return nil, errors.Wrap(ErrBadFormat, "truncated section size")
		}
		start := p.off
		if start+int(size) > len(p.data) {
			return nil, errors.Wrap(ErrBadFormat, "section overruns file")
		}
		payload := p.data[start : start+int(size)]
		p.off = start + int(size)

		switch id {
		case wasmSecImport:
			n, err := countWasmFuncImports(payload)
			if err != nil {
				return nil, err
			}
			importedFuncs = n
		case wasmSecExport:
			if err := readWasmExports(payload, exportNames); err != nil {
				return nil, err
			}
		case wasmSecCode:
			codePayload = payload
			codeOffset = uint64(start)
			f.Sections = append(f.Sections, &Section{
				Index: len(f.Sections),
				Name:  "<code>",
				Addr:  codeOffset,
				Size:  size,
				Align: 1,
				Kind:  SectionText,
				Raw:   func() ([]byte, error) { return payload, nil },
			})
		case wasmSecData:
			f.Sections = append(f.Sections, &Section{
				Index: len(f.Sections),
				Name:  "<data>",
				Addr:  uint64(start),
				Size:  size,
				Align: 1,
				Kind:  SectionData,
				Raw:   func() ([]byte, error) { return payload, nil },
			})
		case wasmSecCustom:
			name, rest, err := readWasmName(payload)
			if err != nil {
				return nil, err
			}
			if name == "name" {
				if err := readWasmFuncNames(rest, funcNames); err != nil {
					return nil, err
				}
			}
		}
	}

	if codePayload != nil {
		if err := readWasmBodies(f, codePayload, codeOffset, importedFuncs, funcNames, exportNames); err != nil {
			return nil, err
		}
	}

	return f, nil
}

func readWasmBodies(
	f *File,
	payload []byte,
	base uint64,
	importedFuncs int,
	funcNames, exportNames map[int]string,
) error {
	textIdx := -1
	for _, s := range f.Sections {
		if s.Kind == SectionText {
			textIdx = s.Index
		}
	}

	p := &wasmReader{data: payload}
	count, err := p.uleb()
	if err != nil {
		return errors.Wrap(ErrBadFormat, "code section count")
	}

	for i := 0; i < int(count); i++ {
		size, err := p.uleb()
		if err != nil {
			return errors.Wrap(ErrBadFormat, "function body size")
		}
		if p.off+int(size) > len(p.data) {
			return errors.Wrap(ErrBadFormat, "function body overruns section")
		}

		fnidx := importedFuncs + i
		name := funcNames[fnidx]
		if name == "" {
			name = exportNames[fnidx]
		}
		if name == "" {
			name = fmt.Sprintf("func[%d]", fnidx)
		}

		f.Symbols = append(f.Symbols, &Symbol{
			Index:   len(f.Symbols),
			Name:    name,
			Addr:    base + uint64(p.off),
			Size:    size,
			Kind:    SymText,
			Section: textIdx,
			Global:  exportNames[fnidx] != "",
		})
		p.off += int(size)
	}
	return nil
}

func countWasmFuncImports(payload []byte) (int, error) {
	p := &wasmReader{data: payload}
	count, err := p.uleb()
	if err != nil {
		return 0, errors.Wrap(ErrBadFormat, "import count")
	}

	funcs := 0
	for i := 0; i < int(count); i++ {
		if err := p.skipName(); err != nil {
			return 0, err
		}
		if err := p.skipName(); err != nil {
			return 0, err
		}
		kind, err := p.byteVal()
		if err != nil {
			return 0, errors.Wrap(ErrBadFormat, "import kind")
		}
		switch kind {
		case 0x00: // func
			if _, err := p.uleb(); err != nil {
				return 0, err
			}
			funcs++
		case 0x01: // table
			if _, err := p.byteVal(); err != nil {
				return 0, err
			}
			if err := p.skipLimits(); err != nil {
				return 0, err
			}
		case 0x02: // memory
			if err := p.skipLimits(); err != nil {
				return 0, err
			}
		case 0x03: // global
			if _, err := p.byteVal(); err != nil {
				return 0, err
			}
			if _, err := p.byteVal(); err != nil {
				return 0, err
			}
		default:
			return 0, errors.Wrapf(ErrBadFormat, "import kind %#x", kind)
		}
	}
	return funcs, nil
}

func readWasmExports(payload []byte, out map[int]string) error {
	p := &wasmReader{data: payload}
	count, err := p.uleb()
	if err != nil {
		return errors.Wrap(ErrBadFormat, "export count")
	}
	for i := 0; i < int(count); i++ {
		name, err := p.name()
		if err != nil {
			return err
		}
		kind, err := p.byteVal()
		if err != nil {
			return errors.Wrap(ErrBadFormat, "export kind")
		}
		idx, err := p.uleb()
		if err != nil {
			return errors.Wrap(ErrBadFormat, "export index")
		}
		if kind == 0x00 {
			out[int(idx)] = name
		}
	}
	return nil
}

// readWasmFuncNames parses the "name" custom section's function-names
// subsection (id 1).
func readWasmFuncNames(payload []byte, out map[int]string) error {
	p := &wasmReader{data: payload}
	for p.off < len(p.data) {
		id, err := p.byteVal()
		if err != nil {
			return errors.Wrap(ErrBadFormat, "name subsection id")
		}
		size, err := p.uleb()
		if err != nil {
			return errors.Wrap(ErrBadFormat, "name subsection size")
		}
		start := p.off
		if start+int(size) > len(p.data) {
			return errors.Wrap(ErrBadFormat, "name subsection overruns")
		}
		if id != 1 {
			p.off = start + int(size)
			continue
		}

		sub := &wasmReader{data: p.data[start : start+int(size)]}
		count, err := sub.uleb()
		if err != nil {
			return errors.Wrap(ErrBadFormat, "function name count")
		}
		for i := 0; i < int(count); i++ {
			idx, err := sub.uleb()
			if err != nil {
				return err
			}
			name, err := sub.name()
			if err != nil {
				return err
			}
			out[int(idx)] = name
		}
		p.off = start + int(size)
	}
	return nil
}

func readWasmName(payload []byte) (string, []byte, error) {
	p := &wasmReader{data: payload}
	name, err := p.name()
	if err != nil {
		return "", nil, err
	}
	return name, p.data[p.off:], nil
}

type wasmReader struct {
	data []byte
	off  int
}

func (p *wasmReader) byteVal() (byte, error) {
	if p.off >= len(p.data) {
		return 0, errors.Wrap(ErrBadFormat, "unexpected end of wasm data")
	}
	b := p.data[p.off]
	p.off++
	return b, nil
}

func (p *wasmReader) uleb() (uint64, error) {
	v, n := binary.Uvarint(p.data[p.off:])
	if n <= 0 {
		return 0, errors.Wrap(ErrBadFormat, "bad uleb128")
	}
	p.off += n
	return v, nil
}

func (p *wasmReader) name() (string, error) {
	n, err := p.uleb()
	if err != nil {
		return "", err
	}
	if p.off+int(n) > len(p.data) {
		return "", errors.Wrap(ErrBadFormat, "name overruns data")
	}
	s := string(p.data[p.off : p.off+int(n)])
	p.off += int(n)
	return s, nil
}

func (p *wasmReader) skipName() error {
	_, err := p.name()
	return err
}

func (p *wasmReader) skipLimits() error {
	flag, err := p.byteVal()
	if err != nil {
		return err
	}
	if _, err := p.uleb(); err != nil {
		return err
	}
	if flag&0x01 != 0 {
		if _, err := p.uleb(); err != nil {
			return err
		}
	}
	return nil
}
