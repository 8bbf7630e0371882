package object

import (
	"os"
	"sort"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Explorer owns the mapped target and the derived cache. One Explorer is
// opened per server process and shared by every connection.
type Explorer struct {
	Path  string
	File  *File
	Cache Cache

	fd     *os.File
	mapped []byte
}

// Open memory-maps path read-only and parses its headers. The mapping is
// private, so a rewrite of the on-disk file does not disturb the session's
// view of it.
func Open(path string) (*Explorer, error) {
	fd, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening target")
	}

	st, err := fd.Stat()
	if err != nil {
		fd.Close()
		return nil, errors.Wrap(err, "stat target")
	}
	if st.Size() == 0 {
		fd.Close()
		return nil, errors.Wrap(ErrBadFormat, "empty file")
	}

	mapped, err := unix.Mmap(int(fd.Fd()), 0, int(st.Size()), unix.PROT_READ, unix.MAP_PRIVATE)
	if err != nil {
		fd.Close()
		return nil, errors.Wrap(err, "mmap target")
	}

	file, err := parseFile(mapped)
	if err != nil {
		unix.Munmap(mapped)
		fd.Close()
		return nil, err
	}

	return &Explorer{
		Path:   path,
		File:   file,
		fd:     fd,
		mapped: mapped,
	}, nil
}

// Close releases the mapping. Only used on open-failure paths and in tests;
// the server keeps its Explorer for the life of the process.
func (e *Explorer) Close() error {
	if e.mapped != nil {
		unix.Munmap(e.mapped)
		e.mapped = nil
	}
	if e.fd != nil {
		err := e.fd.Close()
		e.fd = nil
		return err
	}
	return nil
}

// SymbolKindChar classifies a symbol into the one-character convention of
// UNIX symbol listers, upper-cased for global symbols.
func (e *Explorer) SymbolKindChar(idx int) byte {
	sym, err := e.File.Symbol(idx)
	if err != nil {
		return '?'
	}

	var kind byte
	switch sym.Section {
	case SecUndefined:
		kind = 'U'
	case SecAbsolute:
		kind = 'A'
	case SecCommon:
		kind = 'C'
	default:
		sect, err := e.File.Section(sym.Section)
		if err != nil {
			return '?'
		}
		switch sect.Kind {
		case SectionText:
			kind = 't'
		case SectionData, SectionTls, SectionTlsVariables:
			kind = 'd'
		case SectionReadOnlyData, SectionReadOnlyDataWithRel, SectionReadOnlyString:
			kind = 'r'
		case SectionUninitializedData, SectionUninitializedTls:
			kind = 'b'
		case SectionCommon:
			kind = 'C'
		default:
			kind = '?'
		}
	}

	if sym.Global && kind >= 'a' && kind <= 'z' {
		kind -= 'a' - 'A'
	}
	return kind
}

// SymbolSize returns the symbol's byte length. Mach-O records zero sizes,
// so there the length is inferred from the next symbol address in the
// address-sorted index, falling back to the section extent.
func (e *Explorer) SymbolSize(idx int) (uint64, error) {
	sym, err := e.File.Symbol(idx)
	if err != nil {
		return 0, err
	}

	if e.File.Format != FormatMachO {
		return sym.Size, nil
	}

	entries := e.Cache.AddrToSym(e.File)
	i := sort.Search(len(entries), func(i int) bool {
		return entries[i].Addr >= sym.Addr
	})
	if i == len(entries) || entries[i].Addr != sym.Addr {
		return 0, errors.Wrap(ErrNotFound, "symbol address not in index")
	}

	// Skip tied entries; the length runs to the next strictly greater
	// address.
	j := i
	for j < len(entries) && entries[j].Addr == sym.Addr {
		j++
	}

	var sectEnd uint64
	if sym.Section >= 0 {
		sect, err := e.File.Section(sym.Section)
		if err != nil {
			return 0, err
		}
		sectEnd = sect.End()
	}

	if j < len(entries) && (sectEnd == 0 || entries[j].Addr <= sectEnd) {
		return entries[j].Addr - sym.Addr, nil
	}
	if sectEnd != 0 {
		// Last symbol of its section.
		return sectEnd - sym.Addr, nil
	}
	return sym.Size, nil
}
