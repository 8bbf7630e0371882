package object

import (
	"sort"
	"sync"

	"github.com/quininer/fi/internal/addr2line"
)

// AddrEntry is one record of the address-sorted symbol index.
type AddrEntry struct {
	Addr  uint64
	Name  string
	Index int
}

// Cache holds the derived indices. Every member is built on first access
// and never rebuilt; the zero value is ready to use.
type Cache struct {
	addr2symOnce sync.Once
	addr2sym     []AddrEntry

	sym2idxOnce sync.Once
	sym2idx     map[string]int

	symlistOnce sync.Once
	symlist     []int

	dynRelaOnce sync.Once
	dynRela     []DynRela

	dataMu sync.RWMutex
	data   map[int][]byte

	a2lOnce sync.Once
	a2lMu   sync.Mutex
	a2l     *addr2line.Loader
	a2lErr  error
}

// AddrToSym returns the address-sorted index of named, placed symbols.
func (c *Cache) AddrToSym(f *File) []AddrEntry {
	c.addr2symOnce.Do(func() {
		entries := make([]AddrEntry, 0, len(f.Symbols))
		for _, sym := range f.Symbols {
			if sym.Name == "" || sym.Section < 0 {
				continue
			}
			entries = append(entries, AddrEntry{Addr: sym.Addr, Name: sym.Name, Index: sym.Index})
		}
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].Addr < entries[j].Addr
		})
		c.addr2sym = entries
	})
	return c.addr2sym
}

// SymToIdx returns the name-indexed symbol map.
func (c *Cache) SymToIdx(f *File) map[string]int {
	c.sym2idxOnce.Do(func() {
		m := make(map[string]int, len(f.Symbols))
		for _, sym := range f.Symbols {
			if sym.Name == "" {
				continue
			}
			if _, ok := m[sym.Name]; !ok {
				m[sym.Name] = sym.Index
			}
		}
		c.sym2idx = m
	})
	return c.sym2idx
}

// Symlist returns every symbol index, sorted by address.
func (c *Cache) Symlist(f *File) []int {
	c.symlistOnce.Do(func() {
		list := make([]int, len(f.Symbols))
		for i := range f.Symbols {
			list[i] = i
		}
		sort.SliceStable(list, func(i, j int) bool {
			return f.Symbols[list[i]].Addr < f.Symbols[list[j]].Addr
		})
		c.symlist = list
	})
	return c.symlist
}

// DynRela returns the dynamic relocations sorted by applied address.
func (c *Cache) DynRela(f *File) []DynRela {
	c.dynRelaOnce.Do(func() {
		list := make([]DynRela, len(f.DynRelas))
		copy(list, f.DynRelas)
		sort.SliceStable(list, func(i, j int) bool {
			return list[i].Addr < list[j].Addr
		})
		c.dynRela = list
	})
	return c.dynRela
}

// SectionData returns the uncompressed contents of a section. The buffer is
// read once and the same slice is handed to every caller.
func (c *Cache) SectionData(f *File, idx int) ([]byte, error) {
	c.dataMu.RLock()
	if b, ok := c.data[idx]; ok {
		c.dataMu.RUnlock()
		return b, nil
	}
	c.dataMu.RUnlock()

	c.dataMu.Lock()
	defer c.dataMu.Unlock()
	if b, ok := c.data[idx]; ok {
		return b, nil
	}

	sect, err := f.Section(idx)
	if err != nil {
		return nil, err
	}
	b, err := sect.ReadData()
	if err != nil {
		return nil, err
	}

	if c.data == nil {
		c.data = make(map[int][]byte)
	}
	c.data[idx] = b
	return b, nil
}

// SourceRanges queries the DWARF loader for line and inline coverage of
// [low, high). The loader is built on the first DWARF-using query; the path
// given then wins, later paths are ignored. The loader itself is not safe
// for concurrent queries, so calls serialize on an interior lock.
func (c *Cache) SourceRanges(path string, low, high uint64) ([]addr2line.Line, []addr2line.InlineRange, error) {
	c.a2lOnce.Do(func() {
		c.a2l, c.a2lErr = addr2line.New(path)
	})
	if c.a2lErr != nil {
		return nil, nil, c.a2lErr
	}

	c.a2lMu.Lock()
	defer c.a2lMu.Unlock()

	lines, err := c.a2l.Ranges(low, high)
	if err != nil {
		return nil, nil, err
	}
	inlines, err := c.a2l.InlineRanges(low, high)
	if err != nil {
		return nil, nil, err
	}
	return lines, inlines, nil
}
