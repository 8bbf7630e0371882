// Package show implements the `show` query: disassembly with optional
// source interleave for text symbols, hex views and raw dumps for data.
package show

import (
	"context"
	"fmt"
	"sort"

	"github.com/pkg/errors"

	"github.com/quininer/fi/internal/object"
	"github.com/quininer/fi/internal/output"
)

const defaultLength = 256

// Options selects the address to show and the view modifiers. The struct
// travels the session wire.
type Options struct {
	Address   string  `cbor:"address"`
	Length    *uint64 `cbor:"length,omitempty"`
	NoSymbol  bool    `cbor:"no_symbol,omitempty"`
	Dump      bool    `cbor:"dump,omitempty"`
	Demangle  bool    `cbor:"demangle,omitempty"`
	Align     *uint64 `cbor:"align,omitempty"`
	Dwarf     bool    `cbor:"dwarf,omitempty"`
	DwarfPath string  `cbor:"dwarf_path,omitempty"`
	DwarfTop  bool    `cbor:"dwarf_top,omitempty"`
}

// Run executes the show query against the shared object view.
func Run(ctx context.Context, e *object.Explorer, o *Options, stdio *output.Stdio) error {
	addr, err := object.ParseAddr(o.Address)
	if err != nil {
		return err
	}

	if o.NoSymbol {
		return bySection(ctx, e, o, addr, stdio)
	}
	return bySymbol(ctx, e, o, addr, stdio)
}

func bySymbol(ctx context.Context, e *object.Explorer, o *Options, addr uint64, stdio *output.Stdio) error {
	symIdx, err := locateSymbol(e, addr)
	if err != nil {
		return err
	}
	sym := e.File.Symbols[symIdx]

	if sym.Section < 0 {
		return errors.Wrap(object.ErrNotFound, "symbol has no section")
	}
	sect, err := e.File.Section(sym.Section)
	if err != nil {
		return err
	}

	data, err := e.Cache.SectionData(e.File, sym.Section)
	if err != nil {
		return err
	}
	size, err := e.SymbolSize(symIdx)
	if err != nil {
		return err
	}

	if sym.Addr < sect.Addr {
		return errors.Wrap(object.ErrNotFound, "symbol precedes its section")
	}
	offset := sym.Addr - sect.Addr
	end := offset + size
	if offset > uint64(len(data)) {
		offset = uint64(len(data))
	}
	if end > uint64(len(data)) {
		end = uint64(len(data))
	}
	body := data[offset:end]

	switch {
	case o.Dump:
		return dumpData(ctx, body, stdio)
	case sym.Kind == object.SymText:
		return showText(ctx, e, o, sect, symIdx, size, body, stdio)
	default:
		return showData(ctx, sect.Name, sym.Name, sym.Addr, body, stdio)
	}
}

// locateSymbol finds the symbol enclosing addr: an exact hit in the address
// index, or the nearest preceding entry whose inferred size still covers
// addr. The index entry is translated through the name map to a concrete
// symbol index.
func locateSymbol(e *object.Explorer, addr uint64) (int, error) {
	entries := e.Cache.AddrToSym(e.File)
	i := sort.Search(len(entries), func(i int) bool {
		return entries[i].Addr > addr
	})
	if i == 0 {
		return 0, errors.Wrap(object.ErrNotFound, "no available symbols found")
	}

	entry := entries[i-1]
	symIdx, ok := e.Cache.SymToIdx(e.File)[entry.Name]
	if !ok {
		return 0, errors.Wrap(object.ErrNotFound, "not found symbol")
	}

	if entry.Addr == addr {
		return symIdx, nil
	}

	size, err := e.SymbolSize(symIdx)
	if err != nil {
		return 0, err
	}
	sym := e.File.Symbols[symIdx]
	if addr >= sym.Addr && addr < sym.Addr+size {
		return symIdx, nil
	}
	return 0, errors.Wrap(object.ErrNotFound, "not found symbol by address")
}

func bySection(ctx context.Context, e *object.Explorer, o *Options, addr uint64, stdio *output.Stdio) error {
	var sect *object.Section
	for _, s := range e.File.Sections {
		if s.Contains(addr) {
			sect = s
			break
		}
	}
	if sect == nil {
		return errors.Wrap(object.ErrNotFound, "not found section")
	}

	align := sect.Align
	if o.Align != nil {
		align = *o.Align
	}
	// A zero alignment leaves the address as given.
	if align > 0 {
		addr -= addr % align
	}
	if addr < sect.Addr {
		addr = sect.Addr
	}

	data, err := e.Cache.SectionData(e.File, sect.Index)
	if err != nil {
		return err
	}

	offset := addr - sect.Addr
	if offset > uint64(len(data)) {
		offset = uint64(len(data))
	}
	length := uint64(defaultLength)
	if o.Length != nil {
		length = *o.Length
	}
	if rest := uint64(len(data)) - offset; length > rest {
		length = rest
	}
	view := data[offset : offset+length]

	if o.Dump {
		return dumpData(ctx, view, stdio)
	}
	return showData(ctx, sect.Name, "", addr, view, stdio)
}

const hexWidth = 16

func showData(ctx context.Context, sectionName, symbolName string, start uint64, data []byte, stdio *output.Stdio) error {
	if sectionName != "" {
		if _, err := fmt.Fprintf(stdio.Stdout, "section: %s\n", sectionName); err != nil {
			return err
		}
	}
	if symbolName != "" {
		if _, err := fmt.Fprintf(stdio.Stdout, "symbol: %s\n", symbolName); err != nil {
			return err
		}
	}

	var point output.YieldPoint
	for off := 0; off < len(data); off += hexWidth {
		if err := point.Yield(ctx); err != nil {
			return err
		}

		end := off + hexWidth
		if end > len(data) {
			end = len(data)
		}
		chunk := data[off:end]
		_, err := fmt.Fprintf(
			stdio.Stdout,
			"0x%016x  %s %s\n",
			start+uint64(off),
			output.HexField(chunk, hexWidth),
			output.ASCIIField(chunk),
		)
		if err != nil {
			return err
		}
	}
	return nil
}

const dumpChunk = 4 * 1024

func dumpData(ctx context.Context, data []byte, stdio *output.Stdio) error {
	var point output.YieldPoint
	for off := 0; off < len(data); off += dumpChunk {
		end := off + dumpChunk
		if end > len(data) {
			end = len(data)
		}
		if _, err := stdio.Stdout.Write(data[off:end]); err != nil {
			return err
		}
		if err := point.Yield(ctx); err != nil {
			return err
		}
	}
	return nil
}
