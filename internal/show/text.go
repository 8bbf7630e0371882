package show

import (
	"context"
	"fmt"

	"github.com/ianlancetaylor/demangle"

	"github.com/quininer/fi/internal/addr2line"
	"github.com/quininer/fi/internal/disasm"
	"github.com/quininer/fi/internal/object"
	"github.com/quininer/fi/internal/output"
)

func showText(
	ctx context.Context,
	e *object.Explorer,
	o *Options,
	sect *object.Section,
	symIdx int,
	size uint64,
	body []byte,
	stdio *output.Stdio,
) error {
	sym := e.File.Symbols[symIdx]

	d, err := disasm.New(e.File)
	if err != nil {
		return err
	}

	var (
		lines   []addr2line.Line
		inlines []addr2line.InlineRange
	)
	if o.Dwarf || o.DwarfTop {
		path := e.Path
		if o.DwarfPath != "" {
			path = o.DwarfPath
		}
		lines, inlines, err = e.Cache.SourceRanges(path, sym.Addr, sym.Addr+size)
		if err != nil {
			return err
		}
	}

	if o.DwarfTop {
		return showDwarfTop(e, o, sym, lines, inlines, stdio)
	}

	if _, err := fmt.Fprintf(stdio.Stdout, "section: %s\n", sect.Name); err != nil {
		return err
	}
	name := sym.Name
	if o.Demangle {
		name = demangle.Filter(name)
	}
	if _, err := fmt.Fprintf(stdio.Stdout, "symbol: %s\n", name); err != nil {
		return err
	}

	src := newSourcePrinter(lines, stdio)
	var point output.YieldPoint

	it := d.DisasmAll(body, sym.Addr)
	for {
		inst, ok := it.Next()
		if !ok {
			break
		}
		if err := point.Yield(ctx); err != nil {
			return err
		}

		if err := src.emit(inst.Addr); err != nil {
			return err
		}

		annotation := ""
		if target, ok, err := d.OperandToAddr(&inst); err == nil && ok {
			if name, canonical, ok := e.QuerySymbolByAddr(target); ok {
				if o.Demangle {
					name = demangle.Filter(name)
				}
				annotation = fmt.Sprintf("\t# %s @ 0x%016x", name, canonical)
			}
		}

		_, err := fmt.Fprintf(
			stdio.Stdout,
			"0x%016x  %s  %s%s\n",
			inst.Addr,
			output.HexField(inst.Data, 8),
			inst.Text,
			annotation,
		)
		if err != nil {
			return err
		}
	}
	return nil
}
