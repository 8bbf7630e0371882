package search

import (
	"context"
	"runtime"
	"sort"
	"sync"

	"github.com/ianlancetaylor/demangle"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/quininer/fi/internal/disasm"
	"github.com/quininer/fi/internal/object"
	"github.com/quininer/fi/internal/output"
)

// byCall finds every direct caller of the symbol at the keyword address.
// Candidates are all symbols of the same section; each candidate's body is
// disassembled and every instruction with an extractable target is resolved
// through the symbol index (following GOT indirection) and compared against
// the callee's canonical address.
//
// The scan fans out across workers; disassembler instances are stateful, so
// each worker builds its own and reuses it across candidates.
func byCall(ctx context.Context, e *object.Explorer, o *Options, stdio *output.Stdio) error {
	address, err := object.ParseAddr(o.Keyword)
	if err != nil {
		return err
	}

	symlist := e.Cache.Symlist(e.File)
	// Warm the shared indices before the fan-out.
	e.Cache.AddrToSym(e.File)
	e.Cache.DynRela(e.File)

	i := sort.Search(len(symlist), func(i int) bool {
		return e.File.Symbols[symlist[i]].Addr >= address
	})
	if i == len(symlist) || e.File.Symbols[symlist[i]].Addr != address {
		return errors.Wrap(object.ErrNotFound, "not found symbol by address")
	}
	target := e.File.Symbols[symlist[i]]
	if target.Kind != object.SymText {
		return errors.New("symbol kind is not text")
	}

	sectIdx := target.Section
	sect, err := e.File.Section(sectIdx)
	if err != nil {
		return err
	}
	sectData, err := e.Cache.SectionData(e.File, sectIdx)
	if err != nil {
		return err
	}

	var (
		mu   sync.Mutex
		hits []result
	)

	g, gctx := errgroup.WithContext(ctx)
	jobs := make(chan int)

	workers := runtime.GOMAXPROCS(0)
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			d, err := disasm.New(e.File)
			if err != nil {
				return err
			}

			for idx := range jobs {
				hit, err := scanCandidate(e, d, o, idx, sect, sectData, address)
				if err != nil {
					return err
				}
				if hit != nil {
					mu.Lock()
					hits = append(hits, *hit)
					mu.Unlock()
				}
			}
			return nil
		})
	}

	g.Go(func() error {
		defer close(jobs)
		for _, idx := range symlist {
			if e.File.Symbols[idx].Section != sectIdx {
				continue
			}
			select {
			case jobs <- idx:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	sortResults(hits, o, true)

	for _, r := range hits {
		if err := printSymbol(e, stdio.Stdout, r, o.Size); err != nil {
			return err
		}
	}
	return nil
}

func scanCandidate(
	e *object.Explorer,
	d *disasm.Disassembler,
	o *Options,
	idx int,
	sect *object.Section,
	sectData []byte,
	address uint64,
) (*result, error) {
	sym := e.File.Symbols[idx]

	size, err := e.SymbolSize(idx)
	if err != nil {
		return nil, err
	}
	if sym.Addr < sect.Addr {
		return nil, nil
	}
	offset := sym.Addr - sect.Addr
	end := offset + size
	if offset > uint64(len(sectData)) {
		return nil, nil
	}
	if end > uint64(len(sectData)) {
		end = uint64(len(sectData))
	}
	body := sectData[offset:end]

	it := d.DisasmAll(body, sym.Addr)
	for {
		inst, ok := it.Next()
		if !ok {
			break
		}
		target, ok, err := d.OperandToAddr(&inst)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if _, canonical, ok := e.QuerySymbolByAddr(target); ok && canonical == address {
			name := sym.Name
			if o.Demangle {
				name = demangle.Filter(name)
			}
			return &result{idx: idx, name: name, size: size}, nil
		}
	}
	return nil, nil
}
