// Package search implements the `search` query: symbol-name scan, section
// data scan, and the parallel direct-call scan.
package search

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/ianlancetaylor/demangle"
	"github.com/pkg/errors"

	"github.com/quininer/fi/internal/object"
	"github.com/quininer/fi/internal/output"
)

// ErrMutuallyExclusive reports conflicting search modes.
var ErrMutuallyExclusive = errors.New("cannot use `--callsite` and `--data` at the same time")

// Options selects the search mode and its modifiers. The struct travels the
// session wire.
type Options struct {
	Keyword       string `cbor:"keyword"`
	Demangle      bool   `cbor:"demangle,omitempty"`
	Data          bool   `cbor:"data,omitempty"`
	Callsite      bool   `cbor:"callsite,omitempty"`
	FilterSection string `cbor:"filter_section,omitempty"`
	Size          bool   `cbor:"size,omitempty"`
	SortSize      bool   `cbor:"sort_size,omitempty"`
	SortName      bool   `cbor:"sort_name,omitempty"`
	OnlyDuplicate bool   `cbor:"only_duplicate,omitempty"`
}

// Validate rejects option conflicts. It runs before any I/O.
func (o *Options) Validate() error {
	if o.Callsite && o.Data {
		return ErrMutuallyExclusive
	}
	return nil
}

// Run executes the search against the shared object view.
func Run(ctx context.Context, e *object.Explorer, o *Options, stdio *output.Stdio) error {
	if err := o.Validate(); err != nil {
		return err
	}
	switch {
	case o.Callsite:
		return byCall(ctx, e, o, stdio)
	case o.Data:
		return byData(ctx, e, o, stdio)
	default:
		return bySymbol(ctx, e, o, stdio)
	}
}

type result struct {
	idx  int
	name string
	size uint64
}

func bySymbol(ctx context.Context, e *object.Explorer, o *Options, stdio *output.Stdio) error {
	re, err := regexp.Compile(o.Keyword)
	if err != nil {
		return errors.Wrap(err, "bad keyword regex")
	}
	filter, err := compileFilter(o.FilterSection)
	if err != nil {
		return err
	}

	symlist := e.Cache.Symlist(e.File)
	buffered := o.SortSize || o.SortName || o.OnlyDuplicate

	var (
		point output.YieldPoint
		out   []result
		sum   uint64
	)

	for _, idx := range symlist {
		if err := point.Yield(ctx); err != nil {
			return err
		}

		sym := e.File.Symbols[idx]
		if !utf8.ValidString(sym.Name) {
			fmt.Fprintf(stdio.Stderr, "bad symbol name at index %d\n", idx)
			continue
		}

		if skip, err := filteredOut(e, filter, sym); err != nil {
			return err
		} else if skip {
			continue
		}

		name := sym.Name
		if o.Demangle {
			name = demangle.Filter(name)
		}
		if !re.MatchString(name) {
			continue
		}

		var size uint64
		if o.Size || o.SortSize {
			size, err = e.SymbolSize(idx)
			if err != nil {
				return err
			}
		}

		if buffered {
			out = append(out, result{idx, name, size})
		} else {
			sum += size
			if err := printSymbol(e, stdio.Stdout, result{idx, name, size}, o.Size); err != nil {
				return err
			}
		}
	}

	sortResults(out, o, false)
	printed, err := printResults(e, stdio.Stdout, out, o)
	if err != nil {
		return err
	}
	sum += printed

	if o.Size {
		if _, err := fmt.Fprintf(stdio.Stdout, "sum: %d\n", sum); err != nil {
			return err
		}
	}
	return nil
}

func byData(ctx context.Context, e *object.Explorer, o *Options, stdio *output.Stdio) error {
	re, err := regexp.Compile(o.Keyword)
	if err != nil {
		return errors.Wrap(err, "bad keyword regex")
	}
	filter, err := compileFilter(o.FilterSection)
	if err != nil {
		return err
	}

	var point output.YieldPoint
	for _, sect := range e.File.Sections {
		if !sect.Kind.IsData() {
			continue
		}
		if filter != nil && !filter.MatchString(sect.Name) {
			continue
		}

		data, err := e.Cache.SectionData(e.File, sect.Index)
		if err != nil {
			continue
		}

		for _, loc := range re.FindAllIndex(data, -1) {
			if err := point.Yield(ctx); err != nil {
				return err
			}
			addr := sect.Addr + uint64(loc[0])
			_, err := fmt.Fprintf(
				stdio.Stdout,
				"0x%016x\t%q\t%s\n",
				addr,
				sect.Name,
				output.ASCIIField(data[loc[0]:loc[1]]),
			)
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func printSymbol(e *object.Explorer, w io.Writer, r result, showSize bool) error {
	sizeField := ""
	if showSize {
		sizeField = fmt.Sprintf(" %10d", r.size)
	}
	_, err := fmt.Fprintf(
		w,
		"0x%016x%s %c %s\n",
		e.File.Symbols[r.idx].Addr,
		sizeField,
		e.SymbolKindChar(r.idx),
		r.name,
	)
	return err
}

// sortResults orders buffered results. With no sort flags, byIndex keeps
// the original symbol order for the callsite scan; the symbol walk already
// produced address order.
func sortResults(out []result, o *Options, byIndex bool) {
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch {
		case o.SortSize && o.SortName:
			if a.name != b.name {
				return a.name < b.name
			}
			return a.size < b.size
		case o.SortSize:
			return a.size < b.size
		case o.SortName:
			return a.name < b.name
		case byIndex:
			return a.idx < b.idx
		default:
			return false
		}
	})
}

// printResults walks sorted results, applying the duplicate filter: the
// base name is the prefix before the first dot, and only its second and
// later occurrences survive.
func printResults(e *object.Explorer, w io.Writer, out []result, o *Options) (uint64, error) {
	seen := make(map[string]bool)
	var sum uint64

	for _, r := range out {
		if o.OnlyDuplicate {
			base := r.name
			if i := strings.IndexByte(base, '.'); i >= 0 {
				base = base[:i]
			}
			if !seen[base] {
				seen[base] = true
				continue
			}
		}

		sum += r.size
		if err := printSymbol(e, w, r, o.Size); err != nil {
			return sum, err
		}
	}
	return sum, nil
}

func compileFilter(rule string) (*regexp.Regexp, error) {
	if rule == "" {
		return nil, nil
	}
	re, err := regexp.Compile(rule)
	if err != nil {
		return nil, errors.Wrap(err, "bad section filter regex")
	}
	return re, nil
}

// filteredOut applies the section filter to a symbol. Symbols outside any
// section never match a filter.
func filteredOut(e *object.Explorer, filter *regexp.Regexp, sym *object.Symbol) (bool, error) {
	if filter == nil {
		return false, nil
	}
	if sym.Section < 0 {
		return true, nil
	}
	sect, err := e.File.Section(sym.Section)
	if err != nil {
		return false, err
	}
	return !filter.MatchString(sect.Name), nil
}
