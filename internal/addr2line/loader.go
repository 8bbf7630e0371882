// Package addr2line resolves image addresses to source locations and
// inlined-function attribution from a binary's DWARF data.
package addr2line

import (
	"debug/dwarf"
	"debug/elf"
	"debug/macho"
	"io"
	"sort"

	"github.com/pkg/errors"
)

// Line is a contiguous address range attributed to one source line.
type Line struct {
	Addr uint64
	End  uint64
	File string
	Line int
	Col  int
}

// InlineRange is an address range covered by an inlined subroutine. Depth
// counts DIE nesting, so the deepest range containing an address names the
// innermost inline.
type InlineRange struct {
	Low   uint64
	High  uint64
	Name  string
	Depth int
}

// Loader wraps a binary's DWARF data. It is not safe for concurrent
// queries; callers serialize access.
type Loader struct {
	data *dwarf.Data
}

// New loads DWARF data from the binary at path, which may be the target
// itself or a separate debug file.
func New(path string) (*Loader, error) {
	if ef, err := elf.Open(path); err == nil {
		defer ef.Close()
		d, err := ef.DWARF()
		if err != nil {
			return nil, errors.Wrap(err, "loading ELF debug info")
		}
		return &Loader{data: d}, nil
	}

	mf, err := macho.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening debug file")
	}
	defer mf.Close()
	d, err := mf.DWARF()
	if err != nil {
		return nil, errors.Wrap(err, "loading Mach-O debug info")
	}
	return &Loader{data: d}, nil
}

// Ranges returns the source-line coverage of [low, high), sorted by
// address.
func (l *Loader) Ranges(low, high uint64) ([]Line, error) {
	cu, err := l.compileUnitFor(low)
	if err != nil || cu == nil {
		return nil, err
	}

	lr, err := l.data.LineReader(cu)
	if err != nil {
		return nil, errors.Wrap(err, "line reader")
	}
	if lr == nil {
		return nil, nil
	}

	var entry dwarf.LineEntry
	if err := lr.SeekPC(low, &entry); err != nil {
		if err == dwarf.ErrUnknownPC {
			return nil, nil
		}
		return nil, errors.Wrap(err, "seeking line table")
	}

	var out []Line
	prev := entry
	for {
		var next dwarf.LineEntry
		err := lr.Next(&next)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "reading line table")
		}

		if !prev.EndSequence && prev.Address < high && prev.File != nil {
			start, end := prev.Address, next.Address
			if start < low {
				start = low
			}
			if end > high {
				end = high
			}
			if end > start {
				out = append(out, Line{
					Addr: start,
					End:  end,
					File: prev.File.Name,
					Line: prev.Line,
					Col:  prev.Column,
				})
			}
		}

		if next.Address >= high {
			break
		}
		prev = next
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Addr < out[j].Addr })
	return out, nil
}

// InlineRanges returns every inlined-subroutine range intersecting
// [low, high).
func (l *Loader) InlineRanges(low, high uint64) ([]InlineRange, error) {
	r := l.data.Reader()
	cu, err := r.SeekPC(low)
	if err != nil {
		if err == dwarf.ErrUnknownPC {
			return nil, nil
		}
		return nil, errors.Wrap(err, "seeking compile unit")
	}
	if cu == nil {
		return nil, nil
	}

	var out []InlineRange
	depth := 0
	for {
		ent, err := r.Next()
		if err != nil {
			return nil, errors.Wrap(err, "walking debug entries")
		}
		if ent == nil {
			break
		}
		if ent.Tag == 0 {
			depth--
			if depth < 0 {
				break
			}
			continue
		}
		if ent.Tag == dwarf.TagCompileUnit {
			break
		}

		if ent.Tag == dwarf.TagInlinedSubroutine {
			rngs, err := l.data.Ranges(ent)
			if err == nil {
				name := l.entryName(ent)
				for _, rng := range rngs {
					if rng[1] <= low || rng[0] >= high {
						continue
					}
					out = append(out, InlineRange{
						Low:   rng[0],
						High:  rng[1],
						Name:  name,
						Depth: depth,
					})
				}
			}
		}

		if ent.Children {
			depth++
		}
	}
	return out, nil
}

// entryName resolves a DIE's name, following abstract-origin and
// specification references.
func (l *Loader) entryName(ent *dwarf.Entry) string {
	for i := 0; ent != nil && i < 8; i++ {
		if name, ok := ent.Val(dwarf.AttrName).(string); ok {
			return name
		}

		var next dwarf.Offset
		if off, ok := ent.Val(dwarf.AttrAbstractOrigin).(dwarf.Offset); ok {
			next = off
		} else if off, ok := ent.Val(dwarf.AttrSpecification).(dwarf.Offset); ok {
			next = off
		} else {
			break
		}

		r := l.data.Reader()
		r.Seek(next)
		ref, err := r.Next()
		if err != nil {
			break
		}
		ent = ref
	}
	return "?"
}

func (l *Loader) compileUnitFor(pc uint64) (*dwarf.Entry, error) {
	r := l.data.Reader()
	cu, err := r.SeekPC(pc)
	if err != nil {
		if err == dwarf.ErrUnknownPC {
			return nil, nil
		}
		return nil, errors.Wrap(err, "seeking compile unit")
	}
	return cu, nil
}
