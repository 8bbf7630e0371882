package show

import (
	"bufio"
	"fmt"
	"os"
	"sort"

	"github.com/ianlancetaylor/demangle"

	"github.com/quininer/fi/internal/addr2line"
	"github.com/quininer/fi/internal/object"
	"github.com/quininer/fi/internal/output"
)

// sourcePrinter interleaves source locations with the disassembly: when an
// instruction address enters a new line range, the file position and (when
// the file is readable) the source text are printed first.
type sourcePrinter struct {
	lines []addr2line.Line
	next  int
	stdio *output.Stdio
	files map[string][]string
}

func newSourcePrinter(lines []addr2line.Line, stdio *output.Stdio) *sourcePrinter {
	return &sourcePrinter{
		lines: lines,
		stdio: stdio,
		files: make(map[string][]string),
	}
}

func (p *sourcePrinter) emit(addr uint64) error {
	for p.next < len(p.lines) && p.lines[p.next].Addr <= addr {
		ln := p.lines[p.next]
		p.next++
		if addr >= ln.End {
			continue
		}

		position := fmt.Sprintf("%s:%d", ln.File, ln.Line)
		if p.stdio.Hyperlink {
			position = output.Hyperlink(position, "file://"+ln.File)
		}
		if _, err := fmt.Fprintln(p.stdio.Stdout, position); err != nil {
			return err
		}

		if text, ok := p.sourceLine(ln.File, ln.Line); ok {
			if col := ln.Col; p.stdio.Colored && col > 1 && col <= len(text) {
				text = output.Dim(text[:col-1]) + text[col-1:]
			}
			if _, err := fmt.Fprintf(p.stdio.Stdout, "    %s\n", text); err != nil {
				return err
			}
		}
	}
	return nil
}

// sourceLine reads one line of a source file, caching whole files. An
// unreadable file is remembered as empty so it is attempted only once.
func (p *sourcePrinter) sourceLine(path string, line int) (string, bool) {
	content, ok := p.files[path]
	if !ok {
		content = readLines(path)
		p.files[path] = content
	}
	if line < 1 || line > len(content) {
		return "", false
	}
	return content[line-1], true
}

func readLines(path string) []string {
	fd, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer fd.Close()

	var lines []string
	scanner := bufio.NewScanner(fd)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines
}

// showDwarfTop prints, instead of the disassembly, a table of byte counts
// grouped by the innermost inlined function covering each source range.
func showDwarfTop(
	e *object.Explorer,
	o *Options,
	sym *object.Symbol,
	lines []addr2line.Line,
	inlines []addr2line.InlineRange,
	stdio *output.Stdio,
) error {
	self := sym.Name
	if o.Demangle {
		self = demangle.Filter(self)
	}

	totals := make(map[string]uint64)
	for _, ln := range lines {
		name := self
		depth := -1
		for _, in := range inlines {
			if ln.Addr >= in.Low && ln.Addr < in.High && in.Depth > depth {
				name, depth = in.Name, in.Depth
			}
		}
		totals[name] += ln.End - ln.Addr
	}

	type row struct {
		name  string
		bytes uint64
	}
	rows := make([]row, 0, len(totals))
	for name, n := range totals {
		rows = append(rows, row{name, n})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].bytes != rows[j].bytes {
			return rows[i].bytes > rows[j].bytes
		}
		return rows[i].name < rows[j].name
	})

	for _, r := range rows {
		if _, err := fmt.Fprintf(stdio.Stdout, "%10d  %s\n", r.bytes, r.name); err != nil {
			return err
		}
	}
	return nil
}
