package cmd

import (
	"github.com/spf13/cobra"

	"github.com/quininer/fi/internal/session"
	"github.com/quininer/fi/internal/show"
)

var (
	showOpts   show.Options
	showLength uint64
	showAlign  uint64
)

func addShowCommand(parent *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "show ADDR",
		Short: "Show disassembly or data at an address",
		Long: `Show the session's binary at an address.

A text symbol is disassembled, optionally with interleaved DWARF source
lines; anything else is printed as a hex+ASCII view. ADDR is decimal or
0x-prefixed hex.

Examples:
  fi show 0x401000
  fi show 0x401000 --dwarf
  fi show 0x401000 --dwarf --dwarf-top
  fi show 0x4a2000 --no-symbol --length 64
  fi show 0x4a2000 --dump > blob.bin`,
		Args: cobra.ExactArgs(1),
		RunE: runShow,
	}

	flags := cmd.Flags()
	flags.Uint64Var(&showLength, "length", 0, "Show length (default 256)")
	flags.BoolVar(&showOpts.NoSymbol, "no-symbol", false, "Address a section directly, skip symbol lookup")
	flags.BoolVar(&showOpts.Dump, "dump", false, "Dump raw bytes to stdout")
	flags.BoolVarP(&showOpts.Demangle, "demangle", "d", false, "Demangle symbol names")
	flags.Uint64Var(&showAlign, "align", 0, "Address alignment (default: section alignment)")
	flags.BoolVar(&showOpts.Dwarf, "dwarf", false, "Interleave DWARF source lines")
	flags.StringVar(&showOpts.DwarfPath, "dwarf-path", "", "Load DWARF data from a separate debug file")
	flags.BoolVar(&showOpts.DwarfTop, "dwarf-top", false, "Group by inlined function, sorted by bytes")

	parent.AddCommand(cmd)
}

func runShow(cmd *cobra.Command, args []string) error {
	opts := showOpts
	opts.Address = args[0]
	opts.Demangle = demangleDefault(opts.Demangle)
	if cmd.Flags().Changed("length") {
		opts.Length = &showLength
	}
	if cmd.Flags().Changed("align") {
		opts.Align = &showAlign
	}

	return runRemote(cmd, &session.Start{Show: &opts})
}
