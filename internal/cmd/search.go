package cmd

import (
	"github.com/spf13/cobra"

	"github.com/quininer/fi/internal/search"
	"github.com/quininer/fi/internal/session"
)

var searchOpts search.Options

func addSearchCommand(parent *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "search KEYWORD",
		Short: "Search symbol names, section data, or call sites",
		Long: `Search the session's binary.

The keyword is a regex over symbol names by default, a byte regex over data
sections with --data, or a symbol address with --callsite.

Examples:
  fi search '^main$' --size
  fi search 'panic' --demangle --sort-name
  fi search 'GCC:' --data
  fi search 0x401000 --callsite`,
		Args: cobra.ExactArgs(1),
		RunE: runSearch,
	}

	flags := cmd.Flags()
	flags.BoolVarP(&searchOpts.Demangle, "demangle", "d", false, "Demangle symbol names")
	flags.BoolVar(&searchOpts.Data, "data", false, "Search by data instead of symbol name")
	flags.BoolVar(&searchOpts.Callsite, "callsite", false, "Search for direct calls by symbol address")
	flags.StringVarP(&searchOpts.FilterSection, "filter-section", "f", "", "Filter section by regex")
	flags.BoolVarP(&searchOpts.Size, "size", "s", false, "Print symbol size")
	flags.BoolVar(&searchOpts.SortSize, "sort-size", false, "Sort by size")
	flags.BoolVar(&searchOpts.SortName, "sort-name", false, "Sort by name")
	flags.BoolVar(&searchOpts.OnlyDuplicate, "only-duplicate", false, "Only print duplicate symbols")

	parent.AddCommand(cmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	opts := searchOpts
	opts.Keyword = args[0]
	opts.Demangle = demangleDefault(opts.Demangle)

	// Option conflicts surface before any I/O.
	if err := opts.Validate(); err != nil {
		return err
	}

	return runRemote(cmd, &session.Start{Search: &opts})
}
