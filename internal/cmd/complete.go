package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func addCompleteCommand(parent *cobra.Command) {
	cmd := &cobra.Command{
		Use:       "complete SHELL",
		Short:     "Print a shell completion script",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"bash", "zsh", "fish", "elvish", "powershell"},
		RunE: func(cmd *cobra.Command, args []string) error {
			root := cmd.Root()
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return root.GenBashCompletionV2(out, true)
			case "zsh":
				return root.GenZshCompletion(out)
			case "fish":
				return root.GenFishCompletion(out, true)
			case "powershell":
				return root.GenPowerShellCompletionWithDesc(out)
			default:
				return fmt.Errorf("no completion script for %q (supported: bash, zsh, fish, powershell)", args[0])
			}
		},
	}
	parent.AddCommand(cmd)
}
