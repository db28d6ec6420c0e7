package triggers

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zoobzio/chainz"
)

// Command wraps the chain as a cobra command.
//
// Invocation builds a CLI context from the command's name (the first token
// of use) and its arguments, runs the chain, and prints the final context as
// indented JSON to the command's stdout. A failed context additionally
// returns its error, which cobra maps to a non-zero exit code.
func Command(use string, chain Runner) *cobra.Command {
	name, _, _ := strings.Cut(use, " ")
	return &cobra.Command{
		Use:          use,
		Short:        "Run the " + chain.Name() + " chain",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			result := chain.Run(cmd.Context(), chainz.NewCLIContext(name, args))

			out, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return result.Err()
		},
	}
}
