package commands

import (
	"fmt"
	"io"
	"strings"

	"fsguard/internal/exitcodes"
	"fsguard/internal/guard"
	"fsguard/internal/output"

	"github.com/spf13/cobra"
)

// report prints out and maps a rejection onto the policy exit code.
func report(cmd *cobra.Command, out *guard.Outcome, err error) error {
	if err != nil {
		return exitcodes.Wrap(exitcodes.RuntimeError, err)
	}

	w := cmd.OutOrStdout()
	if jsonOut {
		if err := output.JSON(w, out); err != nil {
			return err
		}
	} else {
		printOutcome(w, out)
	}

	if out.Rejected {
		return exitcodes.Wrap(exitcodes.PolicyRejection, out.Err())
	}
	return nil
}

func printOutcome(w io.Writer, out *guard.Outcome) {
	if out.Rejected {
		fmt.Fprintf(w, "rejected (%s): %s\n\n", out.Reason, out.Detail)
		printChecks(w, out)
		return
	}

	if out.Previewed {
		fmt.Fprintln(w, "preview, nothing was changed")
		items := output.NewTableData("Kind", "Size", "Path")
		for _, it := range out.Preview {
			size := "-"
			if it.Size != nil {
				size = output.Bytes(*it.Size)
			}
			items.AddRow(string(it.Kind), size, it.Path)
		}
		output.PrintTable(w, items)
	} else {
		for _, p := range out.Removed {
			fmt.Fprintf(w, "removed %s\n", p)
		}
	}

	if len(out.Moved) > 0 {
		moves := output.NewTableData("From", "To")
		for _, mv := range out.Moved {
			moves.AddRow(mv.From, mv.To)
		}
		output.PrintTable(w, moves)
	}

	if len(out.Skipped) > 0 {
		fmt.Fprintln(w, "\nskipped:")
		skipped := output.NewTableData("Reason", "Path")
		for _, s := range out.Skipped {
			skipped.AddRow(s.Reason, s.Path)
		}
		output.PrintTable(w, skipped)
	}

	if out.Cleanup != nil {
		if len(out.Cleanup.Removed) > 0 {
			fmt.Fprintf(w, "\nremoved empty directories: %s\n", strings.Join(out.Cleanup.Removed, ", "))
		}
		for _, s := range out.Cleanup.Skipped {
			fmt.Fprintf(w, "cleanup stopped at %s (%s)\n", s.Path, s.Reason)
		}
	}

	if out.BytesFreed > 0 {
		fmt.Fprintf(w, "\nfreed %s\n", output.Bytes(out.BytesFreed))
	}
}

func printChecks(w io.Writer, out *guard.Outcome) {
	pairs := [][2]string{
		{"scope", string(out.Checks.Scope)},
		{"path protection", string(out.Checks.PathProtection)},
		{"name protection", string(out.Checks.NameProtection)},
	}
	if dc := out.DestinationChecks; dc != nil {
		pairs = append(pairs,
			[2]string{"destination scope", string(dc.Scope)},
			[2]string{"destination path protection", string(dc.PathProtection)},
			[2]string{"destination name protection", string(dc.NameProtection)},
		)
	}
	output.SimpleTable(w, pairs)
}
