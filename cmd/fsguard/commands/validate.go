package commands

import (
	"fmt"

	"fsguard/internal/exitcodes"
	"fsguard/internal/output"
	"fsguard/internal/safety"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate PATH...",
	Short: "Check whether paths may be deleted",
	Long: `Evaluate each path against the policy without touching the filesystem.

Exits with status 3 if any path would be rejected.`,
	Args: cobra.MinimumNArgs(1),
	RunE: withApp(runValidate),
}

func runValidate(cmd *cobra.Command, a *app, args []string) error {
	results := make([]safety.Result, 0, len(args))
	rejected := 0
	for _, p := range args {
		res, err := a.guard.Validate(p)
		if err != nil {
			return exitcodes.Wrap(exitcodes.InvalidConfig, err)
		}
		if !res.Safe {
			rejected++
		}
		results = append(results, res)
	}

	w := cmd.OutOrStdout()
	if jsonOut {
		if err := output.JSON(w, results); err != nil {
			return err
		}
	} else {
		table := output.NewTableData("Path", "Safe", "Reason", "Detail")
		for _, res := range results {
			table.AddRow(res.Path, fmt.Sprint(res.Safe), string(res.Reason), res.Detail)
		}
		output.PrintTable(w, table)
	}

	if rejected > 0 {
		return exitcodes.Wrap(exitcodes.PolicyRejection, fmt.Errorf("%d of %d paths rejected", rejected, len(args)))
	}
	return nil
}

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Show the policy in force",
	Args:  cobra.NoArgs,
	RunE:  withApp(runPolicy),
}

type policyView struct {
	Config            string   `json:"config"`
	AllowedPaths      []string `json:"allowed_paths"`
	ProtectedPaths    []string `json:"protected_paths"`
	ProtectedPatterns []string `json:"protected_patterns"`
}

func runPolicy(cmd *cobra.Command, a *app, _ []string) error {
	p, err := a.store.Policy()
	if err != nil {
		return exitcodes.Wrap(exitcodes.InvalidConfig, err)
	}
	view := policyView{
		Config:            a.store.Path(),
		AllowedPaths:      p.AllowedPaths(),
		ProtectedPaths:    p.ProtectedPaths(),
		ProtectedPatterns: p.ProtectedPatterns(),
	}

	w := cmd.OutOrStdout()
	if jsonOut {
		return output.JSON(w, view)
	}

	fmt.Fprintf(w, "config: %s\n\n", view.Config)
	table := output.NewTableData("Kind", "Entry")
	if len(view.AllowedPaths) == 0 {
		table.AddRow("allowed", "(none, every mutation is rejected)")
	}
	for _, e := range view.AllowedPaths {
		table.AddRow("allowed", e)
	}
	for _, e := range view.ProtectedPaths {
		table.AddRow("protected", e)
	}
	for _, e := range view.ProtectedPatterns {
		table.AddRow("pattern", e)
	}
	output.PrintTable(w, table)
	return nil
}
