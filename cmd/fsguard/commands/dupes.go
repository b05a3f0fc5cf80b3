package commands

import (
	"fmt"

	"fsguard/internal/exitcodes"
	"fsguard/internal/output"
	"fsguard/internal/scan"

	"github.com/spf13/cobra"
)

var dupesCmd = &cobra.Command{
	Use:   "dupes DIR",
	Short: "Find files with identical content",
	Long: `Group the files under DIR by content digest. Nothing is modified.

Include and exclude patterns are globs matched against file names.`,
	Args: cobra.ExactArgs(1),
	RunE: withApp(runDupes),
}

func init() {
	dupesCmd.Flags().BoolP("recursive", "r", true, "descend into subdirectories")
	dupesCmd.Flags().Int64("min-size", 0, "ignore files smaller than this many bytes")
	dupesCmd.Flags().StringSlice("include", nil, "only consider file names matching these globs")
	dupesCmd.Flags().StringSlice("exclude", nil, "skip files and directories matching these globs")
}

func runDupes(cmd *cobra.Command, a *app, args []string) error {
	var opts scan.Options
	opts.Recursive, _ = cmd.Flags().GetBool("recursive")
	opts.MinSize, _ = cmd.Flags().GetInt64("min-size")
	opts.Include, _ = cmd.Flags().GetStringSlice("include")
	opts.Exclude, _ = cmd.Flags().GetStringSlice("exclude")

	rep, err := scan.NewScanner(a.logger).FindDuplicates(cmd.Context(), args[0], opts)
	if err != nil {
		return exitcodes.Wrap(exitcodes.RuntimeError, err)
	}

	w := cmd.OutOrStdout()
	if jsonOut {
		return output.JSON(w, rep)
	}

	if len(rep.Groups) == 0 {
		fmt.Fprintln(w, "No duplicates found")
	} else {
		table := output.NewTableData("Digest", "Size", "Path")
		for _, g := range rep.Groups {
			for _, p := range g.Paths {
				table.AddRow(g.Digest, output.Bytes(g.Size), p)
			}
		}
		output.PrintTable(w, table)
	}

	fmt.Fprintf(w, "\n%d groups, %d files scanned, %d hashed, %d skipped, %s reclaimable\n",
		len(rep.Groups), rep.FilesScanned, rep.FilesHashed, rep.Skipped, output.Bytes(rep.WastedBytes))
	return nil
}
