package commands

import (
	"fsguard/internal/guard"

	"github.com/spf13/cobra"
)

var mvCmd = &cobra.Command{
	Use:   "mv SOURCE DEST",
	Short: "Move a file or directory",
	Long: `Move SOURCE to DEST. Both ends must pass the policy. An existing
directory DEST receives SOURCE under its own name.`,
	Args: cobra.ExactArgs(2),
	RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
		preview, _ := cmd.Flags().GetBool("preview")
		overwrite, _ := cmd.Flags().GetBool("overwrite")
		cleanup, _ := cmd.Flags().GetBool("cleanup")
		out, err := a.guard.Move(cmd.Context(), guard.MoveRequest{
			Source:      args[0],
			Destination: args[1],
			Overwrite:   overwrite,
			Preview:     preview,
			Cleanup:     cleanup,
		})
		return report(cmd, out, err)
	}),
}

var organizeCmd = &cobra.Command{
	Use:   "organize SOURCE DEST",
	Short: "Sort files into per-extension directories",
	Long: `Move every file under SOURCE into DEST/<extension>/. Files the policy
rejects and files whose target exists are skipped.

With --cleanup, directories left empty are removed, never going above the
parent of SOURCE.`,
	Args: cobra.ExactArgs(2),
	RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
		preview, _ := cmd.Flags().GetBool("preview")
		recursive, _ := cmd.Flags().GetBool("recursive")
		cleanup, _ := cmd.Flags().GetBool("cleanup")
		out, err := a.guard.Organize(cmd.Context(), guard.OrganizeRequest{
			Source:      args[0],
			Destination: args[1],
			Recursive:   recursive,
			Preview:     preview,
			Cleanup:     cleanup,
		})
		return report(cmd, out, err)
	}),
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup DIR [BOUNDARY]",
	Short: "Remove empty directories upward from DIR",
	Long: `Remove DIR and each parent that is empty, stopping below BOUNDARY.
BOUNDARY defaults to the parent of DIR and is never removed.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
		req := guard.CleanupRequest{Start: args[0]}
		if len(args) == 2 {
			req.Boundary = args[1]
		}
		out, err := a.guard.Cleanup(cmd.Context(), req)
		return report(cmd, out, err)
	}),
}

func init() {
	mvCmd.Flags().Bool("preview", false, "show what would be moved")
	mvCmd.Flags().Bool("overwrite", false, "replace an existing destination file")
	mvCmd.Flags().Bool("cleanup", false, "remove the source's parent if it becomes empty")

	organizeCmd.Flags().Bool("preview", false, "show the planned moves")
	organizeCmd.Flags().BoolP("recursive", "r", false, "include files in subdirectories")
	organizeCmd.Flags().Bool("cleanup", false, "remove directories left empty")
}
