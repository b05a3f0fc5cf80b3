package commands

import (
	"fsguard/internal/guard"

	"github.com/spf13/cobra"
)

var rmCmd = &cobra.Command{
	Use:   "rm FILE",
	Short: "Delete a file",
	Long: `Delete a single file if the policy allows it.

With --cleanup the emptied parent directory is removed too, never going
above the file's grandparent.`,
	Args: cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
		preview, _ := cmd.Flags().GetBool("preview")
		cleanup, _ := cmd.Flags().GetBool("cleanup")
		out, err := a.guard.DeleteFile(cmd.Context(), guard.FileRequest{
			Path:    args[0],
			Preview: preview,
			Cleanup: cleanup,
		})
		return report(cmd, out, err)
	}),
}

var rmdirCmd = &cobra.Command{
	Use:   "rmdir DIR",
	Short: "Delete a directory",
	Long: `Delete a directory if the policy allows it.

Without --recursive the directory must be empty. A recursive delete also
requires --confirm; --preview lists the tree without it.`,
	Args: cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
		preview, _ := cmd.Flags().GetBool("preview")
		recursive, _ := cmd.Flags().GetBool("recursive")
		confirm, _ := cmd.Flags().GetBool("confirm")
		out, err := a.guard.DeleteDirectory(cmd.Context(), guard.DirRequest{
			Path:             args[0],
			Recursive:        recursive,
			ConfirmRecursive: confirm,
			Preview:          preview,
		})
		return report(cmd, out, err)
	}),
}

func init() {
	rmCmd.Flags().Bool("preview", false, "show what would be deleted")
	rmCmd.Flags().Bool("cleanup", false, "remove the parent directory if it becomes empty")

	rmdirCmd.Flags().Bool("preview", false, "show what would be deleted")
	rmdirCmd.Flags().BoolP("recursive", "r", false, "delete the directory and everything below it")
	rmdirCmd.Flags().Bool("confirm", false, "confirm a recursive delete")
}
