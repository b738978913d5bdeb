package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"bridgekit/internal/app"
	"bridgekit/internal/storage"
)

var errNoStore = errors.New("storage is disabled (storage.driver=none)")

var saveCmd = &cobra.Command{
	Use:   "save <file-id> <text>",
	Short: "Save a blob",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(st storage.Store) error {
			return st.Save(args[0], args[1])
		})
	},
}

var loadCmd = &cobra.Command{
	Use:   "load <file-id>",
	Short: "Print a blob",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(st storage.Store) error {
			text, err := st.Load(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		})
	},
}

var lsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List blobs",
	Long:  "List blobs in the working area, or the archive with --archive.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		archived, _ := cmd.Flags().GetBool("archive")
		return withStore(cmd, func(st storage.Store) error {
			list := st.ListFiles
			if archived {
				list = st.ListArchive
			}
			names, err := list()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(names) == 0 {
				fmt.Fprintln(out, "(no entries)")
			}
			for _, n := range names {
				fmt.Fprintln(out, n)
			}
			return nil
		})
	},
}

var rmCmd = &cobra.Command{
	Use:   "rm <file-id>",
	Short: "Delete a blob",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(st storage.Store) error {
			ok, err := st.Delete(args[0])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%s: %w", args[0], storage.ErrNotFound)
			}
			return nil
		})
	},
}

var archiveCmd = &cobra.Command{
	Use:   "archive <file-id>",
	Short: "Move a blob to the archive under a timestamped name",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(st storage.Store) error {
			ok, err := st.Archive(args[0])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%s: %w", args[0], storage.ErrNotFound)
			}
			return nil
		})
	},
}

func init() {
	lsCmd.Flags().Bool("archive", false, "list archived blobs")
	rootCmd.AddCommand(saveCmd, loadCmd, lsCmd, rmCmd, archiveCmd)
}

func withStore(cmd *cobra.Command, fn func(st storage.Store) error) error {
	return withApp(cmd, func(a *app.App) error {
		st, err := a.Bridge().Storage()
		if err != nil {
			return errNoStore
		}
		return fn(st)
	})
}
