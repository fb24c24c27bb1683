package cli

import (
	"encoding/json"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/tessro/mocap/internal/tail"
)

var bookmarksCmd = &cobra.Command{
	Use:     "bookmarks",
	Aliases: []string{"bm"},
	Short:   "Manage saved playback positions",
	Long: `Bookmarks remember where playback of a recording stopped. Save them with
--save or the b key in the viewer, and start from them with --resume.`,
	RunE: runBookmarksList,
}

var bookmarksListCmd = &cobra.Command{
	Use:   "list",
	Short: "List bookmarks",
	RunE:  runBookmarksList,
}

var bookmarksDeleteCmd = &cobra.Command{
	Use:   "delete <recording>",
	Short: "Delete the bookmark for a recording",
	Args:  cobra.ExactArgs(1),
	RunE:  runBookmarksDelete,
}

var bookmarksClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all bookmarks",
	RunE:  runBookmarksClear,
}

func init() {
	bookmarksCmd.AddCommand(bookmarksListCmd)
	bookmarksCmd.AddCommand(bookmarksDeleteCmd)
	bookmarksCmd.AddCommand(bookmarksClearCmd)
	rootCmd.AddCommand(bookmarksCmd)
}

func runBookmarksList(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	list, err := st.List()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if JSONOutput() {
		return json.NewEncoder(out).Encode(list)
	}
	if len(list) == 0 {
		fmt.Fprintln(out, "No bookmarks")
		return nil
	}

	table := NewTableWriter(out, "NAME", "POSITION", "PROGRESS", "UPDATED", "PATH")
	for _, b := range list {
		table.Row(
			b.Name,
			tail.FormatElapsed(b.Elapsed)+" / "+tail.FormatElapsed(b.Duration),
			FormatProgress(b.Position, 20),
			humanize.Time(b.UpdatedAt),
			b.Path,
		)
	}
	table.Flush()
	return nil
}

func runBookmarksDelete(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	path := bookmarkKey(args[0])
	if err := st.Delete(path); err != nil {
		return err
	}

	if JSONOutput() {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]string{
			"status": "deleted",
			"path":   path,
		})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted bookmark for %s\n", path)
	return nil
}

func runBookmarksClear(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	n, err := st.Clear()
	if err != nil {
		return err
	}

	if JSONOutput() {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
			"status":  "cleared",
			"deleted": n,
		})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d bookmark(s)\n", n)
	return nil
}
