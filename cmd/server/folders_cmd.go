package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/openmined/foldernotify/internal/server"
	"github.com/openmined/foldernotify/internal/server/folder"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newFoldersCmd())
}

// The folders commands work on the database directly. A running server
// with gate.cache_size set keeps its cached keys until they expire.
func newFoldersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "folders",
		Short: "Inspect and re-enable notified folders",
	}

	cmd.AddCommand(newFoldersListCmd())
	cmd.AddCommand(newFoldersGetCmd())
	cmd.AddCommand(newFoldersDeleteCmd())
	cmd.AddCommand(newFoldersPurgeCmd())
	return cmd
}

func openStore(cmd *cobra.Command) (*folder.Store, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	sqlDB, err := server.OpenDB(&cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	store, err := folder.NewStore(sqlDB)
	if err != nil {
		sqlDB.Close()
		return nil, err
	}
	return store, nil
}

func newFoldersListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List notified folders, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			prefix, _ := cmd.Flags().GetString("prefix")
			limit, _ := cmd.Flags().GetInt("limit")
			offset, _ := cmd.Flags().GetInt("offset")
			asJSON, _ := cmd.Flags().GetBool("json")

			store, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			records, err := store.List(cmd.Context(), folder.ListParams{Prefix: prefix, Limit: limit, Offset: offset})
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(records)
			}

			total, err := store.Count(cmd.Context())
			if err != nil {
				return err
			}
			printRecords(cmd.OutOrStdout(), records, total)
			return nil
		},
	}

	cmd.Flags().StringP("prefix", "p", "", "Only folders under this prefix")
	cmd.Flags().IntP("limit", "n", 50, "Maximum rows")
	cmd.Flags().Int("offset", 0, "Rows to skip")
	cmd.Flags().Bool("json", false, "Print JSON instead of a table")
	return cmd
}

func newFoldersGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <folder-key>",
		Short: "Show one notified folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			rec, err := store.Get(cmd.Context(), args[0])
			if errors.Is(err, folder.ErrNotFound) {
				return fmt.Errorf("%s has not been notified", args[0])
			} else if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(rec)
		},
	}
}

func newFoldersDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <folder-key>",
		Short: "Forget a folder so its next file notifies again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Delete(cmd.Context(), args[0]); errors.Is(err, folder.ErrNotFound) {
				return fmt.Errorf("%s has not been notified", args[0])
			} else if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), green.Render("deleted "+args[0]))
			return nil
		},
	}
}

func newFoldersPurgeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Forget every folder under a prefix",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			prefix, _ := cmd.Flags().GetString("prefix")
			all, _ := cmd.Flags().GetBool("all")
			if prefix == "" && !all {
				return fmt.Errorf("--prefix is required, or pass --all to purge everything")
			}

			store, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			n, err := store.Purge(cmd.Context(), prefix)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), green.Render(fmt.Sprintf("purged %s", humanize.Comma(n))))
			return nil
		},
	}

	cmd.Flags().StringP("prefix", "p", "", "Folder key prefix")
	cmd.Flags().Bool("all", false, "Purge all records")
	return cmd
}

func printRecords(w io.Writer, records []*folder.Record, total int) {
	if len(records) == 0 {
		fmt.Fprintln(w, gray.Render("no folders"))
		return
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(gray).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return bold
			}
			if col == 0 {
				return cyan
			}
			return lipgloss.NewStyle()
		}).
		Headers("FOLDER", "BUCKET", "FIRST FILE", "RECORDED", "SINK REF", "COMPLETE")

	for _, rec := range records {
		t.Row(rec.FolderKey, rec.Bucket, rec.FirstSeenTime, recordedAgo(rec.RecordedAt), rec.MessageRef, completeCell(rec))
	}

	fmt.Fprintln(w, t.Render())
	fmt.Fprintln(w, gray.Render(fmt.Sprintf("%d of %s", len(records), humanize.Comma(int64(total)))))
}

func completeCell(rec *folder.Record) string {
	if !rec.Final() {
		return "-"
	}
	return fmt.Sprintf("%s files, %s", humanize.Comma(rec.FileCount), humanize.IBytes(uint64(max(rec.TotalSizeBytes, 0))))
}

func recordedAgo(ts string) string {
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return ts
	}
	return humanize.Time(t)
}
