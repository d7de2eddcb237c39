package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"projmap/internal/differ"
	"projmap/internal/errors"
	"projmap/internal/mapstore"
	"projmap/internal/refresh"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Manage map history",
	Long: `Manage the refresh history of the project maps.

Every refresh appends a dated entry. These commands list, restore,
compare and trim those entries.`,
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List history entries, newest first",
	RunE:  runHistoryList,
}

var historySaveCmd = &cobra.Command{
	Use:   "save",
	Short: "Record the current maps as a history entry",
	RunE:  runHistorySave,
}

var historyLoadCmd = &cobra.Command{
	Use:   "load <id>",
	Short: "Restore a history entry as the current maps",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryLoad,
}

var historyCompareCmd = &cobra.Command{
	Use:   "compare <old-id> <new-id>",
	Short: "Diff two history entries",
	Args:  cobra.ExactArgs(2),
	RunE:  runHistoryCompare,
}

var historyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Trim history to the retention limit",
	RunE:  runHistoryPrune,
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a history entry",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryDelete,
}

var historyStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show history storage statistics",
	RunE:  runHistoryStats,
}

var (
	historyFormat    string
	historyNotes     string
	historyPruneKeep int
)

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyListCmd, historySaveCmd, historyLoadCmd,
		historyCompareCmd, historyPruneCmd, historyDeleteCmd, historyStatsCmd)

	historyCmd.PersistentFlags().StringVar(&historyFormat, "format", "human", "Output format (json, human)")
	historySaveCmd.Flags().StringVar(&historyNotes, "notes", "", "Free-form note stored with the entry")
	historyPruneCmd.Flags().IntVar(&historyPruneKeep, "keep", 0, "Entries to keep (default: configured retention)")
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	env := mustGetEnv(historyFormat)
	store := mapstore.NewHistoryStore(env.info, env.cfg, env.logger)

	entries, err := store.List()
	if err != nil {
		return err
	}

	if historyFormat == "json" {
		output, err := formatJSON(entries)
		if err != nil {
			return err
		}
		fmt.Println(output)
		return nil
	}

	if len(entries) == 0 {
		fmt.Println("No history entries. Run 'projmap refresh --full' first.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCREATED\tMAPS\tSIZE\tREASON")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
			e.ID, formatTime(e.CreatedAt), e.MapCount,
			formatBytes(e.SizeBytes), e.Metadata[refresh.MetaReason])
	}
	w.Flush()
	fmt.Printf("\n%d entries\n", len(entries))
	return nil
}

func runHistorySave(cmd *cobra.Command, args []string) error {
	env := mustGetEnv(historyFormat)

	snap, err := mapstore.NewCurrentStore(env.info, env.cfg, env.logger).Load()
	if err != nil {
		if errors.IsNotFound(err) {
			return errors.New(errors.NotFound,
				"no maps to record; run projmap refresh --full", err)
		}
		return err
	}

	meta := make(map[string]string, len(snap.Metadata)+2)
	for k, v := range snap.Metadata {
		meta[k] = v
	}
	meta[refresh.MetaReason] = "manual"
	if historyNotes != "" {
		meta["notes"] = historyNotes
	}

	saved, err := mapstore.NewHistoryStore(env.info, env.cfg, env.logger).Save(snap.Maps, meta)
	if err != nil {
		return err
	}

	if historyFormat == "json" {
		output, err := formatJSON(saved)
		if err != nil {
			return err
		}
		fmt.Println(output)
		return nil
	}
	fmt.Printf("✓ Saved history entry %s (%d maps)\n", saved.ID, len(saved.Maps))
	return nil
}

func runHistoryLoad(cmd *cobra.Command, args []string) error {
	env := mustGetEnv(historyFormat)
	id := args[0]

	snap, err := mapstore.NewHistoryStore(env.info, env.cfg, env.logger).Load(id)
	if err != nil {
		return err
	}
	restored, err := mapstore.NewCurrentStore(env.info, env.cfg, env.logger).Save(snap.Maps, snap.Metadata)
	if err != nil {
		return err
	}

	if historyFormat == "json" {
		output, err := formatJSON(restored)
		if err != nil {
			return err
		}
		fmt.Println(output)
		return nil
	}
	fmt.Printf("✓ Restored history entry %s as the current maps (%d maps)\n", id, len(restored.Maps))
	return nil
}

func runHistoryCompare(cmd *cobra.Command, args []string) error {
	env := mustGetEnv(historyFormat)
	store := mapstore.NewHistoryStore(env.info, env.cfg, env.logger)

	oldSnap, err := store.Load(args[0])
	if err != nil {
		return err
	}
	newSnap, err := store.Load(args[1])
	if err != nil {
		return err
	}

	report := differ.Diff(oldSnap.Maps, newSnap.Maps)
	report.Anomalies = differ.Detect(report, differ.DefaultThresholds())

	if historyFormat == "json" {
		output, err := formatJSON(report)
		if err != nil {
			return err
		}
		fmt.Println(output)
		return nil
	}

	fmt.Printf("Comparing %s -> %s: %s\n\n", args[0], args[1], differ.FormatSummary(report))
	fmt.Print(differ.FormatReport(report))
	return nil
}

func runHistoryPrune(cmd *cobra.Command, args []string) error {
	env := mustGetEnv(historyFormat)

	keep := historyPruneKeep
	if keep <= 0 {
		keep = env.cfg.History.Keep
	}

	removed, err := mapstore.NewHistoryStore(env.info, env.cfg, env.logger).Prune(keep)
	if err != nil {
		return err
	}

	if historyFormat == "json" {
		output, err := formatJSON(map[string]int{"removed": removed, "keep": keep})
		if err != nil {
			return err
		}
		fmt.Println(output)
		return nil
	}
	fmt.Printf("✓ Pruned %d entries (keeping up to %d)\n", removed, keep)
	return nil
}

func runHistoryDelete(cmd *cobra.Command, args []string) error {
	env := mustGetEnv(historyFormat)
	id := args[0]

	store := mapstore.NewHistoryStore(env.info, env.cfg, env.logger)
	if !store.Exists(id) {
		return errors.New(errors.NotFound,
			fmt.Sprintf("history entry %q not found", id), nil)
	}
	if err := store.Delete(id); err != nil {
		return err
	}

	if historyFormat == "json" {
		output, err := formatJSON(map[string]string{"deleted": id})
		if err != nil {
			return err
		}
		fmt.Println(output)
		return nil
	}
	fmt.Printf("✓ Deleted history entry %s\n", id)
	return nil
}

func runHistoryStats(cmd *cobra.Command, args []string) error {
	env := mustGetEnv(historyFormat)

	stats, err := mapstore.NewHistoryStore(env.info, env.cfg, env.logger).Stats()
	if err != nil {
		return err
	}

	if historyFormat == "json" {
		output, err := formatJSON(stats)
		if err != nil {
			return err
		}
		fmt.Println(output)
		return nil
	}

	if stats.Entries == 0 {
		fmt.Println("No history entries.")
		return nil
	}
	fmt.Printf("Entries: %d\n", stats.Entries)
	fmt.Printf("Total size: %s\n", formatBytes(stats.TotalBytes))
	fmt.Printf("Oldest: %s\n", formatTime(stats.Oldest))
	fmt.Printf("Newest: %s\n", formatTime(stats.Newest))
	return nil
}
