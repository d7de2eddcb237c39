package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"projmap/internal/errors"
	"projmap/internal/mapstore"
	"projmap/internal/refresh"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Manage named map snapshots",
	Long: `Manage named snapshots of the project maps.

Unlike history entries, snapshots are taken and restored by name:
bookmark the maps before a risky change, compare or roll back later.`,
}

var snapshotListCmd = &cobra.Command{
	Use:   "list",
	Short: "List snapshots, newest first",
	RunE:  runSnapshotList,
}

var snapshotSaveCmd = &cobra.Command{
	Use:   "save <name>",
	Short: "Save the current maps under a name",
	Args:  cobra.ExactArgs(1),
	RunE:  runSnapshotSave,
}

var snapshotLoadCmd = &cobra.Command{
	Use:   "load <name>",
	Short: "Restore a snapshot as the current maps",
	Args:  cobra.ExactArgs(1),
	RunE:  runSnapshotLoad,
}

var snapshotHasCmd = &cobra.Command{
	Use:   "has <name>",
	Short: "Check whether a snapshot exists",
	Long: `Check whether a snapshot exists.

Prints true or false and exits 0 or 1, for use in scripts.`,
	Args: cobra.ExactArgs(1),
	Run:  runSnapshotHas,
}

var snapshotDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a snapshot",
	Args:  cobra.ExactArgs(1),
	RunE:  runSnapshotDelete,
}

var snapshotCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete all snapshots, including unreadable ones",
	RunE:  runSnapshotCleanup,
}

var snapshotFormat string

func init() {
	rootCmd.AddCommand(snapshotCmd)
	snapshotCmd.AddCommand(snapshotListCmd, snapshotSaveCmd, snapshotLoadCmd,
		snapshotHasCmd, snapshotDeleteCmd, snapshotCleanupCmd)

	snapshotCmd.PersistentFlags().StringVar(&snapshotFormat, "format", "human", "Output format (json, human)")
}

func runSnapshotList(cmd *cobra.Command, args []string) error {
	env := mustGetEnv(snapshotFormat)

	entries, err := mapstore.NewSnapshotStore(env.info, env.cfg, env.logger).List()
	if err != nil {
		return err
	}

	if snapshotFormat == "json" {
		output, err := formatJSON(entries)
		if err != nil {
			return err
		}
		fmt.Println(output)
		return nil
	}

	if len(entries) == 0 {
		fmt.Println("No snapshots.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tCREATED\tMAPS\tSIZE")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n",
			e.ID, formatTime(e.CreatedAt), e.MapCount, formatBytes(e.SizeBytes))
	}
	w.Flush()
	return nil
}

func runSnapshotSave(cmd *cobra.Command, args []string) error {
	env := mustGetEnv(snapshotFormat)
	name := args[0]

	snap, err := mapstore.NewCurrentStore(env.info, env.cfg, env.logger).Load()
	if err != nil {
		if errors.IsNotFound(err) {
			return errors.New(errors.NotFound,
				"no maps to snapshot; run projmap refresh --full", err)
		}
		return err
	}

	meta := make(map[string]string, len(snap.Metadata)+1)
	for k, v := range snap.Metadata {
		meta[k] = v
	}
	meta[refresh.MetaReason] = "snapshot"

	saved, err := mapstore.NewSnapshotStore(env.info, env.cfg, env.logger).Save(name, snap.Maps, meta)
	if err != nil {
		return err
	}

	if snapshotFormat == "json" {
		output, err := formatJSON(saved)
		if err != nil {
			return err
		}
		fmt.Println(output)
		return nil
	}
	fmt.Printf("✓ Saved snapshot %q (%d maps)\n", name, len(saved.Maps))
	return nil
}

func runSnapshotLoad(cmd *cobra.Command, args []string) error {
	env := mustGetEnv(snapshotFormat)
	name := args[0]

	snap, err := mapstore.NewSnapshotStore(env.info, env.cfg, env.logger).Load(name)
	if err != nil {
		return err
	}
	restored, err := mapstore.NewCurrentStore(env.info, env.cfg, env.logger).Save(snap.Maps, snap.Metadata)
	if err != nil {
		return err
	}

	if snapshotFormat == "json" {
		output, err := formatJSON(restored)
		if err != nil {
			return err
		}
		fmt.Println(output)
		return nil
	}
	fmt.Printf("✓ Restored snapshot %q as the current maps (%d maps)\n", name, len(restored.Maps))
	return nil
}

func runSnapshotHas(cmd *cobra.Command, args []string) {
	env := mustGetEnv(snapshotFormat)

	if mapstore.NewSnapshotStore(env.info, env.cfg, env.logger).Exists(args[0]) {
		fmt.Println("true")
		return
	}
	fmt.Println("false")
	os.Exit(1)
}

func runSnapshotDelete(cmd *cobra.Command, args []string) error {
	env := mustGetEnv(snapshotFormat)
	name := args[0]

	store := mapstore.NewSnapshotStore(env.info, env.cfg, env.logger)
	if !store.Exists(name) {
		return errors.New(errors.NotFound,
			fmt.Sprintf("snapshot %q not found", name), nil)
	}
	if err := store.Delete(name); err != nil {
		return err
	}

	if snapshotFormat == "json" {
		output, err := formatJSON(map[string]string{"deleted": name})
		if err != nil {
			return err
		}
		fmt.Println(output)
		return nil
	}
	fmt.Printf("✓ Deleted snapshot %q\n", name)
	return nil
}

func runSnapshotCleanup(cmd *cobra.Command, args []string) error {
	env := mustGetEnv(snapshotFormat)

	removed, err := mapstore.NewSnapshotStore(env.info, env.cfg, env.logger).Cleanup()
	if err != nil {
		return err
	}

	if snapshotFormat == "json" {
		output, err := formatJSON(map[string]int{"removed": removed})
		if err != nil {
			return err
		}
		fmt.Println(output)
		return nil
	}
	fmt.Printf("✓ Removed %d snapshots\n", removed)
	return nil
}
