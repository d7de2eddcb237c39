package main

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"projmap/internal/errors"
	"projmap/internal/mapstore"
	"projmap/internal/refresh"
	"projmap/internal/repostate"
	"projmap/internal/staleness"
)

var statusFormat string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show map freshness and storage for the project",
	Long:  "Display the stored maps, their staleness score, and history and snapshot usage for the project.",
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusFormat, "format", "human", "Output format (json, human)")
	rootCmd.AddCommand(statusCmd)
}

// StatusOutput is the full per-project status for CLI output
type StatusOutput struct {
	ProjectRoot string                 `json:"projectRoot"`
	ProjectHash string                 `json:"projectHash"`
	Repo        *repostate.State       `json:"repo,omitempty"`
	HasMaps     bool                   `json:"hasMaps"`
	Maps        []string               `json:"maps,omitempty"`
	GeneratedAt *time.Time             `json:"generatedAt,omitempty"`
	Reason      string                 `json:"reason,omitempty"`
	Staleness   *staleness.Result      `json:"staleness,omitempty"`
	History     *mapstore.HistoryStats `json:"history,omitempty"`
	Snapshots   int                    `json:"snapshots"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	env := mustGetEnv(statusFormat)

	out := &StatusOutput{
		ProjectRoot: env.info.Root,
		ProjectHash: env.info.Hash,
	}
	if repostate.IsGitRepository(env.info.Root) {
		if st, err := repostate.Compute(env.info.Root); err == nil {
			out.Repo = st
		}
	}

	snap, err := mapstore.NewCurrentStore(env.info, env.cfg, env.logger).Load()
	switch {
	case err == nil:
		out.HasMaps = true
		out.Maps = mapNames(snap)
		createdAt := snap.CreatedAt
		out.GeneratedAt = &createdAt
		out.Reason = snap.Metadata[refresh.MetaReason]
		out.Staleness = staleness.NewChecker(env.logger).Check(env.info.Root, refresh.StoredFacts(snap))
	case errors.IsNotFound(err):
		// no maps yet; reported below
	default:
		return err
	}

	if stats, err := mapstore.NewHistoryStore(env.info, env.cfg, env.logger).Stats(); err == nil {
		out.History = stats
	}
	if entries, err := mapstore.NewSnapshotStore(env.info, env.cfg, env.logger).List(); err == nil {
		out.Snapshots = len(entries)
	}

	if statusFormat == "json" {
		output, err := formatJSON(out)
		if err != nil {
			return err
		}
		fmt.Println(output)
		return nil
	}

	fmt.Printf("Project: %s\n", out.ProjectRoot)
	fmt.Printf("State:   %s\n", env.info.DataDir)
	if out.Repo != nil {
		fmt.Printf("Git:     %s\n", describeRepo(out.Repo))
	}
	fmt.Println()

	if !out.HasMaps {
		fmt.Println("✗ No maps yet. Run 'projmap refresh --full'.")
		return nil
	}

	res := out.Staleness
	fmt.Printf("%s Maps are %s (score %d)\n", levelIcon(res.Level), res.Level, res.Score)
	fmt.Printf("  Maps: %s\n", strings.Join(out.Maps, ", "))
	fmt.Printf("  Generated: %s", formatTime(*out.GeneratedAt))
	if out.Reason != "" {
		fmt.Printf(" (%s)", out.Reason)
	}
	fmt.Println()
	for _, reason := range res.Reasons {
		fmt.Printf("  - %s\n", reason)
	}

	if out.History != nil && out.History.Entries > 0 {
		fmt.Printf("\nHistory: %d entries (%s)\n",
			out.History.Entries, formatBytes(out.History.TotalBytes))
	} else {
		fmt.Println("\nHistory: empty")
	}
	fmt.Printf("Snapshots: %d\n", out.Snapshots)

	if res.IsStale {
		fmt.Println("\nRun 'projmap refresh' to bring the maps up to date.")
	}
	return nil
}

func mapNames(snap *mapstore.Snapshot) []string {
	names := make([]string, 0, len(snap.Maps))
	for name := range snap.Maps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func levelIcon(level staleness.Level) string {
	switch level {
	case staleness.LevelCritical:
		return "✗"
	case staleness.LevelModerate:
		return "⚠"
	default:
		return "✓"
	}
}

// describeRepo renders one line of git state: short commit, cleanliness,
// tracked-file count.
func describeRepo(st *repostate.State) string {
	commit := st.HeadCommit
	if commit == "" {
		commit = "no commits"
	} else if len(commit) > 7 {
		commit = commit[:7]
	}
	tree := "clean"
	if st.Dirty {
		tree = "dirty"
	}
	return fmt.Sprintf("%s (%s), %d tracked files", commit, tree, st.TrackedFiles)
}
