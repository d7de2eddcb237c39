package main

import (
	stderrors "errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"projmap/internal/errors"
	"projmap/internal/refresh"
	"projmap/internal/watcher"
)

var (
	refreshFormat        string
	refreshFull          bool
	refreshIncremental   bool
	refreshWatch         bool
	refreshWatchInterval time.Duration
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Bring the project maps up to date",
	Long: `Bring the stored project maps up to date.

Without flags the staleness score decides what runs: a critical score
triggers a full rebuild, a moderate one an incremental patch, anything
less leaves the maps alone. --full and --incremental force a mode.

With --watch the command keeps running and refreshes whenever git
activity settles down.`,
	RunE: runRefresh,
}

func init() {
	refreshCmd.Flags().StringVar(&refreshFormat, "format", "human", "Output format (json, human)")
	refreshCmd.Flags().BoolVar(&refreshFull, "full", false, "Force a full rebuild")
	refreshCmd.Flags().BoolVar(&refreshIncremental, "incremental", false, "Force an incremental update")
	refreshCmd.Flags().BoolVar(&refreshWatch, "watch", false, "Keep running and refresh on git activity")
	refreshCmd.Flags().DurationVar(&refreshWatchInterval, "watch-interval",
		watcher.DefaultPollInterval, "Poll interval in watch mode")
	rootCmd.AddCommand(refreshCmd)
}

// RefreshOutput is the CLI shape of a refresh run
type RefreshOutput struct {
	Success    bool   `json:"success"`
	Action     string `json:"action"`
	Reason     string `json:"reason,omitempty"`
	Score      int    `json:"score,omitempty"`
	ScanID     string `json:"scanId,omitempty"`
	Files      int    `json:"files,omitempty"`
	Changed    int    `json:"changed,omitempty"`
	HistoryID  string `json:"historyId,omitempty"`
	DurationMs int64  `json:"durationMs"`
	Error      string `json:"error,omitempty"`
}

func runRefresh(cmd *cobra.Command, args []string) error {
	if refreshFull && refreshIncremental {
		return fmt.Errorf("--full and --incremental are mutually exclusive")
	}
	mode := refresh.ModeAuto
	switch {
	case refreshFull:
		mode = refresh.ModeFull
	case refreshIncremental:
		mode = refresh.ModeIncremental
	}

	env := mustGetEnv(refreshFormat)
	r := refresh.New(env.info, env.resolver, env.logger)

	res, err := r.Run(mode)
	if err != nil {
		return outputRefreshError(err)
	}
	if err := outputRefreshResult(res); err != nil {
		return err
	}

	if refreshWatch {
		return watchLoop(env, r)
	}
	return nil
}

// watchLoop refreshes in auto mode whenever git activity settles,
// until interrupted.
func watchLoop(env *projectEnv, r *refresh.Refresher) error {
	w := watcher.New(env.info.Root, watcher.Options{PollInterval: refreshWatchInterval},
		env.logger, func() {
			res, err := r.Run(refresh.ModeAuto)
			if err != nil {
				env.logger.Error("Refresh failed", map[string]interface{}{
					"error": err.Error(),
				})
				return
			}
			if res.Action != refresh.ActionNone && refreshFormat == "human" {
				fmt.Printf("✓ %s refresh: %d files (%s)\n", res.Action, res.Files, res.Reason)
			}
		})
	if err := w.Start(); err != nil {
		return err
	}
	defer w.Stop()

	if refreshFormat == "human" {
		fmt.Println("Watching for changes. Press Ctrl-C to stop.")
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	<-shutdown

	if refreshFormat == "human" {
		fmt.Println("\nStopping watch.")
	}
	return nil
}

func outputRefreshResult(res *refresh.Result) error {
	out := &RefreshOutput{
		Success:    true,
		Action:     string(res.Action),
		Reason:     res.Reason,
		Score:      res.Score,
		ScanID:     res.ScanID,
		Files:      res.Files,
		Changed:    res.Changed,
		HistoryID:  res.HistoryID,
		DurationMs: res.DurationMs,
	}

	if refreshFormat == "json" {
		output, err := formatJSON(out)
		if err != nil {
			return err
		}
		fmt.Println(output)
		return nil
	}

	switch res.Action {
	case refresh.ActionNone:
		fmt.Printf("✓ Maps are up to date (%s)\n", res.Reason)
	case refresh.ActionFull:
		fmt.Println("✓ Full refresh complete")
		fmt.Printf("  Files: %d\n", res.Files)
		fmt.Printf("  History entry: %s\n", res.HistoryID)
		fmt.Printf("  Duration: %dms\n", res.DurationMs)
	case refresh.ActionIncremental:
		fmt.Println("✓ Incremental refresh complete")
		fmt.Printf("  Changed: %d\n", res.Changed)
		fmt.Printf("  Files: %d\n", res.Files)
		fmt.Printf("  History entry: %s\n", res.HistoryID)
		fmt.Printf("  Duration: %dms\n", res.DurationMs)
	}
	return nil
}

// outputRefreshError prints a failure for the selected format and
// passes the error back so the command exits non-zero.
func outputRefreshError(err error) error {
	if refreshFormat == "json" {
		out, jsonErr := formatJSON(&RefreshOutput{Success: false, Error: err.Error()})
		if jsonErr == nil {
			fmt.Println(out)
		}
		return err
	}

	fmt.Println("✗ Refresh failed")
	fmt.Printf("  Error: %v\n", err)

	var mapErr *errors.MapError
	if stderrors.As(err, &mapErr) && len(mapErr.SuggestedFixes) > 0 {
		fmt.Println("  Suggested fixes:")
		for _, fix := range mapErr.SuggestedFixes {
			if fix.Description != "" {
				fmt.Printf("    - %s\n", fix.Description)
			}
			if fix.Command != "" {
				fmt.Printf("      $ %s\n", fix.Command)
			}
		}
	}
	return err
}
