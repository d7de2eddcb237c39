package main

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"projmap/internal/scanner"
)

var (
	scanFormat string
	scanQuick  bool
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan the project tree and print statistics",
	Long: `Scan the project tree and print what was found.

Nothing is persisted; this is a dry run of the same walk a refresh
performs. --quick skips line counting and git status for speed.`,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().StringVar(&scanFormat, "format", "human", "Output format (json, human)")
	scanCmd.Flags().BoolVar(&scanQuick, "quick", false, "Skip line counts and git status")
	rootCmd.AddCommand(scanCmd)
}

// ScanOutput summarizes a scan for CLI output
type ScanOutput struct {
	ScanID     string         `json:"scanId"`
	Root       string         `json:"root"`
	TotalFiles int            `json:"totalFiles"`
	TotalSize  int64          `json:"totalSizeBytes"`
	TotalLines int            `json:"totalLines"`
	ByType     map[string]int `json:"byType"`
	ByRole     map[string]int `json:"byRole"`
	DurationMs int64          `json:"durationMs"`
}

func runScan(cmd *cobra.Command, args []string) error {
	env := mustGetEnv(scanFormat)

	sc := scanner.New(env.info.Root, env.resolver, nil, env.logger)
	var (
		res *scanner.Result
		err error
	)
	if scanQuick {
		res, err = sc.QuickScan()
	} else {
		res, err = sc.Scan()
	}
	if err != nil {
		return err
	}

	out := &ScanOutput{
		ScanID:     res.ScanID,
		Root:       res.Root,
		TotalFiles: res.Stats.TotalFiles,
		TotalSize:  res.Stats.TotalSize,
		TotalLines: res.Stats.TotalLines,
		ByType:     res.Stats.ByType,
		ByRole:     res.Stats.ByRole,
		DurationMs: res.Stats.DurationMs,
	}

	if scanFormat == "json" {
		output, err := formatJSON(out)
		if err != nil {
			return err
		}
		fmt.Println(output)
		return nil
	}

	fmt.Printf("Scanned %d files in %dms\n", out.TotalFiles, out.DurationMs)
	fmt.Printf("  Total size: %s\n", formatBytes(out.TotalSize))
	if !scanQuick {
		fmt.Printf("  Total lines: %d\n", out.TotalLines)
	}

	if len(out.ByType) > 0 {
		fmt.Println("\nBy type:")
		printCountTable(out.ByType)
	}
	if len(out.ByRole) > 0 {
		fmt.Println("\nBy role:")
		printCountTable(out.ByRole)
	}
	return nil
}

// printCountTable prints name/count pairs, largest first.
func printCountTable(counts map[string]int) {
	type row struct {
		name  string
		count int
	}
	rows := make([]row, 0, len(counts))
	for name, count := range counts {
		rows = append(rows, row{name, count})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].count != rows[j].count {
			return rows[i].count > rows[j].count
		}
		return rows[i].name < rows[j].name
	})

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, r := range rows {
		fmt.Fprintf(w, "  %s\t%d\n", r.name, r.count)
	}
	w.Flush()
}
