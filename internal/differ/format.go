package differ

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// maxListedEntries bounds how many added/removed/modified entries one
// section prints in the verbose report.
const maxListedEntries = 20

// FormatSummary renders a one-line digest of a report.
func FormatSummary(report *Report) string {
	if !report.Summary.HasChanges {
		return "no changes"
	}
	sections := report.Summary.ChangedSections
	return fmt.Sprintf("+%d -%d ~%d across %s (%s)",
		report.Totals.TotalAdded,
		report.Totals.TotalRemoved,
		report.Totals.TotalModified,
		plural(len(sections), "section"),
		strings.Join(sections, ", "))
}

// FormatReport renders a verbose multi-section report. Sections with
// no changes are omitted; long entry lists are truncated.
func FormatReport(report *Report) string {
	var b strings.Builder

	if !report.Summary.HasChanges {
		b.WriteString("No changes.\n")
	} else {
		fmt.Fprintf(&b, "Map changes: +%d -%d ~%d\n",
			report.Totals.TotalAdded, report.Totals.TotalRemoved, report.Totals.TotalModified)

		names := make([]string, 0, len(report.Sections))
		for name := range report.Sections {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			section := report.Sections[name]
			if section.Stats.Added == 0 && section.Stats.Removed == 0 && section.Stats.Modified == 0 {
				continue
			}
			fmt.Fprintf(&b, "\n%s (+%d -%d ~%d)\n",
				name, section.Stats.Added, section.Stats.Removed, section.Stats.Modified)
			writeKeyList(&b, "+", section.Added)
			writeKeyList(&b, "-", section.Removed)
			writeModified(&b, section.Modified)
		}
	}

	if len(report.Anomalies) > 0 {
		b.WriteString("\nAnomalies:\n")
		for _, w := range report.Anomalies {
			fmt.Fprintf(&b, "  [%s] %s\n", w.Code, w.Message)
		}
	}
	return b.String()
}

func writeKeyList(b *strings.Builder, marker string, keys []string) {
	for i, key := range keys {
		if i == maxListedEntries {
			fmt.Fprintf(b, "  %s ... and %d more\n", marker, len(keys)-maxListedEntries)
			return
		}
		fmt.Fprintf(b, "  %s %s\n", marker, key)
	}
}

func writeModified(b *strings.Builder, modified []EntryChange) {
	for i, entry := range modified {
		if i == maxListedEntries {
			fmt.Fprintf(b, "  ~ ... and %d more\n", len(modified)-maxListedEntries)
			return
		}
		fmt.Fprintf(b, "  ~ %s\n", entry.Key)
		for _, change := range entry.Changes {
			if change.Delta != 0 {
				fmt.Fprintf(b, "      %s: %s -> %s (%+g)\n",
					change.Property, formatValue(change.Old), formatValue(change.New), change.Delta)
			} else {
				fmt.Fprintf(b, "      %s: %s -> %s\n",
					change.Property, formatValue(change.Old), formatValue(change.New))
			}
		}
	}
}

func formatValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "(none)"
	case string:
		return val
	case float64:
		return fmt.Sprintf("%g", val)
	case bool:
		return fmt.Sprintf("%t", val)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
