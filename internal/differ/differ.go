package differ

import (
	"encoding/json"
	"reflect"
	"sort"
)

// PropertyChange records one property that differs between two
// generations of an entry. Delta is set only for numeric properties.
type PropertyChange struct {
	Property string      `json:"property"`
	Old      interface{} `json:"old"`
	New      interface{} `json:"new"`
	Delta    float64     `json:"delta,omitempty"`
}

// EntryChange is a modified entry with its property-level changes.
type EntryChange struct {
	Key     string           `json:"key"`
	Changes []PropertyChange `json:"changes"`
}

// SectionStats counts outcomes within one section.
type SectionStats struct {
	Added     int `json:"added"`
	Removed   int `json:"removed"`
	Modified  int `json:"modified"`
	Unchanged int `json:"unchanged"`
}

// SectionDiff is the diff of one named map. Slices are sorted by key
// so identical inputs always produce byte-identical output.
type SectionDiff struct {
	Added    []string      `json:"added"`
	Removed  []string      `json:"removed"`
	Modified []EntryChange `json:"modified"`
	Stats    SectionStats  `json:"stats"`
}

// Totals aggregates counts across all sections.
type Totals struct {
	TotalAdded    int `json:"totalAdded"`
	TotalRemoved  int `json:"totalRemoved"`
	TotalModified int `json:"totalModified"`
	Unchanged     int `json:"unchanged"`
}

// Summary is the headline verdict of a diff.
type Summary struct {
	HasChanges      bool     `json:"hasChanges"`
	ChangedSections []string `json:"changedSections"`
}

// Warning flags a pattern in a diff that deserves human attention.
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Report compares two generations of a full map set, one section per
// map name. Anomalies are filled in by Detect; the diff itself never
// depends on them.
type Report struct {
	Sections  map[string]SectionDiff `json:"sections"`
	Totals    Totals                 `json:"totals"`
	Summary   Summary                `json:"summary"`
	Anomalies []Warning              `json:"anomalies,omitempty"`
}

// Diff compares two map sets keyed by map name. A map present on only
// one side diffs against an empty generation.
func Diff(old, new map[string]json.RawMessage) *Report {
	report := &Report{Sections: make(map[string]SectionDiff)}

	names := make(map[string]bool, len(old)+len(new))
	for name := range old {
		names[name] = true
	}
	for name := range new {
		names[name] = true
	}

	for name := range names {
		section := DiffSection(old[name], new[name])
		report.Sections[name] = section
		report.Totals.TotalAdded += section.Stats.Added
		report.Totals.TotalRemoved += section.Stats.Removed
		report.Totals.TotalModified += section.Stats.Modified
		report.Totals.Unchanged += section.Stats.Unchanged
		if section.Stats.Added > 0 || section.Stats.Removed > 0 || section.Stats.Modified > 0 {
			report.Summary.ChangedSections = append(report.Summary.ChangedSections, name)
		}
	}
	sort.Strings(report.Summary.ChangedSections)
	report.Summary.HasChanges = len(report.Summary.ChangedSections) > 0
	return report
}

// DiffSection compares two generations of one map. Entries match by
// key; matched entries are compared property by property.
func DiffSection(old, new json.RawMessage) SectionDiff {
	oldEntries := parseEntries(old)
	newEntries := parseEntries(new)

	diff := SectionDiff{Added: []string{}, Removed: []string{}, Modified: []EntryChange{}}

	for key, newEntry := range newEntries {
		oldEntry, existed := oldEntries[key]
		if !existed {
			diff.Added = append(diff.Added, key)
			continue
		}
		changes := compareEntries(oldEntry, newEntry)
		if len(changes) > 0 {
			diff.Modified = append(diff.Modified, EntryChange{Key: key, Changes: changes})
		} else {
			diff.Stats.Unchanged++
		}
	}
	for key := range oldEntries {
		if _, kept := newEntries[key]; !kept {
			diff.Removed = append(diff.Removed, key)
		}
	}

	sort.Strings(diff.Added)
	sort.Strings(diff.Removed)
	sort.Slice(diff.Modified, func(i, j int) bool {
		return diff.Modified[i].Key < diff.Modified[j].Key
	})

	diff.Stats.Added = len(diff.Added)
	diff.Stats.Removed = len(diff.Removed)
	diff.Stats.Modified = len(diff.Modified)
	return diff
}

// parseEntries decodes one map generation into key -> entry value.
// A missing or unparseable generation is treated as empty.
func parseEntries(raw json.RawMessage) map[string]interface{} {
	if len(raw) == 0 {
		return map[string]interface{}{}
	}
	var entries map[string]interface{}
	if err := json.Unmarshal(raw, &entries); err != nil || entries == nil {
		return map[string]interface{}{}
	}
	return entries
}

// compareEntries returns the property changes between two entries,
// sorted by property name. Non-object entries compare as one "value"
// property.
func compareEntries(old, new interface{}) []PropertyChange {
	oldProps, oldOK := old.(map[string]interface{})
	newProps, newOK := new.(map[string]interface{})
	if !oldOK || !newOK {
		if reflect.DeepEqual(old, new) {
			return nil
		}
		return []PropertyChange{propertyChange("value", old, new)}
	}

	var changes []PropertyChange
	for prop, newVal := range newProps {
		oldVal, existed := oldProps[prop]
		if !existed {
			changes = append(changes, propertyChange(prop, nil, newVal))
			continue
		}
		if !reflect.DeepEqual(oldVal, newVal) {
			changes = append(changes, propertyChange(prop, oldVal, newVal))
		}
	}
	for prop, oldVal := range oldProps {
		if _, kept := newProps[prop]; !kept {
			changes = append(changes, propertyChange(prop, oldVal, nil))
		}
	}
	sort.Slice(changes, func(i, j int) bool {
		return changes[i].Property < changes[j].Property
	})
	return changes
}

func propertyChange(prop string, old, new interface{}) PropertyChange {
	change := PropertyChange{Property: prop, Old: old, New: new}
	if oldNum, ok := old.(float64); ok {
		if newNum, ok := new.(float64); ok {
			change.Delta = newNum - oldNum
		}
	}
	return change
}
