// Package diffstats computes the summary counters the tracker merges
// into analytics payloads: decoration statistics at render time,
// inline-completion size statistics, and character-level change
// metadata at acceptance time. All functions are pure.
package diffstats

import "strings"

// DecorationInfo describes the decoration a renderer decided to show
// for a suggestion: which lines are added, removed, or modified
// relative to the original text.
type DecorationInfo struct {
	// AddedLines are lines the decoration introduces
	AddedLines []string `json:"added_lines,omitempty"`
	// RemovedLines are lines the decoration strikes out
	RemovedLines []string `json:"removed_lines,omitempty"`
	// ModifiedLines are lines changed in place
	ModifiedLines []string `json:"modified_lines,omitempty"`
}

// DecorationStats summarizes a DecorationInfo.
type DecorationStats struct {
	// AddedLines is the number of added lines
	AddedLines int `json:"added_lines"`
	// RemovedLines is the number of removed lines
	RemovedLines int `json:"removed_lines"`
	// ModifiedLines is the number of modified lines
	ModifiedLines int `json:"modified_lines"`
	// AddedChars is the total character count across added lines
	AddedChars int `json:"added_chars"`
	// RemovedChars is the total character count across removed lines
	RemovedChars int `json:"removed_chars"`
}

// ComputeDecorationStats summarizes a decoration description into line
// and character counters.
func ComputeDecorationStats(info DecorationInfo) DecorationStats {
	stats := DecorationStats{
		AddedLines:    len(info.AddedLines),
		RemovedLines:  len(info.RemovedLines),
		ModifiedLines: len(info.ModifiedLines),
	}
	for _, line := range info.AddedLines {
		stats.AddedChars += len(line)
	}
	for _, line := range info.RemovedLines {
		stats.RemovedChars += len(line)
	}
	return stats
}

// InsertionStats is the size of an inline completion's insert text.
type InsertionStats struct {
	// Lines is the number of lines the insert text spans
	Lines int `json:"lines"`
	// Characters is the length of the insert text
	Characters int `json:"characters"`
}

// ComputeInsertionStats measures an inline completion candidate's
// insert text. Empty text yields zero lines.
func ComputeInsertionStats(insertText string) InsertionStats {
	if insertText == "" {
		return InsertionStats{}
	}
	return InsertionStats{
		Lines:      strings.Count(insertText, "\n") + 1,
		Characters: len(insertText),
	}
}

// CharsChanged is the character-level change metadata computed when a
// suggestion is accepted: how much of the original replace range
// survived and how much text was actually inserted or deleted.
type CharsChanged struct {
	// CharsInserted is the number of characters the acceptance inserted
	CharsInserted int `json:"chars_inserted"`
	// CharsDeleted is the number of characters the acceptance removed
	CharsDeleted int `json:"chars_deleted"`
	// LinesInserted is the number of lines the acceptance inserted
	LinesInserted int `json:"lines_inserted"`
	// LinesDeleted is the number of lines the acceptance removed
	LinesDeleted int `json:"lines_deleted"`
	// UnchangedPrefixChars is the length of the common prefix between
	// the original range and the inserted text
	UnchangedPrefixChars int `json:"unchanged_prefix_chars"`
	// UnchangedSuffixChars is the length of the common suffix between
	// the original range and the inserted text
	UnchangedSuffixChars int `json:"unchanged_suffix_chars"`
}

// ComputeCharsChanged compares the original replace-range text against
// the inserted prediction. Common prefix and suffix characters are
// treated as unchanged; the remainders count as deleted and inserted
// respectively.
func ComputeCharsChanged(original, inserted string) CharsChanged {
	prefix := commonPrefix(original, inserted)
	suffix := commonSuffix(original[prefix:], inserted[prefix:])

	deleted := original[prefix : len(original)-suffix]
	added := inserted[prefix : len(inserted)-suffix]

	out := CharsChanged{
		CharsInserted:        len(added),
		CharsDeleted:         len(deleted),
		UnchangedPrefixChars: prefix,
		UnchangedSuffixChars: suffix,
	}
	if added != "" {
		out.LinesInserted = strings.Count(added, "\n") + 1
	}
	if deleted != "" {
		out.LinesDeleted = strings.Count(deleted, "\n") + 1
	}
	return out
}

// Calculator adapts ComputeCharsChanged to the tracker's
// change-calculator collaborator. The document handle is unused by this
// implementation; the replace range is expected to be the original text
// as a string and yields zero counters otherwise.
type Calculator struct{}

// CharsChanged implements the tracker's ChangeCalculator interface.
func (Calculator) CharsChanged(document interface{}, replaceRange interface{}, inserted string) CharsChanged {
	original, ok := replaceRange.(string)
	if !ok {
		return CharsChanged{}
	}
	return ComputeCharsChanged(original, inserted)
}

func commonPrefix(a, b string) int {
	n := 0
	for n < len(a) && n < len(b) && a[n] == b[n] {
		n++
	}
	return n
}

func commonSuffix(a, b string) int {
	n := 0
	for n < len(a) && n < len(b) && a[len(a)-1-n] == b[len(b)-1-n] {
		n++
	}
	return n
}
