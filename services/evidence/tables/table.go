// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tables

import (
	"strings"
	"unicode"
)

// Len returns the number of data rows.
func (t rawTable) Len() int {
	return len(t.rows)
}

// Dimensions returns the number of data rows and header columns.
func (t rawTable) Dimensions() (rows, cols int) {
	return len(t.rows), len(t.labels)
}

// Labels returns a copy of the header labels in file order.
func (t rawTable) Labels() []string {
	return append([]string(nil), t.labels...)
}

// Head returns the first PreviewRows rows.
func (t rawTable) Head() [][]string {
	return t.Slice(0, PreviewRows)
}

// Tail returns the last PreviewRows rows.
func (t rawTable) Tail() [][]string {
	return t.Slice(len(t.rows)-PreviewRows, len(t.rows))
}

// Slice returns rows [start, end), clamped to the table bounds.
//
// # Description
//
// Out-of-range bounds are clamped instead of failing, so a page past the
// end of the table is simply empty. The result is never nil and its rows
// are copies, so callers may not mutate the snapshot through it.
func (t rawTable) Slice(start, end int) [][]string {
	n := len(t.rows)
	start = clamp(start, 0, n)
	end = clamp(end, 0, n)
	if end <= start {
		return [][]string{}
	}
	out := make([][]string, 0, end-start)
	for _, row := range t.rows[start:end] {
		out = append(out, append([]string(nil), row...))
	}
	return out
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// evidenceMarker returns the annotated form of a mention inside a sentence.
func evidenceMarker(mention string) string {
	return ">" + mention + "<"
}

// ContainsMention reports whether an annotated sentence mentions the given
// entity, i.e. contains ">" + mention + "<" literally.
func ContainsMention(sentence, mention string) bool {
	return strings.Contains(sentence, evidenceMarker(mention))
}

// TitleCase upper-cases every letter that follows a non-letter and
// lower-cases every other letter, so "acute DISEASE, non-viral" becomes
// "Acute Disease, Non-Viral". Names are title-cased before sorting so that
// lower-case names do not all sort after upper-case ones.
func TitleCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevLetter := false
	for _, r := range s {
		isLetter := unicode.IsLetter(r)
		switch {
		case isLetter && !prevLetter:
			b.WriteRune(unicode.ToTitle(r))
		case isLetter:
			b.WriteRune(unicode.ToLower(r))
		default:
			b.WriteRune(r)
		}
		prevLetter = isLetter
	}
	return b.String()
}
