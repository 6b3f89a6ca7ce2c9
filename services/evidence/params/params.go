// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package params parses the numeric user inputs of the evidence service.
//
// # Description
//
// Numeric input is parsed leniently: a malformed or out-of-range value
// never fails the request. It falls back to a default and produces a
// datatypes.Warning that is shown to the user next to the result.
package params

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/AleutianAI/EvidenceBrowser/services/evidence/analysis"
	"github.com/AleutianAI/EvidenceBrowser/services/evidence/datatypes"
)

// DefaultPage is the page shown when none, or an invalid one, is requested.
const DefaultPage = 1

// Warning messages.
const (
	MsgPositiveNumber = "You need to insert a positive number!"
	MsgNotAWord       = "You need to insert a number not a word!"

	MsgNegativeRowsWithOccurrence = "You need to insert a positive number! " +
		"Here are all the correlations that matches the minimum occurrences."
	MsgNegativeRowsDefault = "You need to insert a positive number! " +
		"Here are the first top 10 correlations."
)

func warning(header, message string) datatypes.Warning {
	return datatypes.Warning{Type: datatypes.WarningTypeWarning, Header: header, Message: message}
}

// ParsePage parses the page query parameter.
//
// # Outputs
//
//   - int: Page number, at least 1.
//   - []datatypes.Warning: A warning when raw was negative, zero or not a number.
func ParsePage(raw string) (int, []datatypes.Warning) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultPage, nil
	}
	page, err := strconv.Atoi(raw)
	if err != nil {
		return DefaultPage, []datatypes.Warning{warning("Warning!", MsgNotAWord)}
	}
	if page < 1 {
		return DefaultPage, []datatypes.Warning{warning("Warning!", MsgPositiveNumber)}
	}
	return page, nil
}

// Page is one page of a table browse.
type Page struct {
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
	Total   int `json:"total"`
	Pages   int `json:"pages"`
	Start   int `json:"-"`
	End     int `json:"-"`
}

// Paginate computes the row range [Start, End) of page. A page past the
// end yields an empty range.
func Paginate(page, perPage, total int) Page {
	if page < 1 {
		page = DefaultPage
	}
	if perPage < 1 {
		perPage = 1
	}
	pages := (total + perPage - 1) / perPage
	p := Page{Page: page, PerPage: perPage, Total: total, Pages: pages}
	if page > pages {
		// Checked before multiplying so huge page numbers cannot wrap.
		p.Start, p.End = total, total
		return p
	}
	p.Start = (page - 1) * perPage
	p.End = min(page*perPage, total)
	return p
}

// ParseCorrelationForm turns the correlation form into the filter values.
//
// # Description
//
// A GET request is a first visit and uses the defaults (top 10, no
// threshold). For a submitted form:
//   - occurrence: empty means 0; a word means 0 with a warning; a
//     negative number means 0.
//   - rows: empty or a word means the default (10 without a threshold,
//     all rows with one), a word also warns; a negative number means all
//     rows when a threshold is set and 10 otherwise, with a warning.
//
// # Inputs
//
//   - method: HTTP method of the request.
//   - rows, occurrence: Raw form values.
//
// # Outputs
//
//   - numRows: Rows to show, 0 for all.
//   - minOccurrence: Minimum occurrences, 0 for no threshold.
//   - warnings: Messages for the user, possibly empty.
func ParseCorrelationForm(method, rows, occurrence string) (numRows, minOccurrence int, warnings []datatypes.Warning) {
	if method == http.MethodGet {
		return analysis.DefaultCorrelationRows, 0, nil
	}

	occurrence = strings.TrimSpace(occurrence)
	if occurrence != "" {
		v, err := strconv.Atoi(occurrence)
		switch {
		case err != nil:
			warnings = append(warnings, warning("Warning!", MsgNotAWord))
		case v > 0:
			minOccurrence = v
		}
	}

	rows = strings.TrimSpace(rows)
	v, err := strconv.Atoi(rows)
	switch {
	case err != nil:
		if rows != "" {
			warnings = append(warnings, warning("Warning!", MsgNotAWord))
		}
		numRows = defaultRows(minOccurrence)
	case v < 0 && minOccurrence != 0:
		numRows = 0
		warnings = append(warnings, warning("Wrong number!", MsgNegativeRowsWithOccurrence))
	case v < 0:
		numRows = analysis.DefaultCorrelationRows
		warnings = append(warnings, warning("Wrong number!", MsgNegativeRowsDefault))
	default:
		numRows = v
	}

	return numRows, minOccurrence, warnings
}

func defaultRows(minOccurrence int) int {
	if minOccurrence == 0 {
		return analysis.DefaultCorrelationRows
	}
	return 0
}
