// Package report renders the VariableStore and integral table into the
// stable, fixed-precision outputs spec.md §6 requires: a variable
// report, an integral table, and plot data events.
package report

//----------------------------------------------------------------------
// This file is part of Dynamo.
// Copyright (C) 2020-2021 Bernd Fix
//
// Dynamo is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License,
// or (at your option) any later version.
//
// Dynamo is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.
//
// SPDX-License-Identifier: AGPL3.0-or-later
//----------------------------------------------------------------------

import (
	"fmt"
	"strconv"

	"github.com/libresolve/libresolve/store"
)

// VariableReport is the ordered `{name, value, unit?, provenance}`
// listing spec.md §6 requires, in stable (case-insensitively sorted)
// order.
type VariableReport struct {
	Entries []VariableEntry
}

// VariableEntry is one row of a VariableReport.
type VariableEntry struct {
	Name       string
	Value      float64
	Unit       *string
	Provenance store.Provenance
}

// SignificantDigits is the fixed precision used for logged/reported
// scalar values (spec.md §6: "6 significant digits for logs").
const SignificantDigits = 6

// TableDecimals is the fixed precision used for integral-table cells
// (spec.md §6: "6 decimals for tables").
const TableDecimals = 6

// BuildVariableReport reads out s in the stable order spec.md §8 (P5)
// requires.
func BuildVariableReport(s *store.Store) VariableReport {
	names := s.SortedNames()
	recordsByName := make(map[string]store.Record, len(names))
	for _, r := range s.Records() {
		recordsByName[upper(r.Name)] = r
	}

	entries := make([]VariableEntry, 0, len(names))
	for _, name := range names {
		r := recordsByName[upper(name)]
		entries = append(entries, VariableEntry{
			Name:       r.Name,
			Value:      r.Value,
			Unit:       r.Unit,
			Provenance: r.Provenance,
		})
	}
	return VariableReport{Entries: entries}
}

func upper(s string) string {
	b := []byte(s)
	for i, c := range b {
		if 'a' <= c && c <= 'z' {
			b[i] = c - ('a' - 'A')
		}
	}
	return string(b)
}

// FormatValue renders v with SignificantDigits significant digits and
// a neutral, locale-independent decimal point.
func FormatValue(v float64) string {
	return strconv.FormatFloat(v, 'g', SignificantDigits, 64)
}

// FormatTableCell renders v with TableDecimals decimal places.
func FormatTableCell(v float64) string {
	return strconv.FormatFloat(v, 'f', TableDecimals, 64)
}

// String renders a VariableReport as a simple aligned listing; callers
// needing another presentation read Entries directly.
func (vr VariableReport) String() string {
	out := ""
	for _, e := range vr.Entries {
		unit := ""
		if e.Unit != nil {
			unit = " " + *e.Unit
		}
		out += fmt.Sprintf("%-24s = %-16s%-10s[%s]\n", e.Name, FormatValue(e.Value), unit, e.Provenance)
	}
	return out
}

// IntegralTable is the ordered set of equal-length columns spec.md §6
// requires, the independent variable first.
type IntegralTable struct {
	ColumnNames []string
	Columns     [][]float64
}

// NewIntegralTable builds a table from column names and their sample
// vectors, which must all share the same length (P4).
func NewIntegralTable(names []string, columns [][]float64) IntegralTable {
	return IntegralTable{ColumnNames: names, Columns: columns}
}

// Len returns the row count, or 0 for an empty table.
func (t IntegralTable) Len() int {
	if len(t.Columns) == 0 {
		return 0
	}
	return len(t.Columns[0])
}

// Row returns the formatted cells of row i.
func (t IntegralTable) Row(i int) []string {
	out := make([]string, len(t.Columns))
	for c, col := range t.Columns {
		out[c] = FormatTableCell(col[i])
	}
	return out
}

// PlotSeries is one named curve within a PlotData event.
type PlotSeries struct {
	Name    string
	Color   *string
	XValues []float64
	YValues []float64
}

// PlotSettings carries the cosmetic parameters spec.md §6 names;
// rendering itself is external.
type PlotSettings struct {
	Title      string
	XLabel     string
	YLabel     string
	ShowGrid   bool
	ShowLegend bool
}

// PlotData is the structured event emitted per plot command (spec.md
// §4.3 Phase H), handed to whatever external consumer renders it.
type PlotData struct {
	Settings PlotSettings
	Series   []PlotSeries
}
