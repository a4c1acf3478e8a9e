package orchestrator

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
	"strings"

	"github.com/libresolve/libresolve/logging"
	"github.com/libresolve/libresolve/report"
)

// emitPlots executes spec.md §4.3 Phase H: for each plot command,
// parse its series specification against the current integral-table
// columns and build a structured PlotData event. Rendering is
// external; this only produces the event payload.
func (o *Orchestrator) emitPlots(plots []string, times []float64, columns map[string][]float64) []report.PlotData {
	var out []report.PlotData
	for _, text := range plots {
		names := splitSeriesNames(text)
		if len(names) == 0 || times == nil {
			o.Log.Logf(logging.LevelWarn, "PLOT %s: no active integral table to project series against", text)
			continue
		}
		var series []report.PlotSeries
		for _, name := range names {
			values, ok := columns[fold(name)]
			if !ok {
				o.Log.Logf(logging.LevelWarn, "PLOT %s: unknown column %s", text, name)
				continue
			}
			series = append(series, report.PlotSeries{
				Name:    name,
				XValues: times,
				YValues: values,
			})
		}
		out = append(out, report.PlotData{
			Settings: report.PlotSettings{Title: text, ShowGrid: true, ShowLegend: true},
			Series:   series,
		})
	}
	return out
}

func splitSeriesNames(text string) []string {
	var out []string
	for _, f := range strings.Split(text, ",") {
		f = strings.TrimSpace(f)
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}
