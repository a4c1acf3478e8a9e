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
	"strconv"
	"strings"

	"github.com/libresolve/libresolve/logging"
)

// integralTableSpec is the parsed form of a `$IntegralTable` directive:
// the independent variable name, an optional output step, and the
// ordered column projection (spec.md §4.3 Phase B).
type integralTableSpec struct {
	Independent string
	Step        float64 // 0 means "use the solver's native grid"
	Columns     []string
}

// autoStepSpec is the parsed form of a `$IntegralAutoStep` directive.
type autoStepSpec struct {
	Vary     bool
	MinSteps int
	MaxSteps int
	Reduce   float64
	Increase float64
}

// processDirective parses one directive's raw text (without the
// leading `$`) and updates o's active table/auto-step state. Unknown
// directives are logged as warnings and otherwise ignored, per
// spec.md §4.3 Phase B.
func (o *Orchestrator) processDirective(text string) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return
	}
	name := strings.ToUpper(fields[0])
	rest := strings.TrimSpace(text[len(fields[0]):])

	switch name {
	case "INTEGRALTABLE":
		spec, err := parseIntegralTable(rest)
		if err != nil {
			o.Log.Logf(logging.LevelWarn, "malformed $IntegralTable directive: %v", err)
			return
		}
		o.table = &spec

	case "INTEGRALAUTOSTEP":
		spec, err := parseAutoStep(rest)
		if err != nil {
			o.Log.Logf(logging.LevelWarn, "malformed $IntegralAutoStep directive: %v", err)
			return
		}
		o.autoStep = &spec

	default:
		o.Log.Logf(logging.LevelWarn, "unknown directive $%s, ignored", fields[0])
	}
}

// parseIntegralTable parses "name[:step], col1, col2, ...".
func parseIntegralTable(rest string) (integralTableSpec, error) {
	parts := strings.Split(rest, ",")
	if len(parts) == 0 {
		return integralTableSpec{}, errParseDirective("$IntegralTable requires an independent variable")
	}
	head := strings.TrimSpace(parts[0])
	spec := integralTableSpec{}
	if colon := strings.Index(head, ":"); colon >= 0 {
		spec.Independent = strings.TrimSpace(head[:colon])
		step, err := strconv.ParseFloat(strings.TrimSpace(head[colon+1:]), 64)
		if err != nil {
			return integralTableSpec{}, errParseDirective("invalid step in $IntegralTable")
		}
		spec.Step = step
	} else {
		spec.Independent = head
	}
	for _, col := range parts[1:] {
		col = strings.TrimSpace(col)
		if col != "" {
			spec.Columns = append(spec.Columns, col)
		}
	}
	return spec, nil
}

// parseAutoStep parses "vary=0|1 min=N max=N reduce=R increase=R".
func parseAutoStep(rest string) (autoStepSpec, error) {
	spec := autoStepSpec{}
	for _, field := range strings.Fields(rest) {
		eq := strings.Index(field, "=")
		if eq < 0 {
			return autoStepSpec{}, errParseDirective("expected key=value in $IntegralAutoStep, got " + field)
		}
		key := strings.ToUpper(strings.TrimSpace(field[:eq]))
		value := strings.TrimSpace(field[eq+1:])
		switch key {
		case "VARY":
			n, err := strconv.Atoi(value)
			if err != nil {
				return autoStepSpec{}, errParseDirective("invalid vary value")
			}
			spec.Vary = n != 0
		case "MIN":
			n, err := strconv.Atoi(value)
			if err != nil {
				return autoStepSpec{}, errParseDirective("invalid min value")
			}
			spec.MinSteps = n
		case "MAX":
			n, err := strconv.Atoi(value)
			if err != nil {
				return autoStepSpec{}, errParseDirective("invalid max value")
			}
			spec.MaxSteps = n
		case "REDUCE":
			f, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return autoStepSpec{}, errParseDirective("invalid reduce value")
			}
			spec.Reduce = f
		case "INCREASE":
			f, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return autoStepSpec{}, errParseDirective("invalid increase value")
			}
			spec.Increase = f
		default:
			return autoStepSpec{}, errParseDirective("unknown key " + key)
		}
	}
	return spec, nil
}

type directiveError string

func (e directiveError) Error() string { return string(e) }

func errParseDirective(msg string) error { return directiveError(msg) }
