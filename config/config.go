// Package config holds the ambient settings for a run: solver tuning,
// ODE step control, and reporting precision, loaded from an optional
// YAML file and overridable from $IntegralAutoStep directives embedded
// in source text.
package config

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
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/libresolve/libresolve/ode"
	"github.com/libresolve/libresolve/solver"
)

// SolverSettings mirrors solver.Settings with YAML tags for on-disk
// configuration.
type SolverSettings struct {
	Algorithm     string  `yaml:"algorithm"` // "NelderMead" or "LevenbergMarquardt"
	MaxIterations int     `yaml:"max_iterations"`
	Tolerance     float64 `yaml:"tolerance"`
	// ReportingTolerance overrides solver's default 1e-2 convergence
	// threshold (spec.md §4.4 "tolerance when the caller insists");
	// zero leaves the default in place.
	ReportingTolerance float64 `yaml:"reporting_tolerance"`
}

// AutoStepSettings mirrors ode.AdaptiveControls plus the Vary flag
// parsed from a $IntegralAutoStep directive.
type AutoStepSettings struct {
	Vary     bool    `yaml:"vary"`
	MinSteps int     `yaml:"min"`
	MaxSteps int     `yaml:"max"`
	Reduce   float64 `yaml:"reduce"`
	Increase float64 `yaml:"increase"`
}

// ReportSettings holds output-formatting settings read from the YAML
// file (spec.md §6). The report package does not read them; it formats
// with its own fixed precision constants.
type ReportSettings struct {
	SignificantDigits int `yaml:"significant_digits"`
	TableDecimals     int `yaml:"table_decimals"`
}

// Config is the full ambient configuration for one run.
type Config struct {
	Solver   SolverSettings   `yaml:"solver"`
	AutoStep AutoStepSettings `yaml:"auto_step"`
	Report   ReportSettings   `yaml:"report"`
}

// Default returns the spec-mandated defaults, used when no
// configuration file is supplied.
func Default() Config {
	return Config{
		Solver: SolverSettings{
			Algorithm:     "NelderMead",
			MaxIterations: 1000,
			Tolerance:     1e-6,
		},
		AutoStep: AutoStepSettings{
			Vary: false, MinSteps: 5, MaxSteps: 2000, Reduce: 1e-1, Increase: 1e-3,
		},
		Report: ReportSettings{
			SignificantDigits: 6,
			TableDecimals:     6,
		},
	}
}

// Load reads a YAML configuration file at path, starting from Default
// and overlaying whatever the file specifies.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrapf(err, "reading config file %s", path)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parsing config file %s", path)
	}
	return cfg, nil
}

// ToSolverSettings translates SolverSettings to solver.Settings.
func (s SolverSettings) ToSolverSettings() solver.Settings {
	out := solver.DefaultSettings()
	if s.Algorithm == "LevenbergMarquardt" {
		out.Algorithm = solver.LevenbergMarquardt
	}
	if s.MaxIterations > 0 {
		out.MaxIterations = s.MaxIterations
	}
	if s.Tolerance > 0 {
		out.Tolerance = s.Tolerance
	}
	if s.ReportingTolerance > 0 {
		out.ReportingTolerance = s.ReportingTolerance
	}
	return out
}

// ToAdaptiveControls translates AutoStepSettings to ode.AdaptiveControls.
func (a AutoStepSettings) ToAdaptiveControls() ode.AdaptiveControls {
	return ode.AdaptiveControls{
		Vary:     a.Vary,
		MinSteps: a.MinSteps,
		MaxSteps: a.MaxSteps,
		Reduce:   a.Reduce,
		Increase: a.Increase,
	}
}
