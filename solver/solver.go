// Package solver implements the AlgebraicSolver: a derivative-free
// least-squares minimizer over the residual vector of a set of
// equations, with store backup/restore discipline around every trial
// (spec.md §4.4).
package solver

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
	"math"
	"sort"
	"strings"

	"github.com/libresolve/libresolve/ast"
	"github.com/libresolve/libresolve/errs"
	"github.com/libresolve/libresolve/eval"
	"github.com/libresolve/libresolve/logging"
	"github.com/libresolve/libresolve/store"
)

// Algorithm selects the numerical method the Solver uses.
type Algorithm int

// Recognized algorithms.
const (
	NelderMead Algorithm = iota
	LevenbergMarquardt
)

// Settings configures one Solve call.
type Settings struct {
	Algorithm     Algorithm
	MaxIterations int
	// Tolerance is the NM/LM termination threshold (spec.md §4.4:
	// vertex-distance/best-value criterion for Nelder-Mead, minimum
	// per-iteration decrease of the squared-residual sum for
	// Levenberg-Marquardt). It does not by itself affect
	// whether a solve is reported as Converged; see ReportingTolerance.
	Tolerance float64
	// ReportingTolerance, when positive, overrides reportingTolerance
	// as the threshold the final residual L2 norm is compared against
	// to decide Converged vs. NotConverged (spec.md §4.4: "use 1e-2
	// when the equations were scaled arbitrarily, and tolerance when
	// the caller insists"). Zero means no override: reportingTolerance
	// applies, independent of whatever Tolerance the optimizer itself
	// terminated on.
	ReportingTolerance float64
	// Guesses overrides the store's guess/value for named unknowns,
	// consulted before falling back to the store (spec.md §4.4
	// "Initial vector").
	Guesses map[string]float64
}

// DefaultSettings mirrors spec.md §4.4's stated defaults.
func DefaultSettings() Settings {
	return Settings{
		Algorithm:     NelderMead,
		MaxIterations: 1000,
		Tolerance:     1e-6,
	}
}

// reportingTolerance is the convergence threshold applied to the final
// residual L2 norm (spec.md §4.4's "use 1e-2 when the equations were
// scaled arbitrarily").
const reportingTolerance = 1e-2

// Equation is one residual-contributing equation L = R.
type Equation struct {
	Lhs, Rhs ast.Expr
}

// Result reports the outcome of a Solve call.
type Result struct {
	Status    errs.Status
	Solution  map[string]float64 // unknown name -> solved value (best-effort on failure)
	Residual  float64            // final L2 norm of the residual vector
	Iterations int
	Warning   string
}

// Solver is the AlgebraicSolver.
type Solver struct {
	Store  *store.Store
	Log    logging.Logger
}

// New returns a Solver over store s. A nil logger is treated as a no-op sink.
func New(s *store.Store, log logging.Logger) *Solver {
	if log == nil {
		log = logging.Nop{}
	}
	return &Solver{Store: s, Log: log}
}

// Solve finds an assignment of unknowns minimizing the sum of squared
// residuals of equations, per spec.md §4.4.
func (sv *Solver) Solve(equations []Equation, unknowns []string, settings Settings) Result {
	names := sortedUnique(unknowns)
	x0 := sv.initialVector(names, settings)

	obj := sv.objective(equations, names)

	var best []float64
	var iterations int
	var warning string

	switch settings.Algorithm {
	case LevenbergMarquardt:
		var ok bool
		best, iterations, ok = levenbergMarquardt(obj, residualsOf(sv, equations, names), x0, settings)
		if !ok {
			warning = "LevenbergMarquardt unavailable for this system; falling back to NelderMead"
			sv.Log.Logf(logging.LevelWarn, "%s", warning)
			best, iterations = nelderMead(obj, x0, settings, sv.Log)
		}
	default:
		best, iterations = nelderMead(obj, x0, settings, sv.Log)
	}

	norm := residualNorm(sv, equations, names, best)

	result := Result{
		Solution:   vectorToMap(names, best),
		Residual:   norm,
		Iterations: iterations,
		Warning:    warning,
	}

	threshold := reportingTolerance
	if settings.ReportingTolerance > 0 {
		threshold = settings.ReportingTolerance
	}

	if norm <= threshold {
		snap := sv.Store.Begin()
		for i, name := range names {
			sv.Store.SetSolved(name, best[i])
		}
		sv.Store.Commit(snap)
		result.Status = errs.StatusConverged
		return result
	}

	result.Status = errs.StatusNotConverged
	return result
}

// initialVector resolves each unknown's starting coordinate: the
// settings guess, else the store guess, else the current stored value,
// else 1.0 (spec.md §4.4).
func (sv *Solver) initialVector(names []string, settings Settings) []float64 {
	x0 := make([]float64, len(names))
	for i, name := range names {
		if settings.Guesses != nil {
			if g, ok := lookupCaseInsensitive(settings.Guesses, name); ok {
				x0[i] = g
				continue
			}
		}
		if sv.Store.HasGuess(name) {
			x0[i] = sv.Store.GetGuess(name, 1.0)
			continue
		}
		if sv.Store.Has(name) {
			v, _ := sv.Store.Get(name)
			x0[i] = v
			continue
		}
		x0[i] = 1.0
	}
	return x0
}

func lookupCaseInsensitive(m map[string]float64, name string) (float64, bool) {
	for k, v := range m {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return 0, false
}

// residualsOf returns a function that evaluates r_i(param) = evaluate(L_i) - evaluate(R_i) with
// param written into the store under snapshot discipline, always
// restoring before returning.
func residualsOf(sv *Solver, equations []Equation, names []string) func(param []float64) []float64 {
	return func(param []float64) []float64 {
		snap := sv.Store.Begin()
		for i, name := range names {
			sv.Store.SetExplicit(name, param[i])
		}

		out := make([]float64, len(equations))
		ev := eval.New(sv.Store, true, nil)
		failed := false
		for i, eq := range equations {
			l, errL := ev.Evaluate(eq.Lhs)
			r, errR := ev.Evaluate(eq.Rhs)
			if errL != nil || errR != nil {
				failed = true
				break
			}
			out[i] = l - r
		}
		sv.Store.Restore(snap)

		if failed {
			for i := range out {
				out[i] = math.NaN()
			}
		}
		return out
	}
}

// objective builds f(param) = sum(r_i^2), substituting a large
// sentinel for NaN residuals so the optimizer can reject the point
// instead of propagating NaN (spec.md §4.4).
func (sv *Solver) objective(equations []Equation, names []string) func(param []float64) float64 {
	residuals := residualsOf(sv, equations, names)
	return func(param []float64) float64 {
		r := residuals(param)
		sum := 0.0
		for _, v := range r {
			if math.IsNaN(v) {
				return math.MaxFloat64
			}
			sum += v * v
		}
		return sum
	}
}

func residualNorm(sv *Solver, equations []Equation, names []string, point []float64) float64 {
	r := residualsOf(sv, equations, names)(point)
	sum := 0.0
	for _, v := range r {
		if math.IsNaN(v) {
			return math.MaxFloat64
		}
		sum += v * v
	}
	return math.Sqrt(sum)
}

func vectorToMap(names []string, v []float64) map[string]float64 {
	out := make(map[string]float64, len(names))
	for i, name := range names {
		out[name] = v[i]
	}
	return out
}

// sortedUnique returns names sorted lexicographically case-insensitive,
// per spec.md §4.4's determinism requirement.
func sortedUnique(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		key := strings.ToUpper(n)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToUpper(out[i]) < strings.ToUpper(out[j])
	})
	return out
}
