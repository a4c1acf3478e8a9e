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
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/libresolve/libresolve/logging"
)

// Nelder-Mead standard coefficients, per spec.md §4.4.
const (
	nmAlpha = 1.0 // reflection
	nmGamma = 2.0 // expansion
	nmRho   = 0.5 // contraction
	nmSigma = 0.5 // shrink
)

// nelderMead runs the classical simplex minimization of obj starting
// from x0. It returns the best point found and the iteration count.
func nelderMead(obj func([]float64) float64, x0 []float64, settings Settings, log logging.Logger) ([]float64, int) {
	n := len(x0)
	if n == 0 {
		return x0, 0
	}

	maxIter := settings.MaxIterations
	if maxIter <= 0 {
		maxIter = 1000
	}
	tol := settings.Tolerance
	if tol <= 0 {
		tol = 1e-6
	}

	simplex := initialSimplex(x0)
	values := make([]float64, n+1)
	for i, v := range simplex {
		values[i] = obj(v)
	}

	iter := 0
	for ; iter < maxIter; iter++ {
		order := argsortAsc(values)
		simplex = reorder(simplex, order)
		values = reorderF(values, order)

		if maxPairwiseDistance(simplex) < tol || values[0] < tol {
			break
		}

		if iter%10 == 0 {
			log.Logf(logging.LevelDebug, "nelder-mead iteration %d: best=%g", iter, values[0])
		}

		best, worst, secondWorst := 0, n, n-1
		centroid := centroidExcluding(simplex, worst)

		reflected := axpy(centroid, nmAlpha, diff(centroid, simplex[worst]))
		fReflected := obj(reflected)

		switch {
		case fReflected < values[best]:
			// Expansion.
			expanded := axpy(centroid, nmGamma, diff(reflected, centroid))
			fExpanded := obj(expanded)
			if fExpanded < fReflected {
				simplex[worst], values[worst] = expanded, fExpanded
			} else {
				simplex[worst], values[worst] = reflected, fReflected
			}

		case fReflected < values[secondWorst]:
			// Reflection accepted outright. Tie-break: prefer
			// reflection over keeping the worst point (spec.md §4.4).
			simplex[worst], values[worst] = reflected, fReflected

		case fReflected < values[worst]:
			// Outside contraction.
			contracted := axpy(centroid, nmRho, diff(reflected, centroid))
			fContracted := obj(contracted)
			if fContracted <= fReflected {
				simplex[worst], values[worst] = contracted, fContracted
			} else {
				shrinkSimplex(simplex, values, obj, best)
			}

		default:
			// Inside contraction.
			contracted := axpy(centroid, nmRho, diff(simplex[worst], centroid))
			fContracted := obj(contracted)
			if fContracted < values[worst] {
				simplex[worst], values[worst] = contracted, fContracted
			} else {
				shrinkSimplex(simplex, values, obj, best)
			}
		}
	}

	order := argsortAsc(values)
	return simplex[order[0]], iter
}

// initialSimplex seeds n+1 vertices by perturbing each coordinate of
// x0 by 10%, with a floor of 0.1 absolute when the coordinate is zero.
func initialSimplex(x0 []float64) [][]float64 {
	n := len(x0)
	simplex := make([][]float64, n+1)
	simplex[0] = append([]float64(nil), x0...)
	for i := 0; i < n; i++ {
		v := append([]float64(nil), x0...)
		delta := v[i] * 0.1
		if delta == 0 {
			delta = 0.1
		}
		v[i] += delta
		simplex[i+1] = v
	}
	return simplex
}

func centroidExcluding(simplex [][]float64, excluded int) []float64 {
	n := len(simplex[0])
	c := make([]float64, n)
	count := 0
	for i, v := range simplex {
		if i == excluded {
			continue
		}
		floats.Add(c, v)
		count++
	}
	floats.Scale(1.0/float64(count), c)
	return c
}

func diff(a, b []float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = a[i] - b[i]
	}
	return out
}

// axpy returns base + scale*delta.
func axpy(base []float64, scale float64, delta []float64) []float64 {
	out := make([]float64, len(base))
	for i := range base {
		out[i] = base[i] + scale*delta[i]
	}
	return out
}

func shrinkSimplex(simplex [][]float64, values []float64, obj func([]float64) float64, best int) {
	bestPoint := simplex[best]
	for i := range simplex {
		if i == best {
			continue
		}
		simplex[i] = axpy(bestPoint, nmSigma, diff(simplex[i], bestPoint))
		values[i] = obj(simplex[i])
	}
}

func maxPairwiseDistance(simplex [][]float64) float64 {
	max := 0.0
	for i := range simplex {
		for j := i + 1; j < len(simplex); j++ {
			d := floats.Distance(simplex[i], simplex[j], 2)
			if d > max {
				max = d
			}
		}
	}
	return max
}

func argsortAsc(values []float64) []int {
	idx := make([]int, len(values))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool { return values[idx[i]] < values[idx[j]] })
	return idx
}

func reorder(simplex [][]float64, order []int) [][]float64 {
	out := make([][]float64, len(simplex))
	for i, o := range order {
		out[i] = simplex[o]
	}
	return out
}

func reorderF(values []float64, order []int) []float64 {
	out := make([]float64, len(values))
	for i, o := range order {
		out[i] = values[o]
	}
	return out
}
