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

	"gonum.org/v1/gonum/mat"
)

// lmMaxIterations bounds a single Levenberg-Marquardt attempt
// independent of the caller's overall iteration budget, since each LM
// iteration performs its own finite-difference Jacobian evaluation.
const lmMaxIterations = 200

// levenbergMarquardt runs a finite-difference-Jacobian LM solve.
// Returns ok=false when, in some iteration, none of the damping levels
// tried lowers the cost (the damped system cannot be solved, or its
// step is no improvement), signalling the caller to fall back to
// Nelder-Mead per spec.md §4.4.
func levenbergMarquardt(obj func([]float64) float64, residuals func([]float64) []float64, x0 []float64, settings Settings) ([]float64, int, bool) {
	n := len(x0)
	if n == 0 {
		return x0, 0, true
	}

	maxIter := settings.MaxIterations
	if maxIter <= 0 || maxIter > lmMaxIterations {
		maxIter = lmMaxIterations
	}
	tol := settings.Tolerance
	if tol <= 0 {
		tol = 1e-6
	}

	x := append([]float64(nil), x0...)
	lambda := 1e-3
	r := residuals(x)
	m := len(r)
	if m == 0 {
		return x, 0, true
	}
	cost := sumSquares(r)

	for iter := 0; iter < maxIter; iter++ {
		J := jacobian(residuals, x, r)

		Jt := mat.NewDense(n, m, nil)
		Jt.CloneFrom(J.T())

		JtJ := mat.NewDense(n, n, nil)
		JtJ.Mul(Jt, J)

		JtR := mat.NewVecDense(n, nil)
		rv := mat.NewVecDense(m, r)
		JtR.MulVec(Jt, rv)

		for damping := 0; damping < 12; damping++ {
			A := mat.NewDense(n, n, nil)
			A.Copy(JtJ)
			for i := 0; i < n; i++ {
				A.Set(i, i, A.At(i, i)*(1+lambda))
			}

			var delta mat.VecDense
			if err := delta.SolveVec(A, JtR); err != nil {
				lambda *= 10
				continue
			}

			candidate := make([]float64, n)
			for i := range x {
				candidate[i] = x[i] - delta.AtVec(i)
			}
			candR := residuals(candidate)
			candCost := sumSquares(candR)

			if math.IsNaN(candCost) || candCost >= cost {
				lambda *= 10
				continue
			}

			improved := cost - candCost
			x = candidate
			r = candR
			cost = candCost
			lambda /= 10
			if improved < tol {
				return x, iter + 1, true
			}
			goto nextIteration
		}
		// No damping level improved the point. Report failure so the
		// caller falls back to Nelder-Mead.
		return x, iter, false

	nextIteration:
	}

	return x, maxIter, true
}

func jacobian(residuals func([]float64) []float64, x []float64, r0 []float64) *mat.Dense {
	n := len(x)
	m := len(r0)
	J := mat.NewDense(m, n, nil)
	for j := 0; j < n; j++ {
		h := 1e-6 * (1 + math.Abs(x[j]))
		xh := append([]float64(nil), x...)
		xh[j] += h
		rh := residuals(xh)
		for i := 0; i < m; i++ {
			J.Set(i, j, (rh[i]-r0[i])/h)
		}
	}
	return J
}

func sumSquares(r []float64) float64 {
	sum := 0.0
	for _, v := range r {
		if math.IsNaN(v) {
			return math.NaN()
		}
		sum += v * v
	}
	return sum
}
