package eval

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

	"github.com/pkg/errors"

	"github.com/libresolve/libresolve/errs"
)

// UnitConverter is the minimal contract the core needs from the
// (out-of-scope, per spec.md §1) unit subsystem: a multiplicative
// factor between two same-kind units, and a full from/to/value
// temperature conversion (additive + multiplicative).
type UnitConverter interface {
	Convert(from, to string) (factor float64, err error)
	ConvertTemp(from, to string, value float64) (converted float64, err error)
}

// builtin is one entry in the function registry: an arity range and
// an implementation over already-evaluated float64 arguments.
// spec.md §9 calls this "a small fixed dispatch table for built-ins".
type builtin struct {
	minArgs, maxArgs int // maxArgs == -1 means unbounded
	call             func(args []float64) (float64, error)
}

func (b *builtin) arityOK(n int) bool {
	if n < b.minArgs {
		return false
	}
	if b.maxArgs >= 0 && n > b.maxArgs {
		return false
	}
	return true
}

// registry is the case-insensitive name -> builtin table. Keys are
// upper-cased at registration and lookup time.
var registry = map[string]*builtin{
	"SIN":   unary(math.Sin),
	"COS":   unary(math.Cos),
	"TAN":   unary(math.Tan),
	"ASIN":  unary(math.Asin),
	"ACOS":  unary(math.Acos),
	"ATAN":  unary(math.Atan),
	"SINH":  unary(math.Sinh),
	"COSH":  unary(math.Cosh),
	"TANH":  unary(math.Tanh),
	"EXP":   unary(math.Exp),
	"LOG":   unary(math.Log10), // LOG is the common-logarithm in the source system's notation
	"LN":    unary(math.Log),
	"LOG10": unary(math.Log10),
	"SQRT":  unary(math.Sqrt),
	"ABS":   unary(math.Abs),
	"CEIL":  unary(math.Ceil),
	"FLOOR": unary(math.Floor),

	"ATAN2": {
		minArgs: 2, maxArgs: 2,
		call: func(a []float64) (float64, error) { return math.Atan2(a[0], a[1]), nil },
	},
	"POW": {
		minArgs: 2, maxArgs: 2,
		call: func(a []float64) (float64, error) { return math.Pow(a[0], a[1]), nil },
	},
	"ROUND": {
		minArgs: 1, maxArgs: 2,
		call: func(a []float64) (float64, error) {
			if len(a) == 1 {
				return math.Round(a[0]), nil
			}
			factor := math.Pow(10, a[1])
			return math.Round(a[0]*factor) / factor, nil
		},
	},
	"MIN": {
		minArgs: 2, maxArgs: -1,
		call: func(a []float64) (float64, error) {
			m := a[0]
			for _, v := range a[1:] {
				if v < m {
					m = v
				}
			}
			return m, nil
		},
	},
	"MAX": {
		minArgs: 2, maxArgs: -1,
		call: func(a []float64) (float64, error) {
			m := a[0]
			for _, v := range a[1:] {
				if v > m {
					m = v
				}
			}
			return m, nil
		},
	},
	"IF": {
		minArgs: 3, maxArgs: 3,
		call: func(a []float64) (float64, error) {
			if a[0] != 0 {
				return a[1], nil
			}
			return a[2], nil
		},
	},
}

func unary(f func(float64) float64) *builtin {
	return &builtin{
		minArgs: 1, maxArgs: 1,
		call: func(a []float64) (float64, error) { return f(a[0]), nil },
	}
}

// lookupBuiltin returns the registered builtin for name (case
// insensitive), or nil if none is registered.
func lookupBuiltin(name string) *builtin {
	return registry[upper(name)]
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

// errArity builds the ArityMismatch error for a named call.
func errArity(name string, got int) error {
	return errors.Wrapf(errs.ErrArityMismatch, "%s called with %d argument(s)", name, got)
}
