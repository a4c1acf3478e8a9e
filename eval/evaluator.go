// Package eval implements the ExpressionEvaluator: a pure function
// from (AST expression, store) to a real number, per spec.md §4.2. It
// records whether any looked-up name fell back to guess/default, and
// ships the built-in function registry spec.md requires.
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

	"github.com/libresolve/libresolve/ast"
	"github.com/libresolve/libresolve/errs"
	"github.com/libresolve/libresolve/store"
)

// Evaluator evaluates expressions against a VariableStore. It is pure
// with respect to the store except for the auto-vivification described
// in spec.md I3 (a non-strict lookup of an unknown name writes a
// default/guess value into the store).
type Evaluator struct {
	Store    *store.Store
	Strict   bool // UnknownIdentifier on fallback instead of returning a default
	Units    UnitConverter

	// FellBack and FallbackCount are the ancillary signals spec.md
	// §4.2 requires be observable after a call. Callers reset them
	// (via Reset) before each evaluation of interest.
	FellBack      bool
	FallbackCount int
}

// New returns an Evaluator over store s. units may be nil; CONVERT and
// CONVERTTEMP then fail with ErrUnitError instead of converting.
func New(s *store.Store, strict bool, units UnitConverter) *Evaluator {
	return &Evaluator{Store: s, Strict: strict, Units: units}
}

// Reset clears the fallback signals before a new evaluation of
// interest. The Evaluator itself never resets these between nested
// recursive calls within a single Evaluate invocation.
func (e *Evaluator) Reset() {
	e.FellBack = false
	e.FallbackCount = 0
}

// Evaluate computes the real value of expr.
func (e *Evaluator) Evaluate(expr ast.Expr) (float64, error) {
	switch x := expr.(type) {
	case ast.Number:
		return float64(x), nil

	case ast.StringLiteral:
		return 0, errors.Wrapf(errs.ErrTypeMismatch, "string literal %q used in numeric context", x.Value)

	case ast.Variable:
		return e.evalVariable(x)

	case ast.BinaryExpr:
		return e.evalBinary(x)

	case ast.Call:
		return e.evalCall(x)

	default:
		return 0, errors.Errorf("unrecognized expression node %T", expr)
	}
}

func (e *Evaluator) evalVariable(v ast.Variable) (float64, error) {
	value, fellBack := e.Store.Get(v.Name)
	if fellBack {
		e.FellBack = true
		e.FallbackCount++
		if e.Strict {
			return 0, errors.Wrapf(errs.ErrUnknownIdentifier, "%s", v.Name)
		}
	}
	return value, nil
}

func (e *Evaluator) evalBinary(b ast.BinaryExpr) (float64, error) {
	left, err := e.Evaluate(b.Left)
	if err != nil {
		return 0, err
	}
	right, err := e.Evaluate(b.Right)
	if err != nil {
		return 0, err
	}
	switch b.Op {
	case ast.OpAdd:
		return left + right, nil
	case ast.OpSub:
		return left - right, nil
	case ast.OpMul:
		return left * right, nil
	case ast.OpDiv:
		if right == 0 {
			return 0, errors.Wrapf(errs.ErrDivisionByZero, "%s / %s", b.Left, b.Right)
		}
		return left / right, nil
	case ast.OpPow:
		// A NaN result (e.g. a negative base with a fractional
		// exponent) is returned as-is, not raised as an error here,
		// per spec.md §4.2.
		return math.Pow(left, right), nil
	default:
		return 0, errors.Errorf("unrecognized operator %v", b.Op)
	}
}

func (e *Evaluator) evalCall(c ast.Call) (float64, error) {
	name := upper(c.Name)

	if name == "INTEGRAL" {
		// INTEGRAL is recognized and diverted by the Orchestrator
		// before an Assignment's RHS ever reaches the Evaluator.
		// Encountering it here means plain expression evaluation
		// tripped over it directly, which is always an error.
		return 0, errors.Wrapf(errs.ErrInvalidUse, "INTEGRAL may only appear as the right-hand side of an assignment")
	}

	if name == "CONVERT" {
		return e.evalConvert(c.Args)
	}
	if name == "CONVERTTEMP" {
		return e.evalConvertTemp(c.Args)
	}

	b := lookupBuiltin(name)
	if b == nil {
		return 0, errors.Wrapf(errs.ErrDomainError, "unknown function %s", c.Name)
	}
	if !b.arityOK(len(c.Args)) {
		return 0, errArity(c.Name, len(c.Args))
	}
	args := make([]float64, len(c.Args))
	for i, a := range c.Args {
		v, err := e.Evaluate(a)
		if err != nil {
			return 0, err
		}
		args[i] = v
	}
	return b.call(args)
}

func (e *Evaluator) evalConvert(args []ast.Expr) (float64, error) {
	if len(args) != 2 {
		return 0, errArity("CONVERT", len(args))
	}
	from, ok1 := args[0].(ast.StringLiteral)
	to, ok2 := args[1].(ast.StringLiteral)
	if !ok1 || !ok2 {
		return 0, errors.Wrapf(errs.ErrTypeMismatch, "CONVERT requires string literal arguments")
	}
	if e.Units == nil {
		return 0, errors.Wrapf(errs.ErrUnitError, "no unit converter configured")
	}
	factor, err := e.Units.Convert(from.Value, to.Value)
	if err != nil {
		return 0, errors.Wrapf(errs.ErrUnitError, "%v", err)
	}
	return factor, nil
}

func (e *Evaluator) evalConvertTemp(args []ast.Expr) (float64, error) {
	if len(args) != 3 {
		return 0, errArity("CONVERTTEMP", len(args))
	}
	from, ok1 := args[0].(ast.StringLiteral)
	to, ok2 := args[1].(ast.StringLiteral)
	if !ok1 || !ok2 {
		return 0, errors.Wrapf(errs.ErrTypeMismatch, "CONVERTTEMP requires string literal unit arguments")
	}
	value, err := e.Evaluate(args[2])
	if err != nil {
		return 0, err
	}
	if e.Units == nil {
		return 0, errors.Wrapf(errs.ErrUnitError, "no unit converter configured")
	}
	converted, err := e.Units.ConvertTemp(from.Value, to.Value, value)
	if err != nil {
		return 0, errors.Wrapf(errs.ErrUnitError, "%v", err)
	}
	return converted, nil
}
