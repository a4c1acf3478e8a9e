package ast

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

// Stmt is the marker interface implemented by every statement node.
// The set is closed: Assignment, Equation, Directive, and PlotCommand.
type Stmt interface {
	stmtNode()
}

// Assignment is an explicit `name := expr` statement.
type Assignment struct {
	Name string
	Expr Expr
	// Unit is the opaque unit string from a trailing `"[...]"`
	// annotation (spec.md §6), or nil if the statement carried none.
	Unit *string
	// Line is the 1-based source line, kept only for diagnostics and
	// for the textual-order tiebreak spec.md §3 requires between
	// statements carrying no other semantic order.
	Line int
}

func (Assignment) stmtNode() {}

// Equation is a `lhs = rhs` statement. It may turn out, after
// categorization, to be an explicit assignment in disguise (lhs is a
// bare Variable), an ODE definition (either side is an INTEGRAL call),
// or a genuine member of the simultaneous algebraic system.
type Equation struct {
	Lhs, Rhs Expr
	// Unit is the opaque unit string from a trailing `"[...]"`
	// annotation (spec.md §6), attached to Lhs when it is a bare
	// Variable; nil if the statement carried none.
	Unit *string
	Line int
}

func (Equation) stmtNode() {}

// Directive is a `$Name ...` configuration line. Text is the payload
// following the `$`, unparsed; the Orchestrator's directive phase is
// responsible for interpreting the recognized directive names.
type Directive struct {
	Text string
	Line int
}

func (Directive) stmtNode() {}

// PlotCommand is a `PLOT ...` statement. Text is the payload following
// the `PLOT` keyword, passed through verbatim to plot-series parsing.
type PlotCommand struct {
	Text string
	Line int
}

func (PlotCommand) stmtNode() {}

// Program is an ordered sequence of statements. Order carries no
// semantic meaning between equations (they form a simultaneous
// system) but is the tiebreaker for diagnostics and stable output.
type Program struct {
	Statements []Stmt
}
