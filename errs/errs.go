// Package errs collects the sentinel errors of the error taxonomy in
// spec.md §7. Call sites wrap these with github.com/pkg/errors so that
// errors.Is/errors.Cause still recovers the sentinel while the wrapped
// message carries statement- or variable-specific context.
package errs

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

import "errors"

// Sentinel errors, one per spec.md §7 taxonomy entry that originates
// inside the core (ParseError and IoError are propagated from external
// collaborators and are not redefined here).
var (
	ErrUnknownIdentifier = errors.New("unknown identifier")
	ErrDivisionByZero    = errors.New("division by zero")
	ErrDomainError       = errors.New("domain error")
	ErrArityMismatch     = errors.New("arity mismatch")
	ErrTypeMismatch      = errors.New("type mismatch")
	ErrUnitError         = errors.New("unit error")
	ErrUnderspecified    = errors.New("underspecified system")
	ErrRedefinition      = errors.New("redefinition conflict")
	ErrInvalidUse        = errors.New("invalid use")
	ErrNotConverged      = errors.New("not converged")
	ErrStepLimitExceeded = errors.New("step limit exceeded")
)

// Status is the single structured outcome spec.md §6 requires to be
// returned per run.
type Status string

// Recognized status values.
const (
	StatusConverged      Status = "Converged"
	StatusConsistent     Status = "Consistent"
	StatusNotConverged   Status = "NotConverged"
	StatusInconsistent   Status = "Inconsistent"
	StatusUnderspecified Status = "Underspecified"
	StatusRedefinition   Status = "RedefinitionConflict"
	StatusParseError     Status = "ParseError"
	StatusEvaluationErr  Status = "EvaluationError"
)
