package lseparse

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

	"github.com/pkg/errors"
)

// lexer tokenizes one statement's code (already stripped of comments
// and unit annotations by stripAnnotations). Unlike the teacher's
// line-based Parse, which only ever splits a line on its first space
// into {mode, rest}, this walks the line rune by rune: LibreSolvE
// statements are free-form arithmetic, not fixed two-letter DYNAMO
// mode prefixes.
type lexer struct {
	src  []rune
	pos  int
	toks []token
}

func newLexer(src string) *lexer {
	return &lexer{src: []rune(src)}
}

// tokenize consumes the entire line and returns its token stream. The
// stream carries no trailing EOF sentinel; callers that need one (the
// expression parser) append it themselves via withEOF.
func (l *lexer) tokenize() ([]token, error) {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c == ' ' || c == '\t':
			l.pos++

		case c == ':':
			if l.pos+1 < len(l.src) && l.src[l.pos+1] == '=' {
				l.emit(tokAssign, ":=")
				l.pos += 2
				continue
			}
			return nil, l.errAt("unexpected ':'")

		case c == '=':
			l.emit(tokEq, "=")
			l.pos++
		case c == '+':
			l.emit(tokPlus, "+")
			l.pos++
		case c == '-':
			l.emit(tokMinus, "-")
			l.pos++
		case c == '*':
			l.emit(tokStar, "*")
			l.pos++
		case c == '/':
			l.emit(tokSlash, "/")
			l.pos++
		case c == '^':
			l.emit(tokCaret, "^")
			l.pos++
		case c == '(':
			l.emit(tokLParen, "(")
			l.pos++
		case c == ')':
			l.emit(tokRParen, ")")
			l.pos++
		case c == ',':
			l.emit(tokComma, ",")
			l.pos++

		case c == '\'':
			if err := l.lexString(); err != nil {
				return nil, err
			}

		case isDigit(c):
			if err := l.lexNumber(); err != nil {
				return nil, err
			}

		case isIdentStart(c):
			l.lexIdent()

		default:
			return nil, l.errAt("unexpected character %q", c)
		}
	}
	return l.toks, nil
}

func (l *lexer) emit(kind tokenKind, text string) {
	l.toks = append(l.toks, token{kind: kind, text: text, col: l.pos + 1})
}

// lexString consumes a single-quoted string literal, with '' as an
// embedded quote (spec.md §6).
func (l *lexer) lexString() error {
	startCol := l.pos + 1
	l.pos++ // opening quote
	var sb strings.Builder
	for {
		if l.pos >= len(l.src) {
			return errors.Errorf("column %d: unterminated string literal", startCol)
		}
		if l.src[l.pos] == '\'' {
			if l.pos+1 < len(l.src) && l.src[l.pos+1] == '\'' {
				sb.WriteRune('\'')
				l.pos += 2
				continue
			}
			l.pos++
			break
		}
		sb.WriteRune(l.src[l.pos])
		l.pos++
	}
	l.toks = append(l.toks, token{kind: tokString, text: sb.String(), col: startCol})
	return nil
}

// lexNumber consumes an integer, decimal, or exponent-form real
// literal (e.g. 1, 3.14, 6.02e23, 1.5E-3).
func (l *lexer) lexNumber() error {
	startCol := l.pos + 1
	start := l.pos
	for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
		l.pos++
	}
	if l.pos < len(l.src) && l.src[l.pos] == '.' {
		l.pos++
		for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
			l.pos++
		}
	}
	if l.pos < len(l.src) && (l.src[l.pos] == 'e' || l.src[l.pos] == 'E') {
		save := l.pos
		l.pos++
		if l.pos < len(l.src) && (l.src[l.pos] == '+' || l.src[l.pos] == '-') {
			l.pos++
		}
		if l.pos < len(l.src) && isDigit(l.src[l.pos]) {
			for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
				l.pos++
			}
		} else {
			l.pos = save // not actually an exponent; back off
		}
	}
	text := string(l.src[start:l.pos])
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return errors.Wrapf(err, "column %d: invalid number %q", startCol, text)
	}
	l.toks = append(l.toks, token{kind: tokNumber, num: v, text: text, col: startCol})
	return nil
}

// lexIdent consumes an identifier: a variable name or function/keyword
// name. Case is preserved; the core folds case itself (spec.md I1).
func (l *lexer) lexIdent() {
	startCol := l.pos + 1
	start := l.pos
	for l.pos < len(l.src) && isIdentPart(l.src[l.pos]) {
		l.pos++
	}
	l.toks = append(l.toks, token{kind: tokIdent, text: string(l.src[start:l.pos]), col: startCol})
}

func (l *lexer) errAt(format string, args ...interface{}) error {
	return errors.Errorf("column %d: "+format, append([]interface{}{l.pos + 1}, args...)...)
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

func isIdentStart(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || isDigit(r)
}
