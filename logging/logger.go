// Package logging defines the injected structured-log sink the core
// emits to, per spec.md §9's design note: the source redirects
// process-wide stdout to capture solver log text, and the redesigned
// core instead emits structured log events to an interface with a
// single logging method, never touching global I/O.
package logging

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

import "github.com/sirupsen/logrus"

// Level mirrors the handful of severities the core ever logs at.
type Level int

// Recognized levels, ordered least to most severe.
const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// Logger is the single-method sink every core component accepts.
// Components never touch os.Stdout or the log package directly.
type Logger interface {
	Logf(level Level, format string, args ...interface{})
}

// Field is a structured key/value pair attached to a log line.
type Field struct {
	Key   string
	Value interface{}
}

// F builds a Field inline: logging.F("phase", "sort").
func F(key string, value interface{}) Field { return Field{Key: key, Value: value} }

// Nop discards every message. It is the default Logger so that
// library callers who never configure logging pay nothing for it,
// matching the teacher's optional *Debugger that no-ops when unset.
type Nop struct{}

// Logf implements Logger by doing nothing.
func (Nop) Logf(Level, string, ...interface{}) {}

// Logrus adapts a *logrus.Logger to the Logger interface.
type Logrus struct {
	L *logrus.Logger
}

// NewLogrus builds a Logrus sink around a fresh logrus.Logger with
// sane defaults (text formatter, Info threshold).
func NewLogrus() *Logrus {
	l := logrus.New()
	l.SetLevel(logrus.InfoLevel)
	return &Logrus{L: l}
}

// Logf implements Logger, translating Level to the matching logrus
// entry method.
func (lg *Logrus) Logf(level Level, format string, args ...interface{}) {
	if lg == nil || lg.L == nil {
		return
	}
	switch level {
	case LevelDebug:
		lg.L.Debugf(format, args...)
	case LevelWarn:
		lg.L.Warnf(format, args...)
	case LevelError:
		lg.L.Errorf(format, args...)
	default:
		lg.L.Infof(format, args...)
	}
}

// WithFields returns an entry-scoped logger carrying the given
// structured fields on every subsequent call, used by components that
// want to tag every line of a phase (e.g. phase="sort").
func (lg *Logrus) WithFields(fields ...Field) Logger {
	if lg == nil || lg.L == nil {
		return Nop{}
	}
	fs := make(logrus.Fields, len(fields))
	for _, f := range fields {
		fs[f.Key] = f.Value
	}
	return &entryLogger{entry: lg.L.WithFields(fs)}
}

type entryLogger struct {
	entry *logrus.Entry
}

func (e *entryLogger) Logf(level Level, format string, args ...interface{}) {
	if e == nil || e.entry == nil {
		return
	}
	switch level {
	case LevelDebug:
		e.entry.Debugf(format, args...)
	case LevelWarn:
		e.entry.Warnf(format, args...)
	case LevelError:
		e.entry.Errorf(format, args...)
	default:
		e.entry.Infof(format, args...)
	}
}
