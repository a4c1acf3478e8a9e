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

import "strings"

// stripAnnotations removes comments (`{...}`, `//...`, and `"..."`)
// from a source line and separately returns a unit string if one of
// the `"..."` spans is a bracketed unit annotation (spec.md §6, e.g.
// `9.81 "[m/s^2]"`). Single-quoted string literals are left untouched
// in the returned code, since those are real expression tokens, not
// comments.
func stripAnnotations(line string) (code string, unit *string) {
	runes := []rune(line)
	var out []rune
	i := 0
	for i < len(runes) {
		c := runes[i]
		switch {
		case c == '\'':
			out = append(out, c)
			i++
			for i < len(runes) {
				if runes[i] == '\'' {
					out = append(out, '\'')
					if i+1 < len(runes) && runes[i+1] == '\'' {
						out = append(out, '\'')
						i += 2
						continue
					}
					i++
					break
				}
				out = append(out, runes[i])
				i++
			}

		case c == '{':
			j := i + 1
			for j < len(runes) && runes[j] != '}' {
				j++
			}
			if j < len(runes) {
				j++
			}
			i = j

		case c == '/' && i+1 < len(runes) && runes[i+1] == '/':
			i = len(runes)

		case c == '"':
			j := i + 1
			for j < len(runes) && runes[j] != '"' {
				j++
			}
			content := strings.TrimSpace(string(runes[i+1 : j]))
			if j < len(runes) {
				j++
			}
			if strings.HasPrefix(content, "[") && strings.HasSuffix(content, "]") && len(content) >= 2 {
				u := content
				unit = &u
			}
			i = j

		default:
			out = append(out, c)
			i++
		}
	}
	return strings.TrimSpace(string(out)), unit
}
