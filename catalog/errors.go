// Copyright (c) 2025 Niema Moshiri and The Zaparoo Project.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of go-coalesce.
//
// go-coalesce is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// go-coalesce is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with go-coalesce.  If not, see <https://www.gnu.org/licenses/>.

package catalog

import "fmt"

// MalformedError reports a document that is not a usable catalog.
type MalformedError struct {
	Game   string // offending game, empty for document-level problems
	Reason string
	Err    error
}

func (e MalformedError) Error() string {
	msg := "malformed catalog"
	if e.Game != "" {
		msg += fmt.Sprintf(": game %q", e.Game)
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e MalformedError) Unwrap() error {
	return e.Err
}
