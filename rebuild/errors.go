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

package rebuild

import (
	"errors"
	"fmt"
)

// ErrIncompleteOutput marks an archive that was abandoned before completion.
var ErrIncompleteOutput = errors.New("output archive incomplete")

// VerifyError reports copied bytes that do not hash to the matched digest.
type VerifyError struct {
	Entry string
	Want  string
	Got   string
}

func (e VerifyError) Error() string {
	return fmt.Sprintf("entry %q: copied bytes hash to %s, want %s", e.Entry, e.Got, e.Want)
}
