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

package scan

import (
	"fmt"

	"github.com/ZaparooProject/go-coalesce/digest"
)

// sizeMismatchError reports a stream member whose byte count differs from
// the size recorded in its container header.
type sizeMismatchError struct {
	Member   string
	Declared int64
	Read     int64
}

func (e sizeMismatchError) Error() string {
	return fmt.Sprintf("member %s: declared %d bytes, read %d", e.Member, e.Declared, e.Read)
}

// entryState accumulates the digests of the member currently being streamed.
// One hasher is reused for every member of a container.
type entryState struct {
	hasher   *digest.Hasher
	path     string
	name     string
	declared int64
	size     int64
	open     bool
}

func newEntryState(path string, set digest.Set) *entryState {
	return &entryState{path: path, hasher: digest.New(set)}
}

func (e *entryState) start(name string, declared int64) {
	e.hasher.Reset()
	e.name = name
	e.declared = declared
	e.size = 0
	e.open = true
}

func (e *entryState) write(p []byte) {
	_, _ = e.hasher.Write(p)
	e.size += int64(len(p))
}

func (e *entryState) end() (File, error) {
	if !e.open {
		return File{}, fmt.Errorf("member end without start in %s", e.path)
	}
	e.open = false
	if e.declared >= 0 && e.declared != e.size {
		return File{}, sizeMismatchError{Member: e.name, Declared: e.declared, Read: e.size}
	}
	return File{
		Path:      e.path,
		Member:    e.name,
		InArchive: true,
		Size:      e.size,
		Digests:   e.hasher.Sum(),
	}, nil
}
