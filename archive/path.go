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

package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Location names a loose file or a member inside a container.
type Location struct {
	Path   string // Path to the file on disk
	Member string // Path inside the container, empty for loose files
}

// InArchive reports whether the location is a container member.
func (l Location) InArchive() bool {
	return l.Member != ""
}

// String renders the location MiSTer style, with the member appended to the
// container path: "/roms/set.zip/folder/rom.bin".
func (l Location) String() string {
	if l.Member == "" {
		return l.Path
	}
	return filepath.ToSlash(l.Path) + "/" + l.Member
}

// ParseLocation splits a MiSTer-style path such as
// "/roms/set.zip/folder/rom.bin" into the container on disk and the member
// inside it. The shortest prefix naming a regular file is the container; a
// path that names a regular file itself is a loose location.
func ParseLocation(path string) (Location, error) {
	info, err := os.Stat(path)
	if err == nil {
		if info.Mode().IsRegular() {
			return Location{Path: path}, nil
		}
		return Location{}, fmt.Errorf("not a regular file: %s", path)
	}

	normalized := filepath.ToSlash(path)
	for idx := 0; idx < len(normalized); idx++ {
		if normalized[idx] != '/' || idx == 0 {
			continue
		}

		prefix := filepath.FromSlash(normalized[:idx])
		info, statErr := os.Stat(prefix)
		if statErr != nil {
			if os.IsNotExist(statErr) {
				break
			}
			return Location{}, fmt.Errorf("stat %s: %w", prefix, statErr)
		}
		if info.IsDir() {
			continue
		}

		member := strings.Trim(normalized[idx+1:], "/")
		if member == "" {
			return Location{Path: prefix}, nil
		}
		return Location{Path: prefix, Member: member}, nil
	}

	return Location{}, fmt.Errorf("stat %s: %w", path, err)
}
