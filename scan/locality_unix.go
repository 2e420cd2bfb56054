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

//go:build unix

package scan

import (
	"os"
	"sort"
	"syscall"
)

// orderForLocality sorts paths by inode number, which approximates on-disk
// placement on most Unix filesystems. Paths that cannot be stat'ed keep their
// relative order at the end.
func orderForLocality(paths []string) {
	inodes := make(map[string]uint64, len(paths))
	for _, path := range paths {
		info, err := os.Lstat(path)
		if err != nil {
			continue
		}
		stat, ok := info.Sys().(*syscall.Stat_t)
		if !ok {
			continue
		}
		inodes[path] = uint64(stat.Ino) //nolint:unconvert // Ino width differs between platforms
	}

	sort.SliceStable(paths, func(i, j int) bool {
		a, aok := inodes[paths[i]]
		b, bok := inodes[paths[j]]
		if aok != bok {
			return aok
		}
		return a < b
	})
}
