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

package match

import (
	"github.com/ZaparooProject/go-coalesce/catalog"
	"github.com/ZaparooProject/go-coalesce/scan"
)

type crcKey struct {
	crc  uint32
	size int64
}

// FileIndex finds scanned files by digest. Roms are looked up by SHA-1; a
// rom that declares no SHA-1 falls back to CRC-32 plus size.
type FileIndex struct {
	bySHA1 map[string][]int
	byCRC  map[crcKey][]int
	files  []scan.File
}

// Index builds a FileIndex over files.
func Index(files []scan.File) *FileIndex {
	ix := &FileIndex{
		files:  files,
		bySHA1: make(map[string][]int, len(files)),
		byCRC:  make(map[crcKey][]int),
	}
	for i := range files {
		f := &files[i]
		key := f.Digests.Key()
		ix.bySHA1[key] = append(ix.bySHA1[key], i)
		if crc := f.Digests.CRC32Bytes(); crc != nil {
			k := crcKey{crc: f.Digests.CRC32, size: f.Size}
			ix.byCRC[k] = append(ix.byCRC[k], i)
		}
	}
	return ix
}

// Len returns the number of indexed files.
func (ix *FileIndex) Len() int {
	return len(ix.files)
}

// Candidates returns every indexed file whose content matches rom, in no
// particular order.
func (ix *FileIndex) Candidates(rom *catalog.Rom) []scan.File {
	if !rom.Matchable() {
		return nil
	}

	var positions []int
	if key := rom.Key(); key != "" {
		positions = ix.bySHA1[key]
	} else if len(rom.CRC32) == 4 {
		crc := uint32(rom.CRC32[0])<<24 | uint32(rom.CRC32[1])<<16 | uint32(rom.CRC32[2])<<8 | uint32(rom.CRC32[3])
		positions = ix.byCRC[crcKey{crc: crc, size: rom.Size}]
	}

	candidates := make([]scan.File, 0, len(positions))
	for _, pos := range positions {
		f := ix.files[pos]
		if !sizeMatches(rom, f) {
			continue
		}
		candidates = append(candidates, f)
	}
	return candidates
}

// Lookup returns the preferred file for rom. Loose files win over archive
// members, then the smallest path, then the smallest member name, so the
// choice is stable across runs whatever the scan order.
func (ix *FileIndex) Lookup(rom *catalog.Rom) (scan.File, bool) {
	candidates := ix.Candidates(rom)
	if len(candidates) == 0 {
		return scan.File{}, false
	}
	best := candidates[0]
	for _, f := range candidates[1:] {
		if preferred(f, best) {
			best = f
		}
	}
	return best, true
}

// sizeMatches cross-checks the declared size. A declared size of zero on a
// rom with a SHA-1 defers to the digest.
func sizeMatches(rom *catalog.Rom, f scan.File) bool {
	if rom.Size == f.Size {
		return true
	}
	return rom.Size == 0 && len(rom.SHA1) > 0
}

func preferred(a, b scan.File) bool {
	if a.InArchive != b.InArchive {
		return !a.InArchive
	}
	if a.Path != b.Path {
		return a.Path < b.Path
	}
	return a.Member < b.Member
}
