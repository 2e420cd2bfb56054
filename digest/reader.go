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

package digest

import (
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/exp/mmap"
)

// Reader hashes r to EOF through a ChunkSize buffer and returns the digests
// and the number of bytes read.
func Reader(r io.Reader, set Set) (Sum, int64, error) {
	h := New(set)
	n, err := Copy(h, r)
	if err != nil {
		return Sum{}, n, err
	}
	return h.Sum(), n, nil
}

// Copy feeds r into h using a ChunkSize buffer. It is the streaming entry
// point for archive members, where no mapping is available.
func Copy(h *Hasher, r io.Reader) (int64, error) {
	buf := make([]byte, ChunkSize)
	var total int64
	for {
		n, err := r.Read(buf)
		if n > 0 {
			_, _ = h.Write(buf[:n])
			total += int64(n)
		}
		if errors.Is(err, io.EOF) {
			return total, nil
		}
		if err != nil {
			return total, fmt.Errorf("read: %w", err)
		}
	}
}

// File memory maps path and hashes it in ChunkSize windows.
func File(path string, set Set) (Sum, int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Sum{}, 0, fmt.Errorf("stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return Sum{}, 0, fmt.Errorf("not a regular file: %s", path)
	}
	if info.Size() == 0 {
		return New(set).Sum(), 0, nil
	}

	mapped, err := mmap.Open(path)
	if err != nil {
		return Sum{}, 0, fmt.Errorf("map file: %w", err)
	}
	defer func() { _ = mapped.Close() }()

	h := New(set)
	buf := make([]byte, ChunkSize)
	size := int64(mapped.Len())
	for off := int64(0); off < size; {
		n, err := mapped.ReadAt(buf, off)
		if n > 0 {
			_, _ = h.Write(buf[:n])
			off += int64(n)
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return Sum{}, off, fmt.Errorf("read mapped file: %w", err)
		}
		if n == 0 {
			break
		}
	}
	return h.Sum(), off, nil
}

// Bytes hashes b by feeding it to a Hasher in windows of chunk bytes. A chunk
// of zero or less hashes b in a single write.
func Bytes(b []byte, chunk int, set Set) Sum {
	h := New(set)
	if chunk <= 0 {
		chunk = len(b)
	}
	for len(b) > 0 {
		n := min(chunk, len(b))
		_, _ = h.Write(b[:n])
		b = b[n:]
	}
	return h.Sum()
}
