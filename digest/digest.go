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

// Package digest computes content fingerprints for loose files and archive
// members in a single pass over fixed-size chunks.
//
// SHA-1 is always computed and is the identity used for matching. XXH3-64,
// CRC-32 and MD5 are optional and selected with a Set.
package digest

import (
	"crypto/md5" //nolint:gosec // MD5 is a DAT cross-check digest, not a security primitive
	"crypto/sha1" //nolint:gosec // SHA-1 is the identity digest used by DAT files
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"hash"
	"hash/crc32"
	"strings"

	"github.com/zeebo/xxh3"
)

// ChunkSize is the read window used when hashing streams and mapped files.
const ChunkSize = 16 * 1024

// Set selects which digests a Hasher computes.
type Set uint8

// Digest selectors. SHA1 is implied by every Set.
const (
	SHA1 Set = 1 << iota
	XXH3
	CRC32
	MD5

	// Default is the set computed by the scanner unless configured otherwise.
	Default = SHA1 | XXH3 | CRC32
	// All computes every supported digest.
	All = SHA1 | XXH3 | CRC32 | MD5
)

// Has reports whether s includes every digest in other.
func (s Set) Has(other Set) bool {
	return s&other == other
}

// String returns the digest names in s joined with "+".
func (s Set) String() string {
	var names []string
	for _, d := range []struct {
		set  Set
		name string
	}{{SHA1, "sha1"}, {XXH3, "xxh3"}, {CRC32, "crc32"}, {MD5, "md5"}} {
		if s.Has(d.set) {
			names = append(names, d.name)
		}
	}
	return strings.Join(names, "+")
}

// ParseSet parses a comma or plus separated list of digest names.
// SHA-1 is always added.
func ParseSet(value string) (Set, error) {
	set := SHA1
	fields := strings.FieldsFunc(strings.ToLower(value), func(r rune) bool {
		return r == ',' || r == '+' || r == ' '
	})
	for _, field := range fields {
		switch field {
		case "sha1":
			set |= SHA1
		case "xxh3", "xxhash", "xxh3-64":
			set |= XXH3
		case "crc", "crc32":
			set |= CRC32
		case "md5":
			set |= MD5
		case "all":
			set |= All
		default:
			return 0, fmt.Errorf("unknown digest %q", field)
		}
	}
	return set, nil
}

// Sum holds the digests computed for one byte stream. Fields not selected by
// Set are zero.
type Sum struct {
	SHA1  [sha1.Size]byte
	MD5   [md5.Size]byte
	XXH3  uint64
	CRC32 uint32
	Set   Set
}

// Key returns the lowercase hex SHA-1, the identity used for matching.
func (s Sum) Key() string {
	return hex.EncodeToString(s.SHA1[:])
}

// CRC32Bytes returns the CRC-32 in the big-endian byte order used by DAT files.
func (s Sum) CRC32Bytes() []byte {
	if !s.Set.Has(CRC32) {
		return nil
	}
	return binary.BigEndian.AppendUint32(nil, s.CRC32)
}

// XXH3Bytes returns the XXH3-64 digest in big-endian byte order.
func (s Sum) XXH3Bytes() []byte {
	if !s.Set.Has(XXH3) {
		return nil
	}
	return binary.BigEndian.AppendUint64(nil, s.XXH3)
}

// MD5Bytes returns the MD5 digest, or nil when it was not computed.
func (s Sum) MD5Bytes() []byte {
	if !s.Set.Has(MD5) {
		return nil
	}
	return append([]byte(nil), s.MD5[:]...)
}

func (s Sum) String() string {
	return fmt.Sprintf("sha1:%s crc32:%08x xxh3:%016x", s.Key(), s.CRC32, s.XXH3)
}

// Hasher accumulates the digests selected by a Set. It implements io.Writer;
// writes never fail.
type Hasher struct {
	sha1  hash.Hash
	md5   hash.Hash
	xxh3  *xxh3.Hasher
	crc32 hash.Hash32
	set   Set
}

// New returns a Hasher computing set. SHA-1 is always included.
func New(set Set) *Hasher {
	set |= SHA1
	h := &Hasher{
		set:  set,
		sha1: sha1.New(), //nolint:gosec // identity digest
	}
	if set.Has(XXH3) {
		h.xxh3 = xxh3.New()
	}
	if set.Has(CRC32) {
		h.crc32 = crc32.NewIEEE()
	}
	if set.Has(MD5) {
		h.md5 = md5.New() //nolint:gosec // cross-check digest
	}
	return h
}

// Write feeds p to every selected digest.
func (h *Hasher) Write(p []byte) (int, error) {
	_, _ = h.sha1.Write(p)
	if h.xxh3 != nil {
		_, _ = h.xxh3.Write(p)
	}
	if h.crc32 != nil {
		_, _ = h.crc32.Write(p)
	}
	if h.md5 != nil {
		_, _ = h.md5.Write(p)
	}
	return len(p), nil
}

// Reset clears all accumulated state so the Hasher can be reused for the
// next stream.
func (h *Hasher) Reset() {
	h.sha1.Reset()
	if h.xxh3 != nil {
		h.xxh3.Reset()
	}
	if h.crc32 != nil {
		h.crc32.Reset()
	}
	if h.md5 != nil {
		h.md5.Reset()
	}
}

// Sum returns the digests of everything written since the last Reset.
func (h *Hasher) Sum() Sum {
	sum := Sum{Set: h.set}
	h.sha1.Sum(sum.SHA1[:0])
	if h.xxh3 != nil {
		sum.XXH3 = h.xxh3.Sum64()
	}
	if h.crc32 != nil {
		sum.CRC32 = h.crc32.Sum32()
	}
	if h.md5 != nil {
		h.md5.Sum(sum.MD5[:0])
	}
	return sum
}
