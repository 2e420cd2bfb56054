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

// Package archive reads members of the container formats found in ROM
// collections without extracting them to disk.
//
// Containers come in two classes. Random-access containers (ZIP, 7z) list
// their members up front and open any of them directly; they implement
// Archive. Forward-only containers (RAR, tar and the single-member gzip, xz
// and zstd streams) can only be walked from the start; they implement Stream
// and deliver start, data and end events per member.
package archive

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// Kind identifies a container format.
type Kind int

const (
	// KindNone means the file is not a container.
	KindNone Kind = iota
	KindZip
	KindSevenZip
	KindRAR
	KindTar
	KindGzip
	KindXZ
	KindZstd
	// KindUnsupported is a recognised archive format with no reader.
	KindUnsupported
)

var kindNames = map[Kind]string{
	KindNone:        "none",
	KindZip:         "zip",
	KindSevenZip:    "7z",
	KindRAR:         "rar",
	KindTar:         "tar",
	KindGzip:        "gzip",
	KindXZ:          "xz",
	KindZstd:        "zstd",
	KindUnsupported: "unsupported",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// IsContainer reports whether members of k can be read.
func (k Kind) IsContainer() bool {
	return k != KindNone && k != KindUnsupported && kindNames[k] != ""
}

// RandomAccess reports whether k is opened with Open rather than OpenStream.
func (k Kind) RandomAccess() bool {
	return k == KindZip || k == KindSevenZip
}

// FileInfo contains information about a file in an archive.
type FileInfo struct {
	Name string // Full path within archive
	Size int64  // Uncompressed size
}

// Archive provides random access to files within a container.
type Archive interface {
	// List returns all files in the archive, directories excluded.
	List() ([]FileInfo, error)

	// Open opens a file within the archive for reading.
	// Returns the reader, uncompressed size, and any error.
	Open(internalPath string) (io.ReadCloser, int64, error)

	// Close closes the archive.
	Close() error
}

// Open opens a random-access container of the given kind.
func Open(path string, kind Kind) (Archive, error) {
	switch kind {
	case KindZip:
		return OpenZIP(path)
	case KindSevenZip:
		return OpenSevenZip(path)
	default:
		return nil, FormatError{Format: kind.String(), Reason: "not a random-access container"}
	}
}

// Extract copies the member named internalPath from the container at path
// into w. Forward-only containers are read from the start and abandoned as
// soon as the member has been copied.
func Extract(path string, kind Kind, internalPath string, w io.Writer) (int64, error) {
	if kind.RandomAccess() {
		arc, err := Open(path, kind)
		if err != nil {
			return 0, err
		}
		defer func() { _ = arc.Close() }()

		reader, _, err := arc.Open(internalPath)
		if err != nil {
			return 0, err
		}
		defer func() { _ = reader.Close() }()

		n, err := io.Copy(w, reader)
		if err != nil {
			return n, fmt.Errorf("copy %s from %s: %w", internalPath, path, err)
		}
		return n, nil
	}

	stream, err := OpenStream(path, kind)
	if err != nil {
		return 0, err
	}
	defer func() { _ = stream.Close() }()

	return extractFromStream(stream, path, internalPath, w)
}

// extractFromStream walks events until the wanted member ends. Stream
// members must match the name exactly.
func extractFromStream(stream Stream, path, internalPath string, w io.Writer) (int64, error) {
	want := normalizeName(internalPath)
	var copying bool
	var written int64

	for {
		event, err := stream.Next()
		if errors.Is(err, io.EOF) {
			return 0, FileNotFoundError{Archive: path, InternalPath: internalPath}
		}
		if err != nil {
			return written, fmt.Errorf("read %s: %w", path, err)
		}

		switch event.Kind {
		case EventStart:
			copying = event.Name == want
		case EventData:
			if copying {
				n, err := w.Write(event.Data)
				written += int64(n)
				if err != nil {
					return written, fmt.Errorf("copy %s from %s: %w", internalPath, path, err)
				}
			}
		case EventEnd:
			if copying {
				return written, nil
			}
		}
	}
}

// normalizeName converts member names to forward slashes without a leading
// slash, the form recorded by the scanner.
func normalizeName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	return strings.TrimPrefix(filepath.ToSlash(name), "/")
}
