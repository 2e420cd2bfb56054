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
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/nwaples/rardecode/v2"
)

// RARArchive walks the members of a RAR archive. RAR archives require
// sequential reading, so they are exposed as a Stream rather than an Archive.
type RARArchive struct {
	*eventStream
	path string
}

// OpenRAR opens a RAR archive for reading.
func OpenRAR(path string) (*RARArchive, error) {
	file, err := os.Open(path) //nolint:gosec // User-provided path is expected
	if err != nil {
		return nil, fmt.Errorf("open RAR archive: %w", err)
	}

	reader, err := rardecode.NewReader(bufio.NewReaderSize(file, ChunkSize))
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("create RAR reader: %w", err)
	}

	return &RARArchive{
		eventStream: newEventStream(&rarSource{reader: reader}, file),
		path:        path,
	}, nil
}

// Path returns the archive location.
func (ra *RARArchive) Path() string {
	return ra.path
}

type rarSource struct {
	reader *rardecode.Reader
}

func (rs *rarSource) next() (string, int64, io.Reader, error) {
	for {
		header, err := rs.reader.Next()
		if err != nil {
			return "", 0, nil, err //nolint:wrapcheck // io.EOF must pass through unwrapped
		}
		if header.IsDir {
			continue
		}
		size := header.UnPackedSize
		if header.UnKnownSize {
			size = -1
		}
		return header.Name, size, rs.reader, nil
	}
}
