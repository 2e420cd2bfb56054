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
	"io"
	"os"

	"github.com/ZaparooProject/go-coalesce/archive"
)

// sources copies the bytes of scanned files for one family. Random-access
// containers are opened once and kept until close; forward-only containers
// are reopened for every member.
type sources struct {
	kinds    map[string]archive.Kind
	archives map[string]archive.Archive
}

func newSources() *sources {
	return &sources{
		kinds:    make(map[string]archive.Kind),
		archives: make(map[string]archive.Archive),
	}
}

func (s *sources) kind(path string) (archive.Kind, error) {
	if kind, ok := s.kinds[path]; ok {
		return kind, nil
	}
	kind, err := archive.Classify(path)
	if err != nil {
		return archive.KindNone, err //nolint:wrapcheck // archive errors carry context
	}
	s.kinds[path] = kind
	return kind, nil
}

// copy writes the bytes at loc to w.
func (s *sources) copy(w io.Writer, loc archive.Location) (int64, error) {
	if !loc.InArchive() {
		file, err := os.Open(loc.Path)
		if err != nil {
			return 0, fmt.Errorf("open source: %w", err)
		}
		defer func() { _ = file.Close() }()

		n, err := io.Copy(w, file)
		if err != nil {
			return n, fmt.Errorf("copy %s: %w", loc.Path, err)
		}
		return n, nil
	}

	kind, err := s.kind(loc.Path)
	if err != nil {
		return 0, err
	}
	if !kind.IsContainer() {
		return 0, fmt.Errorf("%s is no longer a readable container", loc.Path)
	}
	if !kind.RandomAccess() {
		return archive.Extract(loc.Path, kind, loc.Member, w) //nolint:wrapcheck // archive errors carry context
	}

	arc, ok := s.archives[loc.Path]
	if !ok {
		arc, err = archive.Open(loc.Path, kind)
		if err != nil {
			return 0, err //nolint:wrapcheck // archive errors carry context
		}
		s.archives[loc.Path] = arc
	}

	reader, _, err := arc.Open(loc.Member)
	if err != nil {
		return 0, err //nolint:wrapcheck // archive errors carry context
	}
	defer func() { _ = reader.Close() }()

	n, err := io.Copy(w, reader)
	if err != nil {
		return n, fmt.Errorf("copy %s: %w", loc, err)
	}
	return n, nil
}

func (s *sources) close() error {
	var errs []error
	for _, arc := range s.archives {
		if err := arc.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	clear(s.archives)
	return errors.Join(errs...)
}
