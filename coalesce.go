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

// Package coalesce identifies ROM files by content against a catalog and
// rebuilds them into one zip archive per game family.
//
// The usual flow is IngestCatalog, Scan, Plan and Rebuild. Each step is also
// available from its own package for callers that need finer control.
package coalesce

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ZaparooProject/go-coalesce/archive"
	"github.com/ZaparooProject/go-coalesce/catalog"
	"github.com/ZaparooProject/go-coalesce/digest"
	"github.com/ZaparooProject/go-coalesce/match"
	"github.com/ZaparooProject/go-coalesce/rebuild"
	"github.com/ZaparooProject/go-coalesce/scan"
)

// Catalog is an alias for catalog.Catalog for convenience.
type Catalog = catalog.Catalog

// File is an alias for scan.File for convenience.
type File = scan.File

// Family is an alias for match.Family for convenience.
type Family = match.Family

// Summary is an alias for rebuild.Summary for convenience.
type Summary = rebuild.Summary

// Options configure every step. The zero value uses one job per CPU, the
// default digest set, the flatten clone policy and no logging.
type Options struct {
	Logger  zerolog.Logger
	Jobs    int
	Digests digest.Set
	Policy  match.ClonePolicy
	DryRun  bool
}

// IngestCatalog parses the Logiqx XML catalog at path.
func IngestCatalog(path string) (*Catalog, error) {
	cat, err := catalog.ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("ingest catalog: %w", err)
	}
	return cat, nil
}

// Scan fingerprints every file and archive member under root.
func Scan(ctx context.Context, root string, opts Options) (*scan.Result, error) {
	result, err := newScanner(opts).Scan(ctx, root)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}
	return result, nil
}

// Hash fingerprints one path. A container is expanded into its members; a
// MiSTer-style path such as "/roms/set.zip/rom.bin" addresses a single
// member.
func Hash(path string, opts Options) ([]File, error) {
	loc, err := archive.ParseLocation(path)
	if err != nil {
		return nil, fmt.Errorf("locate %s: %w", path, err)
	}
	if !loc.InArchive() {
		files, err := newScanner(opts).ScanPath(loc.Path)
		if err != nil {
			return nil, fmt.Errorf("hash %s: %w", path, err)
		}
		return files, nil
	}

	kind, err := archive.Classify(loc.Path)
	if err != nil {
		return nil, fmt.Errorf("classify %s: %w", loc.Path, err)
	}
	if !kind.IsContainer() {
		return nil, archive.FormatError{Format: kind.String(), Reason: "not a container: " + loc.Path}
	}

	h := digest.New(digestSet(opts))
	size, err := archive.Extract(loc.Path, kind, loc.Member, h)
	if err != nil {
		return nil, fmt.Errorf("hash %s: %w", path, err)
	}
	return []File{{
		Path:      loc.Path,
		Member:    loc.Member,
		InArchive: true,
		Size:      size,
		Digests:   h.Sum(),
	}}, nil
}

// Plan joins files to the catalog and groups the matches into families.
func Plan(cat *Catalog, files []File, opts Options) ([]Family, error) {
	families, err := match.Families(cat, files, match.Options{Policy: opts.Policy})
	if err != nil {
		return nil, fmt.Errorf("plan: %w", err)
	}
	return families, nil
}

// Rebuild writes one archive per family into dest.
func Rebuild(ctx context.Context, families []Family, dest string, opts Options) (*Summary, error) {
	writer := rebuild.New(rebuild.Options{
		Logger: opts.Logger,
		Jobs:   opts.Jobs,
		DryRun: opts.DryRun,
	})
	summary, err := writer.All(ctx, families, dest)
	if err != nil {
		return summary, fmt.Errorf("rebuild: %w", err)
	}
	return summary, nil
}

func newScanner(opts Options) *scan.Scanner {
	return scan.New(scan.Options{
		Logger:  opts.Logger,
		Jobs:    opts.Jobs,
		Digests: opts.Digests,
	})
}

func digestSet(opts Options) digest.Set {
	if opts.Digests == 0 {
		return digest.Default
	}
	return opts.Digests
}
