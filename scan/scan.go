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

// Package scan walks a directory tree and fingerprints every loose file and
// every member of every readable container, without extracting anything to
// disk.
package scan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ZaparooProject/go-coalesce/archive"
	"github.com/ZaparooProject/go-coalesce/digest"
)

// File is one fingerprinted object: a loose file, or a member of the
// container at Path.
type File struct {
	Path      string
	Member    string
	InArchive bool
	Size      int64
	Digests   digest.Sum
}

// Location returns where the bytes of f live.
func (f File) Location() archive.Location {
	return archive.Location{Path: f.Path, Member: f.Member}
}

// Result collects the outcome of a scan.
type Result struct {
	RunID   string
	Files   []File // sorted by Path, then Member
	Scanned int    // paths fingerprinted
	Skipped int    // paths that failed to open, read or parse
	Opaque  int    // unsupported containers fingerprinted as single files
}

// Options configure a Scanner. The zero value scans with one job per CPU,
// the default digest set and no logging.
type Options struct {
	Logger  zerolog.Logger
	Jobs    int
	Digests digest.Set
}

// Scanner fingerprints directory trees.
type Scanner struct {
	log     zerolog.Logger
	jobs    int
	digests digest.Set
}

// New returns a Scanner for opts.
func New(opts Options) *Scanner {
	jobs := opts.Jobs
	if jobs <= 0 {
		jobs = runtime.NumCPU()
	}
	digests := opts.Digests
	if digests == 0 {
		digests = digest.Default
	}
	return &Scanner{
		log:     opts.Logger,
		jobs:    jobs,
		digests: digests | digest.SHA1,
	}
}

// counts tallies per-path outcomes across workers.
type counts struct {
	scanned, skipped, opaque int
}

// Scan fingerprints everything under root. Per-path failures are logged and
// counted; only a failure to walk root or a cancelled context is returned.
func (s *Scanner) Scan(ctx context.Context, root string) (*Result, error) {
	runID := uuid.NewString()
	log := s.log.With().Str("run_id", runID).Logger()

	var files []File
	tally, err := s.run(ctx, root, log, func(found []File) error {
		files = append(files, found...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool {
		if files[i].Path != files[j].Path {
			return files[i].Path < files[j].Path
		}
		return files[i].Member < files[j].Member
	})

	log.Info().
		Str("root", root).
		Int("files", len(files)).
		Int("scanned", tally.scanned).
		Int("skipped", tally.skipped).
		Msg("scan complete")

	return &Result{
		RunID:   runID,
		Files:   files,
		Scanned: tally.scanned,
		Skipped: tally.skipped,
		Opaque:  tally.opaque,
	}, nil
}

// Each fingerprints everything under root and hands records to fn as they
// are produced, in no particular order. fn is never called concurrently. An
// error from fn stops the scan and is returned.
func (s *Scanner) Each(ctx context.Context, root string, fn func(File) error) error {
	_, err := s.run(ctx, root, s.log, func(found []File) error {
		for _, f := range found {
			if err := fn(f); err != nil {
				return err
			}
		}
		return nil
	})
	return err
}

// run walks root and fans the paths out to a bounded pool. emit is called
// under a lock with the records of one path.
func (s *Scanner) run(
	ctx context.Context, root string, log zerolog.Logger, emit func([]File) error,
) (counts, error) {
	paths, err := s.Walk(root)
	if err != nil {
		return counts{}, err
	}

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(s.jobs)

	var (
		mu    sync.Mutex
		tally counts
	)
	for _, path := range paths {
		if gctx.Err() != nil {
			break
		}
		group.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err //nolint:wrapcheck // cancellation passthrough
			}

			found, opaque, err := s.scanPath(path, log)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Warn().Err(err).Str("path", path).Msg("skipping file")
				tally.skipped++
				return nil
			}
			tally.scanned++
			if opaque {
				tally.opaque++
			}
			return emit(found)
		})
	}

	if err := group.Wait(); err != nil {
		return tally, err //nolint:wrapcheck // emit and cancellation errors are returned as-is
	}
	if err := ctx.Err(); err != nil {
		return tally, fmt.Errorf("scan cancelled: %w", err)
	}
	return tally, nil
}

// ScanPath fingerprints a single file: the file itself when it is not a
// container, or each of its members.
func (s *Scanner) ScanPath(path string) ([]File, error) {
	files, _, err := s.scanPath(path, s.log)
	return files, err
}

func (s *Scanner) scanPath(path string, log zerolog.Logger) (files []File, opaque bool, err error) {
	kind, err := archive.Classify(path)
	if err != nil {
		return nil, false, err //nolint:wrapcheck // already carries context
	}

	switch {
	case kind == archive.KindUnsupported:
		log.Warn().Str("path", path).Msg("unsupported container, fingerprinting as a single file")
		file, err := s.scanLoose(path)
		if err != nil {
			return nil, true, err
		}
		return []File{file}, true, nil
	case !kind.IsContainer():
		file, err := s.scanLoose(path)
		if err != nil {
			return nil, false, err
		}
		return []File{file}, false, nil
	case kind.RandomAccess():
		files, err = s.scanArchive(path, kind)
	default:
		files, err = s.scanStream(path, kind, log)
	}
	if err != nil {
		return nil, false, fmt.Errorf("%s container: %w", kind, err)
	}
	log.Debug().Str("path", path).Stringer("kind", kind).Int("members", len(files)).Msg("scanned container")
	return files, false, nil
}

func (s *Scanner) scanLoose(path string) (File, error) {
	sum, size, err := digest.File(path, s.digests)
	if err != nil {
		return File{}, err //nolint:wrapcheck // digest errors carry context
	}
	return File{Path: path, Size: size, Digests: sum}, nil
}

func (s *Scanner) scanArchive(path string, kind archive.Kind) ([]File, error) {
	arc, err := archive.Open(path, kind)
	if err != nil {
		return nil, err //nolint:wrapcheck // archive errors carry context
	}
	defer func() { _ = arc.Close() }()

	members, err := arc.List()
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}

	hasher := digest.New(s.digests)
	files := make([]File, 0, len(members))
	for _, member := range members {
		reader, _, err := arc.Open(member.Name)
		if err != nil {
			return nil, err //nolint:wrapcheck // archive errors carry context
		}
		hasher.Reset()
		n, err := digest.Copy(hasher, reader)
		_ = reader.Close()
		if err != nil {
			return nil, fmt.Errorf("member %s: %w", member.Name, err)
		}
		files = append(files, File{
			Path:      path,
			Member:    member.Name,
			InArchive: true,
			Size:      n,
			Digests:   hasher.Sum(),
		})
	}
	return files, nil
}

// scanStream drives the per-entry accumulator inline with the container's
// events; a forward-only stream cannot be revisited once an entry has passed.
// A member whose size disagrees with its header is skipped on its own.
func (s *Scanner) scanStream(path string, kind archive.Kind, log zerolog.Logger) ([]File, error) {
	stream, err := archive.OpenStream(path, kind)
	if err != nil {
		return nil, err //nolint:wrapcheck // archive errors carry context
	}
	defer func() { _ = stream.Close() }()

	state := newEntryState(path, s.digests)
	var files []File
	for {
		event, err := stream.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err //nolint:wrapcheck // stream errors carry context
		}

		switch event.Kind {
		case archive.EventStart:
			state.start(event.Name, event.Size)
		case archive.EventData:
			state.write(event.Data)
		case archive.EventEnd:
			file, err := state.end()
			var mismatch sizeMismatchError
			if errors.As(err, &mismatch) {
				log.Warn().Err(err).Str("path", path).Msg("skipping corrupt member")
				continue
			}
			if err != nil {
				return nil, err
			}
			files = append(files, file)
		}
	}
	if state.open {
		return nil, fmt.Errorf("stream ended inside member %s", state.name)
	}
	return files, nil
}
