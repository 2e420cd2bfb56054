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

// Package rebuild writes one zip archive per family, holding exactly the
// matched roms under their catalog names.
package rebuild

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ZaparooProject/go-coalesce/archive"
	"github.com/ZaparooProject/go-coalesce/digest"
	"github.com/ZaparooProject/go-coalesce/match"
)

// ArchiveMode is the permission set on rebuilt archives.
const ArchiveMode fs.FileMode = 0o644

// entryTime is stamped on every entry so rebuilt archives are byte-identical
// across runs.
var entryTime = time.Date(1996, time.December, 24, 23, 32, 0, 0, time.UTC)

// Options configure a Writer.
type Options struct {
	Logger     zerolog.Logger
	Jobs       int  // families written concurrently; <= 0 means one per CPU
	DryRun     bool // plan only, never touch the filesystem
	SkipVerify bool // do not re-hash copied bytes
}

// Entry is one member of a rebuilt archive.
type Entry struct {
	Name   string
	Game   string
	Source archive.Location
	Size   int64
	SHA1   string
}

// Result describes the archive produced, or planned, for one family.
type Result struct {
	Err     error
	Family  string
	Path    string
	Entries []Entry
	Missing int
	Skipped bool // nothing matched, no archive
}

// Summary totals the results of All.
type Summary struct {
	Results []Result
	Written int
	Skipped int
	Failed  int
	Entries int
	Missing int
}

// Writer rebuilds families into zip archives.
type Writer struct {
	log  zerolog.Logger
	jobs int
	dry  bool
	skip bool
}

// New returns a Writer for opts.
func New(opts Options) *Writer {
	jobs := opts.Jobs
	if jobs <= 0 {
		jobs = runtime.NumCPU()
	}
	return &Writer{
		log:  opts.Logger,
		jobs: jobs,
		dry:  opts.DryRun,
		skip: opts.SkipVerify,
	}
}

// ArchiveName returns the file name of the archive for a root game.
func ArchiveName(root string) string {
	name := strings.NewReplacer("/", "_", "\\", "_").Replace(root)
	return name + ".zip"
}

// Plan computes the archive for fam without any I/O. Entries follow match
// order and are named after the roms. A rom whose name and content repeat an
// earlier entry is written once; a name reused for different content is
// qualified with its game name.
func (w *Writer) Plan(fam *match.Family, dest string) Result {
	result := Result{
		Family:  fam.Name(),
		Path:    filepath.Join(dest, ArchiveName(fam.Name())),
		Missing: len(fam.Missing()),
	}
	if len(fam.Matches) == 0 {
		result.Skipped = true
		return result
	}

	used := make(map[string]string, len(fam.Matches))
	for _, m := range fam.Matches {
		key := m.File.Digests.Key()
		name := m.Rom.EntryName()
		if existing, ok := used[name]; ok {
			if existing == key {
				continue
			}
			name = m.Game.Name + "/" + name
			if existing, ok := used[name]; ok {
				if existing != key {
					w.log.Warn().Str("family", fam.Name()).Str("entry", name).Msg("conflicting entry name, dropping duplicate")
				}
				continue
			}
		}
		used[name] = key
		result.Entries = append(result.Entries, Entry{
			Name:   name,
			Game:   m.Game.Name,
			Source: m.File.Location(),
			Size:   m.File.Size,
			SHA1:   key,
		})
	}
	return result
}

// Family writes the archive for fam into dest. An empty family is skipped.
// The archive is assembled in a temporary file next to its final path and
// renamed into place only once complete; on error or cancellation the
// temporary file is removed.
func (w *Writer) Family(ctx context.Context, fam *match.Family, dest string) (Result, error) {
	result := w.Plan(fam, dest)
	log := w.log.With().Str("family", result.Family).Logger()

	if result.Skipped {
		log.Debug().Msg("no matches, skipping")
		return result, nil
	}
	if w.dry {
		log.Info().Str("path", result.Path).Int("entries", len(result.Entries)).Msg("would write archive")
		return result, nil
	}
	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("%w: %w", ErrIncompleteOutput, err)
	}

	if err := w.write(ctx, &result); err != nil {
		result.Err = err
		return result, err
	}
	log.Info().Str("path", result.Path).Int("entries", len(result.Entries)).Msg("wrote archive")
	return result, nil
}

func (w *Writer) write(ctx context.Context, result *Result) error {
	dir := filepath.Dir(result.Path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(result.Path)+".*.partial")
	if err != nil {
		return fmt.Errorf("create temporary archive: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	src := newSources()
	defer func() { _ = src.close() }()

	zw := zip.NewWriter(tmp)
	for _, entry := range result.Entries {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %w", ErrIncompleteOutput, err)
		}
		if err := w.writeEntry(zw, src, entry); err != nil {
			return err
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("finish archive: %w", err)
	}
	if err := tmp.Chmod(ArchiveMode); err != nil {
		return fmt.Errorf("set archive mode: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close archive: %w", err)
	}
	if err := os.Rename(tmp.Name(), result.Path); err != nil {
		return fmt.Errorf("move archive into place: %w", err)
	}
	committed = true
	return nil
}

func (w *Writer) writeEntry(zw *zip.Writer, src *sources, entry Entry) error {
	header := &zip.FileHeader{
		Name:     entry.Name,
		Method:   zip.Deflate,
		Modified: entryTime,
	}
	out, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("create entry %s: %w", entry.Name, err)
	}

	var (
		target io.Writer = out
		hasher *digest.Hasher
	)
	if !w.skip {
		hasher = digest.New(digest.SHA1)
		target = io.MultiWriter(out, hasher)
	}

	n, err := src.copy(target, entry.Source)
	if err != nil {
		return fmt.Errorf("entry %s from %s: %w", entry.Name, entry.Source, err)
	}
	if n != entry.Size {
		return fmt.Errorf("entry %s from %s: copied %d bytes, want %d", entry.Name, entry.Source, n, entry.Size)
	}
	if hasher != nil {
		if got := hasher.Sum().Key(); got != entry.SHA1 {
			return VerifyError{Entry: entry.Name, Want: entry.SHA1, Got: got}
		}
	}
	return nil
}

// All writes every family into dest, creating dest first unless this is a
// dry run. Per-family failures are logged and counted; a failure to create
// dest or a cancelled context is returned.
func (w *Writer) All(ctx context.Context, families []match.Family, dest string) (*Summary, error) {
	if !w.dry {
		if err := os.MkdirAll(dest, 0o750); err != nil {
			return nil, fmt.Errorf("create destination: %w", err)
		}
	}

	results := make([]Result, len(families))
	scheduled := make([]bool, len(families))

	var group errgroup.Group
	group.SetLimit(w.jobs)

	for i := range families {
		if ctx.Err() != nil {
			break
		}
		scheduled[i] = true
		group.Go(func() error {
			result, err := w.Family(ctx, &families[i], dest)
			if err != nil && !errors.Is(err, ErrIncompleteOutput) {
				w.log.Warn().Err(err).Str("family", families[i].Name()).Msg("rebuild failed")
			}
			result.Err = err
			results[i] = result
			return nil
		})
	}
	_ = group.Wait()

	summary := &Summary{}
	for i := range families {
		summary.Missing += len(families[i].Missing())
		if !scheduled[i] {
			continue
		}
		result := results[i]
		summary.Results = append(summary.Results, result)
		switch {
		case result.Err != nil:
			summary.Failed++
		case result.Skipped:
			summary.Skipped++
		default:
			summary.Written++
			summary.Entries += len(result.Entries)
		}
	}

	if err := ctx.Err(); err != nil {
		return summary, fmt.Errorf("rebuild cancelled: %w", err)
	}
	return summary, nil
}
