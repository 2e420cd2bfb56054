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
	"archive/tar"
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// ChunkSize is the largest Data payload delivered by a Stream.
const ChunkSize = 16 * 1024

// EventKind distinguishes the events produced by a Stream.
type EventKind int

const (
	// EventStart opens a member. Name and Size are set; Size is -1 when the
	// container does not record it.
	EventStart EventKind = iota + 1
	// EventData carries the next chunk of the current member.
	EventData
	// EventEnd closes the current member.
	EventEnd
)

func (k EventKind) String() string {
	switch k {
	case EventStart:
		return "start"
	case EventData:
		return "data"
	case EventEnd:
		return "end"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// Event is one step of a forward-only walk over a container. Every member
// produces exactly one EventStart, zero or more EventData and one EventEnd,
// in that order. Data is only valid until the next call to Next.
type Event struct {
	Kind EventKind
	Name string
	Size int64
	Data []byte
}

// Stream walks a forward-only container. Next returns io.EOF after the last
// member has ended.
type Stream interface {
	Next() (Event, error)
	Close() error
}

// OpenStream opens a forward-only container of the given kind.
func OpenStream(path string, kind Kind) (Stream, error) {
	switch kind {
	case KindRAR:
		return OpenRAR(path)
	case KindTar:
		return openTar(path)
	case KindGzip, KindXZ, KindZstd:
		return openSingle(path, kind)
	default:
		return nil, FormatError{Format: kind.String(), Reason: "not a stream container"}
	}
}

// source yields successive members of a forward-only container. next returns
// io.EOF when no members remain; the returned reader is valid until the next
// call.
type source interface {
	next() (name string, size int64, r io.Reader, err error)
}

// eventStream turns a source into the start, data, end event sequence.
type eventStream struct {
	src     source
	current io.Reader
	pending error
	buf     []byte
	closers []io.Closer
	done    bool
}

func newEventStream(src source, closers ...io.Closer) *eventStream {
	return &eventStream{
		src:     src,
		buf:     make([]byte, ChunkSize),
		closers: closers,
	}
}

func (s *eventStream) Next() (Event, error) {
	if s.done {
		return Event{}, io.EOF
	}

	if s.current == nil {
		name, size, r, err := s.src.next()
		if errors.Is(err, io.EOF) {
			s.done = true
			return Event{}, io.EOF
		}
		if err != nil {
			return Event{}, err
		}
		s.current = r
		return Event{Kind: EventStart, Name: normalizeName(name), Size: size}, nil
	}

	n, err := s.fill()
	if n > 0 {
		return Event{Kind: EventData, Data: s.buf[:n]}, nil
	}
	if errors.Is(err, io.EOF) {
		s.current = nil
		return Event{Kind: EventEnd}, nil
	}
	return Event{}, fmt.Errorf("read member: %w", err)
}

// fill reads up to one chunk of the current member. Only io.EOF ends a
// member; a decoder reporting io.ErrUnexpectedEOF means the container is
// truncated. An error seen after a partial chunk is held for the next call.
func (s *eventStream) fill() (int, error) {
	if s.pending != nil {
		err := s.pending
		s.pending = nil
		return 0, err
	}

	n := 0
	for n < len(s.buf) {
		m, err := s.current.Read(s.buf[n:])
		n += m
		if err != nil {
			if n > 0 {
				s.pending = err
				return n, nil
			}
			return 0, err //nolint:wrapcheck // wrapped by Next
		}
	}
	return n, nil
}

// Close releases the decompressors and the underlying file, innermost first.
func (s *eventStream) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type tarSource struct {
	reader *tar.Reader
}

func (ts *tarSource) next() (string, int64, io.Reader, error) {
	for {
		header, err := ts.reader.Next()
		if err != nil {
			return "", 0, nil, err //nolint:wrapcheck // io.EOF must pass through unwrapped
		}
		if !header.FileInfo().Mode().IsRegular() {
			continue
		}
		return header.Name, header.Size, ts.reader, nil
	}
}

func openTar(path string) (Stream, error) {
	file, err := os.Open(path) //nolint:gosec // User-provided path is expected
	if err != nil {
		return nil, fmt.Errorf("open tar archive: %w", err)
	}
	src := &tarSource{reader: tar.NewReader(bufio.NewReaderSize(file, ChunkSize))}
	return newEventStream(src, file), nil
}

// singleSource is a compressed stream holding exactly one member.
type singleSource struct {
	reader io.Reader
	name   string
	used   bool
}

func (ss *singleSource) next() (string, int64, io.Reader, error) {
	if ss.used {
		return "", 0, nil, io.EOF
	}
	ss.used = true
	return ss.name, -1, ss.reader, nil
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func openSingle(path string, kind Kind) (Stream, error) {
	file, err := os.Open(path) //nolint:gosec // User-provided path is expected
	if err != nil {
		return nil, fmt.Errorf("open %s stream: %w", kind, err)
	}
	buffered := bufio.NewReaderSize(file, ChunkSize)
	name := memberName(path)

	var (
		reader io.Reader
		closer io.Closer
	)
	switch kind {
	case KindGzip:
		gz, gzErr := gzip.NewReader(buffered)
		if gzErr != nil {
			_ = file.Close()
			return nil, fmt.Errorf("open gzip stream: %w", gzErr)
		}
		gz.Multistream(true)
		if gz.Name != "" {
			name = filepath.Base(filepath.ToSlash(gz.Name))
		}
		reader, closer = gz, gz
	case KindXZ:
		xzReader, xzErr := xz.NewReader(buffered)
		if xzErr != nil {
			_ = file.Close()
			return nil, fmt.Errorf("open xz stream: %w", xzErr)
		}
		reader = xzReader
	case KindZstd:
		decoder, zErr := zstd.NewReader(buffered, zstd.WithDecoderConcurrency(1))
		if zErr != nil {
			_ = file.Close()
			return nil, fmt.Errorf("open zstd stream: %w", zErr)
		}
		reader = decoder
		closer = closerFunc(func() error {
			decoder.Close()
			return nil
		})
	default:
		_ = file.Close()
		return nil, FormatError{Format: kind.String(), Reason: "not a single-member stream"}
	}

	closers := []io.Closer{file}
	if closer != nil {
		closers = append(closers, closer)
	}
	return newEventStream(&singleSource{reader: reader, name: name}, closers...), nil
}

// memberName derives the member name of a single-member stream from the
// container name by dropping its last extension.
func memberName(path string) string {
	base := filepath.Base(path)
	if ext := filepath.Ext(base); ext != "" && ext != base {
		return strings.TrimSuffix(base, ext)
	}
	return base
}
