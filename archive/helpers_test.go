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

package archive_test

import (
	"archive/tar"
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

func sortedNames(files map[string][]byte) []string {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// createTestZIP creates a ZIP archive in tmpDir with the given files.
//
//nolint:gosec // Test helper creates files in test temp directory
func createTestZIP(t *testing.T, tmpDir, name string, files map[string][]byte) string {
	t.Helper()

	zipPath := filepath.Join(tmpDir, name)
	file, err := os.Create(zipPath)
	if err != nil {
		t.Fatalf("create zip file: %v", err)
	}
	defer func() { _ = file.Close() }()

	writer := zip.NewWriter(file)

	for _, filename := range sortedNames(files) {
		fileWriter, err := writer.Create(filename)
		if err != nil {
			t.Fatalf("create file in zip: %v", err)
		}
		if _, err := fileWriter.Write(files[filename]); err != nil {
			t.Fatalf("write file content: %v", err)
		}
	}

	if err := writer.Close(); err != nil {
		t.Fatalf("close zip writer: %v", err)
	}

	return zipPath
}

// createTestTar creates an uncompressed tar archive in tmpDir. Members are
// written in name order.
func createTestTar(t *testing.T, tmpDir, name string, files map[string][]byte) string {
	t.Helper()

	var buf bytes.Buffer
	writer := tar.NewWriter(&buf)
	if err := writer.WriteHeader(&tar.Header{Name: "dir/", Typeflag: tar.TypeDir, Mode: 0o755}); err != nil {
		t.Fatalf("write tar dir header: %v", err)
	}
	for _, filename := range sortedNames(files) {
		header := &tar.Header{
			Name:     filename,
			Typeflag: tar.TypeReg,
			Mode:     0o644,
			Size:     int64(len(files[filename])),
		}
		if err := writer.WriteHeader(header); err != nil {
			t.Fatalf("write tar header: %v", err)
		}
		if _, err := writer.Write(files[filename]); err != nil {
			t.Fatalf("write tar content: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close tar writer: %v", err)
	}

	return writeTestFile(t, tmpDir, name, buf.Bytes())
}

// createTestGzip compresses content into a gzip stream. A non-empty
// headerName is recorded in the gzip header.
func createTestGzip(t *testing.T, tmpDir, name, headerName string, content []byte) string {
	t.Helper()

	var buf bytes.Buffer
	writer := gzip.NewWriter(&buf)
	writer.Name = headerName
	if _, err := writer.Write(content); err != nil {
		t.Fatalf("write gzip: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close gzip: %v", err)
	}

	return writeTestFile(t, tmpDir, name, buf.Bytes())
}

func createTestXZ(t *testing.T, tmpDir, name string, content []byte) string {
	t.Helper()

	var buf bytes.Buffer
	writer, err := xz.NewWriter(&buf)
	if err != nil {
		t.Fatalf("create xz writer: %v", err)
	}
	if _, err := writer.Write(content); err != nil {
		t.Fatalf("write xz: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close xz: %v", err)
	}

	return writeTestFile(t, tmpDir, name, buf.Bytes())
}

func createTestZstd(t *testing.T, tmpDir, name string, content []byte) string {
	t.Helper()

	var buf bytes.Buffer
	writer, err := zstd.NewWriter(&buf)
	if err != nil {
		t.Fatalf("create zstd writer: %v", err)
	}
	if _, err := writer.Write(content); err != nil {
		t.Fatalf("write zstd: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close zstd: %v", err)
	}

	return writeTestFile(t, tmpDir, name, buf.Bytes())
}

func writeTestFile(t *testing.T, tmpDir, name string, content []byte) string {
	t.Helper()

	path := filepath.Join(tmpDir, name)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func patterned(size int) []byte {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % 251)
	}
	return data
}
