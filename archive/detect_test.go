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
	"bytes"
	"testing"

	"github.com/ZaparooProject/go-coalesce/archive"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	files := map[string][]byte{"rom.bin": patterned(600)}

	tests := []struct {
		name string
		path string
		want archive.Kind
	}{
		// Extensions are deliberately misleading.
		{"zip", createTestZIP(t, tmpDir, "zip.bin", files), archive.KindZip},
		{"tar", createTestTar(t, tmpDir, "tar.zip", files), archive.KindTar},
		{"gzip", createTestGzip(t, tmpDir, "gzip.7z", "", files["rom.bin"]), archive.KindGzip},
		{"xz", createTestXZ(t, tmpDir, "xz.rom", files["rom.bin"]), archive.KindXZ},
		{"zstd", createTestZstd(t, tmpDir, "zstd.rom", files["rom.bin"]), archive.KindZstd},
		{"7z magic", writeTestFile(t, tmpDir, "seven.zip", append([]byte("7z\xBC\xAF\x27\x1C\x00\x04"), make([]byte, 32)...)), archive.KindSevenZip},
		{"rar magic", writeTestFile(t, tmpDir, "rar.bin", append([]byte("Rar!\x1A\x07\x01\x00"), make([]byte, 32)...)), archive.KindRAR},
		{"bzip2 is unsupported", writeTestFile(t, tmpDir, "rom.bz2", append([]byte("BZh91AY&SY"), make([]byte, 32)...)), archive.KindUnsupported},
		{"loose binary", writeTestFile(t, tmpDir, "rom.zip", patterned(600)), archive.KindNone},
		{"empty file", writeTestFile(t, tmpDir, "empty.zip", nil), archive.KindNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := archive.Classify(tt.path)
			if err != nil {
				t.Fatalf("Classify: %v", err)
			}
			if got != tt.want {
				t.Errorf("Classify() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestClassify_Missing(t *testing.T) {
	t.Parallel()

	if _, err := archive.Classify(t.TempDir() + "/missing"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestClassifyReader(t *testing.T) {
	t.Parallel()

	got, err := archive.ClassifyReader(bytes.NewReader([]byte("PK\x03\x04\x14\x00\x00\x00\x08\x00")))
	if err != nil {
		t.Fatalf("ClassifyReader: %v", err)
	}
	if got != archive.KindZip {
		t.Errorf("ClassifyReader() = %s, want zip", got)
	}
}
