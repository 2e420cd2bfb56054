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

package scan_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"sort"
	"testing"

	"github.com/ZaparooProject/go-coalesce/digest"
	"github.com/ZaparooProject/go-coalesce/scan"
)

func TestScan_RoundTrip(t *testing.T) {
	t.Parallel()

	for _, size := range []int{0, 1, digest.ChunkSize + 1} {
		t.Run(fmt.Sprintf("size %d", size), func(t *testing.T) {
			t.Parallel()

			root := t.TempDir()
			data := testData(size)
			want := digest.Bytes(data, 0, digest.Default)

			writeFile(t, filepath.Join(root, "loose.bin"), data)
			writeFile(t, filepath.Join(root, "set.zip"), zipBytes(t, member{"dir/rom.bin", data}))
			writeFile(t, filepath.Join(root, "set.tar"), tarBytes(t, member{"rom.bin", data}))
			writeFile(t, filepath.Join(root, "rom.bin.gz"), gzipBytes(t, data))

			result, err := scan.New(scan.Options{Jobs: 2}).Scan(context.Background(), root)
			if err != nil {
				t.Fatalf("Scan: %v", err)
			}
			if len(result.Files) != 4 {
				t.Fatalf("got %d files, want 4: %+v", len(result.Files), result.Files)
			}

			wantMembers := map[string]string{
				"loose.bin":  "",
				"set.zip":    "dir/rom.bin",
				"set.tar":    "rom.bin",
				"rom.bin.gz": "rom.bin",
			}
			for _, f := range result.Files {
				base := filepath.Base(f.Path)
				if f.Member != wantMembers[base] {
					t.Errorf("%s: member = %q, want %q", base, f.Member, wantMembers[base])
				}
				if f.InArchive != (f.Member != "") {
					t.Errorf("%s: InArchive = %v", base, f.InArchive)
				}
				if f.Size != int64(size) {
					t.Errorf("%s: size = %d, want %d", base, f.Size, size)
				}
				if f.Digests != want {
					t.Errorf("%s: digests = %v, want %v", base, f.Digests, want)
				}
			}
		})
	}
}

func TestScan_Idempotent(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.bin"), testData(100))
	writeFile(t, filepath.Join(root, "sub", "b.bin"), testData(200))
	writeFile(t, filepath.Join(root, "sub", "pack.zip"), zipBytes(t,
		member{"x.bin", testData(10)},
		member{"y.bin", testData(20)},
	))
	writeFile(t, filepath.Join(root, "pack.tar"), tarBytes(t, member{"z.bin", testData(30)}))

	scanner := scan.New(scan.Options{Jobs: 4})
	first, err := scanner.Scan(context.Background(), root)
	if err != nil {
		t.Fatalf("first Scan: %v", err)
	}
	second, err := scan.New(scan.Options{Jobs: 1}).Scan(context.Background(), root)
	if err != nil {
		t.Fatalf("second Scan: %v", err)
	}

	if len(first.Files) != 5 {
		t.Fatalf("got %d files, want 5", len(first.Files))
	}
	if !reflect.DeepEqual(first.Files, second.Files) {
		t.Errorf("scans differ:\n%+v\n%+v", first.Files, second.Files)
	}
	if first.RunID == "" || first.RunID == second.RunID {
		t.Errorf("run ids should be unique: %q %q", first.RunID, second.RunID)
	}
}

func TestScan_Counts(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, filepath.Join(root, "good.bin"), testData(64))
	writeFile(t, filepath.Join(root, "broken.zip"), append([]byte("PK\x03\x04"), testData(200)...))
	writeFile(t, filepath.Join(root, "opaque.bz2"), append([]byte("BZh91AY&SY"), testData(64)...))

	result, err := scan.New(scan.Options{}).Scan(context.Background(), root)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	if result.Scanned != 2 || result.Skipped != 1 || result.Opaque != 1 {
		t.Errorf("scanned=%d skipped=%d opaque=%d, want 2/1/1", result.Scanned, result.Skipped, result.Opaque)
	}
	if len(result.Files) != 2 {
		t.Fatalf("got %d files, want 2", len(result.Files))
	}
	for _, f := range result.Files {
		if f.InArchive {
			t.Errorf("%s should be fingerprinted as a single file", f.Path)
		}
	}
}

func TestScan_MissingRoot(t *testing.T) {
	t.Parallel()

	_, err := scan.New(scan.Options{}).Scan(context.Background(), filepath.Join(t.TempDir(), "missing"))
	if err == nil {
		t.Error("expected error for missing root")
	}
}

func TestScan_Cancelled(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	for i := range 10 {
		writeFile(t, filepath.Join(root, fmt.Sprintf("%d.bin", i)), testData(i))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := scan.New(scan.Options{Jobs: 1}).Scan(ctx, root)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Scan() error = %v, want context.Canceled", err)
	}
}

func TestScan_SingleFileRoot(t *testing.T) {
	t.Parallel()

	path := writeFile(t, filepath.Join(t.TempDir(), "set.zip"), zipBytes(t, member{"a.bin", testData(5)}))

	result, err := scan.New(scan.Options{}).Scan(context.Background(), path)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(result.Files) != 1 || result.Files[0].Member != "a.bin" {
		t.Errorf("unexpected files %+v", result.Files)
	}
}

func TestEach(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.bin"), testData(1))
	writeFile(t, filepath.Join(root, "b.zip"), zipBytes(t, member{"b1", testData(2)}, member{"b2", testData(3)}))

	var names []string
	err := scan.New(scan.Options{Jobs: 3}).Each(context.Background(), root, func(f scan.File) error {
		names = append(names, f.Location().String())
		return nil
	})
	if err != nil {
		t.Fatalf("Each: %v", err)
	}
	sort.Strings(names)

	want := []string{
		filepath.ToSlash(filepath.Join(root, "a.bin")),
		filepath.ToSlash(filepath.Join(root, "b.zip")) + "/b1",
		filepath.ToSlash(filepath.Join(root, "b.zip")) + "/b2",
	}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("Each visited %v, want %v", names, want)
	}
}

func TestEach_StopsOnError(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.bin"), testData(1))

	stop := errors.New("stop")
	err := scan.New(scan.Options{}).Each(context.Background(), root, func(scan.File) error {
		return stop
	})
	if !errors.Is(err, stop) {
		t.Errorf("Each() error = %v, want %v", err, stop)
	}
}

func TestScanPath(t *testing.T) {
	t.Parallel()

	data := testData(digest.ChunkSize * 2)
	path := writeFile(t, filepath.Join(t.TempDir(), "rom.bin"), data)

	files, err := scan.New(scan.Options{Digests: digest.All}).ScanPath(path)
	if err != nil {
		t.Fatalf("ScanPath: %v", err)
	}
	if len(files) != 1 || files[0].Digests != digest.Bytes(data, 0, digest.All) {
		t.Errorf("unexpected result %+v", files)
	}
}

func TestScanPath_TruncatedStream(t *testing.T) {
	t.Parallel()

	compressed := gzipBytes(t, testData(200000))
	path := writeFile(t, filepath.Join(t.TempDir(), "rom.bin.gz"), compressed[:len(compressed)/2])

	files, err := scan.New(scan.Options{}).ScanPath(path)
	if err == nil {
		t.Fatalf("expected error for truncated gzip, got %+v", files)
	}
}

func TestScan_TruncatedStreamSkipped(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	compressed := gzipBytes(t, testData(200000))
	writeFile(t, filepath.Join(root, "cut.bin.gz"), compressed[:len(compressed)/2])
	writeFile(t, filepath.Join(root, "good.bin"), testData(64))

	result, err := scan.New(scan.Options{}).Scan(context.Background(), root)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if result.Scanned != 1 || result.Skipped != 1 || len(result.Files) != 1 {
		t.Errorf("scanned=%d skipped=%d files=%d, want 1/1/1", result.Scanned, result.Skipped, len(result.Files))
	}
}

func TestScanPath_SevenZipAndRAR(t *testing.T) {
	t.Parallel()

	want := map[string][]byte{
		"rom-a.bin":     []byte("alpha rom payload\n"),
		"sub/rom-b.bin": []byte("bravo!"),
	}

	for _, path := range []string{"../testdata/archive/set.7z", "../testdata/archive/set.rar"} {
		t.Run(filepath.Ext(path), func(t *testing.T) {
			t.Parallel()

			files, err := scan.New(scan.Options{Digests: digest.All}).ScanPath(path)
			if err != nil {
				t.Fatalf("ScanPath: %v", err)
			}
			if len(files) != len(want) {
				t.Fatalf("got %d files, want %d: %+v", len(files), len(want), files)
			}
			for _, f := range files {
				data, ok := want[f.Member]
				if !ok || !f.InArchive {
					t.Errorf("unexpected file %+v", f)
					continue
				}
				if f.Size != int64(len(data)) || f.Digests != digest.Bytes(data, 0, digest.All) {
					t.Errorf("%s: size %d digests %v", f.Member, f.Size, f.Digests)
				}
			}
		})
	}
}
