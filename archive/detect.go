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
	"fmt"
	"io"

	"github.com/gabriel-vasile/mimetype"
)

// containerTypes maps detected MIME types to readable container kinds.
var containerTypes = []struct {
	mime string
	kind Kind
}{
	{"application/zip", KindZip},
	{"application/x-7z-compressed", KindSevenZip},
	{"application/x-rar-compressed", KindRAR},
	{"application/x-tar", KindTar},
	{"application/gzip", KindGzip},
	{"application/x-xz", KindXZ},
	{"application/zstd", KindZstd},
}

// unsupportedTypes are archive formats that are recognised but have no
// reader. The scanner fingerprints them whole.
var unsupportedTypes = []string{
	"application/x-bzip2",
	"application/vnd.ms-cab-compressed",
	"application/lzip",
	"application/x-cpio",
	"application/x-archive",
	"application/x-lzh-compressed",
	"application/x-ace-compressed",
	"application/x-arj",
}

// Classify sniffs the content of the file at path and reports its container
// kind. File names and extensions are never consulted.
func Classify(path string) (Kind, error) {
	mime, err := mimetype.DetectFile(path)
	if err != nil {
		return KindNone, fmt.Errorf("detect content type: %w", err)
	}
	return kindOf(mime), nil
}

// ClassifyReader is Classify for content that is not on disk.
func ClassifyReader(r io.Reader) (Kind, error) {
	mime, err := mimetype.DetectReader(r)
	if err != nil {
		return KindNone, fmt.Errorf("detect content type: %w", err)
	}
	return kindOf(mime), nil
}

// kindOf walks from the detected type towards the root so that formats built
// on ZIP (jar, apk and similar) are still read as ZIP.
func kindOf(mime *mimetype.MIME) Kind {
	for m := mime; m != nil; m = m.Parent() {
		for _, ct := range containerTypes {
			if m.Is(ct.mime) {
				return ct.kind
			}
		}
		for _, unsupported := range unsupportedTypes {
			if m.Is(unsupported) {
				return KindUnsupported
			}
		}
	}
	return KindNone
}
