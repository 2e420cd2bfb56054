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

package catalog_test

import (
	"bytes"
	"crypto/sha1" //nolint:gosec // test reference digest
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ZaparooProject/go-coalesce/catalog"
)

const sampleDAT = `<?xml version="1.0"?>
<!DOCTYPE datafile PUBLIC "-//Logiqx//DTD ROM Management Datafile//EN" "http://www.logiqx.com/Dats/datafile.dtd">
<datafile>
	<header>
		<name>Test Arcade</name>
		<description>Test Arcade (20250101)</description>
		<version>20250101</version>
		<author>tester</author>
		<homepage>example</homepage>
		<url>https://example.invalid/</url>
	</header>
	<game name="parent">
		<description>Parent Game</description>
		<year>1996</year>
		<manufacturer>Acme</manufacturer>
		<rom name="p1.bin" size="4" crc="2144df1c" sha1="2d27e5ef8f0e2b6e1cae7e3c2b19ab7d6e19bf0d"/>
		<rom name="sub\p2.bin" size="16" crc="0000abcd"/>
	</game>
	<game name="clone" cloneof="parent" romof="parent">
		<description>Clone Game</description>
		<rom name="c1.bin" size="1" crc="abcd" md5="0cc175b9c0f1b6a831c399e269772661"/>
		<rom name="bad.bin" size="2" status="nodump"/>
	</game>
	<machine name="bios" isbios="yes" board="B1">
		<description>BIOS</description>
	</machine>
</datafile>
`

func TestParse(t *testing.T) {
	t.Parallel()

	cat, err := catalog.Parse(strings.NewReader(sampleDAT))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	sum := sha1.Sum([]byte(sampleDAT)) //nolint:gosec // reference
	if want := hex.EncodeToString(sum[:]); cat.ID != want {
		t.Errorf("ID = %s, want %s", cat.ID, want)
	}
	if cat.Name != "Test Arcade" || cat.Version != "20250101" || cat.Author != "tester" || cat.URL != "https://example.invalid/" {
		t.Errorf("header not parsed: %+v", cat)
	}
	if len(cat.Games) != 3 {
		t.Fatalf("got %d games, want 3", len(cat.Games))
	}
	if cat.RomCount() != 4 {
		t.Errorf("RomCount() = %d, want 4", cat.RomCount())
	}

	parent := cat.Game("parent")
	if parent == nil || parent.IsClone() || parent.Year != "1996" || parent.Manufacturer != "Acme" {
		t.Fatalf("parent not parsed: %+v", parent)
	}
	if got := parent.Roms[0].Key(); got != "2d27e5ef8f0e2b6e1cae7e3c2b19ab7d6e19bf0d" {
		t.Errorf("p1 key = %s", got)
	}
	if got := parent.Roms[1].EntryName(); got != "sub/p2.bin" {
		t.Errorf("EntryName() = %q", got)
	}
	if parent.Roms[1].Key() != "" || !parent.Roms[1].Matchable() {
		t.Error("CRC-only rom should have no key but be matchable")
	}

	clone := cat.Game("clone")
	if clone == nil || clone.CloneOf != "parent" || clone.RomOf != "parent" {
		t.Fatalf("clone not parsed: %+v", clone)
	}
	if !bytes.Equal(clone.Roms[0].CRC32, []byte{0, 0, 0xab, 0xcd}) {
		t.Errorf("short CRC not padded: %x", clone.Roms[0].CRC32)
	}
	if len(clone.Roms[0].MD5) != 16 {
		t.Errorf("MD5 length = %d", len(clone.Roms[0].MD5))
	}
	if clone.Roms[1].Matchable() {
		t.Error("nodump rom must not be matchable")
	}

	bios := cat.Game("bios")
	if bios == nil || !bios.IsBIOS || bios.Board != "B1" || len(bios.Roms) != 0 {
		t.Errorf("machine element not parsed: %+v", bios)
	}

	if cat.Game("missing") != nil {
		t.Error("Game() should return nil for unknown names")
	}
}

func TestParse_SameDocumentSameID(t *testing.T) {
	t.Parallel()

	first, err := catalog.Parse(strings.NewReader(sampleDAT))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	second, err := catalog.Parse(strings.NewReader(sampleDAT))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	changed, err := catalog.Parse(strings.NewReader(strings.Replace(sampleDAT, "20250101</version>", "20250102</version>", 1)))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if first.ID != second.ID {
		t.Error("identical documents must share an ID")
	}
	if first.ID == changed.ID {
		t.Error("different documents must not share an ID")
	}
}

func TestParse_Malformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		doc  string
		game string
	}{
		{"not xml", "this is not a dat", ""},
		{"wrong root", `<softwarelist name="x"></softwarelist>`, ""},
		{"truncated", `<datafile><game name="a"><rom name="r"`, ""},
		{"empty document", "", ""},
		{"duplicate game", `<datafile><game name="a"/><game name="a"/></datafile>`, "a"},
		{"game without name", `<datafile><game><rom name="r" size="1"/></game></datafile>`, ""},
		{"bad size", `<datafile><game name="a"><rom name="r" size="big"/></game></datafile>`, "a"},
		{"negative size", `<datafile><game name="a"><rom name="r" size="-1"/></game></datafile>`, "a"},
		{"bad sha1", `<datafile><game name="a"><rom name="r" size="1" sha1="xyz"/></game></datafile>`, "a"},
		{"rom without name", `<datafile><game name="a"><rom size="1"/></game></datafile>`, "a"},
		{"rom named parent dir", `<datafile><game name="a"><rom name=".." size="1"/></game></datafile>`, "a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := catalog.Parse(strings.NewReader(tt.doc))
			var malformed catalog.MalformedError
			if !errors.As(err, &malformed) {
				t.Fatalf("expected MalformedError, got %v", err)
			}
			if malformed.Game != tt.game {
				t.Errorf("Game = %q, want %q", malformed.Game, tt.game)
			}
		})
	}
}

func TestRom_EntryName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		want string
	}{
		{"rom.bin", "rom.bin"},
		{"sub\\rom.bin", "sub/rom.bin"},
		{"/abs/rom.bin", "abs/rom.bin"},
		{"../x.bin", "x.bin"},
		{"a/../../../etc/x.bin", "etc/x.bin"},
		{"./a//b.bin", "a/b.bin"},
		{"..", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rom := catalog.Rom{Name: tt.name}
			if got := rom.EntryName(); got != tt.want {
				t.Errorf("EntryName(%q) = %q, want %q", tt.name, got, tt.want)
			}
		})
	}
}

func TestParse_EmptyCatalog(t *testing.T) {
	t.Parallel()

	cat, err := catalog.Parse(strings.NewReader(`<datafile><header><name>Empty</name></header></datafile>`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cat.Name != "Empty" || len(cat.Games) != 0 {
		t.Errorf("unexpected catalog %+v", cat)
	}
}

func TestParse_SelfCloneIsRoot(t *testing.T) {
	t.Parallel()

	cat, err := catalog.Parse(strings.NewReader(`<datafile><game name="a" cloneof="a"/></datafile>`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cat.Games[0].IsClone() {
		t.Error("a game naming itself as parent is a root")
	}
}

func TestParseFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "arcade.dat")
	if err := os.WriteFile(path, []byte(sampleDAT), 0o600); err != nil {
		t.Fatalf("write dat: %v", err)
	}

	cat, err := catalog.ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	if cat.FileName != "arcade.dat" {
		t.Errorf("FileName = %q", cat.FileName)
	}

	if _, err := catalog.ParseFile(filepath.Join(t.TempDir(), "missing.dat")); err == nil {
		t.Error("expected error for missing file")
	}
}
