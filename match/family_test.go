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

package match_test

import (
	"testing"

	"github.com/ZaparooProject/go-coalesce/catalog"
	"github.com/ZaparooProject/go-coalesce/digest"
	"github.com/ZaparooProject/go-coalesce/match"
	"github.com/ZaparooProject/go-coalesce/scan"
)

// romFor declares a rom whose digests match content.
func romFor(name string, content []byte) catalog.Rom {
	sum := digest.Bytes(content, 0, digest.Default)
	return catalog.Rom{
		Name:  name,
		Size:  int64(len(content)),
		SHA1:  sum.SHA1[:],
		CRC32: sum.CRC32Bytes(),
	}
}

func fileFor(path, member string, content []byte) scan.File {
	return scan.File{
		Path:      path,
		Member:    member,
		InArchive: member != "",
		Size:      int64(len(content)),
		Digests:   digest.Bytes(content, 0, digest.Default),
	}
}

func TestFamilies(t *testing.T) {
	t.Parallel()

	cat := &catalog.Catalog{Games: []catalog.Game{
		{Name: "A", Roms: []catalog.Rom{romFor("a1.bin", []byte("a1")), romFor("a2.bin", []byte("a2"))}},
		{Name: "C", Roms: []catalog.Rom{romFor("c1.bin", []byte("c1"))}},
		{Name: "B", CloneOf: "A", Roms: []catalog.Rom{romFor("b1.bin", []byte("b1"))}},
	}}
	files := []scan.File{
		fileFor("/roms/b1", "", []byte("b1")),
		fileFor("/roms/set.zip", "a1", []byte("a1")),
		fileFor("/roms/c1", "", []byte("c1")),
	}

	families, err := match.Families(cat, files, match.Options{})
	if err != nil {
		t.Fatalf("Families: %v", err)
	}
	if len(families) != 2 {
		t.Fatalf("got %d families, want 2", len(families))
	}

	a := families[0]
	if a.Name() != "A" || len(a.Games) != 2 || a.Games[1].Name != "B" {
		t.Fatalf("family A = %+v", a)
	}
	if a.Expected != 3 || len(a.Matches) != 2 {
		t.Errorf("family A expected=%d matches=%d, want 3/2", a.Expected, len(a.Matches))
	}
	if a.Matches[0].Rom.Name != "a1.bin" || a.Matches[1].Rom.Name != "b1.bin" || a.Matches[1].Game.Name != "B" {
		t.Errorf("matches out of declaration order: %+v", a.Matches)
	}
	if missing := a.Missing(); len(missing) != 1 || missing[0].Rom.Name != "a2.bin" || a.Complete() {
		t.Errorf("Missing() = %+v", missing)
	}

	c := families[1]
	if c.Name() != "C" || len(c.Games) != 1 || !c.Complete() || len(c.Matches) != 1 {
		t.Errorf("family C = %+v", c)
	}

	missing := match.MissingByGame(families)
	if len(missing) != 1 || len(missing["A"]) != 1 || missing["A"][0].Name != "a2.bin" {
		t.Errorf("MissingByGame() = %+v", missing)
	}
}

func TestFamilies_EmptyFamily(t *testing.T) {
	t.Parallel()

	cat := &catalog.Catalog{Games: []catalog.Game{
		{Name: "A", Roms: []catalog.Rom{romFor("a.bin", []byte("a"))}},
	}}

	families, err := match.Families(cat, nil, match.Options{})
	if err != nil {
		t.Fatalf("Families: %v", err)
	}
	if len(families) != 1 || len(families[0].Matches) != 0 || families[0].Expected != 1 {
		t.Errorf("expected one empty family, got %+v", families)
	}
}

func TestFamilies_RejectPolicy(t *testing.T) {
	t.Parallel()

	cat := &catalog.Catalog{Games: []catalog.Game{
		{Name: "A"}, {Name: "B", CloneOf: "A"}, {Name: "C", CloneOf: "B"},
	}}
	if _, err := match.Families(cat, nil, match.Options{Policy: match.PolicyReject}); err == nil {
		t.Error("expected error for clone chain under reject policy")
	}

	families, err := match.Families(cat, nil, match.Options{Policy: match.PolicyFlatten})
	if err != nil {
		t.Fatalf("Families: %v", err)
	}
	if len(families) != 1 || len(families[0].Games) != 3 {
		t.Errorf("flattened families = %+v", families)
	}
}

func TestFamilies_NoDumpNotExpected(t *testing.T) {
	t.Parallel()

	cat := &catalog.Catalog{Games: []catalog.Game{
		{Name: "A", Roms: []catalog.Rom{{Name: "bad.bin", Size: 4, Status: catalog.StatusNoDump}}},
	}}
	families, err := match.Families(cat, nil, match.Options{})
	if err != nil {
		t.Fatalf("Families: %v", err)
	}
	if families[0].Expected != 0 || !families[0].Complete() {
		t.Errorf("nodump roms must not be expected: %+v", families[0])
	}
}
