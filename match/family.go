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

package match

import (
	"github.com/ZaparooProject/go-coalesce/catalog"
	"github.com/ZaparooProject/go-coalesce/scan"
)

// Options configure Families.
type Options struct {
	Policy ClonePolicy
}

// Match pairs an expected rom with the file that satisfies it.
type Match struct {
	Rom  *catalog.Rom
	Game *catalog.Game
	File scan.File
}

// Wanted is an expected rom and the game that declares it.
type Wanted struct {
	Rom  *catalog.Rom
	Game *catalog.Game
}

// Family is a root game, its clones and every match among their roms. It is
// the unit of output: one rebuilt archive per family.
type Family struct {
	Root     *catalog.Game
	Games    []*catalog.Game // root first, then clones in catalog order
	Matches  []Match         // in rom declaration order
	Expected int             // matchable roms declared across Games
	missing  []Wanted
}

// Name returns the root game's name.
func (f *Family) Name() string {
	return f.Root.Name
}

// Missing lists the expected roms that have no match, in declaration order.
func (f *Family) Missing() []Wanted {
	return f.missing
}

// Complete reports whether every expected rom was matched.
func (f *Family) Complete() bool {
	return len(f.missing) == 0
}

// Families resolves clone links, joins files to the catalog's roms and
// returns one Family per root in catalog order. Every root yields a Family,
// even when nothing matched. Roms marked nodump are not expected.
func Families(cat *catalog.Catalog, files []scan.File, opts Options) ([]Family, error) {
	return FamiliesFromIndex(cat, Index(files), opts)
}

// FamiliesFromIndex is Families over a prebuilt index.
func FamiliesFromIndex(cat *catalog.Catalog, ix *FileIndex, opts Options) ([]Family, error) {
	roots, err := ResolveRoots(cat.Games, opts.Policy)
	if err != nil {
		return nil, err
	}

	families := make([]Family, 0, len(cat.Games))
	position := make(map[string]int)
	for i := range cat.Games {
		game := &cat.Games[i]
		if roots[game.Name] != game.Name {
			continue
		}
		position[game.Name] = len(families)
		families = append(families, Family{Root: game, Games: []*catalog.Game{game}})
	}
	for i := range cat.Games {
		game := &cat.Games[i]
		root := roots[game.Name]
		if root == game.Name {
			continue
		}
		fam := &families[position[root]]
		fam.Games = append(fam.Games, game)
	}

	for i := range families {
		fam := &families[i]
		for _, game := range fam.Games {
			for j := range game.Roms {
				rom := &game.Roms[j]
				if !rom.Matchable() {
					continue
				}
				fam.Expected++
				file, ok := ix.Lookup(rom)
				if !ok {
					fam.missing = append(fam.missing, Wanted{Rom: rom, Game: game})
					continue
				}
				fam.Matches = append(fam.Matches, Match{Rom: rom, Game: game, File: file})
			}
		}
	}
	return families, nil
}

// MissingByGame collects the unmatched roms of families keyed by game name,
// the shape catalog.WriteFixDat expects.
func MissingByGame(families []Family) map[string][]catalog.Rom {
	missing := make(map[string][]catalog.Rom)
	for i := range families {
		for _, want := range families[i].missing {
			missing[want.Game.Name] = append(missing[want.Game.Name], *want.Rom)
		}
	}
	return missing
}
