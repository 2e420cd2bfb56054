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

// Package catalog holds the in-memory model of a ROM catalog (a Logiqx DAT
// file): ordered games, the roms each game expects, and the clone-of links
// between games.
//
// A Catalog is immutable once parsed. Its ID is the SHA-1 of the source
// document, so ingesting the same document twice yields the same catalog.
package catalog

import (
	"encoding/hex"
	"path"
	"strings"
)

// StatusNoDump marks a rom that was never dumped. Such roms carry no usable
// digest and are never matched.
const StatusNoDump = "nodump"

// Catalog is a parsed DAT document.
type Catalog struct {
	ID          string // lowercase hex SHA-1 of the source document
	Name        string
	Description string
	Version     string
	Author      string
	Homepage    string
	URL         string
	Date        string
	FileName    string // base name of the document, when read from disk
	Games       []Game
}

// Game is one expected game. Name is unique within its Catalog.
type Game struct {
	Name         string
	CloneOf      string
	RomOf        string
	Description  string
	Board        string
	Year         string
	Manufacturer string
	IsBIOS       bool
	Roms         []Rom
}

// Rom is one file a Game expects. Digests are raw bytes decoded from the
// document's hex; absent digests are nil.
type Rom struct {
	Name   string
	Size   int64
	SHA1   []byte
	CRC32  []byte
	MD5    []byte
	Status string
}

// Game returns the game with the given name, or nil.
func (c *Catalog) Game(name string) *Game {
	for i := range c.Games {
		if c.Games[i].Name == name {
			return &c.Games[i]
		}
	}
	return nil
}

// RomCount returns the number of roms declared across all games.
func (c *Catalog) RomCount() int {
	var n int
	for i := range c.Games {
		n += len(c.Games[i].Roms)
	}
	return n
}

// IsClone reports whether the game declares a parent.
func (g *Game) IsClone() bool {
	return g.CloneOf != ""
}

// Key returns the lowercase hex SHA-1, or "" when the rom has none.
func (r *Rom) Key() string {
	if len(r.SHA1) == 0 {
		return ""
	}
	return hex.EncodeToString(r.SHA1)
}

// Matchable reports whether the rom can be identified by content.
func (r *Rom) Matchable() bool {
	if strings.EqualFold(r.Status, StatusNoDump) {
		return false
	}
	return len(r.SHA1) > 0 || len(r.CRC32) > 0
}

// EntryName returns the declared name with forward slashes, the form used
// for entries in rebuilt archives. The name is cleaned and kept relative, so
// ".." components never climb above the archive root.
func (r *Rom) EntryName() string {
	return strings.TrimPrefix(path.Clean("/"+strings.ReplaceAll(r.Name, "\\", "/")), "/")
}
