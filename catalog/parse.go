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

package catalog

import (
	"bytes"
	"crypto/sha1" //nolint:gosec // document identity, not a security primitive
	"encoding/hex"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

type xmlHeader struct {
	Name        string `xml:"name"`
	Description string `xml:"description"`
	Version     string `xml:"version"`
	Date        string `xml:"date"`
	Author      string `xml:"author"`
	Homepage    string `xml:"homepage"`
	URL         string `xml:"url"`
}

type xmlRom struct {
	Name   string `xml:"name,attr"`
	Size   string `xml:"size,attr"`
	CRC    string `xml:"crc,attr"`
	MD5    string `xml:"md5,attr"`
	SHA1   string `xml:"sha1,attr"`
	Status string `xml:"status,attr"`
}

type xmlGame struct {
	Name         string   `xml:"name,attr"`
	CloneOf      string   `xml:"cloneof,attr"`
	RomOf        string   `xml:"romof,attr"`
	IsBIOS       string   `xml:"isbios,attr"`
	Board        string   `xml:"board,attr"`
	Description  string   `xml:"description"`
	Year         string   `xml:"year"`
	Manufacturer string   `xml:"manufacturer"`
	Roms         []xmlRom `xml:"rom"`
}

// rootElements are the document elements accepted as a catalog.
var rootElements = map[string]bool{
	"datafile": true,
	"mame":     true,
}

// ParseFile parses the Logiqx DAT document at path. FileName is set to the
// document's base name.
func ParseFile(path string) (*Catalog, error) {
	f, err := os.Open(path) //nolint:gosec // User-provided path is expected
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer func() { _ = f.Close() }()

	cat, err := Parse(f)
	if err != nil {
		return nil, err
	}
	cat.FileName = filepath.Base(path)
	return cat, nil
}

// Parse reads a Logiqx DAT document. Both <game> and <machine> elements are
// accepted. Schema violations are reported as MalformedError.
func Parse(r io.Reader) (*Catalog, error) {
	doc, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	id := sha1.Sum(doc) //nolint:gosec // document identity

	cat := &Catalog{ID: hex.EncodeToString(id[:])}
	seen := make(map[string]bool)
	decoder := xml.NewDecoder(bytes.NewReader(doc))
	var rootSeen bool

	for {
		token, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, MalformedError{Reason: "invalid XML", Err: err}
		}

		elem, ok := token.(xml.StartElement)
		if !ok {
			continue
		}

		if !rootSeen {
			if !rootElements[elem.Name.Local] {
				return nil, MalformedError{Reason: fmt.Sprintf("unexpected root element <%s>", elem.Name.Local)}
			}
			rootSeen = true
			continue
		}

		switch elem.Name.Local {
		case "header":
			var header xmlHeader
			if err := decoder.DecodeElement(&header, &elem); err != nil {
				return nil, MalformedError{Reason: "invalid header", Err: err}
			}
			applyHeader(cat, header)

		case "game", "machine":
			var raw xmlGame
			if err := decoder.DecodeElement(&raw, &elem); err != nil {
				return nil, MalformedError{Reason: "invalid game", Err: err}
			}
			game, err := convertGame(raw)
			if err != nil {
				return nil, err
			}
			if seen[game.Name] {
				return nil, MalformedError{Game: game.Name, Reason: "duplicate game name"}
			}
			seen[game.Name] = true
			cat.Games = append(cat.Games, game)

		default:
			if err := decoder.Skip(); err != nil {
				return nil, MalformedError{Reason: "invalid XML", Err: err}
			}
		}
	}

	if !rootSeen {
		return nil, MalformedError{Reason: "no datafile element"}
	}
	return cat, nil
}

func applyHeader(cat *Catalog, header xmlHeader) {
	cat.Name = strings.TrimSpace(header.Name)
	cat.Description = strings.TrimSpace(header.Description)
	cat.Version = strings.TrimSpace(header.Version)
	cat.Date = strings.TrimSpace(header.Date)
	cat.Author = strings.TrimSpace(header.Author)
	cat.Homepage = strings.TrimSpace(header.Homepage)
	cat.URL = strings.TrimSpace(header.URL)
}

func convertGame(raw xmlGame) (Game, error) {
	if raw.Name == "" {
		return Game{}, MalformedError{Reason: "game without a name"}
	}

	game := Game{
		Name:         raw.Name,
		CloneOf:      raw.CloneOf,
		RomOf:        raw.RomOf,
		Description:  strings.TrimSpace(raw.Description),
		Board:        raw.Board,
		Year:         strings.TrimSpace(raw.Year),
		Manufacturer: strings.TrimSpace(raw.Manufacturer),
		IsBIOS:       raw.IsBIOS == "yes",
		Roms:         make([]Rom, 0, len(raw.Roms)),
	}
	if game.CloneOf == game.Name {
		game.CloneOf = ""
	}

	for _, rawRom := range raw.Roms {
		rom, err := convertRom(rawRom)
		if err != nil {
			return Game{}, MalformedError{Game: raw.Name, Reason: err.Error()}
		}
		game.Roms = append(game.Roms, rom)
	}
	return game, nil
}

func convertRom(raw xmlRom) (Rom, error) {
	if raw.Name == "" {
		return Rom{}, errors.New("rom without a name")
	}

	rom := Rom{Name: raw.Name, Status: raw.Status}
	if rom.EntryName() == "" {
		return Rom{}, fmt.Errorf("rom %q: name has no file component", raw.Name)
	}
	if raw.Size != "" {
		size, err := strconv.ParseInt(strings.TrimSpace(raw.Size), 10, 64)
		if err != nil || size < 0 {
			return Rom{}, fmt.Errorf("rom %q: invalid size %q", raw.Name, raw.Size)
		}
		rom.Size = size
	}

	var err error
	if rom.SHA1, err = decodeDigest(raw.SHA1, sha1.Size); err != nil {
		return Rom{}, fmt.Errorf("rom %q: sha1: %w", raw.Name, err)
	}
	if rom.CRC32, err = decodeDigest(raw.CRC, 4); err != nil {
		return Rom{}, fmt.Errorf("rom %q: crc: %w", raw.Name, err)
	}
	if rom.MD5, err = decodeDigest(raw.MD5, 16); err != nil {
		return Rom{}, fmt.Errorf("rom %q: md5: %w", raw.Name, err)
	}
	return rom, nil
}

// decodeDigest decodes a hex digest of exactly size bytes. Short CRCs with
// leading zeros dropped are padded.
func decodeDigest(value string, size int) ([]byte, error) {
	value = strings.TrimSpace(value)
	if value == "" || value == "-" {
		return nil, nil
	}
	if len(value) < size*2 && size == 4 {
		value = strings.Repeat("0", size*2-len(value)) + value
	}
	if len(value) != size*2 {
		return nil, fmt.Errorf("expected %d hex digits, got %q", size*2, value)
	}
	decoded, err := hex.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("invalid hex %q", value)
	}
	return decoded, nil
}
