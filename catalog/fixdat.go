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
	"encoding/hex"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
)

const fixDatDoctype = `<!DOCTYPE datafile PUBLIC "-//Logiqx//DTD ROM Management Datafile//EN" "http://www.logiqx.com/Dats/datafile.dtd">`

type fixDatFile struct {
	XMLName xml.Name     `xml:"datafile"`
	Header  fixDatHeader `xml:"header"`
	Games   []fixDatGame `xml:"game"`
}

type fixDatHeader struct {
	Name        string `xml:"name"`
	Description string `xml:"description"`
	Version     string `xml:"version,omitempty"`
	Author      string `xml:"author,omitempty"`
}

type fixDatGame struct {
	Name        string      `xml:"name,attr"`
	CloneOf     string      `xml:"cloneof,attr,omitempty"`
	Description string      `xml:"description"`
	Roms        []fixDatRom `xml:"rom"`
}

type fixDatRom struct {
	Name string `xml:"name,attr"`
	Size string `xml:"size,attr"`
	CRC  string `xml:"crc,attr,omitempty"`
	MD5  string `xml:"md5,attr,omitempty"`
	SHA1 string `xml:"sha1,attr,omitempty"`
}

// WriteFixDat writes a Logiqx document listing only the roms in missing,
// keyed by game name. Games appear in catalog order; games with nothing
// missing are left out.
func WriteFixDat(w io.Writer, cat *Catalog, missing map[string][]Rom) error {
	doc := fixDatFile{
		Header: fixDatHeader{
			Name:        "fix_" + cat.Name,
			Description: "Missing roms for " + nonEmpty(cat.Description, cat.Name),
			Version:     cat.Version,
			Author:      cat.Author,
		},
	}

	for i := range cat.Games {
		game := &cat.Games[i]
		roms := missing[game.Name]
		if len(roms) == 0 {
			continue
		}

		fixGame := fixDatGame{
			Name:        game.Name,
			CloneOf:     game.CloneOf,
			Description: nonEmpty(game.Description, game.Name),
			Roms:        make([]fixDatRom, 0, len(roms)),
		}
		for _, rom := range roms {
			fixGame.Roms = append(fixGame.Roms, fixDatRom{
				Name: rom.Name,
				Size: strconv.FormatInt(rom.Size, 10),
				CRC:  hex.EncodeToString(rom.CRC32),
				MD5:  hex.EncodeToString(rom.MD5),
				SHA1: hex.EncodeToString(rom.SHA1),
			})
		}
		doc.Games = append(doc.Games, fixGame)
	}

	if _, err := io.WriteString(w, xml.Header+fixDatDoctype+"\n"); err != nil {
		return fmt.Errorf("write fixdat header: %w", err)
	}
	encoder := xml.NewEncoder(w)
	encoder.Indent("", "\t")
	if err := encoder.Encode(doc); err != nil {
		return fmt.Errorf("encode fixdat: %w", err)
	}
	if _, err := io.WriteString(w, "\n"); err != nil {
		return fmt.Errorf("write fixdat: %w", err)
	}
	return nil
}

func nonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
