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

package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	coalesce "github.com/ZaparooProject/go-coalesce"
)

// hashRecord is the JSON form of one fingerprinted file.
type hashRecord struct {
	Location string `json:"location"`
	SHA1     string `json:"sha1"`
	CRC32    string `json:"crc32,omitempty"`
	XXH3     string `json:"xxh3,omitempty"`
	MD5      string `json:"md5,omitempty"`
	Size     int64  `json:"size"`
}

func newHashCmd(a *app) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "hash <path>...",
		Short: "Fingerprint files without recording them",
		Long: `Print the digests of a loose file, of every member of a container, or of a
single member addressed as <container>/<member>, e.g. roms/set.zip/rom.bin.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			digests, err := a.digests()
			if err != nil {
				return err
			}
			opts := coalesce.Options{Logger: a.log, Jobs: a.cfg.Jobs, Digests: digests}

			var records []hashRecord
			for _, path := range args {
				files, err := coalesce.Hash(path, opts)
				if err != nil {
					return err //nolint:wrapcheck // already names the path
				}
				for _, f := range files {
					records = append(records, newHashRecord(f))
				}
			}

			if jsonOutput {
				return a.outputJSON(records)
			}
			a.outputText(records)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func newHashRecord(f coalesce.File) hashRecord {
	return hashRecord{
		Location: f.Location().String(),
		Size:     f.Size,
		SHA1:     f.Digests.Key(),
		CRC32:    hex.EncodeToString(f.Digests.CRC32Bytes()),
		XXH3:     hex.EncodeToString(f.Digests.XXH3Bytes()),
		MD5:      hex.EncodeToString(f.Digests.MD5Bytes()),
	}
}

func (a *app) outputJSON(records []hashRecord) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("encoding JSON: %w", err)
	}
	return nil
}

func (a *app) outputText(records []hashRecord) {
	for _, r := range records {
		fmt.Fprintf(a.out, "%s  %10d  %s\n", r.SHA1, r.Size, r.Location)
		if r.CRC32 != "" {
			fmt.Fprintf(a.out, "  crc32: %s\n", r.CRC32)
		}
		if r.XXH3 != "" {
			fmt.Fprintf(a.out, "  xxh3:  %s\n", r.XXH3)
		}
		if r.MD5 != "" {
			fmt.Fprintf(a.out, "  md5:   %s\n", r.MD5)
		}
	}
}
