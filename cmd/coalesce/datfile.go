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
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/ZaparooProject/go-coalesce/catalog"
)

func newAddDatFileCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "add-datfile <path>...",
		Short: "Ingest Logiqx XML catalogs into the database",
		Long: `Parse one or more DAT files and store them. Re-adding a document with the
same contents replaces the stored copy.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			for _, path := range args {
				cat, err := catalog.ParseFile(path)
				if err != nil {
					return fmt.Errorf("parse %s: %w", path, err)
				}
				if err := st.SaveCatalog(cmd.Context(), cat); err != nil {
					return fmt.Errorf("save %s: %w", path, err)
				}
				a.log.Info().Str("id", cat.ID).Str("path", path).Msg("catalog ingested")
				a.ok("%s %s (%d games, %s roms)", cat.Name, shortID(cat.ID),
					len(cat.Games), humanize.Comma(int64(cat.RomCount())))
			}
			return nil
		},
	}
}

func newDatFilesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "datfiles",
		Short: "List ingested catalogs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			infos, err := st.Catalogs(cmd.Context())
			if err != nil {
				return err //nolint:wrapcheck // store errors carry context
			}
			if len(infos) == 0 {
				a.warn("no catalogs ingested yet, run 'coalesce add-datfile'")
				return nil
			}

			tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tVERSION\tGAMES\tADDED")
			for _, info := range infos {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
					shortID(info.ID), info.Name, info.Version, info.Games, humanize.Time(info.IngestedAt))
			}
			return tw.Flush() //nolint:wrapcheck // terminal write
		},
	}
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
