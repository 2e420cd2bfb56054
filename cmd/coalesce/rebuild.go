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
	"errors"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ZaparooProject/go-coalesce/catalog"
	"github.com/ZaparooProject/go-coalesce/internal/config"
	"github.com/ZaparooProject/go-coalesce/match"
	"github.com/ZaparooProject/go-coalesce/rebuild"
)

func newRebuildCmd(a *app) *cobra.Command {
	var (
		datfile     string
		destination string
		fixdat      string
		dryRun      bool
		skipVerify  bool
	)

	cmd := &cobra.Command{
		Use:   "rebuild",
		Short: "Write one zip archive per game family from matched files",
		Long: `Join the recorded scans to a catalog, group games with their clones and
write each family with at least one match to <destination>/<game>.zip.
Roms nobody has can be written to a fixdat for later acquisition.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if destination == "" {
				destination = a.cfg.Destination
			}
			destination = config.ExpandHome(destination)
			if destination == "" && !dryRun {
				return errors.New("no destination: pass --destination or set destination in the config")
			}
			policy, err := a.clonePolicy()
			if err != nil {
				return err
			}

			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			cat, err := st.FindCatalog(ctx, datfile)
			if err != nil {
				return err //nolint:wrapcheck // store errors name the reference
			}
			families, err := st.LoadFamilies(ctx, cat.ID, match.Options{Policy: policy})
			if err != nil {
				return err //nolint:wrapcheck // store errors carry context
			}

			writer := rebuild.New(rebuild.Options{
				Logger:     a.log,
				Jobs:       a.cfg.Jobs,
				DryRun:     dryRun,
				SkipVerify: skipVerify,
			})
			summary, runErr := writer.All(ctx, families, destination)
			if summary != nil {
				a.printSummary(cat, summary, dryRun)
			}
			if runErr != nil {
				return runErr //nolint:wrapcheck // rebuild errors carry context
			}

			if fixdat != "" {
				if err := writeFixDat(fixdat, cat, families); err != nil {
					return err
				}
				a.ok("fixdat written to %s", fixdat)
			}
			if summary.Failed > 0 {
				return fmt.Errorf("%d families failed to rebuild", summary.Failed)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&datfile, "datfile", "", "catalog ID, ID prefix, name or file name")
	cmd.Flags().StringVar(&destination, "destination", "", "output directory (default: destination from config)")
	cmd.Flags().StringVar(&fixdat, "fixdat", "", "write missing roms to this DAT file")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the plan without writing anything")
	cmd.Flags().BoolVar(&skipVerify, "skip-verify", false, "do not re-hash copied roms")
	_ = cmd.MarkFlagRequired("datfile")
	return cmd
}

func (a *app) printSummary(cat *catalog.Catalog, summary *rebuild.Summary, dryRun bool) {
	if dryRun {
		a.header("Plan for %s", cat.Name)
		for _, result := range summary.Results {
			if result.Skipped {
				continue
			}
			var size uint64
			for _, entry := range result.Entries {
				size += uint64(entry.Size) //nolint:gosec // sizes are non-negative
			}
			fmt.Fprintf(a.out, "  %s  %d entries, %s\n", result.Path, len(result.Entries), humanize.Bytes(size))
			for _, entry := range result.Entries {
				fmt.Fprintf(a.out, "    %s <- %s\n", entry.Name, entry.Source)
			}
		}
	}

	verb := "written"
	if dryRun {
		verb = "planned"
	}
	a.ok("%s archives %s, %s entries", humanize.Comma(int64(summary.Written)), verb,
		humanize.Comma(int64(summary.Entries)))
	if summary.Skipped > 0 {
		fmt.Fprintf(a.out, "  %s families with no matches\n", humanize.Comma(int64(summary.Skipped)))
	}
	if summary.Missing > 0 {
		a.warn("%s roms missing", humanize.Comma(int64(summary.Missing)))
	}
	if summary.Failed > 0 {
		fmt.Fprintln(a.errOut, color.RedString("✗"), fmt.Sprintf("%d families failed", summary.Failed))
	}
}

func writeFixDat(path string, cat *catalog.Catalog, families []match.Family) error {
	f, err := os.Create(path) //nolint:gosec // path chosen by the user
	if err != nil {
		return fmt.Errorf("create fixdat: %w", err)
	}
	if err := catalog.WriteFixDat(f, cat, match.MissingByGame(families)); err != nil {
		_ = f.Close()
		return fmt.Errorf("write fixdat: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close fixdat: %w", err)
	}
	return nil
}
