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
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/ZaparooProject/go-coalesce/scan"
)

func newScanCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "scan <dir>...",
		Short: "Fingerprint files and archive members and record them",
		Long: `Walk each directory, fingerprint every loose file and every member of
zip, 7z, RAR, tar, gzip, xz and zstd containers, and record the results.
Scanning a directory again replaces its earlier records.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			digests, err := a.digests()
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

			scanner := scan.New(scan.Options{
				Logger:  a.log,
				Jobs:    a.cfg.Jobs,
				Digests: digests,
			})

			for _, dir := range args {
				root, err := filepath.Abs(dir)
				if err != nil {
					return fmt.Errorf("resolve %s: %w", dir, err)
				}
				result, err := scanner.Scan(ctx, root)
				if err != nil {
					return fmt.Errorf("scan %s: %w", root, err)
				}
				if err := st.SaveScan(ctx, root, result.RunID, result.Files); err != nil {
					return fmt.Errorf("record scan of %s: %w", root, err)
				}

				var total uint64
				for _, f := range result.Files {
					total += uint64(f.Size) //nolint:gosec // sizes are non-negative
				}
				a.ok("%s: %s files (%s) from %d paths", root,
					humanize.Comma(int64(len(result.Files))), humanize.Bytes(total), result.Scanned)
				if result.Skipped > 0 {
					a.warn("%d paths could not be read", result.Skipped)
				}
				if result.Opaque > 0 {
					a.warn("%d unsupported archives were fingerprinted whole", result.Opaque)
				}
			}
			return nil
		},
	}
}
