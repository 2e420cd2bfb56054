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
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ZaparooProject/go-coalesce/digest"
	"github.com/ZaparooProject/go-coalesce/internal/config"
	"github.com/ZaparooProject/go-coalesce/internal/logging"
	"github.com/ZaparooProject/go-coalesce/match"
	"github.com/ZaparooProject/go-coalesce/store"
)

// app carries the state shared by every subcommand.
type app struct {
	v          *viper.Viper
	cfg        *config.Config
	out        io.Writer
	errOut     io.Writer
	log        zerolog.Logger
	configPath string
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	a := &app{v: config.New(), out: out, errOut: errOut, log: zerolog.Nop()}

	root := &cobra.Command{
		Use:   "coalesce",
		Short: "Identify ROM files by content and rebuild them into per-game archives",
		Long: `coalesce matches loose files and archive members against DAT catalogs
by SHA-1 and rebuilds each game family into a single zip archive.

Typical use:
  coalesce add-datfile arcade.dat
  coalesce scan ~/incoming
  coalesce rebuild --datfile arcade --destination ~/roms/arcade`,
		Version:       appVersion,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.SetErr(errOut)

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "config file path (default: ~/.config/coalesce/config.yml)")
	flags.String("database", "", "database path")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.Int("jobs", 0, "concurrent workers (default: one per CPU)")
	for key, flag := range map[string]string{
		"database":  "database",
		"log_level": "log-level",
		"jobs":      "jobs",
	} {
		_ = a.v.BindPFlag(key, flags.Lookup(flag))
	}

	root.PersistentPreRunE = func(_ *cobra.Command, _ []string) error {
		return a.load()
	}

	root.AddCommand(
		newAddDatFileCmd(a),
		newDatFilesCmd(a),
		newScanCmd(a),
		newRebuildCmd(a),
		newHashCmd(a),
		newServeCmd(a),
		newConfigCmd(a),
	)
	return root
}

func (a *app) load() error {
	cfg, err := config.Load(a.v, a.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err //nolint:wrapcheck // already names the level
	}
	a.cfg = cfg
	a.log = logging.New(level, a.errOut)
	return nil
}

// openStore opens the configured database, creating its directory.
func (a *app) openStore() (*store.Store, error) {
	path := a.cfg.Database
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	a.log.Debug().Str("path", path).Msg("opened database")
	return st, nil
}

func (a *app) digests() (digest.Set, error) {
	set, err := digest.ParseSet(a.cfg.Digests)
	if err != nil {
		return 0, fmt.Errorf("digests: %w", err)
	}
	return set, nil
}

func (a *app) clonePolicy() (match.ClonePolicy, error) {
	policy, err := match.ParseClonePolicy(a.cfg.ClonePolicy)
	if err != nil {
		return 0, fmt.Errorf("clone_policy: %w", err)
	}
	return policy, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// ok prints a green success line.
func (a *app) ok(format string, args ...any) {
	fmt.Fprintln(a.out, color.GreenString("✓"), fmt.Sprintf(format, args...))
}

// warn prints a yellow warning line.
func (a *app) warn(format string, args ...any) {
	fmt.Fprintln(a.errOut, color.YellowString("!"), fmt.Sprintf(format, args...))
}

// header prints a cyan section heading.
func (a *app) header(format string, args ...any) {
	fmt.Fprintln(a.out, color.CyanString(fmt.Sprintf(format, args...)))
}
