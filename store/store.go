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

// Package store persists catalogs and scan results in SQLite so that a
// rebuild can run against earlier scans without walking the disk again.
package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/ZaparooProject/go-coalesce/catalog"
	"github.com/ZaparooProject/go-coalesce/digest"
	"github.com/ZaparooProject/go-coalesce/match"
	"github.com/ZaparooProject/go-coalesce/scan"
)

var (
	// ErrNotFound is returned when a catalog reference matches nothing.
	ErrNotFound = errors.New("catalog not found")
	// ErrAmbiguous is returned when a catalog reference matches several catalogs.
	ErrAmbiguous = errors.New("catalog reference is ambiguous")
)

// Store is a SQLite database of catalogs and scanned files.
type Store struct {
	db   *sql.DB
	path string
}

// CatalogInfo summarises a stored catalog.
type CatalogInfo struct {
	IngestedAt time.Time `json:"ingestedAt"`
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Version    string    `json:"version"`
	FileName   string    `json:"fileName"`
	Games      int       `json:"games"`
}

// Open opens or creates the database at path and migrates it to the latest
// schema. path may be ":memory:".
func Open(path string) (*Store, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	if err := migrateUp(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, path: path}, nil
}

// OpenConnection opens a SQLite connection with foreign keys enforced. A
// single connection is used so that ":memory:" databases are shared by every
// query.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	return db, nil
}

// Path returns the database location.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close() //nolint:wrapcheck // Close error passthrough is intentional
}

// SchemaVersion returns the applied migration version.
func (s *Store) SchemaVersion() (uint, error) {
	version, dirty, err := schemaVersion(s.db)
	if err != nil {
		return 0, err
	}
	if dirty {
		return version, fmt.Errorf("database is in dirty state at version %d", version)
	}
	return version, nil
}

// SaveCatalog stores cat, replacing any catalog with the same ID.
func (s *Store) SaveCatalog(ctx context.Context, cat *catalog.Catalog) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM catalogs WHERE id = ?`, cat.ID); err != nil {
			return fmt.Errorf("delete previous catalog: %w", err)
		}

		_, err := tx.ExecContext(ctx, `INSERT INTO catalogs
			(id, name, description, version, author, homepage, url, date, file_name, ingested_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			cat.ID, cat.Name, cat.Description, cat.Version, cat.Author, cat.Homepage, cat.URL,
			cat.Date, cat.FileName, time.Now().UTC().Format(time.RFC3339))
		if err != nil {
			return fmt.Errorf("insert catalog: %w", err)
		}

		gameStmt, err := tx.PrepareContext(ctx, `INSERT INTO games
			(catalog_id, position, name, clone_of, rom_of, description, board, year, manufacturer, is_bios)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare game insert: %w", err)
		}
		defer func() { _ = gameStmt.Close() }()

		romStmt, err := tx.PrepareContext(ctx, `INSERT INTO roms
			(catalog_id, game_name, position, name, size, sha1, crc32, md5, status)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare rom insert: %w", err)
		}
		defer func() { _ = romStmt.Close() }()

		for i := range cat.Games {
			game := &cat.Games[i]
			_, err := gameStmt.ExecContext(ctx, cat.ID, i, game.Name, game.CloneOf, game.RomOf,
				game.Description, game.Board, game.Year, game.Manufacturer, game.IsBIOS)
			if err != nil {
				return fmt.Errorf("insert game %s: %w", game.Name, err)
			}
			for j := range game.Roms {
				rom := &game.Roms[j]
				_, err := romStmt.ExecContext(ctx, cat.ID, game.Name, j, rom.Name, rom.Size,
					nullBytes(rom.SHA1), nullBytes(rom.CRC32), nullBytes(rom.MD5), rom.Status)
				if err != nil {
					return fmt.Errorf("insert rom %s/%s: %w", game.Name, rom.Name, err)
				}
			}
		}
		return nil
	})
}

// Catalog loads the catalog with the given ID.
func (s *Store) Catalog(ctx context.Context, id string) (*catalog.Catalog, error) {
	cat := &catalog.Catalog{}
	err := s.db.QueryRowContext(ctx, `SELECT id, name, description, version, author, homepage, url, date, file_name
		FROM catalogs WHERE id = ?`, id).Scan(
		&cat.ID, &cat.Name, &cat.Description, &cat.Version, &cat.Author, &cat.Homepage, &cat.URL,
		&cat.Date, &cat.FileName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	if err := s.loadGames(ctx, cat); err != nil {
		return nil, err
	}
	if err := s.loadRoms(ctx, cat); err != nil {
		return nil, err
	}
	return cat, nil
}

func (s *Store) loadGames(ctx context.Context, cat *catalog.Catalog) error {
	rows, err := s.db.QueryContext(ctx, `SELECT name, clone_of, rom_of, description, board, year, manufacturer, is_bios
		FROM games WHERE catalog_id = ? ORDER BY position`, cat.ID)
	if err != nil {
		return fmt.Errorf("load games: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var game catalog.Game
		if err := rows.Scan(&game.Name, &game.CloneOf, &game.RomOf, &game.Description, &game.Board,
			&game.Year, &game.Manufacturer, &game.IsBIOS); err != nil {
			return fmt.Errorf("scan game: %w", err)
		}
		cat.Games = append(cat.Games, game)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("load games: %w", err)
	}
	return nil
}

func (s *Store) loadRoms(ctx context.Context, cat *catalog.Catalog) error {
	index := make(map[string]int, len(cat.Games))
	for i := range cat.Games {
		index[cat.Games[i].Name] = i
	}

	rows, err := s.db.QueryContext(ctx, `SELECT game_name, name, size, sha1, crc32, md5, status
		FROM roms WHERE catalog_id = ? ORDER BY game_name, position`, cat.ID)
	if err != nil {
		return fmt.Errorf("load roms: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			gameName string
			rom      catalog.Rom
		)
		if err := rows.Scan(&gameName, &rom.Name, &rom.Size, &rom.SHA1, &rom.CRC32, &rom.MD5, &rom.Status); err != nil {
			return fmt.Errorf("scan rom: %w", err)
		}
		rom.SHA1, rom.CRC32, rom.MD5 = nilIfEmpty(rom.SHA1), nilIfEmpty(rom.CRC32), nilIfEmpty(rom.MD5)

		i, ok := index[gameName]
		if !ok {
			return fmt.Errorf("rom %s references unknown game %s", rom.Name, gameName)
		}
		cat.Games[i].Roms = append(cat.Games[i].Roms, rom)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("load roms: %w", err)
	}
	return nil
}

// Catalogs lists stored catalogs by name.
func (s *Store) Catalogs(ctx context.Context) ([]CatalogInfo, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT c.id, c.name, c.version, c.file_name, c.ingested_at,
			(SELECT COUNT(*) FROM games g WHERE g.catalog_id = c.id)
		FROM catalogs c ORDER BY c.name, c.id`)
	if err != nil {
		return nil, fmt.Errorf("list catalogs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var infos []CatalogInfo
	for rows.Next() {
		var (
			info     CatalogInfo
			ingested string
		)
		if err := rows.Scan(&info.ID, &info.Name, &info.Version, &info.FileName, &ingested, &info.Games); err != nil {
			return nil, fmt.Errorf("scan catalog: %w", err)
		}
		if t, err := time.Parse(time.RFC3339, ingested); err == nil {
			info.IngestedAt = t
		}
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list catalogs: %w", err)
	}
	return infos, nil
}

// FindCatalog resolves ref to a stored catalog. ref may be a full ID, a
// unique ID prefix, a catalog name or the file name it was ingested from.
func (s *Store) FindCatalog(ctx context.Context, ref string) (*catalog.Catalog, error) {
	infos, err := s.Catalogs(ctx)
	if err != nil {
		return nil, err
	}

	var found []string
	for _, info := range infos {
		if info.ID == ref {
			return s.Catalog(ctx, info.ID)
		}
		if strings.HasPrefix(info.ID, strings.ToLower(ref)) || info.Name == ref || info.FileName == ref {
			found = append(found, info.ID)
		}
	}

	switch len(found) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
	case 1:
		return s.Catalog(ctx, found[0])
	default:
		return nil, fmt.Errorf("%w: %s matches %d catalogs", ErrAmbiguous, ref, len(found))
	}
}

// SaveScan records the files found under root, replacing earlier records for
// the same root.
func (s *Store) SaveScan(ctx context.Context, root, runID string, files []scan.File) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM scans WHERE root = ?`, root); err != nil {
			return fmt.Errorf("delete previous scan: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO scans (root, run_id, scanned_at) VALUES (?, ?, ?)`,
			root, runID, time.Now().UTC().Format(time.RFC3339)); err != nil {
			return fmt.Errorf("insert scan: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO files
			(root, path, member, in_archive, size, sha1, xxh3, crc32, md5)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare file insert: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		for i := range files {
			f := &files[i]
			_, err := stmt.ExecContext(ctx, root, f.Path, f.Member, f.InArchive, f.Size,
				f.Digests.SHA1[:], nullBytes(f.Digests.XXH3Bytes()), nullBytes(f.Digests.CRC32Bytes()),
				nullBytes(f.Digests.MD5Bytes()))
			if err != nil {
				return fmt.Errorf("insert file %s: %w", f.Location(), err)
			}
		}
		return nil
	})
}

// Files returns every stored file, sorted by path and member. A file recorded
// under several overlapping roots is returned once.
func (s *Store) Files(ctx context.Context) ([]scan.File, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT path, member, in_archive, size, sha1, xxh3, crc32, md5
		FROM files ORDER BY path, member`)
	if err != nil {
		return nil, fmt.Errorf("load files: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var files []scan.File
	for rows.Next() {
		var (
			f                     scan.File
			sha1, xxh3, crc, md5v []byte
		)
		if err := rows.Scan(&f.Path, &f.Member, &f.InArchive, &f.Size, &sha1, &xxh3, &crc, &md5v); err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		f.Digests = decodeSum(sha1, xxh3, crc, md5v)

		if n := len(files); n > 0 && files[n-1].Path == f.Path && files[n-1].Member == f.Member {
			continue
		}
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load files: %w", err)
	}
	return files, nil
}

// LoadFamilies joins the stored files to the stored catalog with the given
// ID.
func (s *Store) LoadFamilies(ctx context.Context, catalogID string, opts match.Options) ([]match.Family, error) {
	cat, err := s.Catalog(ctx, catalogID)
	if err != nil {
		return nil, err
	}
	files, err := s.Files(ctx)
	if err != nil {
		return nil, err
	}
	return match.Families(cat, files, opts) //nolint:wrapcheck // match errors are typed
}

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// nullBytes stores absent digests as NULL.
func nullBytes(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}

func nilIfEmpty(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return b
}

func decodeSum(sha1, xxh3, crc, md5v []byte) digest.Sum {
	sum := digest.Sum{Set: digest.SHA1}
	copy(sum.SHA1[:], sha1)
	if len(xxh3) == 8 {
		sum.XXH3 = binary.BigEndian.Uint64(xxh3)
		sum.Set |= digest.XXH3
	}
	if len(crc) == 4 {
		sum.CRC32 = binary.BigEndian.Uint32(crc)
		sum.Set |= digest.CRC32
	}
	if len(md5v) == 16 {
		copy(sum.MD5[:], md5v)
		sum.Set |= digest.MD5
	}
	return sum
}
