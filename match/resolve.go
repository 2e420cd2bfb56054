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

// Package match joins scan results to a catalog by content digest and groups
// the matches into families: a root game and all of its clones.
package match

import (
	"fmt"

	"github.com/ZaparooProject/go-coalesce/catalog"
)

// ClonePolicy decides how clone-of links that point at another clone are
// treated.
type ClonePolicy int

const (
	// PolicyFlatten follows clone-of links to the end of the chain. Games on
	// a cycle resolve to the lexicographically smallest name on the cycle.
	PolicyFlatten ClonePolicy = iota
	// PolicyReject fails on any clone whose parent is itself a clone.
	PolicyReject
)

func (p ClonePolicy) String() string {
	switch p {
	case PolicyFlatten:
		return "flatten"
	case PolicyReject:
		return "reject"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// ParseClonePolicy parses "flatten" or "reject". An empty value is flatten.
func ParseClonePolicy(value string) (ClonePolicy, error) {
	switch value {
	case "", "flatten":
		return PolicyFlatten, nil
	case "reject":
		return PolicyReject, nil
	default:
		return 0, fmt.Errorf("unknown clone policy %q", value)
	}
}

// CloneChainError reports a clone whose parent is also a clone.
type CloneChainError struct {
	Game    string
	CloneOf string
}

func (e CloneChainError) Error() string {
	return fmt.Sprintf("game %q is a clone of %q, which is itself a clone", e.Game, e.CloneOf)
}

// ResolveRoots maps every game name to the name of its root. A game whose
// clone-of is empty or names no game in the list is its own root. The result
// depends only on the set of names and links, not on their order.
func ResolveRoots(games []catalog.Game, policy ClonePolicy) (map[string]string, error) {
	parents := make(map[string]string, len(games))
	for i := range games {
		parents[games[i].Name] = games[i].CloneOf
	}
	parentOf := func(name string) string {
		parent := parents[name]
		if parent == name {
			return ""
		}
		if _, ok := parents[parent]; !ok {
			return ""
		}
		return parent
	}

	roots := make(map[string]string, len(games))

	if policy == PolicyReject {
		for i := range games {
			name := games[i].Name
			parent := parentOf(name)
			if parent != "" && parentOf(parent) != "" {
				return nil, CloneChainError{Game: name, CloneOf: parent}
			}
			if parent == "" {
				roots[name] = name
			} else {
				roots[name] = parent
			}
		}
		return roots, nil
	}

	for i := range games {
		resolveChain(games[i].Name, parentOf, roots)
	}
	return roots, nil
}

// resolveChain follows clone-of links from name, recording the root of every
// game on the way.
func resolveChain(name string, parentOf func(string) string, roots map[string]string) {
	if _, done := roots[name]; done {
		return
	}

	var path []string
	onPath := make(map[string]int)
	current := name
	var root string

	for {
		if resolved, done := roots[current]; done {
			root = resolved
			break
		}
		if at, seen := onPath[current]; seen {
			root = smallest(path[at:])
			break
		}
		onPath[current] = len(path)
		path = append(path, current)

		parent := parentOf(current)
		if parent == "" {
			root = current
			break
		}
		current = parent
	}

	for _, visited := range path {
		roots[visited] = root
	}
}

func smallest(names []string) string {
	least := names[0]
	for _, name := range names[1:] {
		if name < least {
			least = name
		}
	}
	return least
}
