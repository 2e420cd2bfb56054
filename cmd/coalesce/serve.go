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
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/ZaparooProject/go-coalesce/internal/server"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Accept catalogs over HTTP",
		Long: `Run an HTTP server that ingests DAT documents:

  POST /datfile        body is a Logiqx XML document
  GET  /catalogs       list ingested catalogs
  GET  /catalogs/:ref  show one catalog
  GET  /health`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			gin.SetMode(gin.ReleaseMode)
			router := server.NewRouter(server.NewHandler(st, a.log))

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()
			return server.Serve(ctx, a.cfg.Serve.Addr, router, a.log) //nolint:wrapcheck // server errors carry context
		},
	}
	cmd.Flags().String("addr", "", "listen address (default: serve.addr from config)")
	_ = a.v.BindPFlag("serve.addr", cmd.Flags().Lookup("addr"))
	return cmd
}
