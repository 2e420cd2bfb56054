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

// Package server exposes catalog ingestion over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/ZaparooProject/go-coalesce/catalog"
	"github.com/ZaparooProject/go-coalesce/store"
)

// MaxDatFileSize bounds the body accepted by POST /datfile.
const MaxDatFileSize = 256 << 20

// Catalogs is the part of the store the handlers use.
type Catalogs interface {
	SaveCatalog(ctx context.Context, cat *catalog.Catalog) error
	Catalogs(ctx context.Context) ([]store.CatalogInfo, error)
	FindCatalog(ctx context.Context, ref string) (*catalog.Catalog, error)
}

// Handler serves the ingest routes.
type Handler struct {
	Store Catalogs
	Log   zerolog.Logger
}

// NewHandler returns a Handler backed by st.
func NewHandler(st Catalogs, log zerolog.Logger) *Handler {
	return &Handler{Store: st, Log: log}
}

// RegisterRoutes mounts the handlers on rg.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/health", h.health)
	rg.POST("/datfile", h.addDatFile)
	rg.GET("/catalogs", h.list)
	rg.GET("/catalogs/:ref", h.getOne)
}

// NewRouter returns an engine with recovery, request logging and the
// handler's routes at the root.
func NewRouter(h *Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(h.Log))
	h.RegisterRoutes(&router.RouterGroup)
	return router
}

// Serve runs router on addr until ctx is cancelled, then shuts down
// gracefully.
func Serve(ctx context.Context, addr string, router http.Handler, log zerolog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func requestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("took", time.Since(start)).
			Msg("request")
	}
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) addDatFile(c *gin.Context) {
	body := http.MaxBytesReader(c.Writer, c.Request.Body, MaxDatFileSize)
	cat, err := catalog.Parse(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		var malformed catalog.MalformedError
		switch {
		case errors.As(err, &tooLarge):
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "datfile too large"})
		case errors.As(err, &malformed):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		}
		return
	}
	cat.FileName = c.Query("filename")

	if err := h.Store.SaveCatalog(c.Request.Context(), cat); err != nil {
		h.Log.Error().Err(err).Str("catalog", cat.Name).Msg("save catalog failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save failed"})
		return
	}
	h.Log.Info().Str("id", cat.ID).Str("catalog", cat.Name).Int("games", len(cat.Games)).Msg("catalog ingested")

	c.JSON(http.StatusCreated, gin.H{
		"id":    cat.ID,
		"name":  cat.Name,
		"games": len(cat.Games),
	})
}

func (h *Handler) list(c *gin.Context) {
	infos, err := h.Store.Catalogs(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}
	if infos == nil {
		infos = []store.CatalogInfo{}
	}
	c.JSON(http.StatusOK, gin.H{"items": infos, "total": len(infos)})
}

func (h *Handler) getOne(c *gin.Context) {
	cat, err := h.Store.FindCatalog(c.Request.Context(), c.Param("ref"))
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	case errors.Is(err, store.ErrAmbiguous):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":       cat.ID,
		"name":     cat.Name,
		"version":  cat.Version,
		"fileName": cat.FileName,
		"games":    len(cat.Games),
		"roms":     cat.RomCount(),
	})
}
