package server

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/nykw2002/elements/config"
	"github.com/nykw2002/elements/internal/store"
)

type FilesHandler struct {
	Store   *store.Store
	Uploads config.UploadsConfig
}

func (h *FilesHandler) Register(g *echo.Group) {
	g.POST("/upload", h.upload)
	g.GET("", h.list)
	g.GET("/:id", h.download)
	g.DELETE("/:id", h.delete)
}

func (h *FilesHandler) allowedExtension(filename string) (string, bool) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if ext == "" {
		return "", false
	}
	for _, allowed := range h.Uploads.AllowedExtensions {
		if ext == allowed {
			return ext, true
		}
	}
	return "", false
}

// upload stores one or more files on disk under generated names and records
// their metadata. Files land unattached unless element_id is provided.
func (h *FilesHandler) upload(c echo.Context) error {
	ctx := c.Request().Context()
	form, err := c.MultipartForm()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	uploads := form.File["files"]
	if len(uploads) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "at least one file is required")
	}

	var elementID *string
	if v := c.FormValue("element_id"); v != "" {
		elementID = &v
	}

	var out []FileResponse
	for _, fh := range uploads {
		ext, ok := h.allowedExtension(fh.Filename)
		if !ok {
			return echo.NewHTTPError(http.StatusBadRequest,
				fmt.Sprintf("Invalid file type for %s. Allowed types: %s", fh.Filename, strings.Join(h.Uploads.AllowedExtensions, ", ")))
		}
		if fh.Size > h.Uploads.MaxSize {
			return echo.NewHTTPError(http.StatusBadRequest,
				fmt.Sprintf("File %s is too large. Maximum size: %dMB", fh.Filename, h.Uploads.MaxSize/(1024*1024)))
		}

		unique := uuid.NewString() + "." + ext
		dst := filepath.Join(h.Uploads.Dir, unique)
		if err := saveUpload(fh, dst); err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("saving %s: %v", fh.Filename, err))
		}

		contentType := fh.Header.Get("Content-Type")
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		rec, err := h.Store.CreateFile(ctx, store.File{
			Filename:         unique,
			OriginalFilename: fh.Filename,
			Path:             dst,
			Size:             fh.Size,
			ContentType:      contentType,
			ElementID:        elementID,
		})
		if err != nil {
			_ = os.Remove(dst)
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		out = append(out, toFileResponse(rec))
	}
	return c.JSON(http.StatusOK, out)
}

func saveUpload(fh *multipart.FileHeader, dst string) error {
	src, err := fh.Open()
	if err != nil {
		return err
	}
	defer src.Close()
	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, src); err != nil {
		f.Close()
		_ = os.Remove(dst)
		return err
	}
	return f.Close()
}

func (h *FilesHandler) list(c echo.Context) error {
	items, err := h.Store.ListFiles(c.Request().Context(), c.QueryParam("element_id"), intQuery(c, "skip", 0), intQuery(c, "limit", 100))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	out := make([]FileResponse, len(items))
	for i, f := range items {
		out[i] = toFileResponse(f)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *FilesHandler) download(c echo.Context) error {
	f, err := h.Store.GetFile(c.Request().Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "File not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if _, err := os.Stat(f.Path); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "File not found on disk")
	}
	c.Response().Header().Set(echo.HeaderContentType, f.ContentType)
	return c.Attachment(f.Path, f.OriginalFilename)
}

// delete removes the file from disk and its metadata row. A missing disk
// file is not an error; the row still goes.
func (h *FilesHandler) delete(c echo.Context) error {
	ctx := c.Request().Context()
	f, err := h.Store.GetFile(ctx, c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "File not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if err := os.Remove(f.Path); err != nil && !os.IsNotExist(err) {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if err := h.Store.DeleteFile(ctx, f.ID); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "File deleted successfully"})
}
