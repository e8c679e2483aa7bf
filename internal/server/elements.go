package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/nykw2002/elements/config"
	"github.com/nykw2002/elements/internal/analysis"
	"github.com/nykw2002/elements/internal/extract"
	"github.com/nykw2002/elements/internal/store"
)

// fileSeparator joins multiple uploaded documents into the single content
// block an analysis run operates on.
const fileSeparator = "\n\n--- FILE SEPARATOR ---\n\n"

// Analyzer runs one analysis query to completion.
type Analyzer interface {
	Analyze(ctx context.Context, q analysis.Query) (string, error)
}

type ElementsHandler struct {
	Store     *store.Store
	Engine    Analyzer
	Extractor *extract.Extractor
	Uploads   config.UploadsConfig
}

func (h *ElementsHandler) Register(g *echo.Group) {
	g.GET("", h.list)
	g.POST("", h.create)
	g.GET("/:id", h.get)
	g.PUT("/:id", h.update)
	g.DELETE("/:id", h.delete)
	g.POST("/:id/validate", h.validate)
	g.POST("/:id/analyze", h.analyze)
}

func validMethod(m string) bool {
	switch m {
	case store.MethodReasoning, store.MethodExtraction, store.MethodDirect:
		return true
	}
	return false
}

func intQuery(c echo.Context, name string, def int) int {
	raw := c.QueryParam(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return def
	}
	return v
}

func (h *ElementsHandler) list(c echo.Context) error {
	items, err := h.Store.ListElements(c.Request().Context(), intQuery(c, "skip", 0), intQuery(c, "limit", 100))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	out := make([]ElementResponse, len(items))
	for i, e := range items {
		out[i] = toElementResponse(e)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *ElementsHandler) create(c echo.Context) error {
	var req struct {
		Name        string   `json:"name"`
		Prompt      string   `json:"prompt"`
		AIModel     string   `json:"ai_model"`
		Method      *string  `json:"method"`
		FileType    string   `json:"file_type"`
		DataSources []string `json:"data_sources"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Name == "" || req.Prompt == "" || req.AIModel == "" || req.FileType == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name, prompt, ai_model and file_type are required")
	}
	if req.Method != nil && !validMethod(*req.Method) {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("invalid method %q", *req.Method))
	}
	elem, err := h.Store.CreateElement(c.Request().Context(), store.Element{
		Name:        req.Name,
		Prompt:      req.Prompt,
		AIModel:     req.AIModel,
		Method:      req.Method,
		FileType:    req.FileType,
		DataSources: req.DataSources,
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, toElementResponse(elem))
}

func (h *ElementsHandler) get(c echo.Context) error {
	elem, err := h.Store.GetElement(c.Request().Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "Element not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, toElementResponse(elem))
}

// update merges the provided fields into the stored element. Editing a
// validated element reverts it to draft.
func (h *ElementsHandler) update(c echo.Context) error {
	ctx := c.Request().Context()
	elem, err := h.Store.GetElement(ctx, c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "Element not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	var req struct {
		Name        *string  `json:"name"`
		Prompt      *string  `json:"prompt"`
		AIModel     *string  `json:"ai_model"`
		Method      *string  `json:"method"`
		FileType    *string  `json:"file_type"`
		DataSources []string `json:"data_sources"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Name != nil {
		elem.Name = *req.Name
	}
	if req.Prompt != nil {
		elem.Prompt = *req.Prompt
	}
	if req.AIModel != nil {
		elem.AIModel = *req.AIModel
	}
	if req.Method != nil {
		if !validMethod(*req.Method) {
			return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("invalid method %q", *req.Method))
		}
		elem.Method = req.Method
	}
	if req.FileType != nil {
		elem.FileType = *req.FileType
	}
	if req.DataSources != nil {
		elem.DataSources = req.DataSources
	}

	elem, err = h.Store.UpdateElement(ctx, elem)
	if errors.Is(err, store.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "Element not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, toElementResponse(elem))
}

func (h *ElementsHandler) delete(c echo.Context) error {
	err := h.Store.DeleteElement(c.Request().Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "Element not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Element deleted successfully"})
}

func (h *ElementsHandler) validate(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")
	if err := h.Store.SetElementStatus(ctx, id, store.StatusValidated); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Element not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	elem, err := h.Store.GetElement(ctx, id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, toElementResponse(elem))
}

// analyze runs the element's configured analysis over uploaded documents.
func (h *ElementsHandler) analyze(c echo.Context) error {
	ctx := c.Request().Context()
	elem, err := h.Store.GetElement(ctx, c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "Element not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if elem.Method == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "element has no analysis method configured")
	}

	form, err := c.MultipartForm()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	uploads := form.File["files"]
	if len(uploads) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "at least one file is required")
	}

	var parts []string
	for _, fh := range uploads {
		if fh.Size > h.Uploads.MaxSize {
			return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("File %s is too large. Maximum size: %dMB", fh.Filename, h.Uploads.MaxSize/(1024*1024)))
		}
		src, err := fh.Open()
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("Error reading file %s: %v", fh.Filename, err))
		}
		raw, err := io.ReadAll(src)
		src.Close()
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("Error reading file %s: %v", fh.Filename, err))
		}
		text, err := h.Extractor.ExtractBytes(raw, strings.ToLower(filepath.Ext(fh.Filename)))
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("Error reading file %s: %v", fh.Filename, err))
		}
		parts = append(parts, "FILE: "+fh.Filename+"\n"+text)
	}
	content := strings.Join(parts, fileSeparator)

	if additional := strings.TrimSpace(c.FormValue("additional_data")); additional != "" {
		content += "\n\n--- ADDITIONAL DATA ---\n\n" + additional
	}

	result, err := h.Engine.Analyze(ctx, analysis.Query{
		Prompt:  elem.Prompt,
		Method:  analysis.Method(*elem.Method),
		Content: content,
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("Analysis failed: %v", err))
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"success":         true,
		"analysis_result": result,
		"element_id":      elem.ID,
		"files_processed": len(uploads),
		"method_used":     *elem.Method,
	})
}
