package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/nykw2002/elements/internal/store"
)

type DatasetHandler struct {
	Store *store.Store
}

func (h *DatasetHandler) Register(g *echo.Group) {
	g.GET("", h.list)
	g.POST("", h.create)
	g.GET("/:id", h.get)
	g.DELETE("/:id", h.delete)
}

func (h *DatasetHandler) list(c echo.Context) error {
	items, err := h.Store.ListDatasetEntries(c.Request().Context(), c.QueryParam("element_id"), intQuery(c, "skip", 0), intQuery(c, "limit", 100))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	out := make([]DatasetEntryResponse, len(items))
	for i, d := range items {
		out[i] = toDatasetEntryResponse(d)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *DatasetHandler) create(c echo.Context) error {
	var req struct {
		ElementID   string          `json:"element_id"`
		ElementName string          `json:"element_name"`
		JSONConfig  json.RawMessage `json:"json_config"`
		AIOutput    string          `json:"ai_output"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.ElementID == "" || req.ElementName == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "element_id and element_name are required")
	}
	if len(req.JSONConfig) == 0 {
		req.JSONConfig = json.RawMessage(`{}`)
	}
	entry, err := h.Store.CreateDatasetEntry(c.Request().Context(), store.DatasetEntry{
		ElementID:   req.ElementID,
		ElementName: req.ElementName,
		Config:      req.JSONConfig,
		AIOutput:    req.AIOutput,
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, toDatasetEntryResponse(entry))
}

func (h *DatasetHandler) get(c echo.Context) error {
	entry, err := h.Store.GetDatasetEntry(c.Request().Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "Dataset entry not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, toDatasetEntryResponse(entry))
}

func (h *DatasetHandler) delete(c echo.Context) error {
	err := h.Store.DeleteDatasetEntry(c.Request().Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "Dataset entry not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Dataset entry deleted successfully"})
}
