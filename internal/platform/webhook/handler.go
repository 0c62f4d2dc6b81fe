package webhook

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/cardia/cardia/pkg/pagination"
)

// Handler exposes endpoint management and the delivery log over HTTP.
// Mounted under the admin group; RBAC happens upstream.
type Handler struct {
	manager *Manager
}

// NewHandler creates the webhook admin handler.
func NewHandler(manager *Manager) *Handler {
	return &Handler{manager: manager}
}

// RegisterRoutes binds the management routes onto g.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("", h.Register)
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
	g.POST("/:id/test", h.Ping)
	g.GET("/:id/deliveries", h.Deliveries)
	g.POST("/:id/pause", h.Pause)
	g.POST("/:id/resume", h.Resume)
	g.POST("/deliveries/:id/retry", h.Redeliver)
}

func (h *Handler) Register(c echo.Context) error {
	var reg Registration
	if err := c.Bind(&reg); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ep, err := h.manager.Register(c.Request().Context(), reg)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, ep)
}

func (h *Handler) List(c echo.Context) error {
	eps, err := h.manager.store.Endpoints(c.Request().Context(), c.QueryParam("tenant_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	pg := pagination.FromContext(c)
	page := paginate(eps, pg.Limit, pg.Offset)
	return c.JSON(http.StatusOK, pagination.NewResponse(page, len(eps), pg.Limit, pg.Offset))
}

func (h *Handler) Get(c echo.Context) error {
	ep, err := h.manager.store.Endpoint(c.Request().Context(), c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "endpoint not found")
	}
	return c.JSON(http.StatusOK, ep)
}

type endpointUpdate struct {
	URL    string   `json:"url"`
	Events []string `json:"events"`
}

func (h *Handler) Update(c echo.Context) error {
	ctx := c.Request().Context()
	ep, err := h.manager.store.Endpoint(ctx, c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "endpoint not found")
	}
	var upd endpointUpdate
	if err := c.Bind(&upd); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if upd.URL != "" {
		if err := checkEndpointURL(upd.URL); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		ep.URL = upd.URL
	}
	if len(upd.Events) > 0 {
		ep.Events = upd.Events
	}
	if err := h.manager.store.SaveEndpoint(ctx, ep); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, ep)
}

func (h *Handler) Delete(c echo.Context) error {
	if err := h.manager.store.RemoveEndpoint(c.Request().Context(), c.Param("id")); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "endpoint not found")
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Ping(c echo.Context) error {
	d, err := h.manager.Ping(c.Request().Context(), c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) Deliveries(c echo.Context) error {
	all, err := h.manager.store.DeliveriesFor(c.Request().Context(), c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	pg := pagination.FromContext(c)
	page := paginate(all, pg.Limit, pg.Offset)
	return c.JSON(http.StatusOK, pagination.NewResponse(page, len(all), pg.Limit, pg.Offset))
}

func (h *Handler) Pause(c echo.Context) error {
	if err := h.manager.SetPaused(c.Request().Context(), c.Param("id"), true); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]bool{"paused": true})
}

func (h *Handler) Resume(c echo.Context) error {
	if err := h.manager.SetPaused(c.Request().Context(), c.Param("id"), false); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]bool{"paused": false})
}

func (h *Handler) Redeliver(c echo.Context) error {
	d, err := h.manager.Redeliver(c.Request().Context(), c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.JSON(http.StatusOK, d)
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}
