package auth

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
)

// rawKeyWarning accompanies every response that carries raw key material.
const rawKeyWarning = "Store this key securely. It will not be shown again."

// APIKeyHandler exposes the API key management endpoints.
type APIKeyHandler struct {
	manager *APIKeyManager
}

// NewAPIKeyHandler creates a handler backed by the given manager.
func NewAPIKeyHandler(manager *APIKeyManager) *APIKeyHandler {
	return &APIKeyHandler{manager: manager}
}

// RegisterRoutes mounts the key management routes on g.
func (h *APIKeyHandler) RegisterRoutes(g *echo.Group) {
	g.POST("", h.CreateKey)
	g.GET("", h.ListKeys)
	g.GET("/:id", h.GetKey)
	g.DELETE("/:id", h.RevokeKey)
	g.POST("/:id/rotate", h.RotateKey)
}

type createKeyRequest struct {
	Name      string            `json:"name"`
	TenantID  string            `json:"tenant_id"`
	ClientID  string            `json:"client_id"`
	Scopes    []string          `json:"scopes"`
	RateLimit int               `json:"rate_limit"`
	ExpiresAt *time.Time        `json:"expires_at,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// apiKeyResponse is the wire form of an APIKey. The hash never leaves the
// server.
type apiKeyResponse struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	KeyPrefix  string            `json:"key_prefix"`
	TenantID   string            `json:"tenant_id"`
	ClientID   string            `json:"client_id"`
	Scopes     []string          `json:"scopes"`
	RateLimit  int               `json:"rate_limit"`
	Status     string            `json:"status"`
	ExpiresAt  *time.Time        `json:"expires_at,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	RevokedAt  *time.Time        `json:"revoked_at,omitempty"`
	LastUsedAt *time.Time        `json:"last_used_at,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// mintedKeyResponse is returned from create and rotate, the only places the
// raw key appears.
type mintedKeyResponse struct {
	Key     *apiKeyResponse `json:"key"`
	RawKey  string          `json:"raw_key"`
	Warning string          `json:"warning"`
}

type keyListResponse struct {
	Keys   []*apiKeyResponse `json:"keys"`
	Total  int               `json:"total"`
	Limit  int               `json:"limit"`
	Offset int               `json:"offset"`
}

func toAPIKeyResponse(k *APIKey) *apiKeyResponse {
	return &apiKeyResponse{
		ID:         k.ID,
		Name:       k.Name,
		KeyPrefix:  k.KeyPrefix,
		TenantID:   k.TenantID,
		ClientID:   k.ClientID,
		Scopes:     k.Scopes,
		RateLimit:  k.RateLimit,
		Status:     k.Status,
		ExpiresAt:  k.ExpiresAt,
		CreatedAt:  k.CreatedAt,
		RevokedAt:  k.RevokedAt,
		LastUsedAt: k.LastUsedAt,
		Metadata:   k.Metadata,
	}
}

// CreateKey handles POST "". The raw key appears once in the response and is
// not recoverable afterwards.
func (h *APIKeyHandler) CreateKey(c echo.Context) error {
	var req createKeyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name is required")
	}

	key, rawKey, err := h.manager.GenerateKey(c.Request().Context(), KeySpec{
		Name:      req.Name,
		TenantID:  req.TenantID,
		ClientID:  req.ClientID,
		Scopes:    req.Scopes,
		RateLimit: req.RateLimit,
		ExpiresAt: req.ExpiresAt,
		Metadata:  req.Metadata,
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to create api key")
	}

	return c.JSON(http.StatusCreated, mintedKeyResponse{
		Key:     toAPIKeyResponse(key),
		RawKey:  rawKey,
		Warning: rawKeyWarning,
	})
}

// ListKeys handles GET "".
func (h *APIKeyHandler) ListKeys(c echo.Context) error {
	limit, offset := pageParams(c)

	keys, total, err := h.manager.ListKeys(c.Request().Context(), c.QueryParam("tenant_id"), limit, offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list api keys")
	}

	out := make([]*apiKeyResponse, len(keys))
	for i, k := range keys {
		out[i] = toAPIKeyResponse(k)
	}

	return c.JSON(http.StatusOK, keyListResponse{
		Keys:   out,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

// GetKey handles GET "/:id".
func (h *APIKeyHandler) GetKey(c echo.Context) error {
	key, err := h.manager.GetKey(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "api key not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to retrieve api key")
	}
	return c.JSON(http.StatusOK, toAPIKeyResponse(key))
}

// RevokeKey handles DELETE "/:id".
func (h *APIKeyHandler) RevokeKey(c echo.Context) error {
	if err := h.manager.RevokeKey(c.Request().Context(), c.Param("id")); err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "api key not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to revoke api key")
	}

	return c.JSON(http.StatusOK, map[string]string{
		"status":  "revoked",
		"message": "api key has been revoked",
	})
}

// RotateKey handles POST "/:id/rotate".
func (h *APIKeyHandler) RotateKey(c echo.Context) error {
	key, rawKey, err := h.manager.RotateKey(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "api key not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to rotate api key")
	}

	return c.JSON(http.StatusOK, mintedKeyResponse{
		Key:     toAPIKeyResponse(key),
		RawKey:  rawKey,
		Warning: rawKeyWarning,
	})
}

// pageParams reads limit/offset with a default page of 50.
func pageParams(c echo.Context) (limit, offset int) {
	limit, offset = 50, 0
	if v, err := strconv.Atoi(c.QueryParam("limit")); err == nil && v > 0 {
		limit = v
	}
	if v, err := strconv.Atoi(c.QueryParam("offset")); err == nil && v >= 0 {
		offset = v
	}
	return limit, offset
}
