package auth

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// revocationHandler serves the admin token-denylist endpoints.
type revocationHandler struct {
	store *TokenRevocationStore
}

// RegisterRevocationRoutes mounts token revocation management under
// g.Group("/auth"). All routes require the admin role.
func RegisterRevocationRoutes(g *echo.Group, store *TokenRevocationStore) {
	h := &revocationHandler{store: store}
	authGroup := g.Group("/auth", RequireRole("admin"))
	authGroup.POST("/revoke", h.revokeToken)
	authGroup.POST("/revoke-user", h.revokeUser)
	authGroup.GET("/revocations", h.listRevocations)
}

type revokeTokenRequest struct {
	JTI       string    `json:"jti"`
	ExpiresAt time.Time `json:"expires_at"`
	UserID    string    `json:"user_id,omitempty"`
}

type revokeUserRequest struct {
	UserID string `json:"user_id"`
}

type revokeUserResponse struct {
	RevokedCount int `json:"revoked_count"`
}

type revocationListResponse struct {
	Count   int              `json:"count"`
	Entries []RevocationInfo `json:"entries"`
}

func (h *revocationHandler) revokeToken(c echo.Context) error {
	var req revokeTokenRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.JTI == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "jti is required")
	}

	// Without a stated expiry, keep the entry for an hour.
	expiresAt := req.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = time.Now().Add(time.Hour)
	}

	h.store.RevokeForUser(req.JTI, req.UserID, expiresAt)
	return c.NoContent(http.StatusNoContent)
}

func (h *revocationHandler) revokeUser(c echo.Context) error {
	var req revokeUserRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.UserID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id is required")
	}

	return c.JSON(http.StatusOK, revokeUserResponse{
		RevokedCount: h.store.RevokeAllForUser(req.UserID),
	})
}

func (h *revocationHandler) listRevocations(c echo.Context) error {
	entries := h.store.Entries()
	return c.JSON(http.StatusOK, revocationListResponse{
		Count:   len(entries),
		Entries: entries,
	})
}
