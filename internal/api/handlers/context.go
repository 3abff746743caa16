package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mpetrov/fleetgate/internal/api/middleware"
)

// formatUserID renders a user id for the session token subject claim.
func formatUserID(id int64) string {
	return strconv.FormatInt(id, 10)
}

// currentUserID reads the authenticated user id set by the session
// middleware.
func currentUserID(c *gin.Context) (int64, bool) {
	raw, ok := c.Get(middleware.ContextUserID)
	if !ok {
		return 0, false
	}
	s, ok := raw.(string)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// currentUsername reads the authenticated username set by the session
// middleware.
func currentUsername(c *gin.Context) string {
	raw, ok := c.Get(middleware.ContextUsername)
	if !ok {
		return ""
	}
	s, _ := raw.(string)
	return s
}
