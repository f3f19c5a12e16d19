// Package middlewares holds gin middleware shared across the control
// plane's routes. Reconstructed from scratch: the teacher's router imports
// "github.com/aliskhannn/delayed-notifier/internal/middlewares" but its
// source is not part of the retrieval pack.
package middlewares

import (
	"net/http"

	"github.com/wb-go/wbf/ginext"
)

// CORSMiddleware allows the configured frontend origin (or "*" if unset) to
// call the control plane from a browser, per SPEC_FULL §4.7.
func CORSMiddleware(allowedOrigin string) ginext.HandlerFunc {
	if allowedOrigin == "" {
		allowedOrigin = "*"
	}

	return func(c *ginext.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
