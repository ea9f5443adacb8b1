package middleware

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/pagesift/metrics"
	"github.com/use-agent/pagesift/models"
)

// Auth returns API-key authentication middleware.
//
// Supports two header styles:
//
//	X-API-Key: <key>
//	Authorization: Bearer <key>
//
// If apiKeys is empty, the middleware is a no-op (open access).
//
// Every check is counted in pagesift_auth_requests_total. Accepted keys are
// labelled by keyID; rejected keys share the "unknown" label so callers
// cannot grow the series set.
func Auth(apiKeys []string) gin.HandlerFunc {
	if len(apiKeys) == 0 {
		return func(c *gin.Context) { c.Next() }
	}

	keySet := make(map[string]string, len(apiKeys))
	for _, k := range apiKeys {
		if k != "" {
			keySet[k] = keyID(k)
		}
	}

	return func(c *gin.Context) {
		key := extractAPIKey(c)
		if key == "" {
			metrics.AuthRequests.WithLabelValues(unknownKey, metrics.AuthMissing).Inc()
			abort(c, http.StatusUnauthorized, models.ErrCodeUnauthorized,
				"missing API key: provide X-API-Key header or Authorization: Bearer <key>")
			return
		}

		id, valid := keySet[key]
		if !valid {
			metrics.AuthRequests.WithLabelValues(unknownKey, metrics.AuthInvalid).Inc()
			abort(c, http.StatusUnauthorized, models.ErrCodeUnauthorized, "invalid API key")
			return
		}

		metrics.AuthRequests.WithLabelValues(id, metrics.AuthOK).Inc()
		c.Set(apiKeyContextKey, key)
		c.Set(keyIDContextKey, id)
		c.Next()
	}
}

// Context keys set by Auth. RateLimit buckets on the raw key; keyID is the
// loggable form.
const (
	apiKeyContextKey = "api_key"
	keyIDContextKey  = "api_key_id"
)

const unknownKey = "unknown"

// keyID is a short, non-reversible identity for key, safe for metric labels
// and logs.
func keyID(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:4])
}

// KeyID returns the identity of the key Auth accepted for c, or "" when the
// request was not authenticated.
func KeyID(c *gin.Context) string {
	return c.GetString(keyIDContextKey)
}

func abort(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, models.ScrapeResponse{
		Success: false,
		Error:   message,
		Code:    code,
	})
}

// extractAPIKey tries X-API-Key first, then Authorization: Bearer.
func extractAPIKey(c *gin.Context) string {
	if key := c.GetHeader("X-API-Key"); key != "" {
		return key
	}
	if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}
