package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// ErrorResponse is the JSON error body for non-streaming failures.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries the error message and machine-readable type.
type ErrorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

func errorJSON(message, errType string) ErrorResponse {
	return ErrorResponse{Error: ErrorDetail{Message: message, Type: errType}}
}

// authMiddleware validates the bearer token on API routes. When no JWT
// secret is configured the API is open for local use.
func (s *Server) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.jwtManager == nil {
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, errorJSON("Authorization header required", "invalid_request_error"))
			c.Abort()
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == authHeader {
			c.JSON(http.StatusUnauthorized, errorJSON("Invalid authorization header format. Expected: 'Bearer <token>'", "invalid_request_error"))
			c.Abort()
			return
		}

		claims, err := s.jwtManager.ValidateToken(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, errorJSON("Invalid or expired token", "invalid_request_error"))
			c.Abort()
			return
		}

		c.Set("client_id", claims.ClientID)
		c.Next()
	}
}
