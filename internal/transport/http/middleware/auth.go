package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// ErrorResponse matches the handlers.ErrorResponse structure
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// newErrorResponse creates an error response with trace ID
func newErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	return ErrorResponse{
		Error:   errorMsg,
		TraceID: GetTraceID(c),
	}
}

func hmacKeyFunc(secret string) jwt.Keyfunc {
	return func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(secret), nil
	}
}

// resolveLogin parses and verifies the bearer token, returning the subject
// login and authorities.
func resolveLogin(tokenString, secret string) (string, []string, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, hmacKeyFunc(secret),
		jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}))
	if err != nil {
		return "", nil, err
	}
	if !token.Valid {
		return "", nil, fmt.Errorf("invalid token")
	}

	login, err := claims.GetSubject()
	if err != nil {
		return "", nil, err
	}
	if login == "" {
		return "", nil, fmt.Errorf("token has no subject")
	}

	return login, authoritiesFromClaims(claims), nil
}

func setAuthenticated(c *gin.Context, login string, authorities []string) {
	c.Set(LoginKey, login)
	c.Set("authorities", authorities)

	if reqCtx := GetRequestContext(c); reqCtx != nil {
		reqCtx.Login = login
	}
}

// RequireAuth verifies the bearer token and resolves the caller's login.
// Tokens are minted by the gateway; this service only validates the HMAC
// signature and reads the subject and authority claims.
func RequireAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "missing authorization header"))
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "invalid authorization format: expected 'Bearer <token>'"))
			return
		}

		tokenString := strings.TrimSpace(parts[1])
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "missing access token"))
			return
		}

		login, authorities, err := resolveLogin(tokenString, secret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "invalid access token"))
			return
		}

		setAuthenticated(c, login, authorities)

		c.Next()
	}
}

// OptionalAuth resolves the caller's login when a valid bearer token is
// present and lets the request through anonymously otherwise. It never
// rejects a request.
func OptionalAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.Next()
			return
		}

		tokenString := strings.TrimSpace(parts[1])
		if tokenString == "" {
			c.Next()
			return
		}

		if login, authorities, err := resolveLogin(tokenString, secret); err == nil {
			setAuthenticated(c, login, authorities)
		}

		c.Next()
	}
}

// authoritiesFromClaims reads the space separated "auth" claim.
func authoritiesFromClaims(claims jwt.MapClaims) []string {
	raw, ok := claims["auth"].(string)
	if !ok || raw == "" {
		return nil
	}
	return strings.Fields(raw)
}

// RequireAuthority checks that the caller holds any of the given authorities.
func RequireAuthority(authorities ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		val, exists := c.Get("authorities")
		if !exists {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "authentication required"))
			return
		}

		held, ok := val.([]string)
		if !ok {
			c.AbortWithStatusJSON(http.StatusInternalServerError,
				newErrorResponse(c, "invalid authorities format"))
			return
		}

		if !hasAnyAuthority(held, authorities) {
			c.AbortWithStatusJSON(http.StatusForbidden,
				newErrorResponse(c, "insufficient permissions"))
			return
		}

		c.Next()
	}
}

func hasAnyAuthority(held []string, required []string) bool {
	heldMap := make(map[string]bool, len(held))
	for _, authority := range held {
		heldMap[authority] = true
	}

	for _, authority := range required {
		if heldMap[authority] {
			return true
		}
	}
	return false
}

// GetAuthenticatedLogin retrieves the caller's login from context (helper for handlers)
func GetAuthenticatedLogin(c *gin.Context) (string, bool) {
	val, exists := c.Get(LoginKey)
	if !exists {
		return "", false
	}

	if login, ok := val.(string); ok && login != "" {
		return login, true
	}

	return "", false
}
