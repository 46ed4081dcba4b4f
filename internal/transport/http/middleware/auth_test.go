package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const authTestSecret = "middleware-test-secret"

func signedToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func TestRequireAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)

	validToken := signedToken(t, authTestSecret, jwt.MapClaims{
		"sub":  "alice",
		"auth": "ROLE_USER ROLE_ADMIN",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})

	cases := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{name: "missing header", header: "", wantStatus: http.StatusUnauthorized},
		{name: "not bearer", header: "Basic abc", wantStatus: http.StatusUnauthorized},
		{name: "empty token", header: "Bearer ", wantStatus: http.StatusUnauthorized},
		{name: "garbage token", header: "Bearer not-a-jwt", wantStatus: http.StatusUnauthorized},
		{
			name:       "wrong secret",
			header:     "Bearer " + signedToken(t, "another secret", jwt.MapClaims{"sub": "alice"}),
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "expired token",
			header:     "Bearer " + signedToken(t, authTestSecret, jwt.MapClaims{"sub": "alice", "exp": time.Now().Add(-time.Hour).Unix()}),
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "no subject",
			header:     "Bearer " + signedToken(t, authTestSecret, jwt.MapClaims{"auth": "ROLE_USER"}),
			wantStatus: http.StatusUnauthorized,
		},
		{name: "valid token", header: "Bearer " + validToken, wantStatus: http.StatusOK},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := gin.New()

			var gotLogin string
			var gotAuthorities []string
			router.GET("/protected", RequireAuth(authTestSecret), func(c *gin.Context) {
				gotLogin, _ = GetAuthenticatedLogin(c)
				if val, ok := c.Get("authorities"); ok {
					gotAuthorities, _ = val.([]string)
				}
				c.Status(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}

			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			if rr.Code != tc.wantStatus {
				t.Fatalf("expected status %d, got %d: %s", tc.wantStatus, rr.Code, rr.Body.String())
			}

			if tc.wantStatus == http.StatusOK {
				if gotLogin != "alice" {
					t.Fatalf("expected login to be resolved, got %q", gotLogin)
				}
				if len(gotAuthorities) != 2 || gotAuthorities[0] != "ROLE_USER" || gotAuthorities[1] != "ROLE_ADMIN" {
					t.Fatalf("unexpected authorities: %v", gotAuthorities)
				}
			}
		})
	}
}

func TestRequireAuthority(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name       string
		authClaim  string
		wantStatus int
	}{
		{name: "holds required authority", authClaim: "ROLE_ADMIN", wantStatus: http.StatusOK},
		{name: "holds one of several", authClaim: "ROLE_USER ROLE_ADMIN", wantStatus: http.StatusOK},
		{name: "missing authority", authClaim: "ROLE_USER", wantStatus: http.StatusForbidden},
		{name: "no authorities", authClaim: "", wantStatus: http.StatusForbidden},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := gin.New()
			router.GET("/admin", RequireAuth(authTestSecret), RequireAuthority("ROLE_ADMIN"), func(c *gin.Context) {
				c.Status(http.StatusOK)
			})

			token := signedToken(t, authTestSecret, jwt.MapClaims{
				"sub":  "alice",
				"auth": tc.authClaim,
				"exp":  time.Now().Add(time.Hour).Unix(),
			})

			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			req.Header.Set("Authorization", "Bearer "+token)

			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			if rr.Code != tc.wantStatus {
				t.Fatalf("expected status %d, got %d", tc.wantStatus, rr.Code)
			}
		})
	}
}

func TestOptionalAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)

	validToken := signedToken(t, authTestSecret, jwt.MapClaims{
		"sub":  "alice",
		"auth": "ROLE_USER",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})

	cases := []struct {
		name      string
		header    string
		wantLogin string
	}{
		{name: "no header", header: "", wantLogin: ""},
		{name: "garbage token", header: "Bearer not-a-jwt", wantLogin: ""},
		{name: "wrong secret", header: "Bearer " + signedToken(t, "another secret", jwt.MapClaims{"sub": "alice"}), wantLogin: ""},
		{name: "valid token", header: "Bearer " + validToken, wantLogin: "alice"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := gin.New()

			var gotLogin string
			router.GET("/whoami", OptionalAuth(authTestSecret), func(c *gin.Context) {
				gotLogin, _ = GetAuthenticatedLogin(c)
				c.Status(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}

			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			// The middleware never rejects.
			if rr.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", rr.Code)
			}
			if gotLogin != tc.wantLogin {
				t.Fatalf("expected login %q, got %q", tc.wantLogin, gotLogin)
			}
		})
	}
}

func TestRequireAuthority_WithoutAuthentication(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.GET("/admin", RequireAuthority("ROLE_ADMIN"), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without prior authentication, got %d", rr.Code)
	}
}
