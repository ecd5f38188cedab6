package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/huangang/feedbackbot/internal/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
	utils.SetJWTSecret("test-secret-for-middleware-testing")
}

func protectedRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	router := gin.New()
	router.Use(handlers...)
	router.GET("/protected", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"user_id":  GetUserID(c),
			"username": GetUsername(c),
			"role":     GetRole(c),
		})
	})
	return router
}

func TestAuthRequired(t *testing.T) {
	valid, err := utils.GenerateToken(1, "alice", "admin", 24)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		header string
		code   int
	}{
		{"no header", "", http.StatusUnauthorized},
		{"no scheme", "InvalidToken", http.StatusUnauthorized},
		{"basic scheme", "Basic token123", http.StatusUnauthorized},
		{"bearer without token", "Bearer", http.StatusUnauthorized},
		{"garbage token", "Bearer invalid.jwt.token", http.StatusUnauthorized},
		{"valid", "Bearer " + valid, http.StatusOK},
	}

	router := protectedRouter(AuthRequired())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req, _ := http.NewRequest("GET", "/protected", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			router.ServeHTTP(w, req)
			if w.Code != tt.code {
				t.Errorf("expected status %d, got %d", tt.code, w.Code)
			}
		})
	}
}

func TestAuthRequired_ForeignSecret(t *testing.T) {
	token, _ := utils.GenerateToken(1, "alice", "admin", 24)
	utils.SetJWTSecret("another-secret")
	defer utils.SetJWTSecret("test-secret-for-middleware-testing")

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	protectedRouter(AuthRequired()).ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected status %d, got %d", http.StatusUnauthorized, w.Code)
	}
}

func TestAdminRequired(t *testing.T) {
	tests := []struct {
		role string
		code int
	}{
		{"", http.StatusForbidden},
		{"user", http.StatusForbidden},
		{"manager", http.StatusForbidden},
		{"admin", http.StatusOK},
	}

	for _, tt := range tests {
		role := tt.role
		router := protectedRouter(func(c *gin.Context) {
			if role != "" {
				c.Set(ContextRole, role)
			}
			c.Next()
		}, AdminRequired())

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/protected", nil)
		router.ServeHTTP(w, req)
		if w.Code != tt.code {
			t.Errorf("role %q: expected status %d, got %d", tt.role, tt.code, w.Code)
		}
	}
}

func TestTelegramSecret(t *testing.T) {
	tests := []struct {
		name   string
		secret string
		header string
		code   int
	}{
		{"matching", "s3cret", "s3cret", http.StatusOK},
		{"missing", "s3cret", "", http.StatusUnauthorized},
		{"wrong", "s3cret", "guess", http.StatusUnauthorized},
		{"disabled", "", "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.POST("/hook", TelegramSecret(tt.secret), func(c *gin.Context) { c.Status(200) })

			w := httptest.NewRecorder()
			req, _ := http.NewRequest("POST", "/hook", nil)
			if tt.header != "" {
				req.Header.Set(TelegramSecretHeader, tt.header)
			}
			router.ServeHTTP(w, req)
			if w.Code != tt.code {
				t.Errorf("expected status %d, got %d", tt.code, w.Code)
			}
		})
	}
}

func TestContextGetters(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	if GetUserID(c) != 0 || GetUsername(c) != "" || GetRole(c) != "" {
		t.Error("getters should return zero values on an empty context")
	}

	c.Set(ContextUserID, uint(42))
	c.Set(ContextUsername, "alice")
	c.Set(ContextRole, "admin")
	if GetUserID(c) != 42 || GetUsername(c) != "alice" || GetRole(c) != "admin" {
		t.Errorf("getters = (%d, %q, %q)", GetUserID(c), GetUsername(c), GetRole(c))
	}
}
