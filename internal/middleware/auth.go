package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"voiceclone-backend/internal/config"
	"voiceclone-backend/internal/models"
)

const UserIDKey = "user_id"

// RequireAuth verifies the Supabase JWT from the Authorization header and
// stores the "sub" claim under UserIDKey. Requests without a valid token are
// rejected with 401 AUTH_REQUIRED.
func RequireAuth(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, errMsg := userIDFromHeader(c, cfg)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, models.ErrorResponse{
				Error:   "authentication required",
				Code:    models.CodeAuthRequired,
				Message: errMsg,
			})
			c.Abort()
			return
		}
		c.Set(UserIDKey, userID)
		c.Next()
	}
}

// OptionalAuth resolves the caller's identity when a valid token is present
// and continues anonymously otherwise. Feedback routes use this: anonymous
// callers identify themselves with an explicit session id instead.
func OptionalAuth(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if userID, _ := userIDFromHeader(c, cfg); userID != "" {
			c.Set(UserIDKey, userID)
		}
		c.Next()
	}
}

func userIDFromHeader(c *gin.Context, cfg *config.Config) (string, string) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", "missing authorization header"
	}

	// Extract token from "Bearer <token>"
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", "invalid authorization header format"
	}

	tokenString := strings.TrimSpace(parts[1])
	if tokenString == "" {
		return "", "empty token"
	}

	// JWT tokens have 3 dot-separated parts; reject anything else before
	// handing it to the parser so the error message stays useful
	if len(strings.Split(tokenString, ".")) != 3 {
		return "", "token must be a JWT with 3 parts separated by dots"
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		// Supabase signs access tokens with HS256 using the project JWT secret
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		if cfg.SupabaseJWTSecret == "" {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(cfg.SupabaseJWTSecret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		if strings.Contains(err.Error(), "token is expired") {
			return "", "token has expired"
		}
		return "", "invalid token: " + err.Error()
	}
	if !token.Valid {
		return "", "invalid token"
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", "invalid token claims"
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", "missing user id in token"
	}

	return sub, ""
}
