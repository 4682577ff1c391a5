package http

import (
	"errors"
	"net/http"
	"strings"

	"checkout-service/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const principalKey = "principal"

// Authenticator validates HS256 bearer tokens carrying user_id, email and
// role claims. Tokens are issued by the storefront's auth service.
type Authenticator struct {
	secret []byte
}

func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret)}
}

func (a *Authenticator) Verify(token string) (domain.Principal, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil || !parsed.Valid {
		return domain.Principal{}, domain.ErrUnauthenticated
	}
	m, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return domain.Principal{}, domain.ErrUnauthenticated
	}
	uid, _ := m["user_id"].(string)
	email, _ := m["email"].(string)
	role, _ := m["role"].(string)
	if uid == "" {
		return domain.Principal{}, domain.ErrUnauthenticated
	}
	return domain.Principal{UserID: uid, Email: email, Role: role}, nil
}

func (a *Authenticator) RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok {
			writeError(c, domain.ErrUnauthenticated)
			c.Abort()
			return
		}
		p, err := a.Verify(strings.TrimSpace(raw))
		if err != nil {
			writeError(c, err)
			c.Abort()
			return
		}
		c.Set(principalKey, p)
		c.Next()
	}
}

func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !principal(c).IsAdmin() {
			writeError(c, domain.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}

func principal(c *gin.Context) domain.Principal {
	v, ok := c.Get(principalKey)
	if !ok {
		return domain.Principal{}
	}
	p, _ := v.(domain.Principal)
	return p
}

// writeError maps domain errors onto status codes. 5xx bodies never carry
// internal detail.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	msg := "internal server error"
	switch {
	case errors.Is(err, domain.ErrValidation):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrUnauthenticated):
		status, msg = http.StatusUnauthorized, "authentication required"
	case errors.Is(err, domain.ErrForbidden):
		status, msg = http.StatusForbidden, "forbidden"
	case errors.Is(err, domain.ErrOrderNotFound):
		status, msg = http.StatusNotFound, "order not found"
	case errors.Is(err, domain.ErrInvalidTransition):
		status, msg = http.StatusConflict, err.Error()
	case errors.Is(err, domain.ErrGateway):
		msg = "payment provider unavailable, please retry"
	case errors.Is(err, domain.ErrCheckout), errors.Is(err, domain.ErrPersistence):
		msg = "checkout failed, please retry"
	}
	c.JSON(status, gin.H{"error": msg})
}
