// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file resolves the caller identity (tenant, user, role) for API routes.
// Two modes are supported:
//
//   - JWT: when a signing secret is configured, requests must carry
//     "Authorization: Bearer <token>" signed with HS256. Claims "sub",
//     "tenant" and "role" populate the identity.
//   - Header: without a secret (local development), identity is read from
//     X-User-ID, X-Tenant-ID and X-User-Role.
//
// Either way the identity is stored in the Gin context under "userID",
// "tenantID" and "role" and read back with UserID, TenantID and Role.
package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	ctxKeyUserID   = "userID"
	ctxKeyTenantID = "tenantID"
	ctxKeyRole     = "role"

	HeaderUserID   = "X-User-ID"
	HeaderTenantID = "X-Tenant-ID"
	HeaderUserRole = "X-User-Role"

	// DefaultTenant is assumed in header mode when X-Tenant-ID is absent.
	DefaultTenant = "default"
	// DefaultRole is assumed when neither the token nor the headers carry one.
	DefaultRole = "student"
)

// AuthOptions configures Authenticate.
type AuthOptions struct {
	// JWTSecret enables bearer-token mode when non-empty.
	JWTSecret string
	// Issuer, when set, must match the token "iss" claim.
	Issuer string
}

// Claims is the token payload understood by Authenticate.
type Claims struct {
	Tenant string `json:"tenant"`
	Role   string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

var errMissingBearer = errors.New("missing bearer token")

// Authenticate returns middleware that establishes the caller identity or
// aborts with 401.
func Authenticate(opts AuthOptions) gin.HandlerFunc {
	secret := []byte(opts.JWTSecret)
	popts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if opts.Issuer != "" {
		popts = append(popts, jwt.WithIssuer(opts.Issuer))
	}
	parser := jwt.NewParser(popts...)

	return func(c *gin.Context) {
		var tenant, user, role string

		if len(secret) > 0 {
			claims, err := parseBearer(parser, secret, c.GetHeader("Authorization"))
			if err != nil {
				LoggerFrom(c).Debug().Err(err).Msg("token rejected")
				unauthorized(c, "invalid or missing token")
				return
			}
			tenant, user, role = claims.Tenant, claims.Subject, claims.Role
		} else {
			user = strings.TrimSpace(c.GetHeader(HeaderUserID))
			tenant = strings.TrimSpace(c.GetHeader(HeaderTenantID))
			role = strings.TrimSpace(c.GetHeader(HeaderUserRole))
			if tenant == "" {
				tenant = DefaultTenant
			}
		}

		if user == "" || tenant == "" {
			unauthorized(c, "missing identity")
			return
		}
		if role == "" {
			role = DefaultRole
		}

		c.Set(ctxKeyUserID, user)
		c.Set(ctxKeyTenantID, tenant)
		c.Set(ctxKeyRole, strings.ToLower(role))

		lg := LoggerFrom(c).With().Str("tenant_id", tenant).Str("user_id", user).Logger()
		c.Set(ctxKeyLogger, &lg)

		c.Next()
	}
}

func parseBearer(p *jwt.Parser, secret []byte, header string) (*Claims, error) {
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(raw) == "" {
		return nil, errMissingBearer
	}
	claims := &Claims{}
	if _, err := p.ParseWithClaims(strings.TrimSpace(raw), claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}); err != nil {
		return nil, err
	}
	return claims, nil
}

// SignToken issues an HS256 token for the given identity. Used by the CLI
// and tests.
func SignToken(secret, issuer, tenant, user, role string) (string, error) {
	claims := Claims{
		Tenant: tenant,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: user,
			Issuer:  issuer,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func unauthorized(c *gin.Context, msg string) {
	c.Header("WWW-Authenticate", `Bearer realm="api"`)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"request_id": RequestIDFrom(c),
		"code":       "unauthorized",
		"message":    msg,
	})
}

// UserID returns the authenticated user id, or "" outside authenticated routes.
func UserID(c *gin.Context) string { return c.GetString(ctxKeyUserID) }

// TenantID returns the authenticated tenant id.
func TenantID(c *gin.Context) string { return c.GetString(ctxKeyTenantID) }

// Role returns the authenticated role (lower-cased).
func Role(c *gin.Context) string { return c.GetString(ctxKeyRole) }
