package core

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/sessions"
)

const (
	sessionName   = "login_session"
	sessionMaxAge = 18000 // 5h
	sessionTTL    = sessionMaxAge * time.Second

	sessionValueToken   = "token"
	sessionValueAccount = "account_id"

	ctxSessionKey     = "session"
	ctxDescriptorKey  = "auth.session"
	ctxRequestIDKey   = "request_id"
	requestIDHeader   = "X-Request-ID"
	csrfHeader        = "X-CSRF-Token"
	requestedWithAJAX = "XMLHttpRequest"
)

// RequestIDMiddleware propagates or assigns an X-Request-ID.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		c.Set(ctxRequestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func requestID(c *gin.Context) string {
	return c.GetString(ctxRequestIDKey)
}

// SessionMiddleware ensures a session exists and applies consistent cookie options.
func SessionMiddleware(cfg Config, store *sessions.CookieStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		// On a decode error (e.g. rotated key) gorilla still returns a fresh session.
		session, _ := store.Get(c.Request, sessionName)
		if session == nil {
			respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "session error")
			c.Abort()
			return
		}

		applySessionOptions(cfg, session)
		c.Set(ctxSessionKey, session)
		c.Next()
	}
}

func cookieSession(c *gin.Context) *sessions.Session {
	v, _ := c.Get(ctxSessionKey)
	sess, _ := v.(*sessions.Session)
	return sess
}

// OriginRefererMiddleware validates Origin/Referer against allowed list and sets CORS headers.
func OriginRefererMiddleware(cfg Config) gin.HandlerFunc {
	allowed := map[string]struct{}{}
	for _, o := range cfg.AllowedOrigins {
		allowed[strings.ToLower(o)] = struct{}{}
	}

	isAllowed := func(origin string) bool {
		if origin == "" {
			// Same-origin navigation (no Origin header) is allowed.
			return true
		}
		_, ok := allowed[strings.ToLower(origin)]
		return ok
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if referer := c.GetHeader("Referer"); origin == "" && referer != "" {
			if u, err := url.Parse(referer); err == nil && u.Host != "" {
				origin = u.Scheme + "://" + u.Host
			}
		}

		if !isAllowed(origin) {
			respondError(c, http.StatusForbidden, "FORBIDDEN", "origin not allowed")
			c.Abort()
			return
		}
		if origin != "" {
			setCORSHeaders(c, origin)
		}
		if c.Request.Method == http.MethodOptions && origin != "" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		c.Next()
	}
}

func setCORSHeaders(c *gin.Context, origin string) {
	c.Header("Access-Control-Allow-Origin", origin)
	c.Header("Vary", "Origin")
	c.Header("Access-Control-Allow-Credentials", "true")
	c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-CSRF-Token, X-Requested-With")
	c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	c.Header("Access-Control-Expose-Headers", "X-CSRF-Token, X-Request-ID")
}

// CSRFMiddleware issues and validates a per-session CSRF token.
// Requests carrying a bearer token are not cookie-authenticated and skip the check.
func CSRFMiddleware(cfg Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		session := cookieSession(c)
		if session == nil {
			respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "session error")
			c.Abort()
			return
		}

		token, _ := session.Values["csrf_token"].(string)
		if token == "" {
			var err error
			token, err = generateCSRFToken()
			if err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to issue csrf token")
				c.Abort()
				return
			}
			session.Values["csrf_token"] = token
			if err := session.Save(c.Request, c.Writer); err != nil {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to persist session")
				c.Abort()
				return
			}
		}

		if !isSafeMethod(c.Request.Method) && !csrfExemptPath(c.Request.URL.Path) && bearerToken(c) == "" {
			header := c.GetHeader(csrfHeader)
			if header == "" || subtle.ConstantTimeCompare([]byte(header), []byte(token)) != 1 {
				respondError(c, http.StatusForbidden, "FORBIDDEN", "invalid csrf token")
				c.Abort()
				return
			}
		}

		c.Writer.Header().Set(csrfHeader, token)
		c.Next()
	}
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	default:
		return false
	}
}

// Paths that intentionally skip CSRF validation: no session exists yet.
func csrfExemptPath(path string) bool {
	switch path {
	case "/api/v1/auth/login", "/api/v1/auth/register":
		return true
	default:
		return false
	}
}

func generateCSRFToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// RequireAJAX rejects requests that are neither XHR nor JSON before any
// credential handling happens.
func RequireAJAX() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("X-Requested-With") == requestedWithAJAX || c.ContentType() == gin.MIMEJSON {
			c.Next()
			return
		}
		respondEnvelope(c, http.StatusBadRequest, false, msgCannotProcess, nil, nil)
		c.Abort()
	}
}

// RequireSession resolves the caller's session token and aborts with 401 when absent.
func RequireSession(sessionStore SessionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		sd, err := resolveSession(c, sessionStore)
		if err != nil {
			if !errors.Is(err, ErrSessionNotFound) {
				logRequestError(c, "session lookup failed", err)
			}
			respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", msgLoginRequired)
			c.Abort()
			return
		}
		c.Set(ctxDescriptorKey, sd)
		c.Next()
	}
}

func currentSession(c *gin.Context) *SessionDescriptor {
	v, _ := c.Get(ctxDescriptorKey)
	sd, _ := v.(*SessionDescriptor)
	return sd
}

// resolveSession prefers an Authorization bearer token over the cookie session.
func resolveSession(c *gin.Context, sessionStore SessionStore) (*SessionDescriptor, error) {
	token := sessionToken(c)
	if token == "" {
		return nil, ErrSessionNotFound
	}
	return sessionStore.Lookup(c.Request.Context(), token)
}

func sessionToken(c *gin.Context) string {
	if t := bearerToken(c); t != "" {
		return t
	}
	if sess := cookieSession(c); sess != nil {
		t, _ := sess.Values[sessionValueToken].(string)
		return t
	}
	return ""
}

func bearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

func applySessionOptions(cfg Config, session *sessions.Session) {
	if session.Options == nil {
		session.Options = &sessions.Options{}
	}
	session.Options.Path = "/"
	session.Options.MaxAge = sessionMaxAge
	session.Options.HttpOnly = true
	session.Options.Secure = cfg.CookieSecure
	session.Options.SameSite = sameSiteFromString(cfg.CookieSameSite)
}

func sameSiteFromString(v string) http.SameSite {
	switch strings.ToLower(v) {
	case "lax":
		return http.SameSiteLaxMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteStrictMode
	}
}
