package core

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"
	"github.com/redis/go-redis/v9"
)

// Services bundles the collaborators behind the HTTP routes.
// Limiter, Registration and Metrics are optional.
type Services struct {
	Auth         AuthService
	Accounts     AccountRepository
	Sessions     SessionStore
	Limiter      *LoginLimiter
	Registration *RegistrationService
	Metrics      *MetricsService
}

// NewRouter constructs the Gin engine with routes wired.
func NewRouter(cfg Config, store *sessions.CookieStore, svc Services) *gin.Engine {
	startedAt := time.Now()
	r := gin.New()
	// ClientIP keys the login limiter; only listed proxies may set X-Forwarded-For.
	if err := r.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		slog.Warn("invalid trusted proxies, trusting none", "error", err)
		_ = r.SetTrustedProxies(nil)
	}
	r.Use(gin.Logger(), gin.Recovery())

	// Global middleware: request id -> origin/CORS -> session -> CSRF
	r.Use(RequestIDMiddleware())
	r.Use(OriginRefererMiddleware(cfg))
	r.Use(SessionMiddleware(cfg, store))
	r.Use(CSRFMiddleware(cfg))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api/v1")
	{
		api.POST("/auth/login", RequireAJAX(), func(c *gin.Context) {
			var req Credentials
			if err := c.ShouldBind(&req); err != nil {
				respondEnvelope(c, http.StatusBadRequest, false, msgCannotProcess, nil, nil)
				return
			}

			ctx := c.Request.Context()
			ip := c.ClientIP()
			if svc.Limiter != nil {
				retryAfter, err := svc.Limiter.Check(ctx, ip)
				if err != nil {
					logRequestError(c, "login limiter check failed", err)
				} else if retryAfter > 0 {
					c.Header("Retry-After", strconv.FormatInt(int64(retryAfter.Seconds())+1, 10))
					respondEnvelope(c, http.StatusTooManyRequests, false, msgTooManyAttempts, nil, nil)
					return
				}
			}

			sd, err := svc.Auth.Authenticate(ctx, req.Email, req.Password)
			if err != nil {
				handleLoginFailure(c, svc, ip, err)
				return
			}

			if svc.Limiter != nil {
				if err := svc.Limiter.Reset(ctx, ip); err != nil {
					logRequestError(c, "login limiter reset failed", err)
				}
			}

			if err := svc.Sessions.Save(ctx, sd, sessionTTL); err != nil {
				logRequestError(c, "session save failed", err)
				respondEnvelope(c, http.StatusInternalServerError, false, msgInternal, nil, nil)
				return
			}

			// Rotate the cookie session; keep only the csrf token.
			session := cookieSession(c)
			csrf := session.Values["csrf_token"]
			session.Values = map[interface{}]interface{}{
				"csrf_token":        csrf,
				sessionValueToken:   sd.Token,
				sessionValueAccount: sd.ID,
			}
			applySessionOptions(cfg, session)
			if err := session.Save(c.Request, c.Writer); err != nil {
				logRequestError(c, "cookie session save failed", err)
				respondEnvelope(c, http.StatusInternalServerError, false, msgInternal, nil, nil)
				return
			}

			slog.InfoContext(ctx, "login succeeded", "request_id", requestID(c), "account_id", sd.ID)
			respondEnvelope(c, http.StatusOK, true, msgLoginOK, sd, nil)
		})

		api.POST("/auth/logout", func(c *gin.Context) {
			token := sessionToken(c)
			if token == "" {
				respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", msgLoginRequired)
				return
			}
			if err := svc.Sessions.Delete(c.Request.Context(), token); err != nil {
				logRequestError(c, "session delete failed", err)
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", msgInternal)
				return
			}

			sess := cookieSession(c)
			sess.Values = map[interface{}]interface{}{}
			applySessionOptions(cfg, sess)
			sess.Options.MaxAge = -1 // Must be set AFTER applySessionOptions to properly delete cookie
			if err := sess.Save(c.Request, c.Writer); err != nil {
				logRequestError(c, "cookie session clear failed", err)
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", msgInternal)
				return
			}
			respondEnvelope(c, http.StatusOK, true, msgLoggedOut, nil, nil)
		})

		if svc.Registration != nil {
			api.POST("/auth/register", RequireAJAX(), func(c *gin.Context) {
				var req RegistrationInput
				if err := c.ShouldBind(&req); err != nil {
					respondEnvelope(c, http.StatusBadRequest, false, msgCannotProcess, nil, nil)
					return
				}

				acc, err := svc.Registration.Register(c.Request.Context(), req)
				if err != nil {
					var verr *ValidationError
					switch {
					case errors.As(err, &verr):
						respondEnvelope(c, http.StatusBadRequest, false, msgCannotProcess, nil, fieldErrorMessages(verr))
					case errors.Is(err, ErrAccountExists):
						respondEnvelope(c, http.StatusConflict, false, msgCannotProcess, nil, map[string]string{"email": msgAccountExists})
					default:
						logRequestError(c, "registration failed", err)
						respondEnvelope(c, http.StatusInternalServerError, false, msgInternal, nil, nil)
					}
					return
				}

				respondEnvelope(c, http.StatusCreated, true, msgRegistered, gin.H{
					"id":    acc.ID,
					"name":  acc.Name,
					"email": acc.Mail,
				}, nil)
			})
		}

		authed := api.Group("")
		authed.Use(RequireSession(svc.Sessions))

		authed.GET("/users/me", func(c *gin.Context) {
			sd := currentSession(c)
			acc, err := svc.Accounts.FindByID(c.Request.Context(), sd.ID)
			if err != nil {
				if errors.Is(err, ErrAccountNotFound) {
					respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", msgLoginRequired)
					return
				}
				logRequestError(c, "account lookup failed", err)
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", msgInternal)
				return
			}
			c.JSON(http.StatusOK, gin.H{
				"id":         acc.ID,
				"name":       acc.Name,
				"email":      acc.Mail,
				"created_at": acc.CreatedAt,
			})
		})

		if svc.Metrics != nil {
			metrics := authed.Group("/metrics")
			metrics.GET("/queues", func(c *gin.Context) {
				qm, err := svc.Metrics.Queue(c.Request.Context())
				if err != nil {
					logRequestError(c, "queue metrics failed", err)
					respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to load queue metrics")
					return
				}
				c.JSON(http.StatusOK, qm)
			})
			metrics.GET("/workers", func(c *gin.Context) {
				workers, err := svc.Metrics.Workers(c.Request.Context())
				if err != nil {
					logRequestError(c, "worker metrics failed", err)
					respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to load workers")
					return
				}
				c.JSON(http.StatusOK, gin.H{"workers": workers})
			})
			metrics.GET("/workers/:id", func(c *gin.Context) {
				hb, err := svc.Metrics.WorkerByID(c.Request.Context(), c.Param("id"))
				if err != nil {
					if errors.Is(err, redis.Nil) {
						respondError(c, http.StatusNotFound, "NOT_FOUND", "worker not found")
						return
					}
					logRequestError(c, "worker metrics failed", err)
					respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to load worker")
					return
				}
				c.JSON(http.StatusOK, hb)
			})
		}

		authed.GET("/system/status", func(c *gin.Context) {
			c.JSON(http.StatusOK, CollectSystemStatus(c.Request.Context(), svc.Metrics, svc.Sessions, startedAt))
		})
	}

	return r
}

// handleLoginFailure maps authenticator errors to responses. Unknown email and
// wrong password share one status and message.
func handleLoginFailure(c *gin.Context, svc Services, ip string, err error) {
	ctx := c.Request.Context()
	var (
		verr *ValidationError
		aerr *AuthError
	)
	switch {
	case errors.As(err, &verr):
		respondEnvelope(c, http.StatusBadRequest, false, msgCannotProcess, nil, fieldErrorMessages(verr))
	case errors.As(err, &aerr):
		if svc.Limiter != nil {
			if _, lerr := svc.Limiter.RecordFailure(ctx, ip); lerr != nil {
				logRequestError(c, "login limiter record failed", lerr)
			}
		}
		slog.InfoContext(ctx, "login rejected", "request_id", requestID(c), "reason", string(aerr.Reason), "ip", ip)
		respondEnvelope(c, http.StatusUnauthorized, false, msgInvalidCredentials, nil, nil)
	default:
		logRequestError(c, "login failed", err)
		respondEnvelope(c, http.StatusInternalServerError, false, msgInternal, nil, nil)
	}
}
