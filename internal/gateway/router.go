package gateway

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"hrportal/internal/auth"
	"hrportal/internal/httpmiddleware"
	"hrportal/internal/notification"
	"hrportal/internal/worksystem"
)

// HealthCheck reports whether one dependency is usable.
type HealthCheck func(ctx context.Context) bool

// RouterConfig wires the router.
type RouterConfig struct {
	Sessions    *Sessions
	SigningKey  string
	Issuer      string
	RateLimiter *httpmiddleware.IPRateLimiter
	Gatherer    prometheus.Gatherer
	Health      map[string]HealthCheck
	Logger      zerolog.Logger
}

// NewRouter builds the gin engine serving the store context.
func NewRouter(cfg RouterConfig) *gin.Engine {
	h := &handlers{
		sessions:      cfg.Sessions,
		notifications: notification.NewAPI(cfg.Sessions.deps.Client),
		templates:     worksystem.NewAPI(cfg.Sessions.deps.Client),
		log:           cfg.Logger,
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpmiddleware.RequestLogger(cfg.Logger, "/healthz", "/metrics"))
	r.Use(httpmiddleware.CORS())
	r.Use(httpmiddleware.SecurityHeaders())
	if cfg.RateLimiter != nil {
		r.Use(cfg.RateLimiter.GinMiddleware())
	}

	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	r.GET("/healthz", healthHandler(cfg.Health))

	v1 := r.Group("/v1", auth.BearerAuth(cfg.SigningKey, cfg.Issuer), h.withStores)
	v1.GET("/attendance/personal", h.attendancePersonal)
	v1.GET("/vacation/history", h.vacationHistory)
	v1.DELETE("/vacation/history/filters", h.resetVacationFilters)
	v1.GET("/approval/inbox", h.approvalInbox)
	v1.GET("/organization/chart", h.organizationChart)
	v1.GET("/organization/employees/:id/department-history", h.departmentHistory)
	v1.GET("/organization/employees/:id/grade-history", h.gradeHistory)
	v1.GET("/settings/notifications", h.getSettings)
	v1.PUT("/settings/notifications", h.putSettings)
	v1.PUT("/settings/notifications/all", h.putAllSettings)
	v1.DELETE("/settings/notifications", h.resetSettings)

	v1.GET("/notifications", h.listNotifications)
	v1.GET("/notifications/deleted", h.listDeletedNotifications)
	v1.GET("/notifications/unread-count", h.unreadCount)
	v1.PATCH("/notifications/read-all", h.markAllRead)
	v1.PATCH("/notifications/:id/read", h.notificationAction(markRead))
	v1.PATCH("/notifications/:id/delete", h.notificationAction(softDelete))
	v1.PATCH("/notifications/:id/restore", h.notificationAction(restore))
	v1.DELETE("/notifications/:id", h.notificationAction(hardDelete))

	v1.GET("/settings/attendance/work-system-templates", h.listTemplates)
	v1.PUT("/settings/attendance/work-system-templates", h.putTemplates)

	return r
}

func healthHandler(checks map[string]HealthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := http.StatusOK
		body := gin.H{"status": "ok"}
		for name, check := range checks {
			healthy := check(c.Request.Context())
			body[name] = healthy
			if !healthy {
				status = http.StatusServiceUnavailable
				body["status"] = "degraded"
			}
		}
		c.JSON(status, body)
	}
}
