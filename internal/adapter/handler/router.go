package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echoSwagger "github.com/swaggo/echo-swagger"

	"github.com/johnquangdev/meeting-minutes/internal/domain/entities"
	httpmw "github.com/johnquangdev/meeting-minutes/internal/infrastructure/http/middleware"
	"github.com/johnquangdev/meeting-minutes/pkg/config"
)

// HealthCheck pings one dependency
type HealthCheck func(ctx context.Context) error

// Router holds all handlers
type Router struct {
	cfg              *config.Config
	meetingHandler   *Meeting
	flowchartHandler *Flowchart
	authMiddleware   echo.MiddlewareFunc
	healthChecks     map[string]HealthCheck
}

// NewRouter creates a new router with all handlers
func NewRouter(
	cfg *config.Config,
	meetingHandler *Meeting,
	flowchartHandler *Flowchart,
	authMiddleware echo.MiddlewareFunc,
	healthChecks map[string]HealthCheck,
) *Router {
	return &Router{
		cfg:              cfg,
		meetingHandler:   meetingHandler,
		flowchartHandler: flowchartHandler,
		authMiddleware:   authMiddleware,
		healthChecks:     healthChecks,
	}
}

// Setup configures all application routes
func (rt *Router) Setup(e *echo.Echo) {
	e.GET("/health", rt.healthCheck)
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	v1 := e.Group("/v1", rt.authMiddleware)

	rt.setupMeetingRoutes(v1)
	rt.setupFlowchartRoutes(v1)
	rt.setupMaintenanceRoutes(v1)
}

// setupMeetingRoutes configures meeting routes
func (rt *Router) setupMeetingRoutes(g *echo.Group) {
	meetings := g.Group("/meetings")

	meetings.POST("", rt.meetingHandler.CreateMeeting)
	meetings.GET("", rt.meetingHandler.ListMeetings)
	meetings.GET("/:id", rt.meetingHandler.GetMeeting)
	meetings.DELETE("/:id", rt.meetingHandler.DeleteMeeting)
	meetings.POST("/:id/retry", rt.meetingHandler.RetryMeeting)
	meetings.POST("/:id/refine", rt.meetingHandler.RefineMinutes)
	meetings.POST("/:id/flowchart", rt.meetingHandler.RegenerateFlowchart)
	meetings.POST("/:id/share", rt.meetingHandler.ShareMeeting)
	meetings.GET("/:id/export", rt.meetingHandler.ExportMinutes)
}

// setupFlowchartRoutes configures flowchart routes
func (rt *Router) setupFlowchartRoutes(g *echo.Group) {
	g.POST("/flowcharts/render", rt.flowchartHandler.Render)
}

// setupMaintenanceRoutes configures admin-only maintenance routes
func (rt *Router) setupMaintenanceRoutes(g *echo.Group) {
	maintenance := g.Group("/maintenance", httpmw.RequireRole(entities.RoleGeneralAdmin, entities.RoleCompanyAdmin))
	maintenance.POST("/cleanup-audio", rt.meetingHandler.CleanupAudio)
}

// healthCheck returns health status
// @Summary      Health check
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      503  {object}  map[string]interface{}
// @Router       /health [get]
func (rt *Router) healthCheck(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(rt.healthChecks))
	for name, check := range rt.healthChecks {
		if err := check(ctx); err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	environment := ""
	if rt.cfg != nil {
		environment = rt.cfg.Server.Environment
	}

	state := "ok"
	if status != http.StatusOK {
		state = "degraded"
	}
	return c.JSON(status, map[string]interface{}{
		"status":      state,
		"environment": environment,
		"checks":      checks,
		"time":        time.Now().Format(time.RFC3339),
	})
}
