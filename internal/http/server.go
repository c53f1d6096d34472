// README: API gateway; registers HTTP routes and delegates to module services.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fleetops/internal/audit"
	"fleetops/internal/http/handlers"
	"fleetops/internal/http/middleware"
	"fleetops/internal/infra"
	"fleetops/internal/logger"
	"fleetops/internal/metrics"
	"fleetops/internal/modules/assignment"
	"fleetops/internal/modules/driver"
	"fleetops/internal/modules/fleet"
	"fleetops/internal/modules/merge"
	"fleetops/internal/modules/trip"
)

type ServerDeps struct {
	Trips       *trip.Service
	Fleet       *fleet.Service
	Drivers     *driver.Service
	Assignments *assignment.Service
	Merges      *merge.Service
	Audit       *audit.Store
	Verifier    infra.TokenVerifier
	Metrics     *metrics.Metrics
	Log         logger.Logger
}

type Server struct {
	deps ServerDeps
}

func NewServer(deps ServerDeps) *Server {
	if deps.Log == nil {
		deps.Log = logger.Nop{}
	}
	return &Server{deps: deps}
}

func (s *Server) Routes() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(
		middleware.Recovery(s.deps.Log),
		middleware.Logging(s.deps.Log),
		middleware.Metrics(s.deps.Metrics),
	)

	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api", middleware.Auth(s.deps.Verifier))

	tripHandler := handlers.NewTripHandler(s.deps.Trips)
	api.POST("/trips", tripHandler.Create)
	api.GET("/trips", tripHandler.ListByRequester)
	api.GET("/trips/:id", tripHandler.Get)
	api.POST("/trips/:id/start", tripHandler.Start)
	api.POST("/trips/:id/complete", tripHandler.Complete)
	api.POST("/trips/:id/breakdown", tripHandler.Breakdown)
	api.POST("/trips/:id/cancel", tripHandler.Cancel)

	mergeHandler := handlers.NewMergeHandler(s.deps.Merges)
	api.POST("/trips/:id/merge/accept", mergeHandler.Accept)
	api.POST("/trips/:id/merge/reject", mergeHandler.Reject)

	admin := api.Group("", middleware.RequireRole("admin"))
	admin.POST("/trips/:id/approve", tripHandler.Approve)
	admin.POST("/trips/:id/reject", tripHandler.Reject)
	admin.POST("/trips/:id/reassign", tripHandler.Reassign)
	admin.GET("/trips/reassignments", tripHandler.ListReassignments)
	admin.POST("/trips/import", tripHandler.Import)
	admin.POST("/trips/:id/merge/propose", mergeHandler.Propose)
	admin.POST("/trips/:id/merge/finalize", mergeHandler.Finalize)

	fleetHandler := handlers.NewFleetHandler(s.deps.Fleet)
	api.GET("/vehicles", fleetHandler.List)
	api.GET("/vehicles/:id", fleetHandler.Get)
	api.GET("/fleet/health", fleetHandler.Health)
	admin.POST("/vehicles", fleetHandler.Register)
	admin.POST("/vehicles/:id/repair/complete", fleetHandler.CompleteRepair)

	driverHandler := handlers.NewDriverHandler(s.deps.Drivers)
	api.GET("/drivers", driverHandler.List)
	api.GET("/drivers/:id", driverHandler.Get)
	admin.POST("/drivers", driverHandler.Register)

	assignmentHandler := handlers.NewAssignmentHandler(s.deps.Assignments)
	admin.POST("/vehicles/:id/assign", assignmentHandler.Assign)
	admin.POST("/vehicles/:id/unassign", assignmentHandler.Unassign)
	api.GET("/vehicles/:id/assignments", assignmentHandler.History)

	adminHandler := handlers.NewAdminHandler(s.deps.Audit)
	admin.GET("/audit", adminHandler.AuditLog)

	return r
}
