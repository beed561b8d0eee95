package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	iauth "github.com/openbiolabs/noderepo/internal/auth"
	"github.com/openbiolabs/noderepo/internal/authz"
	"github.com/openbiolabs/noderepo/internal/entity"
	"github.com/openbiolabs/noderepo/internal/handlers"
	"github.com/openbiolabs/noderepo/internal/middleware"
	"github.com/openbiolabs/noderepo/internal/revision"
)

// NewRouter builds the Gin engine, wires middleware and registers the API routes.
func NewRouter(db *gorm.DB, jwt *iauth.JWTService) (*gin.Engine, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if jwt == nil {
		return nil, fmt.Errorf("jwt service must be provided")
	}

	index, err := authz.NewIndex(db)
	if err != nil {
		return nil, err
	}
	gate, err := authz.NewGate(db, index)
	if err != nil {
		return nil, err
	}
	manager, err := entity.NewManager(db, gate, index)
	if err != nil {
		return nil, err
	}
	revisions, err := revision.NewManager(db)
	if err != nil {
		return nil, err
	}
	authSvc, err := iauth.NewService(db, jwt)
	if err != nil {
		return nil, err
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())

	r.GET("/health", handlers.Health())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.NoRoute(middleware.NotFoundHandler)

	authHandler := handlers.NewAuthHandler(authSvc)
	entityHandler := handlers.NewEntityHandler(manager)
	groupHandler := handlers.NewGroupHandler(index, gate)
	revisionHandler := handlers.NewRevisionHandler(revisions)

	// Public auth routes
	r.POST("/api/auth/login", authHandler.Login)

	// Entity routes resolve identity but allow anonymous callers: public-group
	// grants make anonymously created entities readable by anyone.
	entities := r.Group("/api/entities")
	entities.Use(middleware.Identity(jwt))
	{
		entities.POST("", entityHandler.Create)
		entities.GET("", entityHandler.List)
		entities.GET("/:id", entityHandler.Get)
		entities.PUT("/:id", entityHandler.Update)
		entities.DELETE("/:id", entityHandler.Delete)
		entities.GET("/:id/children", entityHandler.Children)
		entities.POST("/:id/children", entityHandler.AggregateUpdate)
		entities.GET("/:id/annotations", entityHandler.GetAnnotations)
		entities.PUT("/:id/annotations", entityHandler.UpdateAnnotations)
		entities.GET("/:id/access", entityHandler.WhoHasAccess)
		entities.GET("/:id/access/check", entityHandler.HasAccess)
	}

	requireAuth := middleware.Auth(jwt)

	groups := r.Group("/api/groups")
	groups.Use(requireAuth)
	{
		groups.GET("/public", groupHandler.Public)
		groups.GET("/me", groupHandler.Mine)
		groups.POST("/:id/members", groupHandler.AddMember)
		groups.DELETE("/:id/members/:userID", groupHandler.RemoveMember)
	}

	series := r.Group("/api/series")
	series.Use(requireAuth)
	{
		series.POST("/:id/revisions", revisionHandler.Revise)
		series.GET("/:id/revisions", revisionHandler.All)
		series.GET("/:id/revisions/:version", revisionHandler.Version)
		series.GET("/:id/latest", revisionHandler.Latest)
		series.DELETE("/:id", revisionHandler.DeleteAll)
	}

	return r, nil
}
