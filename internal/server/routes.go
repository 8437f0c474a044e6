package server

import (
	"github.com/NimaFathima/astrobiomers/internal/server/middleware"
	"github.com/NimaFathima/astrobiomers/internal/server/routes"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func RegisterRoutes(e *echo.Echo) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		return c.String(200, "OK")
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	apiRoutes := e.Group("/api")

	// Chat routes
	apiRoutes.POST("/chat/ask", routes.AskQuestionHandler)
	apiRoutes.GET("/chat/health", routes.ChatHealthHandler)
	apiRoutes.GET("/chat/examples", routes.ChatExamplesHandler)
	apiRoutes.POST("/chat/conversations", routes.StartConversationHandler)
	apiRoutes.GET("/chat/conversations/:id", routes.GetConversationHandler)
	apiRoutes.POST("/chat/conversations/:id/ask", routes.AskInConversationHandler)

	// Evidence routes
	apiRoutes.POST("/evidence/edge", routes.GetEdgeEvidenceHandler)
	apiRoutes.GET("/evidence/all-edges", routes.GetAllEdgeEvidenceHandler)
	apiRoutes.POST("/evidence/papers-by-entities", routes.SearchPapersByEntitiesHandler)
	apiRoutes.GET("/evidence/health", routes.EvidenceHealthHandler)

	// Graph routes
	apiRoutes.GET("/graph/statistics", routes.GetGraphStatisticsHandler)
	apiRoutes.GET("/graph/subgraph/:id", routes.GetEntityNeighborsHandler)
	apiRoutes.GET("/graph/path/:source/:target", routes.GetShortestPathHandler)
	apiRoutes.GET("/entities", routes.ListEntitiesHandler)
	apiRoutes.GET("/entities/:id", routes.GetEntityHandler)
	apiRoutes.GET("/entities/:id/neighbors", routes.GetEntityNeighborsHandler)
	apiRoutes.GET("/entities/:id/papers", routes.GetEntityPapersHandler)
	apiRoutes.GET("/entities/:id/relationships", routes.GetEntityRelationshipsHandler)

	// Search routes
	apiRoutes.POST("/search", routes.SearchHandler)
	apiRoutes.GET("/search/papers", routes.SearchPapersHandler)
	apiRoutes.GET("/search/entities", routes.SearchEntitiesHandler)
	apiRoutes.GET("/search/autocomplete", routes.AutocompleteHandler)

	// Analytics routes
	apiRoutes.GET("/analytics/top-entities", routes.TopEntitiesHandler)
	apiRoutes.GET("/analytics/co-occurrence", routes.CoOccurrenceHandler)
	apiRoutes.GET("/analytics/publication-trends", routes.PublicationTrendsHandler)
	apiRoutes.GET("/analytics/entity-type-distribution", routes.EntityTypeDistributionHandler)
	apiRoutes.GET("/analytics/relationship-type-distribution", routes.RelationshipTypeDistributionHandler)

	// Trend routes
	apiRoutes.GET("/trends/timeline", routes.TimelineHandler)
	apiRoutes.GET("/trends/emerging", routes.EmergingTopicsHandler)
	apiRoutes.GET("/trends/collaborations", routes.CollaborationsHandler)
	apiRoutes.GET("/trends/top-authors", routes.TopAuthorsHandler)
	apiRoutes.GET("/trends/co-occurrence", routes.TopicCoOccurrenceHandler)
	apiRoutes.GET("/trends/health", routes.TrendsHealthHandler)

	// Corpus routes
	apiRoutes.GET("/papers", routes.GetPapersHandler)
	apiRoutes.GET("/papers/:pmid", routes.GetPaperHandler)
	apiRoutes.POST("/papers/similar", routes.SimilarPapersHandler)

	// Pipeline routes
	pipelineRoutes := apiRoutes.Group("/pipeline", middleware.AuthMiddleware)
	pipelineRoutes.POST("/ingest", routes.IngestPapersHandler, middleware.RequirePermission(middleware.PermissionIngest))
	pipelineRoutes.GET("/jobs/:id", routes.GetIngestJobHandler, middleware.RequirePermission(middleware.PermissionJobView))
}
