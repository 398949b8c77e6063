package handlers

import (
	"tablefilter/middleware"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// NewRouter wires the filter session API.
func NewRouter(reg *Registry, apiKey string, log logrus.FieldLogger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(log))

	r.GET("/health", HealthCheck)

	api := r.Group("/", middleware.AuthRequired(apiKey))
	api.GET("/periods", ListPeriods)
	api.POST("/sessions", CreateSession(reg))
	api.GET("/sessions/:id", GetSession(reg))
	api.DELETE("/sessions/:id", DeleteSession(reg))
	api.PUT("/sessions/:id/search", UpdateSearch(reg))
	api.PUT("/sessions/:id/operator", UpdateOperator(reg))
	api.PUT("/sessions/:id/period", UpdatePeriod(reg))
	api.PUT("/sessions/:id/range", UpdateRange(reg))
	api.PUT("/sessions/:id/loading", UpdateLoading(reg))
	api.GET("/sessions/:id/events", StreamFilters(reg))
	api.GET("/sessions/:id/query", GetQuery(reg))

	return r
}
