// Package agent serves a Session over local JSON HTTP so a browser or
// mobile front end can drive it.
package agent

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kamnsolar/field_capture/config"
	"github.com/kamnsolar/field_capture/session"
)

type Options struct {
	Production     bool
	AllowedOrigins string
}

func NewRouter(sess *session.Session, opts Options) *gin.Engine {
	r := gin.New()
	r.Use(correlationMiddleware())
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	r.Use(corsMiddleware(opts.Production, opts.AllowedOrigins))
	r.Use(requestLogger(config.GetLogger()))
	r.Use(gin.Recovery())

	api := r.Group("/api")
	api.GET("/session", viewHandler(sess))
	api.POST("/session/restore", restoreHandler(sess))
	api.PUT("/session/form", formHandler(sess))
	api.DELETE("/session", clearAllHandler(sess))

	api.POST("/customers", createCustomerHandler(sess))
	api.POST("/customers/search", loadExistingHandler(sess))
	api.POST("/customers/current/edit", editDetailsHandler(sess))
	api.PUT("/customers/current", saveDetailsHandler(sess))
	api.POST("/customers/current/refresh", refreshHandler(sess))
	api.POST("/customers/current/change", changeCustomerHandler(sess))

	api.POST("/slots/:section/:slot/photo", capturePhotoHandler(sess))
	api.DELETE("/slots/:section/:slot", removePhotoHandler(sess))
	api.GET("/slots/:section/:slot/thumbnail", thumbnailHandler(sess))
	api.DELETE("/sections/:section", clearSectionHandler(sess))
	api.POST("/sections/:section/submit", submitSectionHandler(sess))
	api.POST("/submit", submitAllHandler(sess))

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
	})
	return r
}

func OptionsFromEnv() Options {
	return Options{Production: config.IsProduction(), AllowedOrigins: config.CORSAllowedOrigins()}
}
