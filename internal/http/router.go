// README: HTTP router registration.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"rakshak/internal/http/handlers"
	"rakshak/internal/http/middleware"
	"rakshak/internal/modules/incident"
	"rakshak/internal/ws"
)

func NewRouter(incidentService *incident.Service, hub *ws.Hub, log *logrus.Logger) http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(middleware.Logging(log))
	r.Use(middleware.Recovery(log))

	incidentHandler := handlers.NewIncidentHandler(incidentService)
	r.POST("/api/incidents", incidentHandler.Report)
	r.GET("/api/incidents", incidentHandler.List)
	r.GET("/api/incidents/:id", incidentHandler.Get)
	r.PUT("/api/incidents/:id/status", incidentHandler.UpdateStatus)

	r.GET("/ws", hub.Handle)

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	return r
}
