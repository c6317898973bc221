package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Router struct {
	Engine *gin.Engine
}

func NewRouter(
	authHandler *AuthHandler,
	emailHandler *EmailHandler,
	notificationHandler *NotificationHandler,
	jwtSecret string,
) *Router {
	r := gin.Default()
	r.Use(MetricsMiddleware())

	// Public
	r.POST("/register", authHandler.Register)
	r.POST("/login", authHandler.Login)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Protected
	auth := r.Group("/")
	auth.Use(AuthMiddleware(jwtSecret))
	{
		auth.POST("/emails/send", emailHandler.Send)
		auth.POST("/emails/draft", emailHandler.SaveDraft)
		auth.GET("/emails/sent", emailHandler.ListSent)
		auth.GET("/emails/drafts", emailHandler.ListDrafts)
		auth.GET("/emails/:id", emailHandler.GetEmail)
		auth.PUT("/emails/:id", emailHandler.UpdateDraft)
		auth.DELETE("/emails/:id", emailHandler.Delete)
		auth.GET("/notifications", notificationHandler.List)
	}

	return &Router{Engine: r}
}

func (r *Router) Run(port string) error {
	return r.Engine.Run(port)
}
