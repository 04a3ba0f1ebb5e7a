package router

import (
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/habitflow/internal/handler"
)

// Setup 配置 Gin 引擎和路由
func Setup(api *handler.API, sessionSecret string) *gin.Engine {
	r := gin.Default()

	// 配置会话中间件
	store := cookie.NewStore([]byte(sessionSecret))
	r.Use(sessions.Sessions("habitflow_session", store))

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "pong",
		})
	})

	auth := r.Group("/api/auth")
	{
		auth.POST("/register", api.Register)
		auth.POST("/login", api.Login)
		auth.POST("/logout", api.Logout)
	}

	// 需要认证的业务路由
	authed := r.Group("/api")
	authed.Use(handler.AuthRequired())
	{
		authed.GET("/habits", api.ListHabits)
		authed.POST("/habits", api.CreateHabit)
		authed.GET("/habits/:id", api.GetHabit)
		authed.PUT("/habits/:id", api.UpdateHabit)
		authed.DELETE("/habits/:id", api.DeleteHabit)
		authed.GET("/habits/:id/entries", api.ListEntries)
		authed.GET("/habits/:id/graph.png", api.HabitGraph)

		authed.POST("/habits/entries", api.ToggleCompletion)

		sync := authed.Group("/sync")
		{
			sync.GET("/status", api.SyncStatus)
			sync.POST("/connectivity", api.SetConnectivity)
			sync.POST("/reconcile", api.Reconcile)
		}
	}

	return r
}
