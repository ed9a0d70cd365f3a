package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/yoockh/lumina/internal/api/handlers"
)

type Deps struct {
	Expand *handlers.ExpandHandler
	Studio *handlers.StudioHandler
	WS     *handlers.WSHandler

	// DictationEnabled registers POST /api/dictate.
	DictationEnabled bool
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	// Health-ish
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})

	api := r.Group("/api")
	api.POST("/expand", d.Expand.Expand)
	api.POST("/image", d.Expand.Image)
	if d.DictationEnabled {
		api.POST("/dictate", d.Expand.Dictate)
	}

	studio := api.Group("/studio")
	studio.POST("/generate", d.Studio.Generate)
	studio.POST("/modify", d.Studio.Modify)
	studio.POST("/regenerate", d.Studio.Regenerate)
	studio.POST("/batch", d.Studio.Batch)
	studio.GET("/view", d.Studio.View)
	studio.GET("/history", d.Studio.History)
	studio.POST("/history/:id/select", d.Studio.SelectHistory)
	studio.DELETE("/history/:id", d.Studio.DeleteHistory)
	studio.GET("/notices", d.Studio.Notices)
	studio.POST("/notices/:id/reclaim", d.Studio.Reclaim)
	studio.DELETE("/notices/:id", d.Studio.DismissNotice)

	// WebSocket
	r.GET("/ws/studio", d.WS.StudioWS)
}
