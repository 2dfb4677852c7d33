// Package router provides chat service routing.
package router

import (
	"fmt"

	"github.com/kart-io/logger"

	"github.com/kart-io/codequery/internal/chat/handler"
	"github.com/kart-io/codequery/pkg/infra/server"
)

// Register registers the chat service routes on the HTTP server.
func Register(mgr *server.Manager, chatHandler *handler.ChatHandler) error {
	httpServer := mgr.HTTPServer()
	if httpServer == nil {
		return fmt.Errorf("http server is not enabled")
	}

	engine := httpServer.Engine()
	engine.GET("/healthz", chatHandler.Healthz)

	v1 := engine.Group("/v1")
	{
		chat := v1.Group("/chat")
		{
			chat.POST("/ask", chatHandler.Ask)
			chat.POST("/stream", chatHandler.AskStream)
			chat.GET("/stats", chatHandler.Stats)
		}
	}

	logger.Info("HTTP routes registered")
	return nil
}
