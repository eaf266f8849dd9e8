package router

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/itay-sho/co-buddies-server/src/bus"
	"github.com/itay-sho/co-buddies-server/src/config"
	"github.com/itay-sho/co-buddies-server/src/session"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// NewRouter sets up the HTTP surface: the WebSocket endpoint that accepts
// chat connections and a liveness probe. There is no REST API. Sessions
// live under ctx, the server's lifecycle context, not the upgrade
// request's.
func NewRouter(ctx context.Context, cfg *config.GlobalConfig, b *bus.Bus) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/ws", chatHandler(ctx, cfg, b))
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return router
}

// chatHandler upgrades the connection and hands it to a fresh session
// state machine. The connection is accepted immediately; authentication is
// the session's first order of business.
func chatHandler(ctx context.Context, cfg *config.GlobalConfig, b *bus.Bus) gin.HandlerFunc {
	return func(c *gin.Context) {
		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			slog.Warn("websocket upgrade failed", "error", err)
			return
		}

		conn := newWSConn(ws)
		s, err := session.New(b, conn, session.Config{
			AuthTimeout:       cfg.AuthTimeout,
			InactivityTimeout: cfg.InactivityTimeout,
		})
		if err != nil {
			slog.Error("failed to create session", "error", err)
			ws.Close()
			return
		}

		go s.Run(ctx)
		go conn.readPump(s)
		go conn.writePump()
	}
}
