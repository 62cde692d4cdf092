// Package server exposes a flood engine over HTTP and streams encoded frames
// to WebSocket clients.
package server

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"floodsim/internal/sims/flood"
)

type Config struct {
	Logger *log.Logger
	// FrameBuffer is the per-client queue length before frames are dropped.
	FrameBuffer int
}

type Server struct {
	engine      *flood.Engine
	logger      *log.Logger
	upgrader    websocket.Upgrader
	frameBuffer int
}

func New(engine *flood.Engine, cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	buffer := cfg.FrameBuffer
	if buffer <= 0 {
		buffer = 4
	}
	return &Server{
		engine: engine,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		frameBuffer: buffer,
	}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	api := r.Group("/api")
	api.GET("/info", s.getInfo)
	api.GET("/options", s.getOptions)
	api.POST("/start", s.postStart)
	api.POST("/stop", s.postStop)
	api.POST("/clear", s.postClear)
	api.POST("/reset", s.postReset)

	api.GET("/sources", s.listEntries(flood.KindSource))
	api.POST("/sources", s.addEntry(s.engine.AddWaterSourcePosition))
	api.DELETE("/sources", s.clearEntries(s.engine.ClearWaterSourcePositions))
	api.POST("/sources/random", s.postRandomSource)
	api.GET("/sinks", s.listEntries(flood.KindSink))
	api.POST("/sinks", s.addEntry(s.engine.AddWaterMinusSourcePosition))
	api.DELETE("/sinks", s.clearEntries(s.engine.ClearWaterMinusSourcePositions))
	api.GET("/seawalls", s.listEntries(flood.KindSeaWall))
	api.POST("/seawalls", s.addEntry(s.engine.AddSeaWallPosition))
	api.DELETE("/seawalls", s.clearEntries(s.engine.ClearSeaWallPositions))
	api.DELETE("/entries/:id", s.deleteEntry)

	api.GET("/frame/:field", s.getFrame)
	r.GET("/ws/frames", s.streamFrames)
	return r
}
