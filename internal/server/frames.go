package server

import (
	"encoding/binary"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"floodsim/internal/sims/flood"
)

const writeWait = 10 * time.Second

// Frame message tags, the first byte of every binary message.
const (
	TagWater   byte = 1
	TagFlux    byte = 2
	TagTerrain byte = 3
)

func fieldTag(f flood.Field) byte {
	switch f {
	case flood.FieldFlux:
		return TagFlux
	case flood.FieldTerrain:
		return TagTerrain
	default:
		return TagWater
	}
}

// EncodeMessage lays out one field of a frame as tag, big-endian tick and
// payload.
func EncodeMessage(f *flood.Frame, field flood.Field) []byte {
	data, _ := f.Bytes(field)
	msg := make([]byte, 9+len(data))
	msg[0] = fieldTag(field)
	binary.BigEndian.PutUint64(msg[1:9], f.Tick)
	copy(msg[9:], data)
	return msg
}

func parseFields(raw string) ([]flood.Field, bool) {
	if raw == "" {
		return []flood.Field{flood.FieldWater}, true
	}
	var out []flood.Field
	for _, part := range strings.Split(raw, ",") {
		f, ok := flood.ParseField(strings.TrimSpace(part))
		if !ok {
			return nil, false
		}
		out = append(out, f)
	}
	return out, true
}

// sameTerrain reports whether b carries the terrain layer already sent with a.
// Each initialised grid gets its own terrain buffer.
func sameTerrain(a, b *flood.Frame) bool {
	if a == nil || b == nil || len(a.Terrain) != len(b.Terrain) || len(a.Terrain) == 0 {
		return false
	}
	return &a.Terrain[0] == &b.Terrain[0] && a.TerrainBase == b.TerrainBase && a.TerrainSpan == b.TerrainSpan
}

// streamFrames pushes the requested fields of every published frame. The
// terrain layer only changes with a new grid, so it is sent with the first
// frame and again after the grid is rebuilt.
func (s *Server) streamFrames(c *gin.Context) {
	fields, valid := parseFields(c.Query("fields"))
	if !valid {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "unknown field"})
		return
	}
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Printf("frame stream upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	frames, cancel := s.engine.Subscribe(s.frameBuffer)
	defer cancel()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	var terrainSent *flood.Frame
	send := func(f *flood.Frame) error {
		for _, field := range fields {
			if field == flood.FieldTerrain {
				if sameTerrain(terrainSent, f) {
					continue
				}
				terrainSent = f
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.BinaryMessage, EncodeMessage(f, field)); err != nil {
				return err
			}
		}
		return nil
	}

	if f := s.engine.Frame(); f != nil {
		if err := send(f); err != nil {
			return
		}
	}
	for {
		select {
		case <-closed:
			return
		case f := <-frames:
			if f == nil {
				continue
			}
			if err := send(f); err != nil {
				s.logger.Printf("frame stream closed: %v", err)
				return
			}
		}
	}
}
