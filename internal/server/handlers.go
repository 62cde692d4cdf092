package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"floodsim/internal/sims/flood"
)

type positionRequest struct {
	Lon *float64 `json:"lon" binding:"required"`
	Lat *float64 `json:"lat" binding:"required"`
}

func fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, flood.ErrInvalidState):
		status = http.StatusConflict
	case errors.Is(err, flood.ErrOutsideExtent):
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, gin.H{"success": false, "error": err.Error()})
}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

func (s *Server) getInfo(c *gin.Context) {
	ok(c, s.engine.Info())
}

func (s *Server) getOptions(c *gin.Context) {
	ok(c, s.engine.Options())
}

func (s *Server) postStart(c *gin.Context) {
	if err := s.engine.Start(); err != nil {
		fail(c, err)
		return
	}
	ok(c, s.engine.Info())
}

func (s *Server) postStop(c *gin.Context) {
	s.engine.Stop()
	ok(c, s.engine.Info())
}

func (s *Server) postClear(c *gin.Context) {
	if err := s.engine.Clear(); err != nil {
		fail(c, err)
		return
	}
	ok(c, s.engine.Info())
}

func (s *Server) postReset(c *gin.Context) {
	if err := s.engine.Reset(); err != nil {
		fail(c, err)
		return
	}
	ok(c, s.engine.Info())
}

func (s *Server) addEntry(add func(lon, lat float64) (flood.Entry, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req positionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
			return
		}
		entry, err := add(*req.Lon, *req.Lat)
		if err != nil {
			fail(c, err)
			return
		}
		ok(c, entry)
	}
}

func (s *Server) postRandomSource(c *gin.Context) {
	entry, err := s.engine.AddRandomSourcePosition()
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, entry)
}

func (s *Server) clearEntries(clear func() (int, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := clear()
		if err != nil {
			fail(c, err)
			return
		}
		ok(c, gin.H{"removed": n})
	}
}

func (s *Server) listEntries(kind flood.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		entries, err := s.engine.Entries(kind)
		if err != nil {
			fail(c, err)
			return
		}
		if entries == nil {
			entries = []flood.Entry{}
		}
		ok(c, entries)
	}
}

func (s *Server) deleteEntry(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid entry id"})
		return
	}
	removed, err := s.engine.RemoveEntry(id)
	if err != nil {
		fail(c, err)
		return
	}
	if !removed {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "entry not found"})
		return
	}
	ok(c, gin.H{"removed": 1})
}

func (s *Server) getFrame(c *gin.Context) {
	field, valid := flood.ParseField(c.Param("field"))
	if !valid {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "unknown field"})
		return
	}
	frame := s.engine.Frame()
	if frame == nil {
		fail(c, flood.ErrInvalidState)
		return
	}
	data, channels := frame.Bytes(field)
	c.Header("X-Grid-Size", strconv.Itoa(frame.GridSize))
	c.Header("X-Channels", strconv.Itoa(channels))
	c.Header("X-Tick", strconv.FormatUint(frame.Tick, 10))
	c.Data(http.StatusOK, "application/octet-stream", data)
}
