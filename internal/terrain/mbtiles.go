package terrain

import (
	"context"
	"fmt"
	"time"

	"github.com/paulmach/orb/maptile"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Tile is a row of the MBTiles tiles table. Rows follow the TMS scheme.
type Tile struct {
	ZoomLevel  int64
	TileColumn int64
	TileRow    int64
	TileData   []byte
}

// TableName pins the MBTiles table name.
func (Tile) TableName() string { return "tiles" }

// MBTilesSource reads terrain-RGB tiles from an MBTiles DEM.
type MBTilesSource struct {
	tiled
	db *gorm.DB
}

// OpenMBTiles opens the DEM at path. A zoom of zero or below selects the
// deepest level stored in the file.
func OpenMBTiles(path string, zoom int, enc Encoding) (*MBTilesSource, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open mbtiles %s: %w", path, err)
	}
	return newMBTilesSource(db, zoom, enc)
}

func newMBTilesSource(db *gorm.DB, zoom int, enc Encoding) (*MBTilesSource, error) {
	if zoom <= 0 {
		var maxZoom int64
		if err := db.Model(&Tile{}).Select("MAX(zoom_level)").Scan(&maxZoom).Error; err != nil {
			return nil, fmt.Errorf("mbtiles max zoom: %w", err)
		}
		zoom = int(maxZoom)
	}
	s := &MBTilesSource{db: db}
	s.zoom = maptile.Zoom(zoom)
	s.enc = enc
	s.cache = NewTileCache(1024, time.Hour)
	s.fetch = s.read
	return s, nil
}

// Zoom reports the level tiles are read from.
func (s *MBTilesSource) Zoom() int { return int(s.zoom) }

// Elevation implements ElevationSource.
func (s *MBTilesSource) Elevation(ctx context.Context, lon, lat float64) (float64, error) {
	return s.elevation(ctx, lon, lat)
}

func (s *MBTilesSource) read(ctx context.Context, t maptile.Tile) ([]byte, error) {
	row := int64(1)<<uint(t.Z) - 1 - int64(t.Y)
	var rows []Tile
	err := s.db.WithContext(ctx).
		Where("zoom_level = ? AND tile_column = ? AND tile_row = ?", int64(t.Z), int64(t.X), row).
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("mbtiles tile %d/%d/%d: %w", t.Z, t.X, t.Y, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("mbtiles tile %d/%d/%d: %w", t.Z, t.X, t.Y, ErrTileNotFound)
	}
	return rows[0].TileData, nil
}

// Close releases the database handle.
func (s *MBTilesSource) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
