package raster

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// tileKey builds the cache key for one tile. The URL template is hashed so
// keys from different basemap providers never collide, while the z/x/y part
// stays readable for debugging.
func tileKey(template string, z, x, y int) string {
	return fmt.Sprintf("tile:%016x:%d:%d:%d", xxhash.Sum64String(template), z, x, y)
}
