package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransformOutsideChinaIsIdentity(t *testing.T) {
	lat, lon := TransformWgs84ToGcj02(0, 0)
	assert.Equal(t, 0.0, lat)
	assert.Equal(t, 0.0, lon)
}

func TestTransformBeijingWithinTolerance(t *testing.T) {
	lat, lon := TransformWgs84ToGcj02(39.90, 116.40)
	assert.InDelta(t, 39.90123, lat, 1e-5)
	assert.InDelta(t, 116.40603, lon, 1e-5)
}

func TestTransformSanityBoundInsideChina(t *testing.T) {
	lat, lon := TransformWgs84ToGcj02(31.23, 121.47) // Shanghai
	assert.Less(t, math.Abs(lat-31.23), 0.01)
	assert.Less(t, math.Abs(lon-121.47), 0.01)
}

func TestInChinaBoundingRectangle(t *testing.T) {
	assert.True(t, InChina(3.51, 73.33))
	assert.True(t, InChina(53.33, 135.05))
	assert.False(t, InChina(-22.0, 114.0))
	assert.False(t, InChina(math.NaN(), 10))
}
