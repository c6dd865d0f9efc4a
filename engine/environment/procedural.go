package environment

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-pbr/common"
	"github.com/chewxy/math32"
)

// Procedural generates an equirectangular sky gradient: sky at the zenith, ground at the nadir and a smooth blend
// around the horizon. Rows run from the zenith down.
//
// Parameters:
//   - width, height: the image size in pixels
//   - sky: the zenith RGB radiance
//   - ground: the nadir RGB radiance
//
// Returns:
//   - *common.HDRImage: the image
//   - error: an error if either dimension is not positive
func Procedural(width, height int, sky, ground [3]float32) (*common.HDRImage, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("procedural environment needs a positive size, got %dx%d", width, height)
	}
	img := &common.HDRImage{Width: width, Height: height, Pixels: make([]float32, width*height*4)}
	for y := range height {
		elevation := math32.Cos(math32.Pi * (float32(y) + 0.5) / float32(height))
		t := smoothstep(-0.2, 0.2, elevation)
		c := [4]float32{1, 1, 1, 1}
		for i := range 3 {
			c[i] = ground[i]*(1-t) + sky[i]*t
		}
		for x := range width {
			img.Set(x, y, c)
		}
	}
	return img, nil
}

func smoothstep(edge0, edge1, x float32) float32 {
	t := min(max((x-edge0)/(edge1-edge0), 0), 1)
	return t * t * (3 - 2*t)
}
