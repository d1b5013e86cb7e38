package captcha

import (
	"bytes"
	"crypto/rand"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math/big"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Alphabet excludes glyphs that are easy to confuse (0/O, 1/I/L).
const Alphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

const (
	glyphWidth = 7
	baseHeight = 22
	scale      = 4
)

// GenerateCode returns n characters drawn uniformly from Alphabet.
func GenerateCode(n int) (string, error) {
	out := make([]byte, n)
	size := big.NewInt(int64(len(Alphabet)))
	for i := range out {
		v, err := rand.Int(rand.Reader, size)
		if err != nil {
			return "", err
		}
		out[i] = Alphabet[v.Int64()]
	}
	return string(out), nil
}

// Render draws code on a noisy background and returns the PNG bytes.
func Render(code string) ([]byte, error) {
	w := len(code)*(glyphWidth+3) + 10
	small := image.NewRGBA(image.Rect(0, 0, w, baseHeight))
	draw.Draw(small, small.Bounds(), image.NewUniform(color.RGBA{0xf4, 0xf4, 0xf0, 0xff}), image.Point{}, draw.Src)

	if err := noise(small, w*baseHeight/6); err != nil {
		return nil, err
	}

	x := 5
	for i, r := range code {
		dy, err := randInt(5)
		if err != nil {
			return nil, err
		}
		d := &font.Drawer{
			Dst:  small,
			Src:  image.NewUniform(inkColors[i%len(inkColors)]),
			Face: basicfont.Face7x13,
			Dot:  fixed.P(x, 14+dy-2),
		}
		d.DrawString(string(r))
		x += glyphWidth + 3
	}

	out := image.NewRGBA(image.Rect(0, 0, w*scale, baseHeight*scale))
	draw.ApproxBiLinear.Scale(out, out.Bounds(), small, small.Bounds(), draw.Src, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return nil, fmt.Errorf("encode captcha: %w", err)
	}
	return buf.Bytes(), nil
}

var inkColors = []color.RGBA{
	{0x1f, 0x3a, 0x93, 0xff},
	{0x8b, 0x1e, 0x3f, 0xff},
	{0x1b, 0x5e, 0x20, 0xff},
	{0x4a, 0x14, 0x8c, 0xff},
}

func noise(img *image.RGBA, dots int) error {
	b := img.Bounds()
	for i := 0; i < dots; i++ {
		x, err := randInt(b.Dx())
		if err != nil {
			return err
		}
		y, err := randInt(b.Dy())
		if err != nil {
			return err
		}
		shade := uint8(0x90 + (x*y)%0x40)
		img.SetRGBA(x, y, color.RGBA{shade, shade, shade, 0xff})
	}
	return nil
}

func randInt(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, err
	}
	return int(v.Int64()), nil
}
