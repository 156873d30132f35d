package render

import (
	"fmt"
	"sync"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
)

// Weight selects one of the embedded typefaces.
type Weight int

const (
	Regular Weight = iota
	Bold
)

var (
	fontsOnce sync.Once
	fonts     map[Weight]*truetype.Font
	fontsErr  error
)

func loadFonts() {
	fonts = make(map[Weight]*truetype.Font, 2)
	for w, ttf := range map[Weight][]byte{Regular: goregular.TTF, Bold: gobold.TTF} {
		f, err := truetype.Parse(ttf)
		if err != nil {
			fontsErr = fmt.Errorf("parse font: %w", err)
			return
		}
		fonts[w] = f
	}
}

// Face returns a font face of the given weight and size in pixels.
// Faces are not safe for concurrent use; take a new one per drawing.
func Face(weight Weight, size float64) (font.Face, error) {
	fontsOnce.Do(loadFonts)
	if fontsErr != nil {
		return nil, &Error{Op: "load font", Err: fontsErr}
	}

	return truetype.NewFace(fonts[weight], &truetype.Options{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	}), nil
}
