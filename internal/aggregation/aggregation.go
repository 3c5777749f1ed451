package aggregation

import (
	"image"
	"runtime"
	"sync"

	"github.com/maax3v3/vorocal/internal/color"
	"github.com/maax3v3/vorocal/internal/oplog"
)

// ColorEntry is one legend line: a fill color with its assigned number.
type ColorEntry struct {
	Number int
	Color  color.RGBA
	Hex    string
	Name   string // palette name, or "" for custom colors
	Fills  int    // operations that used this color
	Pixels int    // pixels of the image currently painted this color
}

// Label is the palette name, or the hex code for custom colors.
func (e ColorEntry) Label() string {
	if e.Name != "" {
		return e.Name
	}
	return e.Hex
}

// Legend groups ops by color in order of first use. Operations whose color
// does not parse are ignored. Numbers are 1-based.
func Legend(ops []oplog.Operation, palette color.Palette) []ColorEntry {
	index := make(map[color.RGBA]int)
	var entries []ColorEntry
	for _, op := range oplog.Sorted(ops) {
		c, err := color.ParseHex(op.Color)
		if err != nil {
			continue
		}
		if i, ok := index[c]; ok {
			entries[i].Fills++
			continue
		}
		index[c] = len(entries)
		entries = append(entries, ColorEntry{
			Number: len(entries) + 1,
			Color:  c,
			Hex:    c.Hex(),
			Name:   palette.Name(c.Hex()),
			Fills:  1,
		})
	}
	return entries
}

// CountPixels sets Pixels on each entry to the number of pixels of img whose
// RGB equals the entry color. Rows are counted in parallel.
func CountPixels(img *image.NRGBA, entries []ColorEntry) {
	if len(entries) == 0 {
		return
	}
	index := make(map[[3]uint8]int, len(entries))
	for i := range entries {
		entries[i].Pixels = 0
		c := entries[i].Color
		index[[3]uint8{c.R, c.G, c.B}] = i
	}

	b := img.Bounds()
	h := b.Dy()
	workers := runtime.NumCPU()
	if workers > h {
		workers = h
	}
	if workers < 1 {
		return
	}
	partial := make([][]int, workers)
	rowsPerWorker := (h + workers - 1) / workers

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		startY := w * rowsPerWorker
		endY := startY + rowsPerWorker
		if endY > h {
			endY = h
		}
		if startY >= endY {
			continue
		}
		partial[w] = make([]int, len(entries))
		wg.Add(1)
		go func(counts []int, startY, endY int) {
			defer wg.Done()
			for y := startY; y < endY; y++ {
				off := img.PixOffset(b.Min.X, b.Min.Y+y)
				row := img.Pix[off : off+b.Dx()*4]
				for x := 0; x < len(row); x += 4 {
					if i, ok := index[[3]uint8{row[x], row[x+1], row[x+2]}]; ok {
						counts[i]++
					}
				}
			}
		}(partial[w], startY, endY)
	}
	wg.Wait()

	for _, counts := range partial {
		for i, n := range counts {
			entries[i].Pixels += n
		}
	}
}
