package renderer

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/maax3v3/vorocal/internal/aggregation"
	"github.com/maax3v3/vorocal/internal/imaging"
	"github.com/maax3v3/vorocal/internal/store"
)

// Sheet is the content of a printable export.
type Sheet struct {
	Title      string
	Image      image.Image
	Legend     []aggregation.ColorEntry
	Notes      []store.Note
	ExportedAt time.Time
}

const (
	pageMargin = 12.0 // mm
	maxImageH  = 170.0
)

// WritePDF renders sh as an A4 PDF: the image scaled to the page width,
// then the legend and the numbered notes.
func WritePDF(w io.Writer, sh Sheet) error {
	if sh.Image == nil {
		return fmt.Errorf("pdf: no image")
	}
	var png bytes.Buffer
	if err := imaging.EncodePNG(&png, sh.Image); err != nil {
		return fmt.Errorf("pdf: %w", err)
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(true, pageMargin)
	pdf.SetTitle(sh.Title, true)
	pdf.SetCreator("vorocal", true)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 9, tr(sh.Title), "", 1, "L", false, 0, "")
	if !sh.ExportedAt.IsZero() {
		pdf.SetFont("Helvetica", "", 9)
		pdf.SetTextColor(110, 110, 110)
		pdf.CellFormat(0, 5, sh.ExportedAt.Format("2006-01-02 15:04"), "", 1, "L", false, 0, "")
		pdf.SetTextColor(0, 0, 0)
	}
	pdf.Ln(3)

	pageW, _ := pdf.GetPageSize()
	b := sh.Image.Bounds()
	imgW := pageW - 2*pageMargin
	imgH := imgW * float64(b.Dy()) / float64(b.Dx())
	if imgH > maxImageH {
		imgW *= maxImageH / imgH
		imgH = maxImageH
	}
	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("sheet", opts, &png)
	y := pdf.GetY()
	pdf.ImageOptions("sheet", (pageW-imgW)/2, y, imgW, imgH, false, opts, 0, "")
	pdf.SetY(y + imgH + 6)

	if len(sh.Legend) > 0 {
		pdf.SetFont("Helvetica", "B", 12)
		pdf.CellFormat(0, 7, "Colors", "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		for _, e := range sh.Legend {
			x, y := pdf.GetXY()
			pdf.SetFillColor(int(e.Color.R), int(e.Color.G), int(e.Color.B))
			pdf.Rect(x, y+1, 4, 4, "FD")
			pdf.SetX(x + 6)
			line := fmt.Sprintf("%d. %s (%s), %d fill(s)", e.Number, e.Label(), e.Hex, e.Fills)
			pdf.CellFormat(0, 6, tr(line), "", 1, "L", false, 0, "")
		}
		pdf.Ln(3)
	}

	if len(sh.Notes) > 0 {
		pdf.SetFont("Helvetica", "B", 12)
		pdf.CellFormat(0, 7, "Notes", "", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		for i, n := range sh.Notes {
			when := time.UnixMilli(n.Timestamp).Format("2006-01-02 15:04")
			line := fmt.Sprintf("%d. (%d, %d) %s: %s", i+1, n.X, n.Y, when, n.Text)
			pdf.MultiCell(0, 5, tr(line), "", "L", false)
		}
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("pdf: %w", err)
	}
	return nil
}
