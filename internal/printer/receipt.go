package printer

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/skip2/go-qrcode"

	"github.com/xelth-com/eckposgo/internal/models"
)

// ReceiptConfig holds layout configuration for receipt generation
type ReceiptConfig struct {
	VenueName  string  `json:"venueName"`
	RollWidth  float64 `json:"rollWidth"`  // mm, typical thermal roll is 80
	MarginSide float64 `json:"marginSide"` // mm
	Footer     string  `json:"footer"`
}

// DefaultReceiptConfig returns the layout used for 80mm thermal rolls
func DefaultReceiptConfig() ReceiptConfig {
	venueName := os.Getenv("VENUE_NAME")
	if venueName == "" {
		venueName = "eckPOS"
	}
	return ReceiptConfig{
		VenueName:  venueName,
		RollWidth:  80,
		MarginSide: 5,
		Footer:     "Thank you for your visit",
	}
}

// GenerateReceiptPDF renders an order as a roll receipt with a QR code
// carrying the order id, so a remote terminal can look the order up even
// when it was created offline.
func GenerateReceiptPDF(order *models.Order, cfg ReceiptConfig) ([]byte, error) {
	if order == nil {
		return nil, fmt.Errorf("no order to print")
	}

	items, err := order.OrderItems()
	if err != nil {
		return nil, fmt.Errorf("decode order items: %w", err)
	}

	// Roll printers take variable-length pages; estimate the height from
	// the line count and let the content define the page.
	height := 70.0 + float64(len(items))*5.0 + 45.0
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "mm",
		Size:    gofpdf.SizeType{Wd: cfg.RollWidth, Ht: height},
	})
	pdf.SetMargins(cfg.MarginSide, 5, cfg.MarginSide)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	usableW := cfg.RollWidth - cfg.MarginSide*2

	// Header
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(usableW, 6, cfg.VenueName, "", 1, "C", false, 0, "")

	pdf.SetFont("Arial", "", 8)
	pdf.CellFormat(usableW, 4, fmt.Sprintf("Table %s", order.TableID), "", 1, "C", false, 0, "")
	pdf.CellFormat(usableW, 4, order.CreatedAt.Local().Format("02.01.2006 15:04"), "", 1, "C", false, 0, "")
	pdf.CellFormat(usableW, 4, fmt.Sprintf("Order %s", order.ID), "", 1, "C", false, 0, "")
	pdf.Ln(2)

	// Item lines: qty x name ... amount
	pdf.SetFont("Arial", "", 9)
	for _, item := range items {
		lineTotal := item.PriceCents * int64(item.Quantity)
		pdf.CellFormat(usableW*0.65, 5, fmt.Sprintf("%dx %s", item.Quantity, item.Name), "", 0, "L", false, 0, "")
		pdf.CellFormat(usableW*0.35, 5, formatCents(lineTotal), "", 1, "R", false, 0, "")
	}

	pdf.Ln(1)
	pdf.SetDrawColor(0, 0, 0)
	pdf.Line(cfg.MarginSide, pdf.GetY(), cfg.RollWidth-cfg.MarginSide, pdf.GetY())
	pdf.Ln(2)

	// Totals
	pdf.SetFont("Arial", "", 9)
	pdf.CellFormat(usableW*0.65, 5, "Subtotal", "", 0, "L", false, 0, "")
	pdf.CellFormat(usableW*0.35, 5, formatCents(order.SubtotalCents), "", 1, "R", false, 0, "")
	pdf.CellFormat(usableW*0.65, 5, "Tax", "", 0, "L", false, 0, "")
	pdf.CellFormat(usableW*0.35, 5, formatCents(order.TaxCents), "", 1, "R", false, 0, "")

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(usableW*0.65, 6, "Total", "", 0, "L", false, 0, "")
	pdf.CellFormat(usableW*0.35, 6, formatCents(order.TotalCents), "", 1, "R", false, 0, "")
	pdf.Ln(3)

	// QR code with the order id
	qrPng, err := qrcode.Encode(order.ID, qrcode.Medium, 256)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}

	imgOptions := gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: true}
	pdf.RegisterImageOptionsReader("order_qr", imgOptions, bytes.NewReader(qrPng))

	qrSize := 25.0
	qrX := (cfg.RollWidth - qrSize) / 2
	pdf.ImageOptions("order_qr", qrX, pdf.GetY(), qrSize, qrSize, false, imgOptions, 0, "")
	pdf.SetY(pdf.GetY() + qrSize + 2)

	// Footer
	pdf.SetFont("Arial", "", 8)
	pdf.CellFormat(usableW, 4, cfg.Footer, "", 1, "C", false, 0, "")
	pdf.CellFormat(usableW, 4, time.Now().Local().Format("02.01.2006 15:04"), "", 1, "C", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func formatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}
