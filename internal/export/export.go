// Package export writes task lists as JSON, CSV or PDF.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"taskboard/internal/models"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatPDF  Format = "pdf"
)

var csvHeader = []string{"id", "description", "completed", "created_at", "updated_at"}

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatCSV, FormatPDF:
		return f, nil
	}
	return "", fmt.Errorf("unknown format %q (want json|csv|pdf)", s)
}

func Write(w io.Writer, format Format, tasks []models.Task) error {
	switch format {
	case FormatJSON:
		return WriteJSON(w, tasks)
	case FormatCSV:
		return WriteCSV(w, tasks)
	case FormatPDF:
		return WritePDF(w, tasks)
	}
	return fmt.Errorf("unknown format %q", format)
}

// SaveFile writes tasks to path, replacing any existing file.
func SaveFile(path string, format Format, tasks []models.Task) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := Write(f, format, tasks); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func WriteJSON(w io.Writer, tasks []models.Task) error {
	if tasks == nil {
		tasks = []models.Task{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(tasks)
}

func WriteCSV(w io.Writer, tasks []models.Task) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, t := range tasks {
		record := []string{
			t.ID,
			t.Description,
			strconv.FormatBool(t.Completed),
			t.CreatedAt.Format(time.RFC3339),
			t.UpdatedAt.Format(time.RFC3339),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func WritePDF(w io.Writer, tasks []models.Task) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Arial", "B", 14)
	pdf.Cell(40, 10, "Task Report")
	pdf.Ln(12)

	completed := 0
	for _, t := range tasks {
		if t.Completed {
			completed++
		}
	}
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("%d total, %d active, %d completed", len(tasks), len(tasks)-completed, completed))
	pdf.Ln(10)

	// Core fonts are cp1252; anything outside it would render as garbage.
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	for i, t := range tasks {
		mark := "[ ]"
		if t.Completed {
			mark = "[x]"
		}
		line := fmt.Sprintf("%d. %s %s", i+1, mark, tr(t.Description))
		pdf.MultiCell(0, 6, line, "0", "L", false)
	}
	return pdf.Output(w)
}
