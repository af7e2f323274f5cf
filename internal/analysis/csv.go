package analysis

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// CSVWriter streams per-frame fragment field totals as CSV. The header
// names one x/y/z column triple per probe and fragment; each row is one
// trajectory frame.
type CSVWriter struct {
	w           *csv.Writer
	analyzer    *Analyzer
	wroteHeader bool
}

// NewCSVWriter wraps w for the analyzer's probe and fragment layout.
func NewCSVWriter(w io.Writer, analyzer *Analyzer) *CSVWriter {
	return &CSVWriter{w: csv.NewWriter(w), analyzer: analyzer}
}

// WriteFrame appends one frame of reduced fields, writing the header
// first if needed. reduced must come from the same analyzer's Reduce.
func (c *CSVWriter) WriteFrame(frame int, reduced [][][3]float64) error {
	if !c.wroteHeader {
		if err := c.w.Write(c.header()); err != nil {
			return fmt.Errorf("write csv header: %w", err)
		}
		c.wroteHeader = true
	}

	row := make([]string, 0, 1+3*len(c.analyzer.probes)*len(c.analyzer.fragments))
	row = append(row, strconv.Itoa(frame))
	for p := range c.analyzer.probes {
		for f := range c.analyzer.fragments {
			for axis := 0; axis < 3; axis++ {
				row = append(row, strconv.FormatFloat(reduced[p][f][axis], 'g', -1, 64))
			}
		}
	}
	if err := c.w.Write(row); err != nil {
		return fmt.Errorf("write csv row: %w", err)
	}
	return nil
}

// Flush forces buffered rows to the underlying writer.
func (c *CSVWriter) Flush() error {
	c.w.Flush()
	return c.w.Error()
}

func (c *CSVWriter) header() []string {
	axes := [3]string{"x", "y", "z"}
	header := make([]string, 0, 1+3*len(c.analyzer.probes)*len(c.analyzer.fragments))
	header = append(header, "frame")
	for _, probe := range c.analyzer.probes {
		for _, frag := range c.analyzer.fragments {
			for _, axis := range axes {
				header = append(header, fmt.Sprintf("probe%d:frag%d:%s", probe, frag.Label, axis))
			}
		}
	}
	return header
}
