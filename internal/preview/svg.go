package preview

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
)

// fixedToFloat converts a 26.6 fixed-point value to float64.
func fixedToFloat(v fixed.Int26_6) float64 {
	return float64(v) / 64
}

// coord formats an SVG coordinate with one decimal of precision. Fixed
// precision keeps the output byte-identical across runs and platforms.
func coord(v float64) string {
	s := strconv.FormatFloat(v, 'f', 1, 64)
	s = strings.TrimSuffix(s, ".0")
	if s == "-0" {
		s = "0"
	}
	return s
}

// segmentsPath converts glyph outline segments to SVG path data,
// translated by (dx, dy). LoadGlyph yields y-down coordinates relative
// to the baseline, matching the SVG coordinate system directly.
func segmentsPath(segments []sfnt.Segment, dx, dy float64) string {
	var b strings.Builder
	for _, seg := range segments {
		switch seg.Op {
		case sfnt.SegmentOpMoveTo:
			fmt.Fprintf(&b, "M%s %s",
				coord(fixedToFloat(seg.Args[0].X)+dx), coord(fixedToFloat(seg.Args[0].Y)+dy))
		case sfnt.SegmentOpLineTo:
			fmt.Fprintf(&b, "L%s %s",
				coord(fixedToFloat(seg.Args[0].X)+dx), coord(fixedToFloat(seg.Args[0].Y)+dy))
		case sfnt.SegmentOpQuadTo:
			fmt.Fprintf(&b, "Q%s %s %s %s",
				coord(fixedToFloat(seg.Args[0].X)+dx), coord(fixedToFloat(seg.Args[0].Y)+dy),
				coord(fixedToFloat(seg.Args[1].X)+dx), coord(fixedToFloat(seg.Args[1].Y)+dy))
		case sfnt.SegmentOpCubeTo:
			fmt.Fprintf(&b, "C%s %s %s %s %s %s",
				coord(fixedToFloat(seg.Args[0].X)+dx), coord(fixedToFloat(seg.Args[0].Y)+dy),
				coord(fixedToFloat(seg.Args[1].X)+dx), coord(fixedToFloat(seg.Args[1].Y)+dy),
				coord(fixedToFloat(seg.Args[2].X)+dx), coord(fixedToFloat(seg.Args[2].Y)+dy))
		}
	}
	if b.Len() > 0 {
		b.WriteString("Z")
	}
	return b.String()
}

// buildSVG wraps the glyph paths in a minimal SVG document. No ids, no
// timestamps, no whitespace: the same paths always yield the same bytes.
func buildSVG(paths []string, width, height float64) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<svg viewBox="0 0 %s %s" xmlns="http://www.w3.org/2000/svg">`,
		coord(width), coord(height))
	for _, d := range paths {
		if d == "" {
			continue
		}
		fmt.Fprintf(&b, `<path d="%s" fill="white"/>`, d)
	}
	b.WriteString("</svg>")
	return b.String()
}

// CompressSVG gzips the SVG text at maximum compression and encodes the
// result as base64 for JSON transport.
func CompressSVG(svg string) (string, error) {
	var buf bytes.Buffer
	zw, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return "", fmt.Errorf("initializing gzip writer: %w", err)
	}
	if _, err := zw.Write([]byte(svg)); err != nil {
		return "", fmt.Errorf("compressing SVG: %w", err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("finalizing SVG compression: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// DecompressSVG reverses CompressSVG. Used by the validator to verify
// stored preview blobs.
func DecompressSVG(encoded string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("decoding preview base64: %w", err)
	}
	zr, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("opening preview gzip stream: %w", err)
	}
	defer zr.Close()
	var out bytes.Buffer
	if _, err := out.ReadFrom(zr); err != nil {
		return "", fmt.Errorf("decompressing preview: %w", err)
	}
	return out.String(), nil
}
