// Power spectrum result files
//
// Writes masked spectra as a whitespace-separated text table with a
// commented header: time and grid size, one column group per field with
// its σ_R, and rows of k, power and σ(power). Files may be written
// through a zstd stream.
//
// Copyright (C) 2026 Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package sink

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/klauspost/compress/zstd"

	"cosmo-powerspec/pkg/errors"
	"cosmo-powerspec/pkg/log"
	"cosmo-powerspec/pkg/spectrum"
)

// CompressedExt is appended to compressed output paths
const CompressedExt = ".zst"

// Header describes the snapshot the spectra belong to
type Header struct {
	Time          float64
	UnitTime      string
	ScaleFactor   float64
	HubbleEnabled bool
	GridSize      int
	UnitLength    string
	RTophat       float64 // in UnitLength
}

// Options controls SaveFile
type Options struct {
	Compress bool
	Logger   *log.Logger
}

const (
	kColumn    = 15
	groupWidth = 33
	numFmt     = "%-13.6e"
)

var subscripts = strings.NewReplacer(
	"0", "₀", "1", "₁", "2", "₂", "3", "₃", "4", "₄",
	"5", "₅", "6", "₆", "7", "₇", "8", "₈", "9", "₉",
	"-", "₋", "+", "₊", "e", "ₑ",
)

func padRight(s string, width int) string {
	n := utf8.RuneCountInString(s)
	if n >= width {
		return s
	}
	return s + strings.Repeat(" ", width-n)
}

// center matches Python's "{:^w}": extra space goes to the right
func center(s string, width int) string {
	n := utf8.RuneCountInString(s)
	if n >= width {
		return s
	}
	left := (width - n) / 2
	return strings.Repeat(" ", left) + s + strings.Repeat(" ", width-n-left)
}

func plural(n int) string {
	if n == 1 {
		return "spectrum"
	}
	return "spectra"
}

func (h Header) title(n int) string {
	var a string
	if h.HubbleEnabled {
		a = fmt.Sprintf(", a = %.6g,", h.ScaleFactor)
	}
	return fmt.Sprintf("# Power %s at t = %.6g %s%s computed with a grid of linear size %d\n#\n",
		plural(n), h.Time, h.UnitTime, a, h.GridSize)
}

// WriteText writes the spectra in the order given. All results must
// share the same k bins.
func WriteText(w io.Writer, hdr Header, results []*spectrum.Result) error {
	rows := 0
	if len(results) > 0 {
		rows = len(results[0].K)
	}
	for _, r := range results {
		if len(r.K) != rows || len(r.Power) != rows || len(r.StdDev) != rows {
			return errors.New(errors.ErrGeometryMismatch,
				fmt.Sprintf("spectrum has %d bins, expected %d", len(r.K), rows)).SetField(r.Field)
		}
	}

	bw := bufio.NewWriter(w)
	bw.WriteString(hdr.title(len(results)))

	sigmaName := "σ" + subscripts.Replace(fmt.Sprintf("%.2g", hdr.RTophat))
	var names, sigmas, quantities strings.Builder
	names.WriteString(padRight(" ", kColumn))
	sigmas.WriteString(padRight(" ", kColumn))
	quantities.WriteString(padRight(fmt.Sprintf("k [%s⁻¹]", hdr.UnitLength), kColumn))
	for _, r := range results {
		names.WriteString("  " + center(r.Field, groupWidth) + "  ")
		sigmas.WriteString("  " + center(fmt.Sprintf("%s = %.4g ± %.4g", sigmaName, r.Sigma, r.SigmaErr), groupWidth) + "  ")
		quantities.WriteString("   " + padRight(fmt.Sprintf("power [%s³]", hdr.UnitLength), 16) +
			" " + padRight(fmt.Sprintf("σ(power) [%s³]", hdr.UnitLength), 16) + " ")
	}
	for _, line := range []string{names.String(), sigmas.String(), quantities.String()} {
		bw.WriteString("# " + line + "\n")
	}

	for i := 0; i < rows; i++ {
		fmt.Fprintf(bw, numFmt, results[0].K[i])
		for _, r := range results {
			fmt.Fprintf(bw, "       "+numFmt+"    "+numFmt, r.Power[i], r.StdDev[i])
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

// SaveFile writes the spectra to path and returns the path written,
// which carries CompressedExt when compressing.
func SaveFile(path string, hdr Header, results []*spectrum.Result, opts Options) (string, error) {
	if opts.Compress && !strings.HasSuffix(path, CompressedExt) {
		path += CompressedExt
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.GetLogger("sink")
	}
	logger.Info("Saving power %s to \"%s\" ...", plural(len(results)), path)

	f, err := os.Create(path)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrRuntime, "unable to create power spectrum file")
	}
	defer f.Close()

	var w io.Writer = f
	var zw *zstd.Encoder
	if opts.Compress {
		zw, err = zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return "", errors.Wrap(err, errors.ErrRuntime, "unable to start zstd stream")
		}
		w = zw
	}
	if err := WriteText(w, hdr, results); err != nil {
		return "", err
	}
	if zw != nil {
		if err := zw.Close(); err != nil {
			return "", errors.Wrap(err, errors.ErrRuntime, "unable to finish zstd stream")
		}
	}
	if err := f.Close(); err != nil {
		return "", errors.Wrap(err, errors.ErrRuntime, "unable to close power spectrum file")
	}
	logger.Info("done")
	return path, nil
}

// Open returns a reader over a file written by SaveFile, decompressing
// it when the name ends in CompressedExt.
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrRuntime, "unable to open power spectrum file")
	}
	if !strings.HasSuffix(path, CompressedExt) {
		return f, nil
	}
	zr, err := zstd.NewReader(f)
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, errors.ErrRuntime, "unable to read zstd stream")
	}
	return &zstdFile{Decoder: zr, f: f}, nil
}

type zstdFile struct {
	*zstd.Decoder
	f *os.File
}

func (z *zstdFile) Close() error {
	z.Decoder.Close()
	return z.f.Close()
}
