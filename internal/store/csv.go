package store

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"

	"emperror.dev/errors"
	"github.com/klauspost/pgzip"

	"github.com/Dicklesworthstone/resource_guard/internal/model"
)

var csvHeader = []string{"time", "cpu", "memory", "disk"}

// WriteCSV writes samples as time,cpu,memory,disk rows with time in Unix seconds.
func WriteCSV(w io.Writer, samples []model.Sample) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return errors.WrapIf(err, "write csv header")
	}
	row := make([]string, len(csvHeader))
	for _, s := range samples {
		row[0] = strconv.FormatFloat(float64(s.Timestamp.UnixNano())/1e9, 'f', 6, 64)
		row[1] = formatPct(s.CPU)
		row[2] = formatPct(s.Memory)
		row[3] = formatPct(s.Disk)
		if err := cw.Write(row); err != nil {
			return errors.WrapIf(err, "write csv row")
		}
	}
	cw.Flush()
	return errors.WrapIf(cw.Error(), "flush csv")
}

// ExportFile writes samples to path. A ".gz" suffix gzips the output.
func ExportFile(path string, samples []model.Sample) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return errors.WrapIfWithDetails(err, "create samples file", "path", path)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = errors.WrapIf(cerr, "close samples file")
		}
	}()

	if !strings.HasSuffix(path, ".gz") {
		return WriteCSV(f, samples)
	}
	zw := pgzip.NewWriter(f)
	if err := WriteCSV(zw, samples); err != nil {
		_ = zw.Close()
		return err
	}
	return errors.WrapIf(zw.Close(), "close gzip stream")
}

func formatPct(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
