package reference

import (
	"bufio"
	"context"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// FileProvider reads reference values from a snapshot file where line N holds the value for window N.
// The file is re-read on every fetch so an external updater can replace it between days.
type FileProvider struct {
	path string
}

func NewFileProvider(path string) *FileProvider {
	return &FileProvider{path: path}
}

func (p *FileProvider) FetchReference(_ context.Context, window int) (decimal.Decimal, error) {
	if window < 1 {
		return decimal.Decimal{}, errors.Wrapf(ErrInvalidWindow, "window %d", window)
	}

	f, err := os.Open(p.path)
	if err != nil {
		return decimal.Decimal{}, errors.Wrapf(err, "failed to open snapshot %s", p.path)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for line := 1; scanner.Scan(); line++ {
		if line != window {
			continue
		}
		value, err := decimal.NewFromString(strings.TrimSpace(scanner.Text()))
		if err != nil {
			return decimal.Decimal{}, errors.Wrapf(err, "bad value on line %d of %s", line, p.path)
		}
		return value, nil
	}
	if err := scanner.Err(); err != nil {
		return decimal.Decimal{}, errors.Wrapf(err, "failed to read snapshot %s", p.path)
	}

	return decimal.Decimal{}, errors.Wrapf(ErrInsufficientData, "snapshot %s has no line for window %d", p.path, window)
}

type fetcher interface {
	FetchReference(ctx context.Context, window int) (decimal.Decimal, error)
}

// WriteSnapshot writes the values for windows 1..maxWindow, one per line.
func WriteSnapshot(ctx context.Context, w io.Writer, src fetcher, maxWindow int) error {
	bw := bufio.NewWriter(w)
	for window := 1; window <= maxWindow; window++ {
		value, err := src.FetchReference(ctx, window)
		if err != nil {
			return errors.Wrapf(err, "window %d", window)
		}
		if window > 1 {
			if err := bw.WriteByte('\n'); err != nil {
				return errors.Wrap(err, "failed to write snapshot")
			}
		}
		if _, err := bw.WriteString(value.String()); err != nil {
			return errors.Wrap(err, "failed to write snapshot")
		}
	}

	return errors.Wrap(bw.Flush(), "failed to flush snapshot")
}

// WriteSnapshotFile writes the snapshot to path, replacing it atomically.
func WriteSnapshotFile(ctx context.Context, path string, src fetcher, maxWindow int) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", tmp)
	}

	if err := WriteSnapshot(ctx, f, src, maxWindow); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return errors.Wrapf(err, "failed to close %s", tmp)
	}

	return errors.Wrapf(os.Rename(tmp, path), "failed to replace %s", path)
}
