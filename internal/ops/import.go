package ops

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/hpungsan/lifegrid/internal/config"
	"github.com/hpungsan/lifegrid/internal/errors"
)

// DefaultMaxImportBytes bounds import files when the config leaves it unset.
const DefaultMaxImportBytes int64 = 10 * 1024 * 1024

// Importer merges a serialised document into the current one.
type Importer interface {
	Import(ctx context.Context, data []byte) error
}

// ImportInput contains parameters for ImportFile.
type ImportInput struct {
	Path string // required
}

// ImportOutput contains the result of ImportFile.
type ImportOutput struct {
	Path       string `json:"path"`
	Bytes      int    `json:"bytes"`
	ImportedAt int64  `json:"imported_at"`
}

// ImportFile reads a validated, size-bounded file and hands it to dst.
func ImportFile(ctx context.Context, dst Importer, cfg *config.Config, input ImportInput) (*ImportOutput, error) {
	if input.Path == "" {
		return nil, errors.NewInvalidRequest("path is required")
	}
	if err := ValidatePath(input.Path, PathCheckRead, cfg); err != nil {
		return nil, err
	}

	data, err := ReadBounded(input.Path, MaxImportBytes(cfg))
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.NewCancelled("import")
	}
	if err := dst.Import(ctx, data); err != nil {
		return nil, err
	}

	return &ImportOutput{
		Path:       input.Path,
		Bytes:      len(data),
		ImportedAt: time.Now().Unix(),
	}, nil
}

// ReadBounded reads path without following a final symlink and fails with
// FILE_TOO_LARGE when it holds more than max bytes.
func ReadBounded(path string, max int64) ([]byte, error) {
	file, err := openNoFollow(path, os.O_RDONLY, 0)
	if err != nil {
		if _, ok := err.(*errors.GridError); ok {
			return nil, err
		}
		return nil, errors.NewInternal(fmt.Errorf("failed to open import file: %w", err))
	}
	defer file.Close()

	if info, err := file.Stat(); err == nil && info.Size() > max {
		return nil, errors.NewFileTooLarge(max, info.Size())
	}

	// The file may grow after Stat.
	return ReadLimited(file, max)
}

// ReadLimited reads r to the end, failing with FILE_TOO_LARGE past max bytes.
func ReadLimited(r io.Reader, max int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, max+1))
	if err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to read import data: %w", err))
	}
	if int64(len(data)) > max {
		return nil, errors.NewFileTooLarge(max, int64(len(data)))
	}
	return data, nil
}

// MaxImportBytes returns the configured import limit or the default.
func MaxImportBytes(cfg *config.Config) int64 {
	if cfg != nil && cfg.MaxImportBytes > 0 {
		return cfg.MaxImportBytes
	}
	return DefaultMaxImportBytes
}
