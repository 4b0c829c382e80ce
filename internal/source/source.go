// Package source reads geographic features from external files. Every
// reader produces a lazy, finite, forward-only, single-pass sequence.
package source

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/ogierm/geodraft/internal/model"
	"github.com/ogierm/geodraft/internal/stream"
)

// DataReadError reports an unreadable or unparseable source file.
type DataReadError struct {
	Path   string
	Format model.SourceFormat
	Cause  error
}

func (e *DataReadError) Error() string {
	return fmt.Sprintf("reading %s source %q: %v", e.Format, e.Path, e.Cause)
}

func (e *DataReadError) Unwrap() error { return e.Cause }

// Reader turns one source configuration into a feature sequence.
type Reader interface {
	Read(ctx context.Context, cfg model.SourceConfig) (stream.Seq, error)
}

// Open dispatches to the reader for the configured format. Unknown formats
// and missing files fail with a DataReadError up front, before any feature
// is produced.
func Open(ctx context.Context, log *slog.Logger, cfg model.SourceConfig) (stream.Seq, error) {
	if log == nil {
		log = slog.Default()
	}
	if _, err := os.Stat(cfg.Path); err != nil {
		return nil, &DataReadError{Path: cfg.Path, Format: cfg.Format, Cause: err}
	}

	var r Reader
	switch cfg.Format {
	case model.FormatGeoJSON:
		r = &geoJSONReader{}
	case model.FormatCSV:
		r = &csvReader{log: log}
	case model.FormatShapefile:
		r = &shapefileReader{}
	default:
		return nil, &DataReadError{
			Path:   cfg.Path,
			Format: cfg.Format,
			Cause:  fmt.Errorf("unknown source format"),
		}
	}
	return r.Read(ctx, cfg)
}
