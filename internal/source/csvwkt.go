package source

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/paulmach/orb/encoding/wkt"

	"github.com/ogierm/geodraft/internal/model"
	"github.com/ogierm/geodraft/internal/stream"
)

// csvReader streams a CSV file row by row, parsing one column as WKT
// geometry and the remaining columns as attributes. The file is opened
// when the sequence is first driven; Read only validates the config.
type csvReader struct {
	log *slog.Logger
}

func (r *csvReader) Read(ctx context.Context, cfg model.SourceConfig) (stream.Seq, error) {
	geomCol := cfg.GeometryColumn
	if geomCol == "" {
		geomCol = "wkt"
	}

	out := func(yield func(model.Feature, error) bool) {
		fh, err := os.Open(cfg.Path)
		if err != nil {
			yield(model.Feature{}, &DataReadError{Path: cfg.Path, Format: cfg.Format, Cause: err})
			return
		}
		defer fh.Close()

		cr := csv.NewReader(fh)
		if cfg.Delimiter != "" {
			cr.Comma = rune(cfg.Delimiter[0])
		}

		header, err := cr.Read()
		if err != nil {
			yield(model.Feature{}, &DataReadError{Path: cfg.Path, Format: cfg.Format, Cause: err})
			return
		}
		geomIdx := -1
		idIdx := -1
		for i, name := range header {
			if name == geomCol {
				geomIdx = i
			}
			if cfg.IDColumn != "" && name == cfg.IDColumn {
				idIdx = i
			}
		}
		if geomIdx < 0 {
			yield(model.Feature{}, &DataReadError{
				Path:   cfg.Path,
				Format: cfg.Format,
				Cause:  fmt.Errorf("geometry column %q not found in header", geomCol),
			})
			return
		}

		row := 0
		for {
			if ctx.Err() != nil {
				yield(model.Feature{}, ctx.Err())
				return
			}
			rec, err := cr.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				yield(model.Feature{}, &DataReadError{Path: cfg.Path, Format: cfg.Format, Cause: err})
				return
			}
			row++
			if geomIdx >= len(rec) {
				continue
			}
			g, err := wkt.Unmarshal(rec[geomIdx])
			if err != nil {
				// bad geometry voids the row, not the file
				r.log.Warn("skipping row with invalid WKT",
					"path", cfg.Path, "row", row, "err", err)
				continue
			}

			f := model.Feature{Geometry: g, Attributes: make(map[string]any, len(header)-1)}
			for i, name := range header {
				if i == geomIdx || i >= len(rec) {
					continue
				}
				f.Attributes[name] = rec[i]
			}
			if idIdx >= 0 && idIdx < len(rec) {
				f.ID = rec[idIdx]
			} else {
				f.ID = fmt.Sprintf("%d", row)
			}
			if !yield(f, nil) {
				return
			}
		}
	}
	return out, nil
}
