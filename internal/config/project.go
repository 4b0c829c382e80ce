// Package config loads project files and process settings.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/ogierm/geodraft/internal/model"
)

// LoadProject reads and validates a project file. YAML, JSON and TOML are
// accepted; the extension decides.
func LoadProject(path string) (*model.ProjectConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read project %s: %w", path, err)
	}

	var cfg model.ProjectConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode project %s: %w", path, err)
	}

	applyDefaults(v, &cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("project %s: %w", path, err)
	}
	return &cfg, nil
}

// applyDefaults fills the fields a project file may omit. Layers are enabled
// unless the file says otherwise, which a plain struct decode cannot express,
// so the raw config is consulted for an explicit "enabled" key.
func applyDefaults(v *viper.Viper, cfg *model.ProjectConfig) {
	raw, _ := v.Get("layers").([]any)
	for i := range cfg.Layers {
		if i < len(raw) {
			if m, ok := raw[i].(map[string]any); ok && hasKey(m, "enabled") {
				continue
			}
		}
		cfg.Layers[i].Enabled = true
	}

	if cfg.Raster != nil {
		if cfg.Raster.Zoom == 0 {
			cfg.Raster.Zoom = 14
		}
	}
}

func hasKey(m map[string]any, key string) bool {
	for k := range m {
		if strings.EqualFold(k, key) {
			return true
		}
	}
	return false
}

func validate(cfg *model.ProjectConfig) error {
	if len(cfg.Layers) == 0 {
		return fmt.Errorf("no layers configured")
	}

	seen := make(map[string]struct{}, len(cfg.Layers))
	for i, l := range cfg.Layers {
		if l.Name == "" {
			return fmt.Errorf("layer %d: missing name", i)
		}
		if _, dup := seen[l.Name]; dup {
			return fmt.Errorf("layer %q: duplicate name", l.Name)
		}
		seen[l.Name] = struct{}{}

		if l.Source != nil {
			switch l.Source.Format {
			case model.FormatShapefile, model.FormatGeoJSON, model.FormatCSV:
			case "":
				return fmt.Errorf("layer %q: source without format", l.Name)
			default:
				return fmt.Errorf("layer %q: unknown source format %q", l.Name, l.Source.Format)
			}
			if l.Source.Path == "" {
				return fmt.Errorf("layer %q: source without path", l.Name)
			}
		}

		for j, op := range l.Operations {
			if op.Kind == "" {
				return fmt.Errorf("layer %q: operation %d without kind", l.Name, j)
			}
		}
	}

	if r := cfg.Raster; r != nil {
		if r.URLTemplate == "" {
			return fmt.Errorf("raster: missing urlTemplate")
		}
		if len(r.BBox) != 4 {
			return fmt.Errorf("raster: bbox needs [minLon minLat maxLon maxLat], got %d values", len(r.BBox))
		}
		if r.Zoom < 0 || r.Zoom > 22 {
			return fmt.Errorf("raster: zoom %d out of range", r.Zoom)
		}
	}
	return nil
}
