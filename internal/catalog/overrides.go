package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Override adjusts how one product is summarised.
type Override struct {
	DefaultCRS string        `yaml:"default_crs"`
	Grid       *GridOverride `yaml:"grid"`
}

// GridOverride replaces parts of a product's storage grid.
type GridOverride struct {
	TileSize   []float64 `yaml:"tile_size"`
	Origin     []float64 `yaml:"origin"`
	Resolution []float64 `yaml:"resolution"`
}

// Overrides maps product names to their overrides.
type Overrides map[string]Override

// LoadOverrides reads a YAML overrides file. An empty path yields no overrides.
func LoadOverrides(path string) (Overrides, error) {
	if path == "" {
		return Overrides{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading product overrides: %w", err)
	}

	var doc struct {
		Products Overrides `yaml:"products"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing product overrides: %w", err)
	}

	for name, o := range doc.Products {
		if g := o.Grid; g != nil {
			for field, v := range map[string][]float64{"tile_size": g.TileSize, "origin": g.Origin, "resolution": g.Resolution} {
				if v != nil && len(v) != 2 {
					return nil, fmt.Errorf("product %q: grid %s must have two values", name, field)
				}
			}
		}
	}

	if doc.Products == nil {
		doc.Products = Overrides{}
	}

	return doc.Products, nil
}

// Apply updates p in place with any override registered for it.
func (o Overrides) Apply(p *Product) {
	ov, ok := o[p.Name]
	if !ok {
		return
	}

	if ov.DefaultCRS != "" {
		p.DefaultCRS = ov.DefaultCRS
	}

	if ov.Grid == nil {
		return
	}

	if p.Grid == nil {
		p.Grid = &GridSpec{CRS: p.DefaultCRS}
	}

	if len(ov.Grid.TileSize) == 2 {
		p.Grid.TileSize = &[2]float64{ov.Grid.TileSize[0], ov.Grid.TileSize[1]}
	}

	if len(ov.Grid.Origin) == 2 {
		p.Grid.Origin = [2]float64{ov.Grid.Origin[0], ov.Grid.Origin[1]}
	}

	if len(ov.Grid.Resolution) == 2 {
		p.Grid.Resolution = &[2]float64{ov.Grid.Resolution[0], ov.Grid.Resolution[1]}
	}
}
