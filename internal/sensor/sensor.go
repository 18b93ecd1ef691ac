// Package sensor holds the per-satellite configuration the engine is not
// allowed to hardcode: which native band fills each spectral role and where
// the quality flags live in the QA bitmask.
package sensor

import (
	"fmt"
	"sort"
)

// Role names a spectral band by function rather than by the sensor's native
// band id.
type Role string

const (
	RoleNIR   Role = "nir"
	RoleRed   Role = "red"
	RoleGreen Role = "green"
	RoleSWIR2 Role = "swir2"
	RoleQA    Role = "qa"
)

// QABits gives the bit position of each quality flag inside the QA band.
// Positions differ per sensor; the imagery adapter normalizes provider
// quality products into this bitmask layout.
type QABits struct {
	Fill        uint `mapstructure:"fill" yaml:"fill"`
	Cloud       uint `mapstructure:"cloud" yaml:"cloud"`
	CloudShadow uint `mapstructure:"cloud_shadow" yaml:"cloud_shadow"`
	Cirrus      uint `mapstructure:"cirrus" yaml:"cirrus"`
	Saturated   uint `mapstructure:"saturated" yaml:"saturated"`
}

// Spec describes one satellite sensor.
type Spec struct {
	ID         string          `mapstructure:"id" yaml:"id"`
	Collection string          `mapstructure:"collection" yaml:"collection"`
	Resolution float64         `mapstructure:"resolution" yaml:"resolution"` // meters
	Bands      map[Role]string `mapstructure:"bands" yaml:"bands"`
	QA         QABits          `mapstructure:"qa" yaml:"qa"`
}

// BandName resolves a role to the sensor's native band name.
func (s Spec) BandName(role Role) (string, bool) {
	name, ok := s.Bands[role]
	return name, ok
}

// FetchBands lists the native band names to request from the provider, in a
// stable order with the QA band last.
func (s Spec) FetchBands() []string {
	var names []string
	for role, name := range s.Bands {
		if role == RoleQA {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	if qa, ok := s.Bands[RoleQA]; ok {
		names = append(names, qa)
	}
	return names
}

// Catalog maps sensor ids to their specs.
type Catalog map[string]Spec

// Lookup returns the spec for id.
func (c Catalog) Lookup(id string) (Spec, error) {
	spec, ok := c[id]
	if !ok {
		return Spec{}, fmt.Errorf("sensor: unknown sensor %q", id)
	}
	return spec, nil
}

// IDs lists the catalogue's sensor ids in sorted order.
func (c Catalog) IDs() []string {
	ids := make([]string, 0, len(c))
	for id := range c {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// DefaultCatalog returns the built-in sensor set. The config file may
// override or extend it.
func DefaultCatalog() Catalog {
	return Catalog{
		"sentinel-2-l2a": {
			ID:         "sentinel-2-l2a",
			Collection: "sentinel-2-l2a",
			Resolution: 10,
			Bands: map[Role]string{
				RoleNIR:   "B08",
				RoleRed:   "B04",
				RoleGreen: "B03",
				RoleSWIR2: "B12",
				RoleQA:    "QA",
			},
			QA: QABits{Fill: 0, Saturated: 1, CloudShadow: 2, Cloud: 3, Cirrus: 4},
		},
		"landsat-8-l2": {
			ID:         "landsat-8-l2",
			Collection: "landsat-ot-l2",
			Resolution: 30,
			Bands: map[Role]string{
				RoleNIR:   "B05",
				RoleRed:   "B04",
				RoleGreen: "B03",
				RoleSWIR2: "B07",
				RoleQA:    "QA_PIXEL",
			},
			QA: QABits{Fill: 0, Cirrus: 2, Cloud: 3, CloudShadow: 4, Saturated: 11},
		},
		"landsat-9-l2": {
			ID:         "landsat-9-l2",
			Collection: "landsat-ot-l2",
			Resolution: 30,
			Bands: map[Role]string{
				RoleNIR:   "B05",
				RoleRed:   "B04",
				RoleGreen: "B03",
				RoleSWIR2: "B07",
				RoleQA:    "QA_PIXEL",
			},
			QA: QABits{Fill: 0, Cirrus: 2, Cloud: 3, CloudShadow: 4, Saturated: 11},
		},
	}
}
