package config

import (
	"fmt"

	"github.com/JakeFAU/venue-harvester/internal/catalog"
)

// CatalogConfig picks a built-in catalog or lists venues explicitly.
// A non-empty Venues list replaces the preset.
type CatalogConfig struct {
	Preset string        `mapstructure:"preset"`
	Venues []VenueConfig `mapstructure:"venues"`
}

// VenueConfig is the configuration form of catalog.Venue.
type VenueConfig struct {
	ID              string         `mapstructure:"id"`
	Name            string         `mapstructure:"name"`
	Family          string         `mapstructure:"family"`
	VolumeStartYear int            `mapstructure:"volume_start_year"`
	AlternateSlugs  map[int]string `mapstructure:"alternate_slugs"`
	AlternateSuffix string         `mapstructure:"alternate_suffix"`
	Renames         []RenameConfig `mapstructure:"renames"`
	Parity          string         `mapstructure:"parity"`
	ActiveFrom      int            `mapstructure:"active_from"`
	DropFirst       bool           `mapstructure:"drop_first"`
	TitleOnly       bool           `mapstructure:"title_only"`
	Markup          string         `mapstructure:"markup"`
	BaseURL         string         `mapstructure:"base_url"`
	PathTemplate    string         `mapstructure:"path_template"`
}

// RenameConfig switches a venue slug from a year onward.
type RenameConfig struct {
	FromYear int    `mapstructure:"from_year"`
	Slug     string `mapstructure:"slug"`
}

// Build returns the catalog described by c.
func (c CatalogConfig) Build() (*catalog.Catalog, error) {
	if len(c.Venues) == 0 {
		cat, err := catalog.Preset(c.Preset)
		if err != nil {
			return nil, fmt.Errorf("catalog.preset: %w", err)
		}
		return cat, nil
	}
	venues := make([]catalog.Venue, 0, len(c.Venues))
	for _, vc := range c.Venues {
		venues = append(venues, vc.venue())
	}
	cat, err := catalog.New(venues)
	if err != nil {
		return nil, fmt.Errorf("catalog.venues: %w", err)
	}
	return cat, nil
}

func (vc VenueConfig) venue() catalog.Venue {
	v := catalog.Venue{
		ID:              vc.ID,
		DisplayName:     vc.Name,
		Family:          catalog.Family(vc.Family),
		VolumeStartYear: vc.VolumeStartYear,
		AlternateSlugs:  vc.AlternateSlugs,
		AlternateSuffix: vc.AlternateSuffix,
		Parity:          catalog.Parity(vc.Parity),
		ActiveFrom:      vc.ActiveFrom,
		DropFirst:       vc.DropFirst,
		TitleOnly:       vc.TitleOnly,
		Markup:          catalog.Markup(vc.Markup),
		BaseURL:         vc.BaseURL,
		PathTemplate:    vc.PathTemplate,
	}
	if v.DisplayName == "" {
		v.DisplayName = vc.ID
	}
	if v.Family == "" {
		v.Family = catalog.FamilyStandard
	}
	if v.Markup == "" {
		v.Markup = catalog.MarkupDBLP
	}
	if v.Parity == "any" {
		v.Parity = catalog.ParityAny
	}
	for _, r := range vc.Renames {
		v.Renames = append(v.Renames, catalog.Rename{FromYear: r.FromYear, Slug: r.Slug})
	}
	return v
}
