// Package catalog describes the venues a harvest run covers and how their
// listing pages are laid out.
package catalog

import (
	"errors"
	"fmt"
	"strings"
)

// Family selects how a venue's listing addresses are derived.
type Family string

const (
	// FamilyJournalVolume venues publish one volume per year.
	FamilyJournalVolume Family = "journal-volume"
	// FamilyMultiPart venues split a year's proceedings across numbered pages.
	FamilyMultiPart Family = "multi-part"
	// FamilyStandard venues publish one page per year, optionally with alternates.
	FamilyStandard Family = "standard"
)

// Parity restricts a venue to even or odd years.
type Parity string

// Supported parities.
const (
	ParityAny  Parity = ""
	ParityEven Parity = "even"
	ParityOdd  Parity = "odd"
)

// Markup names the page layout the extractor should expect.
type Markup string

// Supported markups.
const (
	MarkupDBLP Markup = "dblp"
	MarkupCVF  Markup = "cvf"
)

// Rename switches a venue's path slug from a given year onward.
type Rename struct {
	FromYear int
	Slug     string
}

// Venue is the immutable description of one publication venue.
type Venue struct {
	ID              string
	DisplayName     string
	Family          Family
	VolumeStartYear int
	// AlternateSlugs maps a year to an extra path slug tried after the primary.
	AlternateSlugs map[int]string
	// AlternateSuffix is appended to the primary page name to form an extra candidate.
	AlternateSuffix string
	Renames         []Rename
	Parity          Parity
	// ActiveFrom is the first year the venue exists. Zero means no bound.
	ActiveFrom int
	DropFirst  bool
	// TitleOnly disables author extraction.
	TitleOnly bool
	Markup    Markup
	// BaseURL overrides the resolver's base for this venue.
	BaseURL string
	// PathTemplate overrides the default page path of a standard venue.
	PathTemplate string
}

// Slug returns the path slug in effect for year, honoring renames.
func (v Venue) Slug(year int) string {
	slug := v.ID
	best := 0
	for _, r := range v.Renames {
		if year >= r.FromYear && r.FromYear >= best {
			slug = r.Slug
			best = r.FromYear
		}
	}
	return slug
}

// AuthorsRequired reports whether records of this venue carry authors.
func (v Venue) AuthorsRequired() bool {
	return !v.TitleOnly
}

// Excludes reports whether the venue never publishes in year, with a short reason.
func (v Venue) Excludes(year int) (string, bool) {
	if v.ActiveFrom > 0 && year < v.ActiveFrom {
		return fmt.Sprintf("venue starts in %d", v.ActiveFrom), true
	}
	switch v.Parity {
	case ParityEven:
		if year%2 != 0 {
			return "venue runs in even years only", true
		}
	case ParityOdd:
		if year%2 == 0 {
			return "venue runs in odd years only", true
		}
	}
	return "", false
}

// Validate checks the venue description for internal consistency.
func (v Venue) Validate() error {
	if strings.TrimSpace(v.ID) == "" {
		return errors.New("venue id is required")
	}
	if strings.TrimSpace(v.DisplayName) == "" {
		return fmt.Errorf("venue %s: display name is required", v.ID)
	}
	switch v.Family {
	case FamilyJournalVolume:
		if v.VolumeStartYear <= 0 {
			return fmt.Errorf("venue %s: volume start year must be > 0", v.ID)
		}
	case FamilyMultiPart, FamilyStandard:
	default:
		return fmt.Errorf("venue %s: unknown family %q", v.ID, v.Family)
	}
	switch v.Parity {
	case ParityAny, ParityEven, ParityOdd:
	default:
		return fmt.Errorf("venue %s: unknown parity %q", v.ID, v.Parity)
	}
	switch v.Markup {
	case MarkupDBLP, MarkupCVF:
	default:
		return fmt.Errorf("venue %s: unknown markup %q", v.ID, v.Markup)
	}
	for _, r := range v.Renames {
		if r.FromYear <= 0 || strings.TrimSpace(r.Slug) == "" {
			return fmt.Errorf("venue %s: rename needs a year and a slug", v.ID)
		}
	}
	return nil
}

func (v Venue) clone() Venue {
	cp := v
	if v.AlternateSlugs != nil {
		cp.AlternateSlugs = make(map[int]string, len(v.AlternateSlugs))
		for year, slug := range v.AlternateSlugs {
			cp.AlternateSlugs[year] = slug
		}
	}
	if v.Renames != nil {
		cp.Renames = append([]Rename(nil), v.Renames...)
	}
	return cp
}
