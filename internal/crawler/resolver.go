package crawler

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/JakeFAU/venue-harvester/internal/catalog"
)

// DefaultBaseURL is the bibliography index the catalog points at.
const DefaultBaseURL = "https://dblp.org"

// ErrConfiguration marks a venue description that cannot produce an address.
var ErrConfiguration = errors.New("venue configuration error")

const (
	journalPath   = "/db/journals/{id}/{id}{volume}.html"
	multiPartPath = "/db/conf/{id}/{slug}{year}-{part}.html"
	standardPath  = "/db/conf/{id}/{slug}{year}{suffix}.html"
)

// familyStrategy derives the ordered candidate addresses of one venue family.
type familyStrategy func(r *Resolver, v catalog.Venue, year, part int) ([]SourceAddress, error)

// Resolver maps a venue-year to the listing addresses worth trying, in order.
type Resolver struct {
	baseURL    string
	strategies map[catalog.Family]familyStrategy
}

// NewResolver builds a resolver rooted at baseURL, or DefaultBaseURL when empty.
func NewResolver(baseURL string) *Resolver {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	return &Resolver{
		baseURL: strings.TrimRight(baseURL, "/"),
		strategies: map[catalog.Family]familyStrategy{
			catalog.FamilyJournalVolume: resolveJournal,
			catalog.FamilyMultiPart:     resolveMultiPart,
			catalog.FamilyStandard:      resolveStandard,
		},
	}
}

// Resolve returns the candidate addresses for venue v in year. Multi-part
// venues resolve to their first part; later parts come from ResolvePart.
func (r *Resolver) Resolve(v catalog.Venue, year int) ([]SourceAddress, error) {
	return r.resolve(v, year, 1)
}

// ResolvePart returns the address of a 1-based part of a multi-part venue.
func (r *Resolver) ResolvePart(v catalog.Venue, year, part int) (SourceAddress, error) {
	if v.Family != catalog.FamilyMultiPart {
		return SourceAddress{}, fmt.Errorf("%w: venue %s is not multi-part", ErrConfiguration, v.ID)
	}
	if part < 1 {
		return SourceAddress{}, fmt.Errorf("%w: part %d of %s must be >= 1", ErrConfiguration, part, v.ID)
	}
	addrs, err := r.resolve(v, year, part)
	if err != nil {
		return SourceAddress{}, err
	}
	return addrs[0], nil
}

func (r *Resolver) resolve(v catalog.Venue, year, part int) ([]SourceAddress, error) {
	strategy, ok := r.strategies[v.Family]
	if !ok {
		return nil, fmt.Errorf("%w: venue %s has unknown family %q", ErrConfiguration, v.ID, v.Family)
	}
	return strategy(r, v, year, part)
}

func resolveJournal(r *Resolver, v catalog.Venue, year, _ int) ([]SourceAddress, error) {
	if v.VolumeStartYear <= 0 {
		return nil, fmt.Errorf("%w: journal %s has no volume start year", ErrConfiguration, v.ID)
	}
	volume := year - v.VolumeStartYear
	if volume < 0 {
		return nil, fmt.Errorf("%w: %s year %d precedes its first volume year %d",
			ErrConfiguration, v.ID, year, v.VolumeStartYear)
	}
	path := expand(journalPath, map[string]string{
		"id":     v.ID,
		"volume": strconv.Itoa(volume),
	})
	return []SourceAddress{r.address(v, path, 1)}, nil
}

func resolveMultiPart(r *Resolver, v catalog.Venue, year, part int) ([]SourceAddress, error) {
	path := expand(multiPartPath, map[string]string{
		"id":   v.ID,
		"slug": v.Slug(year),
		"year": strconv.Itoa(year),
		"part": strconv.Itoa(part),
	})
	return []SourceAddress{r.address(v, path, part)}, nil
}

func resolveStandard(r *Resolver, v catalog.Venue, year, _ int) ([]SourceAddress, error) {
	template := standardPath
	if v.PathTemplate != "" {
		template = v.PathTemplate
	}
	vars := map[string]string{
		"id":      v.ID,
		"slug":    v.Slug(year),
		"year":    strconv.Itoa(year),
		"display": url.PathEscape(v.DisplayName),
		"suffix":  "",
	}
	paths := []string{expand(template, vars)}
	if v.AlternateSuffix != "" {
		vars["suffix"] = v.AlternateSuffix
		paths = append(paths, expand(template, vars))
		vars["suffix"] = ""
	}
	if alt, ok := v.AlternateSlugs[year]; ok && alt != "" {
		vars["slug"] = alt
		paths = append(paths, expand(template, vars))
	}

	seen := make(map[string]struct{}, len(paths))
	out := make([]SourceAddress, 0, len(paths))
	for _, p := range paths {
		addr := r.address(v, p, 1)
		if _, dup := seen[addr.URL]; dup {
			continue
		}
		seen[addr.URL] = struct{}{}
		out = append(out, addr)
	}
	return out, nil
}

func (r *Resolver) address(v catalog.Venue, path string, part int) SourceAddress {
	base := r.baseURL
	if v.BaseURL != "" {
		base = strings.TrimRight(v.BaseURL, "/")
	}
	return SourceAddress{
		URL:             base + path,
		Part:            part,
		DropFirst:       v.DropFirst && v.Family == catalog.FamilyStandard,
		AuthorsRequired: v.AuthorsRequired(),
		Markup:          v.Markup,
	}
}

func expand(template string, vars map[string]string) string {
	pairs := make([]string, 0, len(vars)*2)
	for k, val := range vars {
		pairs = append(pairs, "{"+k+"}", val)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}
