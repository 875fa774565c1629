package catalog

import (
	"errors"
	"fmt"
	"strconv"
)

// Catalog is an ordered, read-only set of venues.
type Catalog struct {
	venues []Venue
	index  map[string]int
}

// YearRange is an inclusive span of publication years.
type YearRange struct {
	From int
	To   int
}

// Validate ensures the range is well formed.
func (r YearRange) Validate() error {
	if r.From <= 0 || r.To <= 0 {
		return errors.New("year range bounds must be > 0")
	}
	if r.From > r.To {
		return fmt.Errorf("year range %d..%d is inverted", r.From, r.To)
	}
	return nil
}

// Target is one venue-year unit of work.
type Target struct {
	Venue Venue
	Year  int
}

// DatasetID is the identifier downstream sinks use for the target's records.
func (t Target) DatasetID() string {
	return t.Venue.DisplayName + strconv.Itoa(t.Year)
}

func (t Target) String() string {
	return t.Venue.ID + "/" + strconv.Itoa(t.Year)
}

// New validates and copies venues into a catalog. Venue order is preserved.
func New(venues []Venue) (*Catalog, error) {
	if len(venues) == 0 {
		return nil, errors.New("catalog needs at least one venue")
	}
	c := &Catalog{
		venues: make([]Venue, 0, len(venues)),
		index:  make(map[string]int, len(venues)),
	}
	for _, v := range venues {
		if err := v.Validate(); err != nil {
			return nil, fmt.Errorf("validate catalog: %w", err)
		}
		if _, dup := c.index[v.ID]; dup {
			return nil, fmt.Errorf("validate catalog: duplicate venue id %q", v.ID)
		}
		c.index[v.ID] = len(c.venues)
		c.venues = append(c.venues, v.clone())
	}
	return c, nil
}

// Len returns the number of venues.
func (c *Catalog) Len() int {
	return len(c.venues)
}

// Venues returns a copy of the venues in catalog order.
func (c *Catalog) Venues() []Venue {
	out := make([]Venue, len(c.venues))
	for i, v := range c.venues {
		out[i] = v.clone()
	}
	return out
}

// Lookup finds a venue by id.
func (c *Catalog) Lookup(id string) (Venue, bool) {
	i, ok := c.index[id]
	if !ok {
		return Venue{}, false
	}
	return c.venues[i].clone(), true
}

// Targets enumerates venue-years year-major: every venue for the first year,
// then every venue for the next. newestFirst walks years downward.
func (c *Catalog) Targets(years YearRange, newestFirst bool) []Target {
	if years.From > years.To {
		return nil
	}
	out := make([]Target, 0, (years.To-years.From+1)*len(c.venues))
	appendYear := func(year int) {
		for _, v := range c.venues {
			out = append(out, Target{Venue: v.clone(), Year: year})
		}
	}
	if newestFirst {
		for year := years.To; year >= years.From; year-- {
			appendYear(year)
		}
		return out
	}
	for year := years.From; year <= years.To; year++ {
		appendYear(year)
	}
	return out
}
