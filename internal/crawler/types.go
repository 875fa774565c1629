package crawler

import (
	"bytes"
	"strings"
	"time"

	"github.com/JakeFAU/venue-harvester/internal/catalog"
)

// Outcome classifies a single fetch.
type Outcome int

const (
	// OutcomeSuccess means the page body is available.
	OutcomeSuccess Outcome = iota
	// OutcomeNotFound means the address has no listing.
	OutcomeNotFound
	// OutcomeTransientFailure means the page could not be retrieved.
	OutcomeTransientFailure
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeTransientFailure:
		return "transient_failure"
	default:
		return "unknown"
	}
}

// SourceAddress locates one listing page and carries the extraction hints for it.
type SourceAddress struct {
	URL string
	// Part is the 1-based page index; single-page venues always use 1.
	Part int
	// DropFirst asks the caller to discard the first extracted record.
	DropFirst       bool
	AuthorsRequired bool
	Markup          catalog.Markup
}

// RawPage is a successfully fetched listing.
type RawPage struct {
	Address    SourceAddress
	StatusCode int
	Body       []byte
	Duration   time.Duration
}

// FetchResult is what a Fetcher reports for one address.
type FetchResult struct {
	Outcome  Outcome
	Page     RawPage
	Attempts int
	Err      error
}

// PublicationRecord is one paper listed on a page.
type PublicationRecord struct {
	Title   string
	Authors []string
}

// JoinedAuthors renders the author list with sep, or "" when absent.
func (r PublicationRecord) JoinedAuthors(sep string) string {
	return strings.Join(r.Authors, sep)
}

// Dataset is the ordered record list for one venue-year.
type Dataset struct {
	ID        string
	VenueID   string
	VenueName string
	Year      int
	Records   []PublicationRecord
}

// NewDataset copies records so the dataset cannot be mutated through the caller's slice.
func NewDataset(target catalog.Target, records []PublicationRecord) Dataset {
	cp := make([]PublicationRecord, len(records))
	for i, r := range records {
		cp[i] = PublicationRecord{Title: r.Title}
		if r.Authors != nil {
			cp[i].Authors = append([]string(nil), r.Authors...)
		}
	}
	return Dataset{
		ID:        target.DatasetID(),
		VenueID:   target.Venue.ID,
		VenueName: target.Venue.DisplayName,
		Year:      target.Year,
		Records:   cp,
	}
}

const (
	unitSep   = 0x1f
	recordSep = 0x1e
)

// Canonical encodes the ordered titles and authors for fingerprinting. Field
// and record boundaries are delimited so moving text between fields changes
// the encoding.
func (d Dataset) Canonical() []byte {
	var buf bytes.Buffer
	for _, r := range d.Records {
		buf.WriteString(r.Title)
		buf.WriteByte(unitSep)
		for _, a := range r.Authors {
			buf.WriteString(a)
			buf.WriteByte(unitSep)
		}
		buf.WriteByte(recordSep)
	}
	return buf.Bytes()
}
