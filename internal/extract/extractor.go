// Package extract parses listing pages into publication records using goquery.
package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/JakeFAU/venue-harvester/internal/catalog"
	"github.com/JakeFAU/venue-harvester/internal/crawler"
	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// DefaultSkipPrefixes are lowercase title prefixes of non-paper entries.
var DefaultSkipPrefixes = []string{"frontmatter", "front matter", "editorial"}

const (
	dblpEntrySelector  = "li.entry"
	dblpTitleSelector  = "span.title"
	dblpAuthorSelector = `cite span[itemprop="author"] span[itemprop="name"]`

	cvfTitleSelector  = "dt.ptitle"
	cvfAuthorSelector = "a"
)

// Config controls record filtering.
type Config struct {
	// SkipPrefixes are matched case-insensitively against normalized titles.
	SkipPrefixes []string
}

// Extractor implements crawler.Extractor for dblp and CVF markup.
type Extractor struct {
	skip   []string
	logger *zap.Logger
}

// New builds an Extractor. An empty prefix list selects DefaultSkipPrefixes.
func New(cfg Config, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	prefixes := cfg.SkipPrefixes
	if len(prefixes) == 0 {
		prefixes = DefaultSkipPrefixes
	}
	skip := make([]string, 0, len(prefixes))
	for _, p := range prefixes {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			skip = append(skip, p)
		}
	}
	return &Extractor{skip: skip, logger: logger}
}

// Extract returns the records of page in document order.
func (e *Extractor) Extract(page crawler.RawPage) ([]crawler.PublicationRecord, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return nil, fmt.Errorf("parse page %s: %w", page.Address.URL, err)
	}

	var (
		records []crawler.PublicationRecord
		dropped int
	)
	keep := func(title string, authors []string) {
		if !e.acceptTitle(title) {
			dropped++
			return
		}
		if page.Address.AuthorsRequired && len(authors) == 0 {
			dropped++
			return
		}
		records = append(records, crawler.PublicationRecord{Title: title, Authors: authors})
	}

	switch page.Address.Markup {
	case catalog.MarkupCVF:
		doc.Find(cvfTitleSelector).Each(func(_ int, dt *goquery.Selection) {
			var authors []string
			if page.Address.AuthorsRequired {
				authors = names(dt.NextAllFiltered("dd").First().Find(cvfAuthorSelector))
			}
			keep(NormalizeTitle(dt.Text()), authors)
		})
	default:
		doc.Find(dblpEntrySelector).Each(func(_ int, entry *goquery.Selection) {
			title := NormalizeTitle(entry.Find(dblpTitleSelector).Text())
			var authors []string
			if page.Address.AuthorsRequired {
				authors = names(entry.Find(dblpAuthorSelector))
			}
			keep(title, authors)
		})
	}

	e.logger.Debug("extracted records",
		zap.String("url", page.Address.URL),
		zap.Int("records", len(records)),
		zap.Int("dropped", dropped),
	)
	return records, nil
}

func (e *Extractor) acceptTitle(title string) bool {
	if title == "" {
		return false
	}
	lower := strings.ToLower(title)
	for _, p := range e.skip {
		if strings.HasPrefix(lower, p) {
			return false
		}
	}
	return true
}

func names(sel *goquery.Selection) []string {
	var out []string
	sel.Each(func(_ int, s *goquery.Selection) {
		if name := NormalizeTitle(s.Text()); name != "" {
			out = append(out, name)
		}
	})
	return out
}

// NormalizeTitle joins the text fragments of a node with single spaces and
// trims the ends. It is idempotent.
func NormalizeTitle(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
