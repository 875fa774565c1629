package catalog

import "fmt"

// Default returns the built-in venue catalog: machine learning, vision,
// language and security venues indexed by dblp, plus the CVF open access
// listing for CVPR.
func Default() *Catalog {
	c, err := New(defaultVenues())
	if err != nil {
		panic(err)
	}
	return c
}

func journal(id, name string, startYear int) Venue {
	return Venue{
		ID:              id,
		DisplayName:     name,
		Family:          FamilyJournalVolume,
		VolumeStartYear: startYear,
		Markup:          MarkupDBLP,
	}
}

func conference(id, name string, dropFirst bool) Venue {
	return Venue{
		ID:          id,
		DisplayName: name,
		Family:      FamilyStandard,
		DropFirst:   dropFirst,
		Markup:      MarkupDBLP,
	}
}

func defaultVenues() []Venue {
	acl := conference("acl", "ACL", true)
	acl.AlternateSuffix = "-1"
	naacl := conference("naacl", "NAACL", true)
	naacl.AlternateSuffix = "-1"
	emnlp := conference("emnlp", "EMNLP", true)
	emnlp.AlternateSuffix = "-1"

	eccv := conference("eccv", "ECCV", false)
	eccv.Family = FamilyMultiPart
	eccv.Parity = ParityEven

	iccv := conference("iccv", "ICCV", false)
	iccv.Parity = ParityOdd

	nips := conference("nips", "NeurIPS", true)
	nips.Renames = []Rename{{FromYear: 2020, Slug: "neurips"}}

	return []Venue{
		journal("ijcv", "IJCV", 1892),
		journal("jmlr", "JMLR", 1999),
		journal("pami", "TPAMI", 1978),
		journal("tip", "TIP", 1991),
		journal("tifs", "TIFS", 2005),
		conference("aaai", "AAAI", true),
		conference("ndss", "NDSS", false),
		conference("iclr", "ICLR", false),
		conference("www", "WWW", true),
		naacl,
		conference("sp", "S&P", false),
		conference("cvpr", "CVPR", false),
		conference("ijcai", "IJCAI", true),
		conference("icml", "ICML", true),
		conference("uss", "USENIX Security", true),
		acl,
		eccv,
		iccv,
		conference("mm", "ACM MM", true),
		conference("ccs", "CCS", true),
		nips,
		emnlp,
	}
}

// CVFOpenAccess returns the CVPR listing hosted by the CVF open access site.
// Its pages carry paper titles in dt elements and author links in the
// following dd element.
func CVFOpenAccess() Venue {
	return Venue{
		ID:           "cvpr-openaccess",
		DisplayName:  "CVPR",
		Family:       FamilyStandard,
		Markup:       MarkupCVF,
		BaseURL:      "https://openaccess.thecvf.com",
		PathTemplate: "/{display}{year}?day=all",
	}
}

// Preset returns a named built-in catalog: "dblp" or "cvf".
func Preset(name string) (*Catalog, error) {
	switch name {
	case "", "dblp":
		return Default(), nil
	case "cvf":
		return New([]Venue{CVFOpenAccess()})
	default:
		return nil, fmt.Errorf("unknown catalog preset %q", name)
	}
}
