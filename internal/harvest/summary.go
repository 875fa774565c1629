package harvest

import "time"

// Status is the outcome of one target.
type Status string

// Target outcomes.
const (
	StatusProduced Status = "produced"
	StatusEmpty    Status = "empty"
	StatusNotFound Status = "not_found"
	StatusSkipped  Status = "skipped"
	StatusFailed   Status = "failed"
	StatusCanceled Status = "canceled"
)

// TargetResult describes what happened to one venue-year.
type TargetResult struct {
	Target  string `json:"target"`
	Dataset string `json:"dataset"`
	Status  Status `json:"status"`
	Records int    `json:"records"`
	// Source is the address that supplied the records.
	Source  string        `json:"source,omitempty"`
	Fetches int           `json:"fetches"`
	Note    string        `json:"note,omitempty"`
	Elapsed time.Duration `json:"elapsed_ns"`
}

// Summary totals a run. Attempted excludes targets skipped by rule; Empty
// includes targets whose listing does not exist.
type Summary struct {
	RunID     string         `json:"run_id"`
	Total     int            `json:"total"`
	Attempted int            `json:"attempted"`
	Skipped   int            `json:"skipped"`
	Produced  int            `json:"produced"`
	Empty     int            `json:"empty"`
	Failed    int            `json:"failed"`
	Canceled  int            `json:"canceled"`
	Records   int            `json:"records"`
	Started   time.Time      `json:"started"`
	Finished  time.Time      `json:"finished,omitzero"`
	Results   []TargetResult `json:"results,omitempty"`
}

// Datasets lists the IDs of produced datasets in result order.
func (s Summary) Datasets() []string {
	var out []string
	for _, r := range s.Results {
		if r.Status == StatusProduced {
			out = append(out, r.Dataset)
		}
	}
	return out
}

func (s *Summary) add(r TargetResult) {
	s.Results = append(s.Results, r)
	switch r.Status {
	case StatusSkipped:
		s.Skipped++
		return
	case StatusCanceled:
		s.Canceled++
		return
	}
	s.Attempted++
	switch r.Status {
	case StatusProduced:
		s.Produced++
		s.Records += r.Records
	case StatusEmpty, StatusNotFound:
		s.Empty++
	case StatusFailed:
		s.Failed++
	}
}

func (s Summary) clone() Summary {
	cp := s
	cp.Results = append([]TargetResult(nil), s.Results...)
	return cp
}
