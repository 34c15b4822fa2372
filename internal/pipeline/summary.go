package pipeline

import (
	"slices"

	"github.com/qivr/analytics-etl/internal/domain"
)

type RunStatus string

const (
	RunComplete RunStatus = "complete"
	RunPartial  RunStatus = "partial"
	RunFailed   RunStatus = "failed"
)

type DomainStatus string

const (
	DomainPublished DomainStatus = "published"
	// DomainEmpty means the domain had nothing to publish; it is not a failure.
	DomainEmpty  DomainStatus = "empty"
	DomainFailed DomainStatus = "failed"
)

type DomainResult struct {
	Status           DomainStatus `json:"status"`
	Location         string       `json:"location,omitempty"`
	Extracted        int          `json:"extracted"`
	Records          int          `json:"records"`
	SuppressedGroups int          `json:"suppressed_groups"`
	DefaultedFields  int          `json:"defaulted_fields"`
	Stage            Stage        `json:"stage,omitempty"`
	Error            string       `json:"error,omitempty"`

	err error
}

// Err returns the domain's failure, if any.
func (r *DomainResult) Err() error { return r.err }

func (r *DomainResult) fail(err *StageError) {
	r.Status = DomainFailed
	r.Stage = err.Stage
	r.Error = err.Error()
	r.err = err
}

// Summary is the outcome of one run. Every domain appears exactly once.
type Summary struct {
	RunID        string                          `json:"run_id"`
	LogicalDate  string                          `json:"logical_date"`
	Status       RunStatus                       `json:"status"`
	Domains      map[domain.Domain]*DomainResult `json:"domains"`
	TotalRecords int                             `json:"total_records"`
	DurationMs   int64                           `json:"duration_ms"`
}

// Locations lists the published object locations in sorted order.
func (s *Summary) Locations() []string {
	var out []string
	for _, r := range s.Domains {
		if r.Location != "" {
			out = append(out, r.Location)
		}
	}
	slices.Sort(out)
	return out
}

// Failed lists the failed domains in sorted order.
func (s *Summary) Failed() []domain.Domain {
	var out []domain.Domain
	for d, r := range s.Domains {
		if r.Status == DomainFailed {
			out = append(out, d)
		}
	}
	slices.Sort(out)
	return out
}

func (s *Summary) finalize() {
	failed := 0
	s.TotalRecords = 0
	for _, r := range s.Domains {
		s.TotalRecords += r.Records
		if r.Status == DomainFailed {
			failed++
		}
	}
	switch {
	case failed == 0:
		s.Status = RunComplete
	case failed == len(s.Domains):
		s.Status = RunFailed
	default:
		s.Status = RunPartial
	}
}
