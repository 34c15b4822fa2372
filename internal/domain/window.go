package domain

import (
	"fmt"
	"strconv"
	"time"
)

// Unknown is the explicit category substituted for missing or unmappable source values.
const Unknown = "unknown"

const DateLayout = "2006-01-02"

type Domain string

const (
	DomainTenants  Domain = "tenants"
	DomainUsage    Domain = "usage"
	DomainOutcomes Domain = "outcomes"
)

// Domains lists the extraction domains in the order a run processes them.
var Domains = []Domain{DomainTenants, DomainUsage, DomainOutcomes}

// Window is the extraction range for one run. It is derived from the logical
// date rather than the wall clock so reruns for the same day read the same rows.
type Window struct {
	LogicalDate time.Time
	Start       time.Time
	End         time.Time
}

// NewWindow returns [logicalDate-lookbackDays, logicalDate+1d) in UTC.
func NewWindow(logicalDate time.Time, lookbackDays int) Window {
	day := TruncateDay(logicalDate)
	return Window{
		LogicalDate: day,
		Start:       day.AddDate(0, 0, -lookbackDays),
		End:         day.AddDate(0, 0, 1),
	}
}

// Contains reports whether t falls within [Start, End).
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Partition is the date partition used in output keys.
func (w Window) Partition() string {
	return w.LogicalDate.Format(DateLayout)
}

// TruncateDay returns midnight UTC of t's UTC calendar day.
func TruncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Date is a calendar date stored as days since the Unix epoch, the physical
// representation of the columnar DATE type.
type Date int32

func NewDate(t time.Time) Date {
	return Date(TruncateDay(t).Unix() / 86400)
}

func (d Date) Time() time.Time {
	return time.Unix(int64(d)*86400, 0).UTC()
}

func (d Date) String() string {
	return d.Time().Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(d.String())), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s, err := strconv.Unquote(string(b))
	if err != nil {
		return fmt.Errorf("date: %w", err)
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return fmt.Errorf("date: %w", err)
	}
	*d = NewDate(t)
	return nil
}
