package parser

import (
	"time"

	"github.com/shopspring/decimal"
)

// Summary aggregates the staged records of one file.
type Summary struct {
	Count       int             `json:"count"`
	CreditCount int             `json:"creditCount"`
	DebitCount  int             `json:"debitCount"`
	Credits     decimal.Decimal `json:"credits"`
	Debits      decimal.Decimal `json:"debits"`
	Net         decimal.Decimal `json:"net"`
	FirstDate   *time.Time      `json:"firstDate,omitempty"`
	LastDate    *time.Time      `json:"lastDate,omitempty"`
}

// Add folds one record into the summary and returns the new value.
func (s Summary) Add(rec StagedRecord) Summary {
	s.Count++
	switch rec.Amount.Sign() {
	case 1:
		s.CreditCount++
		s.Credits = s.Credits.Add(rec.Amount)
	case -1:
		s.DebitCount++
		s.Debits = s.Debits.Add(rec.Amount)
	}
	s.Net = s.Net.Add(rec.Amount)

	d := rec.Date
	if s.FirstDate == nil || d.Before(*s.FirstDate) {
		s.FirstDate = &d
	}
	if s.LastDate == nil || d.After(*s.LastDate) {
		last := d
		s.LastDate = &last
	}
	return s
}

// Summarize folds records into a Summary.
func Summarize(records []StagedRecord) Summary {
	s := Summary{Credits: decimal.Zero, Debits: decimal.Zero, Net: decimal.Zero}
	for _, rec := range records {
		s = s.Add(rec)
	}
	return s
}
