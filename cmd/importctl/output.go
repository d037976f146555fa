package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"statement-import-backend/internal/parser"
	"statement-import-backend/internal/services/imports"
	"statement-import-backend/internal/services/matching"
)

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow, color.Bold)
	blue   = color.New(color.FgBlue)
	red    = color.New(color.FgRed)
)

func header(w io.Writer, text string) {
	line := strings.Repeat("=", 60)
	green.Fprintf(w, "%s\n%s\n%s\n", line, text, line)
}

func printRecords(w io.Writer, records []parser.StagedRecord) {
	for _, r := range records {
		amount := green
		if r.Amount.IsNegative() {
			amount = red
		}
		fmt.Fprintf(w, "%5d  %s  ", r.Row, r.Date.Format("2006-01-02"))
		amount.Fprintf(w, "%12s", r.Amount.StringFixed(2))
		fmt.Fprintf(w, "  %s\n", r.Description)
	}
}

func printSkipped(w io.Writer, skipped []parser.SkippedRow) {
	if len(skipped) == 0 {
		return
	}
	yellow.Fprintf(w, "\n%d skipped rows\n", len(skipped))
	for _, s := range skipped {
		yellow.Fprintf(w, "  row %d: %s\n", s.Row, s.Reason)
	}
}

func printParseSummary(w io.Writer, s parser.Summary) {
	fmt.Fprintf(w, "\nrecords %d (credits %d, debits %d)\n", s.Count, s.CreditCount, s.DebitCount)
	fmt.Fprintf(w, "credits %s  debits %s  net %s\n", s.Credits.StringFixed(2), s.Debits.StringFixed(2), s.Net.StringFixed(2))
	if s.FirstDate != nil && s.LastDate != nil {
		fmt.Fprintf(w, "period  %s .. %s\n", s.FirstDate.Format("2006-01-02"), s.LastDate.Format("2006-01-02"))
	}
}

func printCandidates(w io.Writer, cands []matching.MatchCandidate) {
	for _, c := range cands {
		label := blue
		switch c.Classification {
		case matching.Duplicate:
			label = yellow
		case matching.Exact:
			label = green
		case matching.Probable:
			label = red
		}
		label.Fprintf(w, "%-9s", c.Classification)
		score := "   -"
		if c.Score != nil {
			score = fmt.Sprintf("%4d", *c.Score)
		}
		fmt.Fprintf(w, " %s  row %-4d %s %12s  %s", score, c.Record.Row, c.Record.Date.Format("2006-01-02"),
			c.Record.Amount.StringFixed(2), c.Record.Description)
		if c.SuggestedPayeeID != nil {
			fmt.Fprintf(w, "  payee=%s", c.SuggestedPayeeID)
		}
		fmt.Fprintln(w)
	}
}

func printAnalysisSummary(w io.Writer, s imports.Summary) {
	fmt.Fprintf(w, "\ntotal %d  new %d  duplicate %d  matched %d (exact %d, probable %d)  skipped %d\n",
		s.Total, s.New, s.Duplicate, s.Matched, s.Exact, s.Probable, s.Skipped)
}
