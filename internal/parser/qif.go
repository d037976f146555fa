package parser

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"
)

// QIFParser reads Quicken Interchange Format files. Records are line
// oriented with one-letter field codes and end with a "^" line.
type QIFParser struct{}

func (p *QIFParser) Format() Format { return FormatQIF }

type qifEntry struct {
	date, amount, payee, memo, number string
}

func (p *QIFParser) Parse(ctx context.Context, data []byte, cfg Config) (*Result, error) {
	text, err := decode(data, cfg.Encoding)
	if err != nil {
		return nil, err
	}
	layout := cfg.dateLayout()
	out := newCollector(cfg)

	var (
		cur     qifEntry
		open    bool
		ordinal int
	)
	// Headerless files are read as a single transaction list.
	inTxns := true
	flush := func() {
		if !open {
			return
		}
		if !inTxns {
			cur, open = qifEntry{}, false
			return
		}
		ordinal++
		p.stage(out, ordinal, cur, layout, cfg.DecimalSeparator)
		cur, open = qifEntry{}, false
	}

	sc := bufio.NewScanner(bytes.NewReader(text))
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		if line[0] == '!' {
			if header, ok := qifHeader(line); ok {
				flush()
				inTxns = header
			}
			continue
		}
		if line[0] == '^' {
			flush()
			continue
		}
		open = true
		value := strings.TrimSpace(line[1:])
		switch line[0] {
		case 'D':
			cur.date = value
		case 'T':
			if cur.amount == "" {
				cur.amount = value
			}
		case 'U':
			cur.amount = value
		case 'P':
			cur.payee = value
		case 'M':
			cur.memo = value
		case 'N':
			cur.number = value
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading QIF file: %w", err)
	}
	flush()
	return out.result(), nil
}

// qifHeader reports whether a "!" line opens a block of transactions. ok is
// false for option lines that do not start a block.
func qifHeader(line string) (txns, ok bool) {
	h := strings.ToLower(strings.TrimSpace(line[1:]))
	switch {
	case strings.HasPrefix(h, "type:"):
		switch strings.TrimSpace(strings.TrimPrefix(h, "type:")) {
		case "bank", "cash", "ccard", "oth a", "oth l", "invst":
			return true, true
		default:
			// Category, class, memorized and price lists.
			return false, true
		}
	case h == "account":
		return false, true
	default:
		// !Option:AutoSwitch, !Clear:AutoSwitch
		return false, false
	}
}

func (p *QIFParser) stage(out *collector, row int, e qifEntry, layout, sep string) {
	date, err := parseQIFDate(e.date, layout)
	if err != nil {
		out.skip(row, "%v", err)
		return
	}
	amount, err := parseAmount(e.amount, sep)
	if err != nil {
		out.skip(row, "%v", err)
		return
	}
	desc := e.payee
	if desc == "" {
		desc = e.memo
	}
	out.add(StagedRecord{
		Row:         row,
		Date:        date,
		Amount:      amount,
		Description: desc,
		Reference:   e.number,
	})
}

// parseQIFDate also accepts Quicken's apostrophe years: 1/15'25 and 1/15' 5.
func parseQIFDate(s, layout string) (time.Time, error) {
	if layout != "" {
		return parseDate(s, layout)
	}
	s = strings.TrimSpace(s)
	if strings.Contains(s, "'") {
		s = strings.Replace(s, "' ", "/0", 1)
		s = strings.Replace(s, "'", "/", 1)
		for _, l := range []string{"1/2/06", "01/02/06", "1/2/2006"} {
			if t, err := time.Parse(l, s); err == nil {
				return calendarDate(t), nil
			}
		}
		return time.Time{}, fmt.Errorf("unrecognized date %q", s)
	}
	for _, l := range []string{"1/2/2006", "01/02/2006", "1/2/06", "2006-01-02", "02.01.2006"} {
		if t, err := time.Parse(l, s); err == nil {
			return calendarDate(t), nil
		}
	}
	return parseDate(s, "")
}
