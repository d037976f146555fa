package parser

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/aclindsa/ofxgo"
)

// OFXParser reads OFX and QFX statements. Well-formed files go through
// ofxgo; anything it rejects is scanned for STMTTRN blocks directly, which
// covers the many bank exports that are not valid OFX.
type OFXParser struct{}

func (p *OFXParser) Format() Format { return FormatOFX }

func (p *OFXParser) Parse(ctx context.Context, data []byte, cfg Config) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if res, ok := p.parseStrict(data, cfg); ok {
		return res, nil
	}
	return p.parseTags(ctx, data, cfg)
}

// parseStrict returns ok=false when ofxgo cannot read the file or finds no
// bank or credit card statement in it.
func (p *OFXParser) parseStrict(data []byte, cfg Config) (*Result, bool) {
	resp, err := ofxgo.ParseResponse(bytes.NewReader(data))
	if err != nil {
		return nil, false
	}
	var lists []*ofxgo.TransactionList
	for _, msg := range resp.Bank {
		if stmt, ok := msg.(*ofxgo.StatementResponse); ok && stmt.BankTranList != nil {
			lists = append(lists, stmt.BankTranList)
		}
	}
	for _, msg := range resp.CreditCard {
		if stmt, ok := msg.(*ofxgo.CCStatementResponse); ok && stmt.BankTranList != nil {
			lists = append(lists, stmt.BankTranList)
		}
	}
	if len(lists) == 0 {
		return nil, false
	}

	out := newCollector(cfg)
	row := 0
	for _, list := range lists {
		for _, txn := range list.Transactions {
			row++
			if txn.DtPosted.Time.IsZero() {
				out.skip(row, "missing DTPOSTED")
				continue
			}
			amount, err := parseAmount(txn.TrnAmt.FloatString(2), ".")
			if err != nil {
				out.skip(row, "%v", err)
				continue
			}
			desc := txn.Name.String()
			if strings.TrimSpace(desc) == "" {
				desc = txn.Memo.String()
			}
			out.add(StagedRecord{
				Row:         row,
				Date:        calendarDate(txn.DtPosted.Time),
				Amount:      amount,
				Description: desc,
				Reference:   txn.FiTID.String(),
			})
		}
	}
	return out.result(), true
}

var (
	stmtTrnBlock = regexp.MustCompile(`(?is)<STMTTRN>(.*?)</STMTTRN>`)
	ofxDigits    = regexp.MustCompile(`^\d{8}`)
	ofxTags      = map[string]*regexp.Regexp{}
)

func init() {
	for _, name := range []string{"DTPOSTED", "TRNAMT", "NAME", "MEMO", "FITID"} {
		ofxTags[name] = regexp.MustCompile(`(?i)<` + name + `>([^<\r\n]*)`)
	}
}

// ofxTag returns the value of an SGML or XML element inside block.
func ofxTag(block, name string) string {
	m := ofxTags[name].FindStringSubmatch(block)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

func (p *OFXParser) parseTags(ctx context.Context, data []byte, cfg Config) (*Result, error) {
	text, err := decode(data, cfg.Encoding)
	if err != nil {
		return nil, err
	}
	blocks := stmtTrnBlock.FindAllSubmatch(text, -1)
	if len(blocks) == 0 {
		return nil, fmt.Errorf("no <STMTTRN> records found")
	}

	out := newCollector(cfg)
	for i, b := range blocks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row := i + 1
		block := string(b[1])

		posted := ofxDigits.FindString(ofxTag(block, "DTPOSTED"))
		if posted == "" {
			out.skip(row, "missing or invalid DTPOSTED")
			continue
		}
		date, err := time.Parse("20060102", posted)
		if err != nil {
			out.skip(row, "invalid DTPOSTED %q", posted)
			continue
		}
		amount, err := parseAmount(ofxTag(block, "TRNAMT"), cfg.DecimalSeparator)
		if err != nil {
			out.skip(row, "%v", err)
			continue
		}
		desc := ofxTag(block, "NAME")
		if desc == "" {
			desc = ofxTag(block, "MEMO")
		}
		out.add(StagedRecord{
			Row:         row,
			Date:        date,
			Amount:      amount,
			Description: desc,
			Reference:   ofxTag(block, "FITID"),
		})
	}
	return out.result(), nil
}
