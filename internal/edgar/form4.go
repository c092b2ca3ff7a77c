package edgar

import (
	"encoding/xml"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"insider-signal-lab/internal/domain"
)

// Form4 is the parsed content of one Form 4 ownership document.
type Form4 struct {
	IssuerSymbol string
	OwnerName    string
	OwnerTitle   string
	Transactions []domain.TransactionRecord
}

// ownershipDocument models the Form 4 XML layout. Field pairs cover both
// the flat layout and the nested one EDGAR emits; value resolution takes
// whichever is populated.
type ownershipDocument struct {
	XMLName xml.Name `xml:"ownershipDocument"`

	Issuer struct {
		TradingSymbol string `xml:"issuerTradingSymbol"`
	} `xml:"issuer"`

	ReportingOwner struct {
		Name         string `xml:"reportingOwnerName"`
		RptOwnerName string `xml:"reportingOwnerId>rptOwnerName"`
		Title        string `xml:"reportingOwnerTitle"`
		OfficerTitle string `xml:"reportingOwnerRelationship>officerTitle"`
	} `xml:"reportingOwner"`

	NonDerivativeTable struct {
		Transactions []nonDerivativeTransaction `xml:"nonDerivativeTransaction"`
	} `xml:"nonDerivativeTable"`
}

// valueElem holds the <value> wrapper EDGAR uses for typed fields.
type valueElem struct {
	Value string `xml:"value"`
}

type nonDerivativeTransaction struct {
	Date       valueElem `xml:"transactionDate"`
	Code       valueElem `xml:"transactionCode"`
	CodingCode string    `xml:"transactionCoding>transactionCode"`

	Shares    valueElem `xml:"transactionShares"`
	AmtShares valueElem `xml:"transactionAmounts>transactionShares"`

	Owned     valueElem `xml:"sharesOwnedFollowingTransaction"`
	PostOwned valueElem `xml:"postTransactionAmounts>sharesOwnedFollowingTransaction"`
}

// ParseForm4 parses a Form 4 document into canonical transaction records.
//
// The transaction-code rule classifies each transaction into Sale or
// Purchase; sales get SharesBought = 0 and vice versa. Transactions with a
// missing or unparseable date, code, share count or post-transaction
// holding are skipped here so only well-typed records reach the detector.
// Returned records are sorted by transaction date ascending: the detector
// treats the last record as authoritative for current ownership.
func ParseForm4(content []byte) (*Form4, error) {
	var doc ownershipDocument
	if err := xml.Unmarshal(content, &doc); err != nil {
		return nil, fmt.Errorf("parse form 4: %w", err)
	}

	name := firstNonEmpty(doc.ReportingOwner.Name, doc.ReportingOwner.RptOwnerName, "Unknown")
	title := firstNonEmpty(doc.ReportingOwner.Title, doc.ReportingOwner.OfficerTitle, "Unknown")

	f := &Form4{
		IssuerSymbol: strings.TrimSpace(doc.Issuer.TradingSymbol),
		OwnerName:    name,
		OwnerTitle:   title,
	}

	for _, tx := range doc.NonDerivativeTable.Transactions {
		record, ok := canonicalize(tx, name, title)
		if !ok {
			continue
		}
		f.Transactions = append(f.Transactions, record)
	}

	sort.SliceStable(f.Transactions, func(i, j int) bool {
		return f.Transactions[i].TransactionDate.Before(f.Transactions[j].TransactionDate)
	})

	return f, nil
}

// canonicalize converts one raw transaction into a TransactionRecord.
// Returns ok=false when a required field is missing or malformed.
func canonicalize(tx nonDerivativeTransaction, name, title string) (domain.TransactionRecord, bool) {
	dateStr := strings.TrimSpace(tx.Date.Value)
	code := firstNonEmpty(tx.Code.Value, tx.CodingCode, "")
	sharesStr := firstNonEmpty(tx.Shares.Value, tx.AmtShares.Value, "")
	ownedStr := firstNonEmpty(tx.Owned.Value, tx.PostOwned.Value, "")

	if dateStr == "" || code == "" || sharesStr == "" || ownedStr == "" {
		return domain.TransactionRecord{}, false
	}

	date, err := parseDate(dateStr)
	if err != nil {
		return domain.TransactionRecord{}, false
	}

	shares, err := parseShares(sharesStr)
	if err != nil || shares < 0 {
		return domain.TransactionRecord{}, false
	}

	owned, err := parseShares(ownedStr)
	if err != nil || owned < 0 {
		return domain.TransactionRecord{}, false
	}

	kind := domain.KindForCode(code)
	record := domain.TransactionRecord{
		InsiderName:      name,
		RoleTitle:        title,
		TransactionDate:  date,
		SharesOwnedAfter: owned,
		Kind:             kind,
	}
	if kind == domain.TransactionSale {
		record.SharesSold = shares
	} else {
		record.SharesBought = shares
	}
	return record, true
}

// parseDate parses a calendar date, tolerating a trailing time/offset part.
func parseDate(s string) (time.Time, error) {
	if len(s) > 10 {
		s = s[:10]
	}
	return time.Parse("2006-01-02", s)
}

// parseShares parses a share count. EDGAR reports whole-share values but
// some filers include a decimal point ("1000.0000").
func parseShares(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return int64(f), nil
}

// firstNonEmpty returns the first non-blank string.
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
