package gosplan

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/MrSnakeDoc/tenders/internal/domain"
)

// RawRecord is one upstream purchase, tagged with the regime endpoint it
// came from. Each variant normalizes itself into a domain.Tender.
type RawRecord interface {
	Regime() domain.Regime
	normalize() *domain.Tender
}

// Purchase44 is a record from the fz44 endpoint.
type Purchase44 struct{ rawPurchase }

// Purchase223 is a record from the fz223 endpoint.
type Purchase223 struct{ rawPurchase }

func (Purchase44) Regime() domain.Regime  { return domain.Regime44 }
func (Purchase223) Regime() domain.Regime { return domain.Regime223 }

// rawPurchase is the union of the fields both endpoints are known to send.
// The two schemas name equivalent data differently (customers vs customer,
// collecting_finished_at vs submission_close_at) and the upstream drifts,
// so every field is optional and decoded permissively.
type rawPurchase struct {
	PurchaseNumber flexString `json:"purchase_number"`
	ObjectInfo     flexString `json:"object_info"`
	PublishedAt    flexString `json:"published_at"`

	// customer resolution chain, most specific first
	Customers   flexStrings `json:"customers"`
	Customer    flexString  `json:"customer"`
	Responsible flexString  `json:"responsible"`
	Placer      flexString  `json:"placer"`
	CustomerINN flexString  `json:"customer_inn"`

	// 44-FZ deadline field
	CollectingFinishedAt flexString `json:"collecting_finished_at"`
	// 223-FZ deadline field
	SubmissionCloseAt flexString `json:"submission_close_at"`

	MaxPrice     flexDecimal `json:"max_price"`
	CurrencyCode flexString  `json:"currency_code"`
	Region       flexString  `json:"region"`
}

// envelope is the object form of a search response. The API also answers
// with a bare array, handled in decodeRecords.
type envelope struct {
	Data  *[]rawPurchase `json:"data"`
	Total int            `json:"total"`
}

// decodeRecords parses a search response body into tagged records.
func decodeRecords(regime domain.Regime, body []byte) ([]RawRecord, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, fmt.Errorf("empty body")
	}

	var raws []rawPurchase
	switch body[0] {
	case '[':
		if err := json.Unmarshal(body, &raws); err != nil {
			return nil, fmt.Errorf("decode array: %w", err)
		}
	case '{':
		var env envelope
		if err := json.Unmarshal(body, &env); err != nil {
			return nil, fmt.Errorf("decode envelope: %w", err)
		}
		if env.Data != nil {
			raws = *env.Data
		}
	default:
		return nil, fmt.Errorf("unexpected payload starting with %q", body[0])
	}

	records := make([]RawRecord, 0, len(raws))
	for _, r := range raws {
		switch regime {
		case domain.Regime44:
			records = append(records, Purchase44{r})
		case domain.Regime223:
			records = append(records, Purchase223{r})
		default:
			return nil, fmt.Errorf("unknown regime %v", regime)
		}
	}
	return records, nil
}

// flexString accepts a JSON string, number or bool, and for objects picks
// the first human-readable name field. null decodes to "".
type flexString string

var nameKeys = []string{"full_name", "fullName", "name", "short_name", "shortName", "inn"}

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(strings.TrimSpace(s))
		return nil
	case '{':
		var obj map[string]flexString
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		for _, k := range nameKeys {
			if v := obj[k]; v != "" {
				*f = v
				return nil
			}
		}
		*f = ""
		return nil
	case '[':
		return fmt.Errorf("expected scalar, got array")
	default:
		// numbers and booleans keep their literal text
		*f = flexString(data)
		return nil
	}
}

func (f flexString) String() string { return string(f) }

// flexStrings accepts either a list or a single value.
type flexStrings []flexString

func (f *flexStrings) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = nil
		return nil
	}
	if data[0] == '[' {
		var list []flexString
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}
		*f = list
		return nil
	}
	var one flexString
	if err := one.UnmarshalJSON(data); err != nil {
		return err
	}
	*f = flexStrings{one}
	return nil
}

// flexDecimal accepts numbers and numeric strings, including the
// "1 500 000,50" style with space grouping and a decimal comma.
type flexDecimal struct {
	Value *decimal.Decimal
}

func (f *flexDecimal) UnmarshalJSON(data []byte) error {
	var s flexString
	if err := s.UnmarshalJSON(data); err != nil {
		return err
	}
	f.Value = parseDecimal(string(s))
	return nil
}

func parseDecimal(s string) *decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	// a lone comma without a dot is the decimal separator, otherwise
	// commas group thousands
	decimalComma := !strings.Contains(s, ".") && strings.Count(s, ",") == 1
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\u00a0', '\u202f':
			return -1
		case ',':
			if decimalComma {
				return '.'
			}
			return -1
		}
		return r
	}, s)
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil
	}
	return &d
}
