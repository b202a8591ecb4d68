package gosplan

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MrSnakeDoc/tenders/internal/domain"
)

const taxIDLabel = "Tax ID: "

// Notice page templates on the public procurement portal, keyed by regime.
var sourceURLTemplates = map[domain.Regime]string{
	domain.Regime44:  "https://zakupki.gov.ru/epz/order/notice/ea44/view/common-info.html?regNumber=%s",
	domain.Regime223: "https://zakupki.gov.ru/epz/order/notice/notice223/common-info.html?purchaseNumber=%s",
}

// Normalize converts a tagged upstream record into a domain tender.
// queryID is stamped as the originating query (may be nil).
func Normalize(rec RawRecord, queryID *int64) *domain.Tender {
	t := rec.normalize()
	t.QueryID = queryID
	return t
}

func (p Purchase44) normalize() *domain.Tender {
	return p.rawPurchase.toTender(domain.Regime44)
}

func (p Purchase223) normalize() *domain.Tender {
	return p.rawPurchase.toTender(domain.Regime223)
}

func (r rawPurchase) toTender(regime domain.Regime) *domain.Tender {
	purchaseNumber := r.PurchaseNumber.String()
	rawTitle := r.ObjectInfo.String()
	customer := r.resolveCustomer()
	published := parseTimestamp(r.PublishedAt.String())

	t := &domain.Tender{
		PurchaseNumber: purchaseNumber,
		Title:          rawTitle,
		PublishDate:    published,
		Deadline:       r.resolveDeadline(),
		MaxPrice:       r.MaxPrice.Value,
		Region:         optional(r.Region.String()),
		CustomerINN:    r.resolveINN(customer),
	}

	if purchaseNumber == "" {
		t.PurchaseNumber = domain.PurchaseNumberUnknown
		t.ExternalID = synthesizeExternalID(customer, published, rawTitle)
	} else {
		t.ExternalID = purchaseNumber
		link := fmt.Sprintf(sourceURLTemplates[regime], url.QueryEscape(purchaseNumber))
		t.SourceURL = &link
	}

	if customer != "" {
		if looksLikeINN(customer) {
			customer = taxIDLabel + customer
		}
		t.CustomerName = &customer
	}

	if t.Title == "" {
		t.Title = synthesizeTitle(regime, r.MaxPrice.Value != nil, t, r.CurrencyCode.String())
	}

	t.AdditionalInfo = additionalInfo(t.Region, t.CustomerINN)
	return t
}

// resolveCustomer walks customers[0], customer, responsible, placer.
func (r rawPurchase) resolveCustomer() string {
	if len(r.Customers) > 0 && r.Customers[0] != "" {
		return r.Customers[0].String()
	}
	for _, v := range []flexString{r.Customer, r.Responsible, r.Placer} {
		if v != "" {
			return v.String()
		}
	}
	return ""
}

func (r rawPurchase) resolveINN(customer string) *string {
	if inn := r.CustomerINN.String(); inn != "" {
		return &inn
	}
	if looksLikeINN(customer) {
		return &customer
	}
	return nil
}

// resolveDeadline prefers the 44-FZ field, then the 223-FZ one.
func (r rawPurchase) resolveDeadline() *time.Time {
	if t := parseTimestamp(r.CollectingFinishedAt.String()); t != nil {
		return t
	}
	return parseTimestamp(r.SubmissionCloseAt.String())
}

// looksLikeINN matches Russian taxpayer numbers: 10 digits for
// organizations, 12 for individuals.
func looksLikeINN(s string) bool {
	return (len(s) == 10 || len(s) == 12) && isDigits(s)
}

// synthesizeExternalID derives a stable id from whatever identifying
// fields exist. Only a record with none of them gets a random id.
func synthesizeExternalID(customer string, published *time.Time, title string) string {
	var parts []string
	if customer != "" {
		parts = append(parts, customer)
	}
	if published != nil {
		parts = append(parts, published.UTC().Format(time.RFC3339))
	}
	if title != "" {
		sum := sha256.Sum256([]byte(title))
		parts = append(parts, hex.EncodeToString(sum[:8]))
	}
	if len(parts) == 0 {
		return uuid.NewString()
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return "gen-" + hex.EncodeToString(sum[:16])
}

func synthesizeTitle(regime domain.Regime, hasPrice bool, t *domain.Tender, currency string) string {
	if !hasPrice {
		return domain.UntitledTender
	}
	title := fmt.Sprintf("%s purchase, %s", regime.Label(), t.MaxPrice.StringFixed(2))
	if currency != "" {
		title += " " + currency
	}
	return title
}

func additionalInfo(region, inn *string) *string {
	var parts []string
	if region != nil {
		parts = append(parts, "Region: "+*region)
	}
	if inn != nil {
		parts = append(parts, "Tax ID: "+*inn)
	}
	if len(parts) == 0 {
		return nil
	}
	info := strings.Join(parts, ", ")
	return &info
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
