// Package numbering allocates human-readable document numbers of the form
// <PREFIX><YYYY><MM><NNNN>, one counter per document type and calendar month.
package numbering

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/odyssey-erp/erp-lite/internal/shared"
)

// DocumentType identifies a numbered document family.
type DocumentType string

// Numbered document types.
const (
	Quotation     DocumentType = "quotation"
	SalesOrder    DocumentType = "sales_order"
	PurchaseOrder DocumentType = "purchase_order"
	Invoice       DocumentType = "invoice"
	Receipt       DocumentType = "receipt"
	GoodsReceipt  DocumentType = "goods_receipt"
	DeliveryNote  DocumentType = "delivery_note"
)

var prefixes = map[DocumentType]string{
	Quotation:     "QUOT",
	SalesOrder:    "SO",
	PurchaseOrder: "PO",
	Invoice:       "INV",
	Receipt:       "RCT",
	GoodsReceipt:  "GRN",
	DeliveryNote:  "DN",
}

// MaxSequence is the largest counter that fits the four digit suffix.
const MaxSequence = 9999

var (
	// ErrUnknownDocumentType is returned for types outside the closed set.
	ErrUnknownDocumentType = fmt.Errorf("%w: numbering: unknown document type", shared.ErrValidation)
	// ErrSequenceExhausted is returned once a bucket has issued MaxSequence numbers.
	ErrSequenceExhausted = fmt.Errorf("%w: numbering: sequence exhausted for bucket", shared.ErrValidation)
	// ErrMalformedNumber is returned by ParseNumber for text that is not a document number.
	ErrMalformedNumber = errors.New("numbering: malformed document number")
)

// Types lists every document type in a stable order.
func Types() []DocumentType {
	return []DocumentType{Quotation, SalesOrder, PurchaseOrder, Invoice, Receipt, GoodsReceipt, DeliveryNote}
}

// ParseDocumentType accepts either the type name or its prefix, case-insensitively.
func ParseDocumentType(raw string) (DocumentType, error) {
	needle := strings.ToLower(strings.TrimSpace(raw))
	for _, t := range Types() {
		if needle == string(t) || needle == strings.ToLower(prefixes[t]) {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownDocumentType, raw)
}

// Prefix returns the fixed number prefix for t.
func (t DocumentType) Prefix() string {
	return prefixes[t]
}

// Valid reports whether t is a known type.
func (t DocumentType) Valid() bool {
	_, ok := prefixes[t]
	return ok
}

// Bucket is the year-month scope of a counter.
type Bucket struct {
	Year  int
	Month int
}

// BucketOf returns the UTC year-month bucket containing t.
func BucketOf(t time.Time) Bucket {
	t = t.UTC()
	return Bucket{Year: t.Year(), Month: int(t.Month())}
}

func (b Bucket) String() string {
	return fmt.Sprintf("%04d%02d", b.Year, b.Month)
}

// Format renders a document number. seq is 1-based.
func Format(t DocumentType, b Bucket, seq int) (string, error) {
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownDocumentType, t)
	}
	if seq < 1 {
		return "", fmt.Errorf("numbering: sequence must be positive, got %d", seq)
	}
	if seq > MaxSequence {
		return "", fmt.Errorf("%w %s %s", ErrSequenceExhausted, t, b)
	}
	return fmt.Sprintf("%s%s%04d", t.Prefix(), b, seq), nil
}

// ParseNumber splits a document number into its parts.
func ParseNumber(number string) (DocumentType, Bucket, int, error) {
	for _, t := range Types() {
		prefix := t.Prefix()
		if !strings.HasPrefix(number, prefix) {
			continue
		}
		rest := number[len(prefix):]
		if len(rest) != 10 || strings.Trim(rest, "0123456789") != "" {
			break
		}
		year, _ := strconv.Atoi(rest[0:4])
		month, _ := strconv.Atoi(rest[4:6])
		seq, _ := strconv.Atoi(rest[6:10])
		if month < 1 || month > 12 || seq < 1 {
			break
		}
		return t, Bucket{Year: year, Month: month}, seq, nil
	}
	return "", Bucket{}, 0, fmt.Errorf("%w: %q", ErrMalformedNumber, number)
}
