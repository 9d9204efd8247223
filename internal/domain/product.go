package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Product represents one search result extracted from a marketplace results page
type Product struct {
	Title                  string  `json:"bookTitle"`
	Price                  *Money  `json:"bookPrice"`
	CoverImageURL          *string `json:"coverImageUrl"`
	ProductLink            string  `json:"productLink"`
	IsSubscriptionIncluded bool    `json:"isKindleUnlimited"`
	SubscriptionBuyPrice   *Money  `json:"kindleUnlimitedPrice"` // "Or $x to buy" alongside a subscription offer
}

// SearchResult is the outcome of a single search run.
// Cause is set when the run failed before or during extraction; Products is
// then empty but never nil.
type SearchResult struct {
	Query     string    `json:"query"`
	Products  []Product `json:"products"`
	Cause     error     `json:"-"`
	FetchedAt time.Time `json:"fetchedAt"`
}

// RawDocument is a fetched results page, already decoded to UTF-8
type RawDocument struct {
	URL         string
	StatusCode  int
	ContentType string
	Body        []byte
}

// Money is a non-negative currency amount
type Money struct {
	decimal.Decimal
}

// NewMoney wraps a decimal amount
func NewMoney(d decimal.Decimal) *Money {
	return &Money{Decimal: d}
}

// ZeroMoney returns a 0.00 amount
func ZeroMoney() *Money {
	return &Money{Decimal: decimal.Zero}
}

// ParseMoney parses a plain decimal string such as "1234.56"
func ParseMoney(s string) (*Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrNumericParse, s)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("%w: negative amount %q", ErrNumericParse, s)
	}
	return &Money{Decimal: d}, nil
}

// String renders the amount with exactly two fraction digits
func (m Money) String() string {
	return m.StringFixed(2)
}

// MarshalJSON renders the amount as a bare JSON number, e.g. 12.99
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.StringFixed(2)), nil
}

// UnmarshalJSON accepts both quoted and bare numbers
func (m *Money) UnmarshalJSON(data []byte) error {
	return m.Decimal.UnmarshalJSON(data)
}
