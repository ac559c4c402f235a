package api

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/onimtaitsl/venpaa-label-bridge/internal/export"
)

// Text is a loosely typed JSON scalar: strings are kept as is, numbers and booleans
// are kept in their literal form, null stays empty.
type Text string

func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*t = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Text(s)
		return nil
	}
	*t = Text(data)
	return nil
}

// Product is a search result. The remote service spells the same attribute several ways.
type Product struct {
	ID            Text `json:"id,omitempty"`
	ProdCode      Text `json:"prod_code,omitempty"`
	ProductCode   Text `json:"product_code,omitempty"`
	Code          Text `json:"code,omitempty"`
	ProdName      Text `json:"prod_name,omitempty"`
	ProductName   Text `json:"product_name,omitempty"`
	ProductNameEn Text `json:"product_name_en,omitempty"`
	Name          Text `json:"name,omitempty"`
	SellingPrice  Text `json:"selling_price,omitempty"`
	Price         Text `json:"price,omitempty"`
	Barcode       Text `json:"barcode,omitempty"`

	// set when the JSON value was a numeric zero, which counts as no price
	sellingPriceZero bool
	priceZero        bool
}

func (p *Product) UnmarshalJSON(data []byte) error {
	type plain Product
	if err := json.Unmarshal(data, (*plain)(p)); err != nil {
		return err
	}
	var prices struct {
		SellingPrice json.RawMessage `json:"selling_price"`
		Price        json.RawMessage `json:"price"`
	}
	if err := json.Unmarshal(data, &prices); err != nil {
		return err
	}
	p.sellingPriceZero = isNumericZero(prices.SellingPrice)
	p.priceZero = isNumericZero(prices.Price)
	return nil
}

func isNumericZero(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] == '"' || string(raw) == "null" {
		return false
	}
	f, err := strconv.ParseFloat(string(raw), 64)
	return err == nil && f == 0
}

func firstNonEmpty(fallback string, values ...Text) string {
	for _, v := range values {
		if v != "" {
			return string(v)
		}
	}
	return fallback
}

// DisplayCode returns the first populated code spelling, or "N/A".
func (p Product) DisplayCode() string {
	return firstNonEmpty("N/A", p.ProdCode, p.ProductCode, p.Code)
}

// DisplayName returns the first populated name spelling, or "Unknown".
func (p Product) DisplayName() string {
	return firstNonEmpty("Unknown", p.ProdName, p.ProductName, p.ProductNameEn, p.Name)
}

// DisplayPrice returns the selling price (falling back to price) with two decimals.
// A numeric 0 is treated as missing; the string "0" is not.
func (p Product) DisplayPrice() string {
	selling, price := p.SellingPrice, p.Price
	if p.sellingPriceZero {
		selling = ""
	}
	if p.priceZero {
		price = ""
	}
	return FormatPrice(firstNonEmpty("0", selling, price))
}

// DisplayBarcode returns the barcode, falling back to the product code, or "N/A".
func (p Product) DisplayBarcode() string {
	return firstNonEmpty("N/A", p.Barcode, p.ProdCode, p.ProductCode, p.Code)
}

// Item maps the product to a print row with qty copies.
func (p Product) Item(qty int) export.Item {
	return export.Item{
		Code:     p.DisplayCode(),
		Name:     p.DisplayName(),
		Price:    p.DisplayPrice(),
		Quantity: qty,
		Barcode:  p.DisplayBarcode(),
	}
}

// FormatPrice renders a numeric price with two decimals. Values that are not
// numbers render as "Rs. 0.00".
func FormatPrice(raw string) string {
	v, err := strconv.ParseFloat(leadingNumber(strings.TrimSpace(raw)), 64)
	if err != nil {
		return "Rs. 0.00"
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// leadingNumber returns the longest numeric prefix of s, so "12.5 LKR" reads as 12.5.
func leadingNumber(s string) string {
	end := 0
	seenDigit, seenDot := false, false
	for i, r := range s {
		switch {
		case r >= '0' && r <= '9':
			seenDigit = true
		case r == '.' && !seenDot:
			seenDot = true
		case (r == '-' || r == '+') && i == 0:
		default:
			if seenDigit {
				return s[:end]
			}
			return s[:i]
		}
		end = i + 1
	}
	return s[:end]
}
