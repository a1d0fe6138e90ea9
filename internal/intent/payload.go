// internal/intent/payload.go
package intent

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"finflow-commitments/internal/domain"
	"finflow-commitments/internal/util"
)

// Payload is a staged zakat creation. Numbers stay json.Number so a tampered or truncated
// payload is caught by ParsePayload rather than silently read as zero.
type Payload struct {
	Year                json.Number `json:"year"`
	TotalAssessedAmount json.Number `json:"totalAssessedAmount"`
	AmountDue           json.Number `json:"amountDue"`
	RemainingAmount     json.Number `json:"remainingAmount"`
}

// NewPayload builds the payload for terms.
func NewPayload(terms domain.ZakatTerms) Payload {
	return Payload{
		Year:                json.Number(strconv.Itoa(terms.Year)),
		TotalAssessedAmount: json.Number(terms.TotalAssessedAmount.String()),
		AmountDue:           json.Number(terms.AmountDue.String()),
		RemainingAmount:     json.Number(terms.RemainingAmount.String()),
	}
}

// ParsePayload validates the shape of raw and returns the zakat terms it carries.
func ParsePayload(raw []byte) (domain.ZakatTerms, error) {
	var p Payload
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&p); err != nil {
		return domain.ZakatTerms{}, fmt.Errorf("malformed intent: %v: %w", err, util.ErrInvalidInput)
	}

	year, err := strconv.Atoi(p.Year.String())
	if err != nil {
		return domain.ZakatTerms{}, fmt.Errorf("intent year %q: %w", p.Year, util.ErrInvalidInput)
	}
	fields := []struct {
		name string
		in   json.Number
		out  *decimal.Decimal
	}{
		{"totalAssessedAmount", p.TotalAssessedAmount, new(decimal.Decimal)},
		{"amountDue", p.AmountDue, new(decimal.Decimal)},
		{"remainingAmount", p.RemainingAmount, new(decimal.Decimal)},
	}
	for _, f := range fields {
		if f.in == "" {
			return domain.ZakatTerms{}, fmt.Errorf("intent field %s missing: %w", f.name, util.ErrInvalidInput)
		}
		d, err := decimal.NewFromString(f.in.String())
		if err != nil {
			return domain.ZakatTerms{}, fmt.Errorf("intent field %s %q: %w", f.name, f.in, util.ErrInvalidInput)
		}
		*f.out = d
	}

	terms := domain.ZakatTerms{
		Year:                year,
		TotalAssessedAmount: *fields[0].out,
		AmountDue:           *fields[1].out,
		RemainingAmount:     *fields[2].out,
	}
	if err := terms.Validate(); err != nil {
		return domain.ZakatTerms{}, fmt.Errorf("intent terms: %w", err)
	}
	return terms, nil
}
