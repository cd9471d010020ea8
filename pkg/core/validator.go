package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/nikolaydubina/fpdecimal"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// AddressValidator checks that an address is a well-formed settlement address
type AddressValidator interface {
	IsValid(ctx context.Context, address string) (bool, error)
}

// AddressValidatorFunc adapts a function to AddressValidator
type AddressValidatorFunc func(ctx context.Context, address string) (bool, error)

// IsValid calls f
func (f AddressValidatorFunc) IsValid(ctx context.Context, address string) (bool, error) {
	return f(ctx, address)
}

// Policy holds the engine-wide order limits
type Policy struct {
	MinOrderAmount    decimal.Decimal
	MaxOrderAmount    decimal.Decimal
	MaxPriceDeviation fpdecimal.Decimal
	DefaultPrice      decimal.Decimal
}

// DefaultPolicy returns the stock limits: amounts within [1000, 1000000] and
// prices within 10% of the reference price, which defaults to 1000.
func DefaultPolicy() Policy {
	return Policy{
		MinOrderAmount:    DefaultMinOrderAmount,
		MaxOrderAmount:    DefaultMaxOrderAmount,
		MaxPriceDeviation: DefaultMaxPriceDeviation,
		DefaultPrice:      DefaultReferencePrice,
	}
}

// Validator applies the policy checks to a proposed order. It has no side effects.
type Validator struct {
	policy    Policy
	maxDev    decimal.Decimal
	oracle    *Oracle
	addresses AddressValidator
}

// NewValidator creates a validator. addresses may be nil, in which case any
// non-empty address is accepted.
func NewValidator(policy Policy, oracle *Oracle, addresses AddressValidator) *Validator {
	maxDev, err := decimal.NewFromString(policy.MaxPriceDeviation.String())
	if err != nil {
		maxDev = decimal.NewFromFloat(DefaultMaxPriceDeviation.Float64())
	}
	return &Validator{
		policy:    policy,
		maxDev:    maxDev,
		oracle:    oracle,
		addresses: addresses,
	}
}

// Policy returns the limits the validator enforces
func (v *Validator) Policy() Policy {
	return v.policy
}

// Validate runs every check and reports all failures together.
func (v *Validator) Validate(ctx context.Context, req PlaceOrderRequest) (bool, []string) {
	reasons := make([]string, 0)

	if strings.TrimSpace(req.RuneID) == "" {
		reasons = append(reasons, "rune id is required")
	}
	if !req.Side.Valid() {
		reasons = append(reasons, "invalid side")
	}

	switch {
	case !InAmountRange(req.Amount):
		reasons = append(reasons, "order amount out of range")
	default:
		if !IsWholeAmount(req.Amount) {
			reasons = append(reasons, "order amount must be a non-negative integer")
		}
		if req.Amount.LessThan(v.policy.MinOrderAmount) {
			reasons = append(reasons, fmt.Sprintf("order amount below minimum (%s)", v.policy.MinOrderAmount))
		}
		if req.Amount.GreaterThan(v.policy.MaxOrderAmount) {
			reasons = append(reasons, fmt.Sprintf("order amount above maximum (%s)", v.policy.MaxOrderAmount))
		}
	}

	// out-of-range prices skip the deviation check
	if !InAmountRange(req.Price) {
		reasons = append(reasons, "price out of range")
	} else {
		if !IsWholeAmount(req.Price) {
			reasons = append(reasons, "price must be a non-negative integer")
		}
		ref := v.oracle.Get(ctx, req.RuneID)
		diff := req.Price.Sub(ref).Abs()
		if diff.GreaterThan(ref.Mul(v.maxDev)) {
			pct := diff.Mul(hundred).Div(ref)
			reasons = append(reasons, fmt.Sprintf("price deviation too high (%s%%)", pct.StringFixed(2)))
		}
	}

	if !v.validAddress(ctx, req.Address) {
		reasons = append(reasons, "invalid address")
	}

	return len(reasons) == 0, reasons
}

// validAddress fails closed on collaborator errors
func (v *Validator) validAddress(ctx context.Context, address string) bool {
	if strings.TrimSpace(address) == "" {
		return false
	}
	if v.addresses == nil {
		return true
	}
	ok, err := v.addresses.IsValid(ctx, address)
	if err != nil {
		return false
	}
	return ok
}
