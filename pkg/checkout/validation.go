package checkout

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/multierr"

	"github.com/merchshop/storefront-backend/pkg/enums"
	pkgerrors "github.com/merchshop/storefront-backend/pkg/errors"
	"github.com/merchshop/storefront-backend/pkg/types"
)

var utrPattern = regexp.MustCompile(`^[0-9]{12}$`)

// SubmissionInput is everything the submission gate inspects.
type SubmissionInput struct {
	ItemCount     int
	Address       *types.Address
	PaymentMethod string
	UTR           string
	Coupon        *types.Coupon
	Subtotal      decimal.Decimal
	Total         decimal.Decimal
	// Now is the instant coupon expiry is judged at. Zero skips the check.
	Now time.Time
}

// Violation is one failed submission check.
type Violation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v *Violation) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

// ValidateSubmission runs every submission check and reports all failures in a
// single validation error. On success it returns the parsed payment method.
func ValidateSubmission(in SubmissionInput) (enums.PaymentMethod, error) {
	var errs error

	if in.ItemCount == 0 {
		errs = multierr.Append(errs, &Violation{Field: "items", Message: "cart is empty"})
	}

	if in.Address == nil {
		errs = multierr.Append(errs, &Violation{Field: "address", Message: "shipping address is required"})
	} else {
		for _, field := range in.Address.Missing() {
			errs = multierr.Append(errs, &Violation{Field: "address." + field, Message: "is required"})
		}
		if strings.TrimSpace(in.Address.PostalCode) != "" && !in.Address.ValidPostalCode() {
			errs = multierr.Append(errs, &Violation{Field: "address.postal_code", Message: "must be a 6 digit PIN code"})
		}
	}

	utr := strings.TrimSpace(in.UTR)
	method, err := enums.ParsePaymentMethod(in.PaymentMethod)
	if err != nil {
		errs = multierr.Append(errs, &Violation{Field: "payment_method", Message: "must be upi or cod"})
	} else {
		switch method {
		case enums.PaymentMethodUPI:
			if !utrPattern.MatchString(utr) {
				errs = multierr.Append(errs, &Violation{Field: "utr", Message: "UPI payments need the 12 digit UTR"})
			}
		case enums.PaymentMethodCOD:
			if utr != "" {
				errs = multierr.Append(errs, &Violation{Field: "utr", Message: "UTR is only accepted for UPI payments"})
			}
		}
	}

	if in.Coupon != nil && !in.Coupon.EligibleFor(in.Subtotal) {
		errs = multierr.Append(errs, &Violation{
			Field:   "coupon",
			Message: fmt.Sprintf("coupon %s needs a minimum order of %s", in.Coupon.Code, in.Coupon.MinOrderAmount.StringFixed(2)),
		})
	}

	if in.Coupon != nil && !in.Now.IsZero() && in.Coupon.ExpiredAt(in.Now) {
		errs = multierr.Append(errs, &Violation{
			Field:   "coupon",
			Message: fmt.Sprintf("coupon %s has expired, remove it to continue", in.Coupon.Code),
		})
	}

	if in.Total.IsNegative() {
		errs = multierr.Append(errs, &Violation{Field: "total", Message: "order total cannot be negative"})
	}

	if errs == nil {
		return method, nil
	}

	var violations []Violation
	for _, e := range multierr.Errors(errs) {
		if v, ok := e.(*Violation); ok {
			violations = append(violations, *v)
		}
	}
	return "", pkgerrors.Wrap(pkgerrors.CodeValidation, errs, violations[0].Message).WithDetails(map[string]any{
		"violations": violations,
	})
}
