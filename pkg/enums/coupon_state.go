package enums

// CouponState is the position of a cart session's coupon workflow.
type CouponState string

const (
	CouponStateIdle       CouponState = "idle"
	CouponStateValidating CouponState = "validating"
	CouponStateApplied    CouponState = "applied"
	CouponStateRejected   CouponState = "rejected"
)

// String implements fmt.Stringer.
func (c CouponState) String() string {
	return string(c)
}

// AcceptsCode reports whether a new code may be submitted from this state.
// A rejected session behaves like an idle one.
func (c CouponState) AcceptsCode() bool {
	return c == CouponStateIdle || c == CouponStateRejected || c == ""
}
