package calibration

import (
	"fmt"

	"github.com/banachtech/tenor/curve"
)

// Product values an instrument on the curves of an analytic model.
type Product interface {
	Value(model *AnalyticModel) (float64, error)
}

// SwapLeg is a stream of coupons paying forward plus spread accrued over
// each schedule period, discounted off a named discount curve. An empty
// forward curve name makes the leg fixed, paying the spread alone. With
// NotionalExchange the unit notional is received at the final payment and
// paid at the first fixing.
type SwapLeg struct {
	Schedule          Schedule
	ForwardCurveName  string
	Spread            float64
	DiscountCurveName string
	NotionalExchange  bool
}

func (l SwapLeg) Value(model *AnalyticModel) (float64, error) {
	if l.Schedule == nil || l.Schedule.NumberOfPeriods() == 0 {
		return 0, fmt.Errorf("calibration: swap leg without periods")
	}
	discount, err := model.DiscountCurve(l.DiscountCurveName)
	if err != nil {
		return 0, err
	}
	var forward *curve.ForwardCurve
	if l.ForwardCurveName != "" {
		forward, err = model.ForwardCurve(l.ForwardCurveName)
		if err != nil {
			return 0, err
		}
	}

	value := 0.0
	for period := 0; period < l.Schedule.NumberOfPeriods(); period++ {
		rate := l.Spread
		if forward != nil {
			fwd, err := forward.Forward(model, l.Schedule.Fixing(period))
			if err != nil {
				return 0, err
			}
			rate += fwd
		}
		discountFactor, err := discount.DiscountFactor(model, l.Schedule.Payment(period))
		if err != nil {
			return 0, err
		}
		value += rate * l.Schedule.PeriodLength(period) * discountFactor
	}
	if l.NotionalExchange {
		final, err := discount.DiscountFactor(model, l.Schedule.Payment(l.Schedule.NumberOfPeriods()-1))
		if err != nil {
			return 0, err
		}
		initial, err := discount.DiscountFactor(model, l.Schedule.Fixing(0))
		if err != nil {
			return 0, err
		}
		value += final - initial
	}
	return value, nil
}

// Swap is the receiver leg minus the payer leg. Notional exchanges never
// apply, the legs share the notional.
type Swap struct {
	Receiver SwapLeg
	Payer    SwapLeg
}

func (s Swap) Value(model *AnalyticModel) (float64, error) {
	receiver := s.Receiver
	receiver.NotionalExchange = false
	payer := s.Payer
	payer.NotionalExchange = false

	receiverValue, err := receiver.Value(model)
	if err != nil {
		return 0, err
	}
	payerValue, err := payer.Value(model)
	if err != nil {
		return 0, err
	}
	return receiverValue - payerValue, nil
}

// ZeroCouponBond pays the unit notional at maturity.
type ZeroCouponBond struct {
	Maturity          float64
	DiscountCurveName string
}

func (b ZeroCouponBond) Value(model *AnalyticModel) (float64, error) {
	discount, err := model.DiscountCurve(b.DiscountCurveName)
	if err != nil {
		return 0, err
	}
	return discount.DiscountFactor(model, b.Maturity)
}
