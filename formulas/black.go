// Package formulas provides closed form valuation formulas used as
// calibration targets and cross checks against the Monte Carlo engine.
package formulas

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat/distuv"
)

// BlackOptionValue returns the Black forward call value
//
//	df (F N(d1) - K N(d2)),  d1,2 = (log(F/K) +- sigma^2 T / 2) / (sigma sqrt(T)).
//
// Zero volatility or maturity degrade to the discounted intrinsic value.
func BlackOptionValue(forward, strike, volatility, maturity, discountFactor float64) float64 {
	if volatility <= 0 || maturity <= 0 {
		return discountFactor * math.Max(forward-strike, 0.0)
	}
	x := volatility * math.Sqrt(maturity)
	d1 := (math.Log(forward/strike) + 0.5*volatility*volatility*maturity) / x
	d2 := d1 - x

	N := distuv.Normal{Mu: 0.0, Sigma: 1.0}

	return discountFactor * (forward*N.CDF(d1) - strike*N.CDF(d2))
}

// BlackCapletValue returns the Black caplet value
// periodLength * df * Black(forward, strike, volatility, fixing), with df
// the discount factor to the payment time.
func BlackCapletValue(forward, strike, volatility, fixing, periodLength, discountFactor float64) float64 {
	return periodLength * BlackOptionValue(forward, strike, volatility, fixing, discountFactor)
}

// BlackImpliedVolatility inverts BlackOptionValue in the volatility by a
// Nelder-Mead search over the log volatility.
func BlackImpliedVolatility(price, forward, strike, maturity, discountFactor float64) (float64, error) {
	if maturity <= 0 {
		return 0, fmt.Errorf("formulas: maturity %g carries no volatility", maturity)
	}
	intrinsic := discountFactor * math.Max(forward-strike, 0.0)
	upper := discountFactor * forward
	if price < intrinsic || price >= upper {
		return 0, fmt.Errorf("formulas: price %g outside arbitrage bounds [%g,%g)", price, intrinsic, upper)
	}
	if price == intrinsic {
		return 0, nil
	}

	// relative pricing error, so the search converges to the same vol
	// accuracy for cheap and expensive options
	problem := optimize.Problem{
		Func: func(par []float64) float64 {
			sigma := math.Exp(par[0])
			diff := (price - BlackOptionValue(forward, strike, sigma, maturity, discountFactor)) / price
			return diff * diff
		},
	}
	res, err := optimize.Minimize(problem, []float64{math.Log(0.5)}, nil, &optimize.NelderMead{})
	if err != nil {
		return 0, err
	}
	return math.Exp(res.X[0]), nil
}
