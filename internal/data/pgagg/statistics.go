package pgagg

// Statistical aggregates take a dependent expression y and an independent
// expression x, in that order, matching the PostgreSQL signatures. None of
// them accept DISTINCT or ORDER BY.

func statAggregate(fn string, y, x interface{}) Aggregate {
	return newAggregate(fn, caps{def: true}, y, x)
}

// Corr is the correlation coefficient of (y, x) pairs (CORR).
func Corr(y, x interface{}) Aggregate { return statAggregate("CORR", y, x) }

// CovarPop is the population covariance (COVAR_POP).
func CovarPop(y, x interface{}) Aggregate { return statAggregate("COVAR_POP", y, x) }

// CovarSamp is the sample covariance (COVAR_SAMP).
func CovarSamp(y, x interface{}) Aggregate { return statAggregate("COVAR_SAMP", y, x) }

// RegrAvgX is the average of the independent variable (REGR_AVGX).
func RegrAvgX(y, x interface{}) Aggregate { return statAggregate("REGR_AVGX", y, x) }

// RegrAvgY is the average of the dependent variable (REGR_AVGY).
func RegrAvgY(y, x interface{}) Aggregate { return statAggregate("REGR_AVGY", y, x) }

// RegrCount counts rows where both inputs are non-null (REGR_COUNT). It
// already returns zero for empty groups, so it takes no default.
func RegrCount(y, x interface{}) Aggregate {
	return newAggregate("REGR_COUNT", caps{}, y, x)
}

// RegrIntercept is the y-intercept of the least-squares fit (REGR_INTERCEPT).
func RegrIntercept(y, x interface{}) Aggregate { return statAggregate("REGR_INTERCEPT", y, x) }

// RegrR2 is the square of the correlation coefficient (REGR_R2).
func RegrR2(y, x interface{}) Aggregate { return statAggregate("REGR_R2", y, x) }

// RegrSlope is the slope of the least-squares fit (REGR_SLOPE).
func RegrSlope(y, x interface{}) Aggregate { return statAggregate("REGR_SLOPE", y, x) }

// RegrSXX is sum(x^2) - sum(x)^2/n (REGR_SXX).
func RegrSXX(y, x interface{}) Aggregate { return statAggregate("REGR_SXX", y, x) }

// RegrSXY is sum(x*y) - sum(x)*sum(y)/n (REGR_SXY).
func RegrSXY(y, x interface{}) Aggregate { return statAggregate("REGR_SXY", y, x) }

// RegrSYY is sum(y^2) - sum(y)^2/n (REGR_SYY).
func RegrSYY(y, x interface{}) Aggregate { return statAggregate("REGR_SYY", y, x) }
