package reports

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/statline/statline-backend/internal/data/pgagg"
)

var oneColumnAggs = map[string]func(interface{}) pgagg.Aggregate{
	"array_agg": pgagg.ArrayAgg,
	"jsonb_agg": pgagg.JSONBAgg,
	"bit_and":   pgagg.BitAnd,
	"bit_or":    pgagg.BitOr,
	"bit_xor":   pgagg.BitXor,
	"bool_and":  pgagg.BoolAnd,
	"bool_or":   pgagg.BoolOr,
}

var twoColumnAggs = map[string]func(y, x interface{}) pgagg.Aggregate{
	"corr":           pgagg.Corr,
	"covar_pop":      pgagg.CovarPop,
	"covar_samp":     pgagg.CovarSamp,
	"regr_avgx":      pgagg.RegrAvgX,
	"regr_avgy":      pgagg.RegrAvgY,
	"regr_count":     pgagg.RegrCount,
	"regr_intercept": pgagg.RegrIntercept,
	"regr_r2":        pgagg.RegrR2,
	"regr_slope":     pgagg.RegrSlope,
	"regr_sxx":       pgagg.RegrSXX,
	"regr_sxy":       pgagg.RegrSXY,
	"regr_syy":       pgagg.RegrSYY,
}

// CompileMeasure turns one catalog measure into a pgagg builder. Catalog
// mistakes surface here, before any SQL reaches a statement.
func CompileMeasure(m Measure) (pgagg.Aggregate, error) {
	var zero pgagg.Aggregate
	agg := strings.ToLower(strings.TrimSpace(m.Agg))
	if !identRe.MatchString(m.Column) {
		return zero, fmt.Errorf("invalid column %q", m.Column)
	}

	var a pgagg.Aggregate
	switch {
	case agg == "string_agg":
		if m.Delimiter == "" {
			return zero, fmt.Errorf("string_agg requires a delimiter")
		}
		if m.Column2 != "" {
			return zero, fmt.Errorf("string_agg takes a single column")
		}
		a = pgagg.StringAgg(columnArg(m), m.Delimiter)
	case oneColumnAggs[agg] != nil:
		if m.Column2 != "" {
			return zero, fmt.Errorf("%s takes a single column", agg)
		}
		a = oneColumnAggs[agg](columnArg(m))
	case twoColumnAggs[agg] != nil:
		if !identRe.MatchString(m.Column2) {
			return zero, fmt.Errorf("%s needs a valid second column, got %q", agg, m.Column2)
		}
		if m.Cast != "" {
			return zero, fmt.Errorf("%s does not take a cast", agg)
		}
		a = twoColumnAggs[agg](m.Column, m.Column2)
	default:
		return zero, fmt.Errorf("unknown aggregate %q", m.Agg)
	}

	if m.Distinct {
		a = a.Distinct()
	}
	if len(m.OrderBy) > 0 {
		specs := make([]pgagg.OrderSpec, 0, len(m.OrderBy))
		for _, raw := range m.OrderBy {
			spec, err := parseOrderSpec(raw)
			if err != nil {
				return zero, err
			}
			specs = append(specs, spec)
		}
		a = a.OrderBy(specs...)
	}
	if m.Filter != "" {
		cond, err := ParseFilter(m.Filter)
		if err != nil {
			return zero, err
		}
		a = a.Filter(cond)
	}
	if m.Default != "" {
		a = a.Default(gorm.Expr(m.Default))
	}
	if err := a.Err(); err != nil {
		return zero, err
	}
	return a, nil
}

// CompileSelect renders a whole definition into the Select clause: the
// placeholder string plus one built aggregate per measure.
func CompileSelect(def *Definition) (string, []interface{}, error) {
	var sb strings.Builder
	args := make([]interface{}, 0, len(def.Measures))
	for _, g := range def.GroupBy {
		if !identRe.MatchString(g) {
			return "", nil, fmt.Errorf("invalid group_by column %q", g)
		}
		if sb.Len() > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(g)
	}
	for _, m := range def.Measures {
		if !identRe.MatchString(m.As) {
			return "", nil, fmt.Errorf("invalid alias %q", m.As)
		}
		a, err := CompileMeasure(m)
		if err != nil {
			return "", nil, fmt.Errorf("measure %q: %w", m.As, err)
		}
		if sb.Len() > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("? AS ")
		sb.WriteString(m.As)
		args = append(args, a)
	}
	return sb.String(), args, nil
}

// columnArg quotes the measure column, applying the optional cast.
func columnArg(m Measure) interface{} {
	if m.Cast != "" {
		return gorm.Expr(`"` + m.Column + `"::` + m.Cast)
	}
	return m.Column
}

func parseOrderSpec(raw string) (pgagg.OrderSpec, error) {
	fields := strings.Fields(strings.ToLower(raw))
	spec := pgagg.OrderSpec{}
	switch len(fields) {
	case 1:
		spec.Column = fields[0]
	case 2:
		spec.Column = fields[0]
		switch fields[1] {
		case "desc":
			spec.Desc = true
		case "asc":
		default:
			return spec, fmt.Errorf("invalid order direction %q", raw)
		}
	default:
		return spec, fmt.Errorf("invalid order spec %q", raw)
	}
	if !identRe.MatchString(spec.Column) {
		return spec, fmt.Errorf("invalid order column %q", spec.Column)
	}
	return spec, nil
}

var filterRe = regexp.MustCompile(`^\s*([a-z][a-z0-9_]*)\s*(=|!=|<>|>=|<=|>|<)\s*(.+?)\s*$`)

// ParseFilter parses a "column op literal" condition into a clause
// expression. Literals are single-quoted strings, numbers, booleans or
// null; null only pairs with equality.
func ParseFilter(s string) (clause.Expression, error) {
	m := filterRe.FindStringSubmatch(s)
	if m == nil {
		return nil, fmt.Errorf("invalid filter %q", s)
	}
	col, op, lit := m[1], m[2], m[3]
	if op == "!=" {
		op = "<>"
	}

	if strings.EqualFold(lit, "null") {
		switch op {
		case "=":
			return clause.Expr{SQL: `"` + col + `" IS NULL`}, nil
		case "<>":
			return clause.Expr{SQL: `"` + col + `" IS NOT NULL`}, nil
		default:
			return nil, fmt.Errorf("invalid filter %q: null only supports equality", s)
		}
	}

	var value interface{}
	switch {
	case strings.HasPrefix(lit, "'") && strings.HasSuffix(lit, "'") && len(lit) >= 2:
		inner := lit[1 : len(lit)-1]
		if strings.Contains(inner, "'") {
			return nil, fmt.Errorf("invalid filter %q: nested quote", s)
		}
		value = inner
	case strings.EqualFold(lit, "true"):
		value = true
	case strings.EqualFold(lit, "false"):
		value = false
	default:
		if i, err := strconv.ParseInt(lit, 10, 64); err == nil {
			value = i
		} else if f, err := strconv.ParseFloat(lit, 64); err == nil {
			value = f
		} else {
			return nil, fmt.Errorf("invalid filter literal %q", lit)
		}
	}
	return clause.Expr{SQL: `"` + col + `" ` + op + ` ?`, Vars: []interface{}{value}}, nil
}
