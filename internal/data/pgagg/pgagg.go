// Package pgagg builds PostgreSQL aggregate-function SQL fragments for use
// inside GORM queries. Every builder implements clause.Expression, so it
// embeds anywhere GORM accepts one:
//
//	db.Model(&domain.Event{}).
//		Select("project_id, ? AS kinds", pgagg.ArrayAgg("kind").Distinct().OrderBy(pgagg.OrderSpec{Column: "kind"})).
//		Group("project_id")
//
// Builders only serialize; PostgreSQL executes. Misuse (DISTINCT on an
// aggregate that forbids it, a default on REGR_COUNT) is reported through
// the statement's error instead of emitting broken SQL.
package pgagg

import (
	"fmt"
	"strings"

	"gorm.io/gorm/clause"
)

// OrderSpec orders the input rows feeding an aggregate.
type OrderSpec struct {
	Column string
	Desc   bool
}

type caps struct {
	distinct bool
	ordering bool
	def      bool
}

// Aggregate is the shared state behind every builder. The zero value is not
// usable; construct through ArrayAgg, StringAgg, Corr and friends.
type Aggregate struct {
	fn           string
	exprs        []interface{}
	delimiter    string
	hasDelimiter bool
	distinct     bool
	ordering     []OrderSpec
	filter       clause.Expression
	def          interface{}
	hasDefault   bool
	caps         caps
	err          error
}

func newAggregate(fn string, c caps, exprs ...interface{}) Aggregate {
	return Aggregate{fn: fn, exprs: exprs, caps: c}
}

// ArrayAgg collects the expression into a PostgreSQL array (ARRAY_AGG).
func ArrayAgg(expr interface{}) Aggregate {
	return newAggregate("ARRAY_AGG", caps{distinct: true, ordering: true, def: true}, expr)
}

// JSONBAgg collects the expression into a jsonb array (JSONB_AGG).
func JSONBAgg(expr interface{}) Aggregate {
	return newAggregate("JSONB_AGG", caps{distinct: true, ordering: true, def: true}, expr)
}

// StringAgg concatenates the expression with the delimiter (STRING_AGG).
// The delimiter is required; an empty one fails the statement at build time.
func StringAgg(expr interface{}, delimiter string) Aggregate {
	a := newAggregate("STRING_AGG", caps{distinct: true, ordering: true, def: true}, expr)
	a.delimiter = delimiter
	a.hasDelimiter = true
	return a
}

// BitAnd is the bitwise AND of all non-null input values (BIT_AND).
func BitAnd(expr interface{}) Aggregate {
	return newAggregate("BIT_AND", caps{def: true}, expr)
}

// BitOr is the bitwise OR of all non-null input values (BIT_OR).
func BitOr(expr interface{}) Aggregate {
	return newAggregate("BIT_OR", caps{def: true}, expr)
}

// BitXor is the bitwise XOR of all non-null input values (BIT_XOR).
func BitXor(expr interface{}) Aggregate {
	return newAggregate("BIT_XOR", caps{def: true}, expr)
}

// BoolAnd is true when every non-null input value is true (BOOL_AND).
func BoolAnd(expr interface{}) Aggregate {
	return newAggregate("BOOL_AND", caps{def: true}, expr)
}

// BoolOr is true when any non-null input value is true (BOOL_OR).
func BoolOr(expr interface{}) Aggregate {
	return newAggregate("BOOL_OR", caps{def: true}, expr)
}

func (a Aggregate) clone() Aggregate {
	a.exprs = append([]interface{}(nil), a.exprs...)
	a.ordering = append([]OrderSpec(nil), a.ordering...)
	return a
}

func (a Aggregate) fail(format string, args ...interface{}) Aggregate {
	out := a.clone()
	if out.err == nil {
		out.err = fmt.Errorf("pgagg: "+format, args...)
	}
	return out
}

// Distinct restricts the aggregate to distinct input values.
func (a Aggregate) Distinct() Aggregate {
	if !a.caps.distinct {
		return a.fail("%s does not support DISTINCT", a.fn)
	}
	out := a.clone()
	out.distinct = true
	return out
}

// OrderBy orders the input rows feeding the aggregate.
func (a Aggregate) OrderBy(specs ...OrderSpec) Aggregate {
	if !a.caps.ordering {
		return a.fail("%s does not support ORDER BY", a.fn)
	}
	out := a.clone()
	out.ordering = append(out.ordering, specs...)
	return out
}

// Filter restricts the rows the aggregate sees (FILTER (WHERE ...)).
func (a Aggregate) Filter(cond clause.Expression) Aggregate {
	if cond == nil {
		return a.fail("%s given a nil filter condition", a.fn)
	}
	out := a.clone()
	out.filter = cond
	return out
}

// Default wraps the whole fragment, filter included, in COALESCE so empty
// groups yield value instead of NULL. A clause.Expression value is embedded
// as SQL; anything else binds as a placeholder.
func (a Aggregate) Default(value interface{}) Aggregate {
	if !a.caps.def {
		return a.fail("%s does not support a default", a.fn)
	}
	out := a.clone()
	out.def = value
	out.hasDefault = true
	return out
}

// Err exposes a recorded misuse error before the builder reaches a
// statement. The same error also fails the statement via AddError.
func (a Aggregate) Err() error { return a.err }

// Build implements clause.Expression.
func (a Aggregate) Build(builder clause.Builder) {
	if a.err != nil {
		_ = builder.AddError(a.err)
		return
	}
	if a.fn == "" {
		_ = builder.AddError(fmt.Errorf("pgagg: aggregate constructed without a function"))
		return
	}
	if len(a.exprs) == 0 {
		_ = builder.AddError(fmt.Errorf("pgagg: %s requires at least one expression", a.fn))
		return
	}
	if a.hasDelimiter && a.delimiter == "" {
		_ = builder.AddError(fmt.Errorf("pgagg: %s requires a delimiter", a.fn))
		return
	}

	if a.hasDefault {
		builder.WriteString("COALESCE(")
	}
	builder.WriteString(a.fn)
	builder.WriteByte('(')
	if a.distinct {
		builder.WriteString("DISTINCT ")
	}
	for i, e := range a.exprs {
		if i > 0 {
			builder.WriteString(", ")
		}
		writeExpr(builder, e)
	}
	if a.hasDelimiter {
		builder.WriteString(", ")
		builder.AddVar(builder, a.delimiter)
	}
	if len(a.ordering) > 0 {
		builder.WriteString(" ORDER BY ")
		for i, o := range a.ordering {
			if i > 0 {
				builder.WriteString(", ")
			}
			writeColumn(builder, o.Column)
			if o.Desc {
				builder.WriteString(" DESC")
			}
		}
	}
	builder.WriteByte(')')
	if a.filter != nil {
		builder.WriteString(" FILTER (WHERE ")
		a.filter.Build(builder)
		builder.WriteByte(')')
	}
	if a.hasDefault {
		builder.WriteString(", ")
		if expr, ok := a.def.(clause.Expression); ok {
			expr.Build(builder)
		} else {
			builder.AddVar(builder, a.def)
		}
		builder.WriteByte(')')
	}
}

// writeExpr embeds one aggregate argument: column names are quoted, nested
// expressions build inline, anything else binds as a value.
func writeExpr(builder clause.Builder, e interface{}) {
	switch v := e.(type) {
	case string:
		writeColumn(builder, v)
	case clause.Column:
		builder.WriteQuoted(v)
	case clause.Expression:
		v.Build(builder)
	default:
		builder.AddVar(builder, v)
	}
}

// writeColumn quotes a possibly table-qualified column name.
func writeColumn(builder clause.Builder, name string) {
	if table, col, ok := strings.Cut(name, "."); ok {
		builder.WriteQuoted(clause.Column{Table: table, Name: col})
		return
	}
	builder.WriteQuoted(clause.Column{Name: name})
}
