package querylanguage

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// NullsOrder positions null values in an ordering.
type NullsOrder uint8

// Nulls orderings.
const (
	NullsDefault NullsOrder = iota
	NullsFirst
	NullsLast
)

// Order is a single orderBy entry.
type Order struct {
	Field string
	Desc  bool
	Nulls NullsOrder
}

// String renders the order in its query-string form.
func (o Order) String() string {
	s := o.Field
	if o.Desc {
		s += ":desc"
	}
	switch o.Nulls {
	case NullsFirst:
		s += ":nullsFirst"
	case NullsLast:
		s += ":nullsLast"
	}
	return s
}

// Relevance selects the search relevance ordering.
type Relevance uint8

// Relevance orderings.
const (
	RelevanceNone Relevance = iota
	RelevanceHigh
	RelevanceLow
)

// String implements fmt.Stringer.
func (r Relevance) String() string {
	switch r {
	case RelevanceHigh:
		return "high"
	case RelevanceLow:
		return "low"
	}
	return "0"
}

// Params is the decoded form of a query string. Nil pointers mark absent
// keys.
type Params struct {
	Select           []string
	Where            []Condition
	Search           []SearchTerm
	GroupBy          []string
	OrderBy          []Order
	OrderByRelevance Relevance
	Limit            *int
	Offset           *int
	Page             *int
	PerPage          *int
	Populate         *bool
	Returning        []string
	ReturningAll     bool
}

// ParseQueryString decodes a query string such as
// "select=name,age&where=age[>][20]&limit=10". A leading '?' is ignored and
// unknown keys are skipped.
func ParseQueryString(qs string) (*Params, error) {
	p := &Params{}
	qs = strings.TrimPrefix(qs, "?")
	for _, pair := range strings.Split(qs, "&") {
		if pair == "" {
			continue
		}
		key, raw, hasValue := strings.Cut(pair, "=")
		key = unescapeComponent(key)
		value := unescapeComponent(raw)
		var err error
		switch key {
		case "select":
			p.Select = splitList(value)
		case "where":
			p.Where, err = Parse(value)
		case "search":
			p.Search, err = ParseSearch(value)
		case "groupBy":
			p.GroupBy = splitList(value)
		case "orderBy":
			p.OrderBy, err = parseOrders(value)
		case "orderByRelevance":
			p.OrderByRelevance, err = parseRelevance(value)
		case "limit":
			p.Limit, err = parseInt(value)
		case "offset":
			p.Offset, err = parseInt(value)
		case "page":
			p.Page, err = parseInt(value)
		case "perPage":
			p.PerPage, err = parseInt(value)
		case "populate":
			var b bool
			b, err = parseFlag(value, hasValue)
			p.Populate = &b
		case "returning":
			if strings.TrimSpace(value) == "*" {
				p.ReturningAll = true
			} else {
				p.Returning = splitList(value)
			}
		}
		if err != nil {
			return nil, fmt.Errorf("querylanguage: invalid %s: %w", key, err)
		}
	}
	return p, nil
}

// Encode renders p as a query string. Keys are written in a fixed order.
func (p *Params) Encode() string {
	var parts []string
	add := func(k, v string) {
		parts = append(parts, k+"="+escapeComponent(v))
	}
	if len(p.Select) > 0 {
		add("select", strings.Join(p.Select, ","))
	}
	if s := Serialize(p.Where); s != "" {
		add("where", s)
	}
	if len(p.Search) > 0 {
		add("search", SerializeSearch(p.Search))
	}
	if len(p.GroupBy) > 0 {
		add("groupBy", strings.Join(p.GroupBy, ","))
	}
	if len(p.OrderBy) > 0 {
		orders := make([]string, len(p.OrderBy))
		for i, o := range p.OrderBy {
			orders[i] = o.String()
		}
		add("orderBy", strings.Join(orders, ","))
	}
	if p.OrderByRelevance != RelevanceNone {
		add("orderByRelevance", p.OrderByRelevance.String())
	}
	for _, kv := range []struct {
		k string
		v *int
	}{{"limit", p.Limit}, {"offset", p.Offset}, {"page", p.Page}, {"perPage", p.PerPage}} {
		if kv.v != nil {
			add(kv.k, strconv.Itoa(*kv.v))
		}
	}
	if p.Populate != nil {
		if *p.Populate {
			parts = append(parts, "populate")
		} else {
			add("populate", "0")
		}
	}
	if p.ReturningAll {
		add("returning", "*")
	} else if len(p.Returning) > 0 {
		add("returning", strings.Join(p.Returning, ","))
	}
	return strings.Join(parts, "&")
}

var componentEscaper = strings.NewReplacer("%", "%25", "#", "%23", "&", "%26")

func escapeComponent(s string) string { return componentEscaper.Replace(s) }

var componentUnescaper = strings.NewReplacer("%25", "%", "%23", "#", "%26", "&")

// unescapeComponent reverses percent escaping. Input carrying stray '%'
// characters falls back to reversing only the reserved escapes.
func unescapeComponent(s string) string {
	if !strings.Contains(s, "%") {
		return s
	}
	if u, err := url.PathUnescape(s); err == nil {
		return u
	}
	return componentUnescaper.Replace(s)
}

func splitList(s string) []string {
	var out []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

func parseOrders(s string) ([]Order, error) {
	var out []Order
	for _, entry := range splitList(s) {
		parts := strings.Split(entry, ":")
		o := Order{Field: strings.TrimSpace(parts[0])}
		if o.Field == "" {
			return nil, fmt.Errorf("empty field in %q", entry)
		}
		for _, mod := range parts[1:] {
			switch strings.ToLower(strings.TrimSpace(mod)) {
			case "desc":
				o.Desc = true
			case "asc":
				o.Desc = false
			case "nullsfirst":
				o.Nulls = NullsFirst
			case "nullslast":
				o.Nulls = NullsLast
			default:
				return nil, fmt.Errorf("unknown order modifier %q", mod)
			}
		}
		out = append(out, o)
	}
	return out, nil
}

func parseRelevance(s string) (Relevance, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high":
		return RelevanceHigh, nil
	case "low":
		return RelevanceLow, nil
	case "0", "", "false":
		return RelevanceNone, nil
	}
	return RelevanceNone, fmt.Errorf("unknown relevance %q", s)
}

func parseInt(s string) (*int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("%q is not an integer", s)
	}
	return &n, nil
}

func parseFlag(s string, hasValue bool) (bool, error) {
	if !hasValue {
		return true, nil
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "1", "true":
		return true, nil
	case "0", "false":
		return false, nil
	}
	return false, fmt.Errorf("expected 1, 0, true or false, got %q", s)
}
