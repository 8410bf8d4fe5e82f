package item

import (
	"fmt"
	"regexp"
	"strings"
)

// FilterKind identifies the variant of a Filter.
type FilterKind int

// Filter variants.
const (
	KindLabel FilterKind = iota + 1
	KindName
	KindBoth
	KindCustom
)

// String returns the variant name as it appears in factory documents.
func (k FilterKind) String() string {
	switch k {
	case KindLabel:
		return "Label"
	case KindName:
		return "Name"
	case KindBoth:
		return "Both"
	case KindCustom:
		return "Custom"
	default:
		return "Unknown"
	}
}

// Predicate decides whether an item type is selected by a custom filter.
// The detail may be nil when metadata is not available.
type Predicate func(key Key, detail *Detail) bool

// Filter selects item types. The zero value matches nothing.
//
// Filters are values: they may be copied freely and compared with Equal.
type Filter struct {
	kind  FilterKind
	label string
	name  string
	desc  string
	pred  Predicate
}

// Label returns a filter matching the exact display label.
func Label(label string) Filter {
	return Filter{kind: KindLabel, label: label}
}

// Name returns a filter matching the exact registry name.
func Name(name string) Filter {
	return Filter{kind: KindName, name: name}
}

// Both returns a filter matching both label and name.
func Both(label, name string) Filter {
	return Filter{kind: KindBoth, label: label, name: name}
}

// Custom returns a filter backed by an arbitrary predicate. Its identity is
// the description alone.
func Custom(desc string, pred Predicate) Filter {
	return Filter{kind: KindCustom, desc: desc, pred: pred}
}

// Kind returns the filter variant.
func (f Filter) Kind() FilterKind { return f.kind }

// Apply reports whether the filter selects the item type.
//
// Label and Both need metadata; they never match when detail is nil.
func (f Filter) Apply(key Key, detail *Detail) bool {
	switch f.kind {
	case KindLabel:
		return detail != nil && detail.Label == f.label
	case KindName:
		return key.Name == f.name
	case KindBoth:
		return detail != nil && detail.Label == f.label && key.Name == f.name
	case KindCustom:
		return f.pred != nil && f.pred(key, detail)
	default:
		return false
	}
}

// ID returns the identity of the filter, used for equality and as a map key.
func (f Filter) ID() string {
	switch f.kind {
	case KindLabel:
		return "label:" + f.label
	case KindName:
		return "name:" + f.name
	case KindBoth:
		return "both:" + f.label + "|" + f.name
	case KindCustom:
		return "custom:" + f.desc
	default:
		return ""
	}
}

// Equal reports whether two filters have the same identity.
func (f Filter) Equal(other Filter) bool {
	return f.ID() == other.ID()
}

// String renders the filter for logs.
func (f Filter) String() string {
	switch f.kind {
	case KindLabel:
		return f.label
	case KindName:
		return f.name
	case KindBoth:
		return f.label + " (" + f.name + ")"
	case KindCustom:
		return f.desc
	default:
		return "<none>"
	}
}

// Custom predicate description forms accepted by ParseCustom.
const (
	customAny        = "any"
	customNBTPrefix  = "nbt:"
	customLabelRegex = "label~"
	customNameRegex  = "name~"
)

// ParseCustom builds a Custom filter from a textual description.
//
// Accepted forms:
//
//	any              every item
//	nbt:<hash>       items whose NBT hash equals <hash>
//	label~<regexp>   items whose label matches the expression
//	name~<regexp>    items whose registry name matches the expression
func ParseCustom(desc string) (Filter, error) {
	switch {
	case desc == customAny:
		return Custom(desc, func(Key, *Detail) bool { return true }), nil

	case strings.HasPrefix(desc, customNBTPrefix):
		nbt := strings.TrimPrefix(desc, customNBTPrefix)
		return Custom(desc, func(k Key, _ *Detail) bool { return k.NBT == nbt }), nil

	case strings.HasPrefix(desc, customLabelRegex):
		re, err := regexp.Compile(strings.TrimPrefix(desc, customLabelRegex))
		if err != nil {
			return Filter{}, fmt.Errorf("%w: %q: %v", ErrUnknownPredicate, desc, err)
		}
		return Custom(desc, func(_ Key, d *Detail) bool { return d != nil && re.MatchString(d.Label) }), nil

	case strings.HasPrefix(desc, customNameRegex):
		re, err := regexp.Compile(strings.TrimPrefix(desc, customNameRegex))
		if err != nil {
			return Filter{}, fmt.Errorf("%w: %q: %v", ErrUnknownPredicate, desc, err)
		}
		return Custom(desc, func(k Key, _ *Detail) bool { return re.MatchString(k.Name) }), nil
	}
	return Filter{}, fmt.Errorf("%w: %q", ErrUnknownPredicate, desc)
}

// AnyOf reports whether any of the filters selects the item type.
func AnyOf(filters []Filter, key Key, detail *Detail) bool {
	for _, f := range filters {
		if f.Apply(key, detail) {
			return true
		}
	}
	return false
}
