package domain

import "fmt"

// Category represents one of the rolling play time windows, or the
// meta-selector "all".
type Category string

const (
	CategorySession Category = "session"
	CategoryDaily   Category = "daily"
	CategoryWeekly  Category = "weekly"
	CategoryMonthly Category = "monthly"
	CategoryYearly  Category = "yearly"
	CategoryTotal   Category = "total"
	CategoryAll     Category = "all"
)

// Categories returns every concrete category, session through total.
// The "all" meta-selector is not included.
func Categories() []Category {
	return []Category{
		CategorySession,
		CategoryDaily,
		CategoryWeekly,
		CategoryMonthly,
		CategoryYearly,
		CategoryTotal,
	}
}

// PersistedCategories returns the categories backed by a durable column.
// Session play time lives only in memory.
func PersistedCategories() []Category {
	return []Category{
		CategoryDaily,
		CategoryWeekly,
		CategoryMonthly,
		CategoryYearly,
		CategoryTotal,
	}
}

// RankableCategories returns the categories that have a leaderboard.
// Session is not leaderboard-eligible and "all" is served as total.
func RankableCategories() []Category {
	return []Category{
		CategoryDaily,
		CategoryWeekly,
		CategoryMonthly,
		CategoryYearly,
		CategoryTotal,
	}
}

// ParseCategory parses a category name.
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownCategory, s)
	}
	return c, nil
}

// Valid reports whether c is a known category (including "all").
func (c Category) Valid() bool {
	switch c {
	case CategorySession, CategoryDaily, CategoryWeekly, CategoryMonthly,
		CategoryYearly, CategoryTotal, CategoryAll:
		return true
	}
	return false
}

// Resolve returns the category whose counter backs c in read context.
// "all" reads as total; every other category reads as itself.
func (c Category) Resolve() Category {
	if c == CategoryAll {
		return CategoryTotal
	}
	return c
}

// Expand returns the categories c addresses in write context. "all"
// expands to every concrete category; every other category addresses
// only itself. Note the asymmetry with Resolve: this matches the
// documented behavior of the all selector.
func (c Category) Expand() []Category {
	if c == CategoryAll {
		return Categories()
	}
	return []Category{c}
}

// Persisted reports whether c is backed by a durable column.
func (c Category) Persisted() bool {
	switch c {
	case CategoryDaily, CategoryWeekly, CategoryMonthly, CategoryYearly, CategoryTotal:
		return true
	}
	return false
}
