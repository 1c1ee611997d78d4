package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCategory(t *testing.T) {
	category, err := ParseCategory("weekly")
	require.NoError(t, err)
	assert.Equal(t, CategoryWeekly, category)

	_, err = ParseCategory("decade")
	assert.ErrorIs(t, err, ErrUnknownCategory)
}

func TestCategoryResolve(t *testing.T) {
	assert.Equal(t, CategoryTotal, CategoryAll.Resolve())
	assert.Equal(t, CategoryDaily, CategoryDaily.Resolve())
	assert.Equal(t, CategorySession, CategorySession.Resolve())
}

func TestCategoryExpand(t *testing.T) {
	assert.Equal(t, []Category{CategoryWeekly}, CategoryWeekly.Expand())

	// "all" reads as total but writes to every category.
	expanded := CategoryAll.Expand()
	assert.Equal(t, Categories(), expanded)
	assert.Contains(t, expanded, CategorySession)
	assert.NotContains(t, expanded, CategoryAll)
}

func TestCategoryPersisted(t *testing.T) {
	assert.False(t, CategorySession.Persisted())
	assert.False(t, CategoryAll.Persisted())
	for _, category := range PersistedCategories() {
		assert.True(t, category.Persisted(), "category %s", category)
	}
}

func TestRankableExcludesSession(t *testing.T) {
	assert.NotContains(t, RankableCategories(), CategorySession)
	assert.NotContains(t, RankableCategories(), CategoryAll)
}
