package collection_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/shashiranjanraj/ferremas/pkg/collection"
)

type line struct {
	SKU string
	Qty int
}

func TestShaping(t *testing.T) {
	lines := []line{{"HAM-1", 2}, {"DRL-1", 1}, {"HAM-1", 3}, {"SAW-2", 0}}

	assert.Equal(t, []string{"HAM-1", "DRL-1", "HAM-1", "SAW-2"},
		collection.Map(lines, func(l line) string { return l.SKU }))
	assert.Equal(t, []line{{"HAM-1", 2}, {"DRL-1", 1}, {"HAM-1", 3}},
		collection.Reject(lines, func(l line) bool { return l.Qty == 0 }))
	assert.Equal(t, []uint{3, 1, 2}, collection.Unique([]uint{3, 1, 3, 2, 1}))

	byKey := collection.KeyBy(lines, func(l line) string { return l.SKU })
	assert.Len(t, byKey, 3)
	assert.Equal(t, 3, byKey["HAM-1"].Qty)

	groups := collection.GroupBy(lines, func(l line) string { return strings.SplitN(l.SKU, "-", 2)[0] })
	assert.Equal(t, []line{{"HAM-1", 2}, {"HAM-1", 3}}, groups["HAM"])

	total := collection.Reduce(lines, 0, func(sum int, l line) int { return sum + l.Qty })
	assert.Equal(t, 6, total)
}

func TestSortByIsStable(t *testing.T) {
	lines := []line{{"b", 1}, {"a", 2}, {"c", 1}}
	collection.SortBy(lines, func(a, b line) bool { return a.Qty < b.Qty })
	assert.Equal(t, []line{{"b", 1}, {"c", 1}, {"a", 2}}, lines)
}

func TestEmptyInputs(t *testing.T) {
	assert.Empty(t, collection.Map([]int(nil), func(i int) int { return i }))
	assert.Nil(t, collection.Reject([]int(nil), func(int) bool { return false }))
	assert.Empty(t, collection.GroupBy([]int(nil), func(i int) int { return i }))
}
