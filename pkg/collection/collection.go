// Package collection has generic slice helpers for shaping rows between
// queries and responses.
//
//	ids := collection.Map(products, func(p models.Product) uint { return p.ID })
//	byMonth := collection.GroupBy(rows, func(r row) string { return r.CreatedAt.Format("2006-01") })
package collection

import "sort"

// Map transforms each element of s.
func Map[T, R any](s []T, fn func(T) R) []R {
	out := make([]R, len(s))
	for i, v := range s {
		out[i] = fn(v)
	}
	return out
}

// Filter keeps the elements for which fn is true.
func Filter[T any](s []T, fn func(T) bool) []T {
	var out []T
	for _, v := range s {
		if fn(v) {
			out = append(out, v)
		}
	}
	return out
}

// Reject drops the elements for which fn is true.
func Reject[T any](s []T, fn func(T) bool) []T {
	return Filter(s, func(v T) bool { return !fn(v) })
}

// Unique removes duplicates, keeping first occurrences in order.
func Unique[T comparable](s []T) []T {
	seen := make(map[T]struct{}, len(s))
	out := make([]T, 0, len(s))
	for _, v := range s {
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}

// KeyBy indexes s by fn. The last element wins on duplicate keys.
func KeyBy[T any, K comparable](s []T, fn func(T) K) map[K]T {
	out := make(map[K]T, len(s))
	for _, v := range s {
		out[fn(v)] = v
	}
	return out
}

// GroupBy partitions s by fn, preserving order within each group.
func GroupBy[T any, K comparable](s []T, fn func(T) K) map[K][]T {
	out := make(map[K][]T)
	for _, v := range s {
		k := fn(v)
		out[k] = append(out[k], v)
	}
	return out
}

// Reduce folds s into one value.
func Reduce[T, R any](s []T, initial R, fn func(carry R, item T) R) R {
	carry := initial
	for _, v := range s {
		carry = fn(carry, v)
	}
	return carry
}

// SortBy sorts s in place, stable, and returns it.
func SortBy[T any](s []T, less func(a, b T) bool) []T {
	sort.SliceStable(s, func(i, j int) bool { return less(s[i], s[j]) })
	return s
}
