package catalog

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"unicode"
)

var ErrVariantNotFound = errors.New("variant not found")

// VariantLister is the read side Resolve needs.
type VariantLister interface {
	ListVariantsByProduct(ctx context.Context, productName string) ([]ProductVariant, error)
}

// Resolve maps a cart line's size and color set to the stored variant of productName.
// Size is compared after normalization and colors as an order-independent,
// case-insensitive set. No match yields ErrVariantNotFound.
func Resolve(ctx context.Context, store VariantLister, productName, size string, colors []string) (ProductVariant, error) {
	variants, err := store.ListVariantsByProduct(ctx, productName)
	if err != nil {
		return ProductVariant{}, fmt.Errorf("list variants of %q: %w", productName, err)
	}
	v, ok := Match(variants, size, colors)
	if !ok {
		return ProductVariant{}, fmt.Errorf("%w: product=%q size=%q colors=%v", ErrVariantNotFound, productName, size, colors)
	}
	return v, nil
}

// Match returns the first variant whose attributes equal the requested ones.
func Match(variants []ProductVariant, size string, colors []string) (ProductVariant, bool) {
	wantSize := NormalizeSize(size)
	wantColors := NormalizeColors(colors)
	for _, v := range variants {
		if NormalizeSize(v.Attributes.Size) != wantSize {
			continue
		}
		if slices.Equal(NormalizeColors(v.Attributes.Colors), wantColors) {
			return v, true
		}
	}
	return ProductVariant{}, false
}

// NormalizeSize lowercases and strips whitespace so "Large " and "large" or
// "10 x 10" and "10x10" compare equal.
func NormalizeSize(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return unicode.ToLower(r)
	}, s)
}

// NormalizeColors returns a sorted, lowercased, trimmed copy.
func NormalizeColors(colors []string) []string {
	out := make([]string, 0, len(colors))
	for _, c := range colors {
		out = append(out, strings.ToLower(strings.TrimSpace(c)))
	}
	slices.Sort(out)
	return out
}
