// Package signature computes the canonical textual encoding of a cart's
// contents and its sha256 fingerprint. It is pure and safe for concurrent use.
package signature

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Item is one (sku, qty) pair taken from a cart.
type Item struct {
	SKU string
	Qty int
}

// Normalize merges duplicate SKUs by summing their quantities, sorts the
// distinct SKUs ascending, renders each as "sku:qty" and joins the parts with
// "|". It returns the normalization string and the lowercase hex sha256 of
// its UTF-8 bytes. The result depends only on the multiset of pairs, not on
// input order or duplication. An empty item set yields the empty string.
func Normalize(items []Item) (string, string) {
	merged := make(map[string]int, len(items))
	for _, it := range items {
		merged[it.SKU] += it.Qty
	}

	skus := make([]string, 0, len(merged))
	for sku := range merged {
		skus = append(skus, sku)
	}
	sort.Strings(skus)

	parts := make([]string, 0, len(skus))
	for _, sku := range skus {
		parts = append(parts, fmt.Sprintf("%s:%d", sku, merged[sku]))
	}

	norm := strings.Join(parts, "|")
	sum := sha256.Sum256([]byte(norm))
	return norm, hex.EncodeToString(sum[:])
}
