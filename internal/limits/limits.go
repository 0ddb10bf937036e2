// Package limits computes a player's ward quotas from permission grants.
// Grants are opaque strings; the two shapes this package understands are
// "wardstone.limit.<category>.<n>" (per block type) and
// "wardstone.limit.<n>" (global). Everything else in a grant set is
// ignored: permission systems routinely carry unrelated grants.
package limits

import (
	"strconv"
	"strings"

	"github.com/google/uuid"

	"wardstone.gg/internal/catalog"
)

// NoLimit means no explicit cap was granted. Callers treat it as unbounded,
// never as a zero quota.
const NoLimit = -1

const grantPrefix = "wardstone.limit"

// GrantSource yields the effective permission grants for a player.
type GrantSource interface {
	EffectiveGrants(player uuid.UUID) []string
}

// PerBlockType resolves per-category limits. Block types absent from the
// grant set are absent from the result. When several grants target the same
// category the maximum wins; malformed grants are skipped without aborting
// the scan.
func PerBlockType(grants []string, cat *catalog.Catalog) map[*catalog.BlockType]int {
	out := make(map[*catalog.BlockType]int)
	for _, g := range grants {
		if !strings.HasPrefix(g, grantPrefix) {
			continue
		}
		parts := strings.Split(g, ".")
		if len(parts) != 4 {
			continue
		}
		b := cat.FromAlias(parts[2])
		if b == nil {
			continue
		}
		n, err := strconv.Atoi(parts[3])
		if err != nil {
			continue
		}
		if cur, ok := out[b]; !ok || cur < n {
			out[b] = n
		}
	}
	return out
}

// Global resolves the global ward limit: the maximum across all
// "wardstone.limit.<n>" grants, or NoLimit when none parse.
func Global(grants []string) int {
	max := NoLimit
	for _, g := range grants {
		if !strings.HasPrefix(g, grantPrefix) {
			continue
		}
		parts := strings.Split(g, ".")
		if len(parts) != 3 {
			continue
		}
		n, err := strconv.Atoi(parts[2])
		if err != nil {
			continue
		}
		if n > max {
			max = n
		}
	}
	return max
}
