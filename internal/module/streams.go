package module

import (
	"sort"

	"github.com/Masterminds/semver/v3"
)

// SortStreams orders streams ascending. Streams that read as versions
// ("2.4", "10") come first in version order; the rest follow lexically.
func SortStreams(streams []string) []string {
	out := append([]string(nil), streams...)
	parsed := make(map[string]*semver.Version, len(out))
	for _, s := range out {
		if v, err := semver.NewVersion(s); err == nil {
			parsed[s] = v
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		vi, iok := parsed[out[i]]
		vj, jok := parsed[out[j]]
		switch {
		case iok && jok:
			if c := vi.Compare(vj); c != 0 {
				return c < 0
			}
			return out[i] < out[j]
		case iok != jok:
			return iok
		default:
			return out[i] < out[j]
		}
	})
	return out
}
