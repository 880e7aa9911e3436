package placeholder

import "sort"

// Distance returns the Levenshtein edit distance between a and b, counted in runes.
func Distance(a, b string) int {
	if a == b {
		return 0
	}
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

// Unused returns the keys of values that name no placeholder, sorted.
// Such values are ignored by rendering and usually indicate a typo.
func Unused(names []string, values map[string]string) []string {
	known := make(map[string]struct{}, len(names))
	for _, n := range names {
		known[n] = struct{}{}
	}
	var out []string
	for k := range values {
		if _, ok := known[k]; !ok {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// Suggest returns the placeholder closest to key, or "" when none is within
// a third of key's length (at least one edit). Ties go to the earlier name.
func Suggest(key string, names []string) string {
	limit := len([]rune(key)) / 3
	if limit < 1 {
		limit = 1
	}
	best, bestDist := "", limit+1
	for _, n := range names {
		if d := Distance(key, n); d < bestDist {
			best, bestDist = n, d
		}
	}
	return best
}
