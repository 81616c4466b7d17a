package engine

// MatchExemption returns the first pattern in patterns that matches uri.
// Patterns are tried in order so overlapping entries have a predictable winner.
func MatchExemption(uri string, patterns []string) (string, bool) {
	for _, p := range patterns {
		if globMatch(p, uri) {
			return p, true
		}
	}
	return "", false
}

// globMatch reports whether s matches pattern in full. '*' matches any run of
// bytes, '/' included; every other byte matches itself. Comparison is
// case-sensitive.
func globMatch(pattern, s string) bool {
	px, sx := 0, 0
	star, mark := -1, 0

	for sx < len(s) {
		switch {
		case px < len(pattern) && pattern[px] == '*':
			star, mark = px, sx
			px++
		case px < len(pattern) && pattern[px] == s[sx]:
			px++
			sx++
		case star >= 0:
			// Let the last star absorb one more byte and retry.
			mark++
			px, sx = star+1, mark
		default:
			return false
		}
	}

	for px < len(pattern) && pattern[px] == '*' {
		px++
	}
	return px == len(pattern)
}
