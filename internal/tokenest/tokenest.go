// Package tokenest implements the Vault's one shared token-accounting
// heuristic: 1 token ≈ 4 characters (the same rough conversion the teacher
// uses in its chunker's targetLen()).
package tokenest

// Estimate returns the approximate token count of s.
func Estimate(s string) int {
	return (len(s) + 3) / 4
}

// Budget converts a token budget back into an approximate character count.
func Budget(tokens int) int {
	return tokens * 4
}
