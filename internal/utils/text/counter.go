// Package text holds small text helpers shared by the LLM providers.
package text

// CountRunes counts Unicode characters rather than bytes, so prompt length
// accounting agrees across providers for creator queries that mix scripts
// and emoji.
func CountRunes(text string) int {
	return len([]rune(text))
}
