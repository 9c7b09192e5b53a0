package extractor

import "strings"

// WeightTable maps lowercase style-name tokens to numeric weights.
// Built from config, immutable afterwards.
type WeightTable map[string]int

// Infer derives the numeric weight from the subfamily name and the file
// name. The longest matching token wins, so "ExtraBold" resolves through
// the "extrabold" entry rather than the embedded "bold". Faces with no
// matching token default to 400.
func (t WeightTable) Infer(subfamily, filename string) int {
	haystack := strings.ToLower(subfamily) + " " + strings.ToLower(filename)

	weight := 400
	bestLen := 0
	for token, w := range t {
		if len(token) > bestLen && strings.Contains(haystack, token) {
			weight = w
			bestLen = len(token)
		}
	}
	return weight
}

// InferStyle derives the style from the subfamily name and file name.
func InferStyle(subfamily, filename string) string {
	haystack := strings.ToLower(subfamily) + " " + strings.ToLower(filename)
	switch {
	case strings.Contains(haystack, "italic"):
		return "italic"
	case strings.Contains(haystack, "oblique"):
		return "oblique"
	default:
		return "normal"
	}
}
