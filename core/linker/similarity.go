package linker

import (
	"math"
	"strings"
	"unicode"
)

// corporateDesignators are stripped during name normalization so that
// "Company A", "Co. A" and "A Ltd." all normalize to the same form.
var corporateDesignators = map[string]bool{
	"inc": true, "corp": true, "corporation": true, "ltd": true, "limited": true,
	"llc": true, "co": true, "company": true, "group": true, "holdings": true,
	"plc": true, "ag": true, "sa": true, "gmbh": true,
}

// NormalizeName lowercases a surface form, strips punctuation and corporate
// designators, and collapses whitespace. If stripping designators would leave
// nothing, the designators are kept.
func NormalizeName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r) || r == '.' || r == ',' || r == '-' || r == '_' || r == '&':
			b.WriteRune(' ')
		}
	}

	tokens := strings.Fields(b.String())
	kept := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if !corporateDesignators[token] {
			kept = append(kept, token)
		}
	}
	if len(kept) == 0 {
		kept = tokens
	}
	return strings.Join(kept, " ")
}

// StringSimilarity scores two surface forms in [0, 1] using the Sørensen–Dice
// coefficient over character bigrams of the normalized names. Equal
// normalized forms score 1; containment raises the floor to 0.85 scaled by
// the length ratio.
func StringSimilarity(a, b string) float64 {
	na, nb := NormalizeName(a), NormalizeName(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}

	dice := diceCoefficient(bigrams(na), bigrams(nb))

	shorter, longer := na, nb
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}
	if strings.Contains(longer, shorter) {
		ratio := float64(len(shorter)) / float64(len(longer))
		if floor := 0.85 * math.Sqrt(ratio); floor > dice {
			return floor
		}
	}
	return dice
}

func bigrams(s string) map[string]int {
	runes := []rune(s)
	grams := map[string]int{}
	if len(runes) < 2 {
		grams[string(runes)]++
		return grams
	}
	for i := 0; i < len(runes)-1; i++ {
		grams[string(runes[i:i+2])]++
	}
	return grams
}

func diceCoefficient(a, b map[string]int) float64 {
	totalA, totalB, shared := 0, 0, 0
	for gram, count := range a {
		totalA += count
		if other, ok := b[gram]; ok {
			shared += min(count, other)
		}
	}
	for _, count := range b {
		totalB += count
	}
	if totalA+totalB == 0 {
		return 0
	}
	return 2 * float64(shared) / float64(totalA+totalB)
}

// Cosine returns the cosine similarity of two embeddings, 0 for mismatched
// or zero-norm vectors.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
