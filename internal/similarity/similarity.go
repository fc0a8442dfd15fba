// Package similarity scores how much two texts overlap syntactically.
//
// The ratio is the classic matching-blocks measure: find the longest common
// contiguous block, recurse on what is left on either side of it, and report
// 2*M/T where M is the number of matched characters and T the combined length.
// Reordered or paraphrased text is not recognised.
package similarity

import (
	"context"

	"github.com/pmezard/go-difflib/difflib"
)

// DefaultThreshold is the ratio above which two documents are reported as plagiarized.
const DefaultThreshold = 0.7

// Ratio returns the similarity of a and b in [0, 1], comparing them code point by code point.
// Two empty strings are identical (1.0); an empty string against a non-empty one scores 0.0.
//
// When the lexicographically larger text has 200 code points or more, characters making
// up more than 1% of it are not used to seed matches (the matcher's autojunk rule).
// This keeps the cost of scoring long documents bounded.
func Ratio(a, b string) float64 {
	if a == b {
		return 1.0
	}
	// Longest-match tie breaking depends on argument order; a fixed order keeps Ratio symmetric.
	if b < a {
		a, b = b, a
	}
	return difflib.NewMatcher(codePoints(a), codePoints(b)).Ratio()
}

// RatioContext is Ratio bounded by ctx. The matcher cannot be interrupted, so after
// ctx is done the running computation finishes in the background and is discarded.
func RatioContext(ctx context.Context, a, b string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	done := make(chan float64, 1)
	go func() {
		done <- Ratio(a, b)
	}()
	select {
	case r := <-done:
		return r, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Exceeds reports whether ratio is strictly above threshold.
func Exceeds(ratio, threshold float64) bool {
	return ratio > threshold
}

func codePoints(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}
