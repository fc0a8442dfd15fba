package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComparisonResult_Response(t *testing.T) {
	tests := []struct {
		name   string
		result ComparisonResult
		want   ComparisonResponse
	}{
		{
			name:   "identical",
			result: ComparisonResult{Ratio: 1, Threshold: 0.7, Plagiarized: true},
			want:   ComparisonResponse{Similarity: "100.00%", Status: StatusPlagiarismDetected},
		},
		{
			name:   "disjoint",
			result: ComparisonResult{Ratio: 0, Threshold: 0.7},
			want:   ComparisonResponse{Similarity: "0.00%", Status: StatusPlagiarismFree},
		},
		{
			name:   "two decimals",
			result: ComparisonResult{Ratio: 0.8333333, Threshold: 0.7, Plagiarized: true},
			want:   ComparisonResponse{Similarity: "83.33%", Status: StatusPlagiarismDetected},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.result.Response())
		})
	}
}
