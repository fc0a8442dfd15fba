package model

import "fmt"

// Verdicts reported in ComparisonResponse.Status.
const (
	StatusPlagiarismDetected = "Plagiarism Detected"
	StatusPlagiarismFree     = "Plagiarism-Free"
)

// ComparisonResult is the outcome of scoring two documents against each other.
type ComparisonResult struct {
	Ratio       float64 `json:"ratio"`
	Threshold   float64 `json:"threshold"`
	Plagiarized bool    `json:"plagiarized"`
}

// ComparisonResponse is the wire shape returned to clients.
type ComparisonResponse struct {
	Similarity string `json:"similarity" example:"83.33%"`
	Status     string `json:"status" example:"Plagiarism Detected"`
}

// Percentage renders the ratio as a percentage with two decimals, e.g. "83.33%".
func (r ComparisonResult) Percentage() string {
	return fmt.Sprintf("%.2f%%", r.Ratio*100)
}

// Status returns the verdict for the result.
func (r ComparisonResult) Status() string {
	if r.Plagiarized {
		return StatusPlagiarismDetected
	}
	return StatusPlagiarismFree
}

// Response renders the result in its wire shape.
func (r ComparisonResult) Response() ComparisonResponse {
	return ComparisonResponse{
		Similarity: r.Percentage(),
		Status:     r.Status(),
	}
}
