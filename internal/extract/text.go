package extract

// parseText returns plain text content as is: no trimming, no newline or BOM handling.
func parseText(data []byte) string {
	return string(data)
}
