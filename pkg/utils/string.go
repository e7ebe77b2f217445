package utils

// Truncate shortens s to maxLen, appending an ellipsis when it cuts.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
