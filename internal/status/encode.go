package status

import "fmt"

// TitleRow formats the title for row 0.
// Layout is panel-locked. No IO. No side effects.
func TitleRow(title string) string {
	return fit(title, Columns)
}

// StatusRow formats row 1: bitmap, one blank, message.
func StatusRow(bitmap, message string) string {
	return fit(fmt.Sprintf("%-*s %-*s", FlagCount, bitmap, MessageWidth, message), Columns)
}

// fit pads or truncates s to exactly n bytes.
func fit(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return fmt.Sprintf("%-*s", n, s)
}
