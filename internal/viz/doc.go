// Package viz renders run summaries for the terminal with lipgloss.
package viz
