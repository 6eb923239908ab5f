package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
)

var (
	// out receives command output. Commands point it at cmd.OutOrStdout().
	out io.Writer = os.Stdout

	// Color functions - fatih/color disables them when output is not a TTY
	successColor = color.New(color.FgGreen, color.Bold)
	warningColor = color.New(color.FgYellow, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	infoColor    = color.New(color.FgCyan)
	headerColor  = color.New(color.FgBlue, color.Bold)
	labelColor   = color.New(color.FgWhite, color.Bold)
	valueColor   = color.New(color.FgHiBlack)
	dimColor     = color.New(color.FgHiBlack)
)

// PrintSection prints a section header
func PrintSection(title string) {
	_, _ = fmt.Fprintln(out)
	_, _ = headerColor.Fprintf(out, "▸ %s\n", title)
	_, _ = fmt.Fprintln(out)
}

// PrintSuccess prints a success message with a checkmark
func PrintSuccess(msg string) {
	_, _ = successColor.Fprintf(out, "✓ %s\n", msg)
}

// PrintWarning prints a warning message with a warning symbol
func PrintWarning(msg string) {
	_, _ = warningColor.Fprintf(out, "⚠ %s\n", msg)
}

// PrintError prints an error message to stderr
func PrintError(msg string) {
	_, _ = errorColor.Fprintf(os.Stderr, "✗ %s\n", msg)
}

// PrintLabelValue prints a label-value pair with proper formatting
func PrintLabelValue(label, value string) {
	_, _ = labelColor.Fprintf(out, "  %s: ", label)
	_, _ = valueColor.Fprintln(out, value)
}

// PrintList prints a list of items with bullet points
func PrintList(items []string, indent int) {
	indentStr := strings.Repeat("  ", indent)
	for _, item := range items {
		_, _ = infoColor.Fprintf(out, "%s• %s\n", indentStr, item)
	}
}

// PrintTable prints a simple column-aligned table
func PrintTable(headers []string, rows [][]string) {
	if len(headers) == 0 || len(rows) == 0 {
		return
	}

	// Calculate column widths
	colWidths := make([]int, len(headers))
	for i, header := range headers {
		colWidths[i] = len(header)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(colWidths) && len(cell) > colWidths[i] {
				colWidths[i] = len(cell)
			}
		}
	}

	// Print header
	_, _ = fmt.Fprint(out, "  ")
	for i, header := range headers {
		if i > 0 {
			_, _ = fmt.Fprint(out, "  ")
		}
		_, _ = headerColor.Fprintf(out, "%-*s", colWidths[i], header)
	}
	_, _ = fmt.Fprintln(out)

	// Print separator
	_, _ = fmt.Fprint(out, "  ")
	for i, width := range colWidths {
		if i > 0 {
			_, _ = fmt.Fprint(out, "  ")
		}
		_, _ = fmt.Fprint(out, strings.Repeat("-", width))
	}
	_, _ = fmt.Fprintln(out)

	// Print rows
	for _, row := range rows {
		_, _ = fmt.Fprint(out, "  ")
		for i, cell := range row {
			if i >= len(colWidths) {
				break
			}
			if i > 0 {
				_, _ = fmt.Fprint(out, "  ")
			}
			_, _ = valueColor.Fprintf(out, "%-*s", colWidths[i], cell)
		}
		_, _ = fmt.Fprintln(out)
	}
}

// PrintEmptyState prints a message when there's no data to show
func PrintEmptyState(msg string) {
	_, _ = dimColor.Fprintf(out, "  %s\n", msg)
}

// PrintCount formats a count with the matching noun
func PrintCount(count int, singular, plural string) string {
	if count == 1 {
		return fmt.Sprintf("%d %s", count, singular)
	}
	return fmt.Sprintf("%d %s", count, plural)
}
