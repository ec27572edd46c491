// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package commandline contains convenience UI tools for the command line: parsing of settings,
// progress bar and summary tables.
package commandline

import (
	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
)

var (
	normalStyle       = lipgloss.NewStyle().Padding(0, 1)
	rightAlignedStyle = lipgloss.NewStyle().Align(lipgloss.Right).Padding(0, 1)
	headerStyle       = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	tableBorderColor  = "#705090"
)

// newTable returns a table with the style used by the package: names right-aligned in the first column.
func newTable() *lgtable.Table {
	return lgtable.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color(tableBorderColor))).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == lgtable.HeaderRow {
				return headerStyle
			}
			if col == 0 {
				return rightAlignedStyle
			}
			return normalStyle
		})
}

// SummaryTable renders a 2-column table with a title header, and one "name: value" per row.
func SummaryTable(title string, rows [][2]string) string {
	table := newTable().Headers(title, "")
	for _, row := range rows {
		table.Row(row[0], row[1])
	}
	return table.String()
}
