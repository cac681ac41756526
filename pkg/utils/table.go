package utils

import (
	"github.com/pterm/pterm"
)

// PrintTable renders rows under headers as a boxed terminal table.
func PrintTable(headers []string, rows [][]string) error {
	data := pterm.TableData{headers}
	for _, r := range rows {
		data = append(data, r)
	}
	return pterm.DefaultTable.
		WithHasHeader().
		WithBoxed(true).
		WithData(data).
		Render()
}

// DisableColor turns off pterm styling, for --no-color and non-terminal output.
func DisableColor() {
	pterm.DisableColor()
}
