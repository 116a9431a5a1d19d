package eks

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"golang.org/x/term"
)

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	if term.IsTerminal(0) {
		width, _, err := term.GetSize(0)
		if err == nil {
			t.SetAllowedRowLength(width)
		}
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, VAlign: text.VAlignMiddle},
	})
	return t
}

func outcome(created bool) string {
	if created {
		return color.GreenString("created")
	}
	return "already exists"
}

func readiness(ready int32, replicas int32) string {
	status := fmt.Sprintf("%d/%d", ready, replicas)
	if ready < replicas {
		return color.YellowString(status)
	}
	return color.GreenString(status)
}

func joinLines(values []string) string {
	return strings.Join(values, "\n")
}
