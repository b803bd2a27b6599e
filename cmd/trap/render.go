package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/wasmtrap/trap"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	funcStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	moduleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

// frameRow is a frame copied out of a trap's frame list, so it can be shown
// after the list is closed.
type frameRow struct {
	funcLabel   string
	moduleLabel string
	funcName    string
	moduleName  string
	funcIndex   uint32
	hasFunc     bool
	hasModule   bool
}

func (r frameRow) String() string {
	return r.moduleLabel + "!" + r.funcLabel
}

type trapView struct {
	message string
	code    string
	frames  []frameRow
}

// describeTrap reads everything needed for display out of tr. tr stays
// owned by the caller.
func describeTrap(tr *trap.Trap) (trapView, error) {
	msg, err := tr.Message()
	if err != nil {
		return trapView{}, err
	}
	view := trapView{message: msg}

	if code, ok, err := tr.Code(); err == nil && ok {
		view.code = code.String()
	}

	frames, err := tr.Frames()
	if err != nil {
		return trapView{}, err
	}
	defer frames.Close()

	for _, f := range frames.All() {
		row := frameRow{}
		if row.funcIndex, err = f.FuncIndex(); err != nil {
			return trapView{}, err
		}
		if row.funcName, row.hasFunc, err = f.FuncName(); err != nil {
			return trapView{}, err
		}
		if row.moduleName, row.hasModule, err = f.ModuleName(); err != nil {
			return trapView{}, err
		}

		row.funcLabel = row.funcName
		if !row.hasFunc {
			row.funcLabel = fmt.Sprintf("<wasm function %d>", row.funcIndex)
		}
		row.moduleLabel = row.moduleName
		if !row.hasModule {
			row.moduleLabel = "<unknown>"
		}
		view.frames = append(view.frames, row)
	}
	return view, nil
}

// renderTrap formats a trap like trap.Trap.String. With styled set, the
// message and frame names are colored for a terminal.
func renderTrap(v trapView, styled bool) string {
	var b strings.Builder

	if !styled {
		b.WriteString(v.message)
		if len(v.frames) > 0 {
			b.WriteString("\nwasm backtrace:\n")
			for i, f := range v.frames {
				fmt.Fprintf(&b, "  %d: %s\n", i, f)
			}
		} else {
			b.WriteString("\n")
		}
		return b.String()
	}

	b.WriteString(titleStyle.Render("trap"))
	b.WriteString(" ")
	b.WriteString(errorStyle.Render(v.message))
	if v.code != "" {
		b.WriteString(" ")
		b.WriteString(helpStyle.Render("[" + v.code + "]"))
	}
	b.WriteString("\n")
	if len(v.frames) > 0 {
		b.WriteString(helpStyle.Render("wasm backtrace:"))
		b.WriteString("\n")
		for i, f := range v.frames {
			fmt.Fprintf(&b, "  %s %s!%s\n",
				helpStyle.Render(fmt.Sprintf("%d:", i)),
				moduleStyle.Render(f.moduleLabel),
				funcStyle.Render(f.funcLabel))
		}
	}
	return b.String()
}
