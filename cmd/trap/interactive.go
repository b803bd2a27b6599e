package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/wasmtrap/engine"
	"github.com/wippyai/wasmtrap/trap"
)

type interactiveModel struct {
	err      error
	sess     *session
	trap     *trapView
	label    string
	name     string
	bin      []byte
	result   string
	inputs   []textinput.Model
	selected int
	focusIdx int
	frameIdx int
	state    modelState
}

type modelState int

const (
	stateSelectFunc modelState = iota
	stateInputArgs
	stateShowResult
)

func newInteractiveModel(label string, bin []byte, name string) *interactiveModel {
	return &interactiveModel{
		label: label,
		bin:   bin,
		name:  name,
		state: stateSelectFunc,
	}
}

type loadedMsg struct {
	err  error
	sess *session
}

type callResultMsg struct {
	err    error
	trap   *trapView
	result string
}

func (m *interactiveModel) Init() tea.Cmd {
	return m.loadModule
}

func (m *interactiveModel) loadModule() tea.Msg {
	sess, err := openSession(context.Background(), m.bin, m.name)
	if err != nil {
		return loadedMsg{err: err}
	}
	return loadedMsg{sess: sess}
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if m.sess != nil {
				m.sess.Close(context.Background())
			}
			return m, tea.Quit

		case "up", "k":
			switch {
			case m.state == stateSelectFunc && m.selected > 0:
				m.selected--
			case m.state == stateShowResult && m.trap != nil && m.frameIdx > 0:
				m.frameIdx--
			}

		case "down", "j":
			switch {
			case m.state == stateSelectFunc && m.sess != nil && m.selected < len(m.sess.funcs)-1:
				m.selected++
			case m.state == stateShowResult && m.trap != nil && m.frameIdx < len(m.trap.frames)-1:
				m.frameIdx++
			}

		case "enter":
			switch m.state {
			case stateSelectFunc:
				if m.sess == nil || len(m.sess.funcs) == 0 {
					return m, nil
				}
				m.prepareInputs()
				if len(m.inputs) == 0 {
					return m, m.callFunction
				}
				m.state = stateInputArgs

			case stateInputArgs:
				return m, m.callFunction

			case stateShowResult:
				m.reset()
			}

		case "tab":
			if m.state == stateInputArgs && len(m.inputs) > 1 {
				m.inputs[m.focusIdx].Blur()
				m.focusIdx = (m.focusIdx + 1) % len(m.inputs)
				m.inputs[m.focusIdx].Focus()
			}

		case "esc":
			switch m.state {
			case stateInputArgs:
				m.state = stateSelectFunc
				m.inputs = nil
			case stateShowResult:
				m.reset()
			}
		}

	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.sess = msg.sess

	case callResultMsg:
		m.result = msg.result
		m.trap = msg.trap
		m.err = msg.err
		m.frameIdx = 0
		m.state = stateShowResult
	}

	if m.state == stateInputArgs {
		var cmds []tea.Cmd
		for i := range m.inputs {
			var cmd tea.Cmd
			m.inputs[i], cmd = m.inputs[i].Update(msg)
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)
	}

	return m, nil
}

func (m *interactiveModel) reset() {
	m.state = stateSelectFunc
	m.result = ""
	m.trap = nil
	m.err = nil
	m.inputs = nil
}

func (m *interactiveModel) prepareInputs() {
	fn := m.sess.funcs[m.selected]
	params := fn.ParamTypes()
	m.inputs = make([]textinput.Model, len(params))
	for i, p := range params {
		ti := textinput.New()
		ti.Placeholder = api.ValueTypeName(p)
		ti.Prompt = fmt.Sprintf("arg%d: ", i)
		ti.Width = 40
		if i == 0 {
			ti.Focus()
		}
		m.inputs[i] = ti
	}
	m.focusIdx = 0
}

func (m *interactiveModel) callFunction() tea.Msg {
	fn := m.sess.funcs[m.selected]

	values := make([]string, len(m.inputs))
	for i, input := range m.inputs {
		values[i] = input.Value()
	}
	return callAndDescribe(context.Background(), m.sess, fn, strings.Join(values, ","))
}

// callAndDescribe runs fn and, when it traps, copies the trap out and
// releases it.
func callAndDescribe(ctx context.Context, sess *session, fn *engine.Func, argStr string) callResultMsg {
	result, err := sess.call(ctx, fn, argStr)
	var tr *trap.Trap
	if errors.As(err, &tr) {
		defer tr.Close()
		view, derr := describeTrap(tr)
		if derr != nil {
			return callResultMsg{err: derr}
		}
		return callResultMsg{trap: &view}
	}
	if err != nil {
		return callResultMsg{err: err}
	}
	return callResultMsg{result: result}
}

func (m *interactiveModel) View() string {
	if m.err != nil && m.state != stateShowResult {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
	}

	if m.sess == nil {
		return "Loading module..."
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("WASM Traps"))
	b.WriteString(" ")
	b.WriteString(m.label)
	b.WriteString(" ")
	b.WriteString(moduleStyle.Render(m.sess.name))
	b.WriteString("\n\n")

	switch m.state {
	case stateSelectFunc:
		if len(m.sess.funcs) == 0 {
			b.WriteString("The module exports no functions.\n\n")
			b.WriteString(helpStyle.Render("q quit"))
			break
		}
		b.WriteString("Select a function to call:\n\n")
		for i, fn := range m.sess.funcs {
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> " + formatSignature(fn)))
			} else {
				b.WriteString("  " + funcStyle.Render(formatSignature(fn)))
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter call • q quit"))

	case stateInputArgs:
		fn := m.sess.funcs[m.selected]
		b.WriteString(fmt.Sprintf("Calling %s\n\n", funcStyle.Render(fn.Name())))
		for _, input := range m.inputs {
			b.WriteString(input.View())
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("tab next field • enter call • esc back"))

	case stateShowResult:
		fn := m.sess.funcs[m.selected]
		b.WriteString(fmt.Sprintf("Result of %s:\n\n", funcStyle.Render(fn.Name())))
		switch {
		case m.err != nil:
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
			b.WriteString("\n\n")
			b.WriteString(helpStyle.Render("enter continue • q quit"))
		case m.trap != nil:
			m.viewTrap(&b)
		default:
			b.WriteString(resultStyle.Render(m.result))
			b.WriteString("\n\n")
			b.WriteString(helpStyle.Render("enter continue • q quit"))
		}
	}

	return b.String()
}

func (m *interactiveModel) viewTrap(b *strings.Builder) {
	v := m.trap
	b.WriteString(errorStyle.Render("trap: " + v.message))
	if v.code != "" {
		b.WriteString(" ")
		b.WriteString(helpStyle.Render("[" + v.code + "]"))
	}
	b.WriteString("\n\n")

	if len(v.frames) == 0 {
		b.WriteString(helpStyle.Render("no wasm frames"))
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter continue • q quit"))
		return
	}

	for i, f := range v.frames {
		line := fmt.Sprintf("%d: %s", i, f)
		if i == m.frameIdx {
			b.WriteString(selectedStyle.Render("> " + line))
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}

	f := v.frames[m.frameIdx]
	b.WriteString("\n")
	fmt.Fprintf(b, "function index: %d\n", f.funcIndex)
	fmt.Fprintf(b, "function name:  %s\n", describeName(f.funcName, f.hasFunc))
	fmt.Fprintf(b, "module name:    %s\n", describeName(f.moduleName, f.hasModule))
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("↑/↓ frame • enter continue • q quit"))
}

func describeName(name string, ok bool) string {
	if !ok {
		return helpStyle.Render("(none)")
	}
	return funcStyle.Render(name)
}

func runInteractive(label string, bin []byte, name string) error {
	p := tea.NewProgram(newInteractiveModel(label, bin, name), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
