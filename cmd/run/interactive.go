package main

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-kernel/config"
	"github.com/wippyai/wasm-kernel/errors"
	"github.com/wippyai/wasm-kernel/proc"
	"github.com/wippyai/wasm-kernel/resource"
	"github.com/wippyai/wasm-kernel/syscalls"
	"github.com/wippyai/wasm-kernel/uio"
	"github.com/wippyai/wasm-kernel/vfs"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	funcStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	typeStyle = lipgloss.NewStyle().
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

	tableStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#7D56F4")).
			Padding(0, 1)
)

// Scratch addresses in the console's private address space.
const (
	memorySize = 64 * 1024
	pathAddr   = 0x0000
	bufAddr    = 0x1000
	bufSize    = memorySize - bufAddr
)

type paramKind int

const (
	paramInt paramKind = iota
	paramString
)

type paramInfo struct {
	name string
	hint string
	kind paramKind
}

type callInfo struct {
	params []paramInfo
	call   syscalls.Number
}

var consoleCalls = []callInfo{
	{call: syscalls.SysOpen, params: []paramInfo{
		{name: "path", hint: "string", kind: paramString},
		{name: "flags", hint: "r w rw c x t a, or a number"},
		{name: "mode", hint: "octal, e.g. 644"},
	}},
	{call: syscalls.SysClose, params: []paramInfo{{name: "fd", hint: "int"}}},
	{call: syscalls.SysRead, params: []paramInfo{{name: "fd", hint: "int"}, {name: "len", hint: "int"}}},
	{call: syscalls.SysWrite, params: []paramInfo{{name: "fd", hint: "int"}, {name: "data", hint: "string", kind: paramString}}},
	{call: syscalls.SysLseek, params: []paramInfo{
		{name: "fd", hint: "int"},
		{name: "pos", hint: "int"},
		{name: "whence", hint: "set cur end"},
	}},
	{call: syscalls.SysDup2, params: []paramInfo{{name: "oldfd", hint: "int"}, {name: "newfd", hint: "int"}}},
}

type modelState int

const (
	stateSelectCall modelState = iota
	stateInputArgs
	stateShowResult
)

type interactiveModel struct {
	err      error
	caller   syscalls.Caller
	process  *proc.Process
	mem      *uio.FlatMemory
	console  *bytes.Buffer
	root     string
	result   string
	inputs   []textinput.Model
	selected int
	focusIdx int
	state    modelState
}

func newInteractiveModel(cfg config.Config, log *zap.Logger) (*interactiveModel, error) {
	var console bytes.Buffer
	fs := newVFS(cfg)
	fs.Mount(vfs.DeviceConsole, vfs.NewConsole(nil, &console))

	p := proc.New("console", fs, proc.Options{
		Logger:      log,
		MaxFiles:    cfg.MaxFiles,
		StrictStdio: cfg.StrictStdio,
	})
	if err := p.InitStdio(); err != nil {
		p.Teardown()
		return nil, err
	}

	mem := uio.NewFlatMemory(memorySize)
	root := cfg.Root
	if root == "" {
		root = "(memory)"
	}

	return &interactiveModel{
		caller:  syscalls.Caller{Proc: p, Mem: mem},
		process: p,
		mem:     mem,
		console: &console,
		root:    root,
		state:   stateSelectCall,
	}, nil
}

type callResultMsg struct {
	err    error
	result string
}

func (m *interactiveModel) Init() tea.Cmd {
	return nil
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.process.Teardown()
			return m, tea.Quit

		case "q":
			if m.state != stateInputArgs {
				m.process.Teardown()
				return m, tea.Quit
			}

		case "up", "k":
			if m.state == stateSelectCall && m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.state == stateSelectCall && m.selected < len(consoleCalls)-1 {
				m.selected++
			}

		case "enter":
			switch m.state {
			case stateSelectCall:
				m.prepareInputs()
				m.state = stateInputArgs
				return m, nil

			case stateInputArgs:
				return m, m.invoke

			case stateShowResult:
				m.state = stateSelectCall
				m.result = ""
				m.err = nil
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
				m.state = stateSelectCall
				m.inputs = nil
			case stateShowResult:
				m.state = stateSelectCall
				m.result = ""
				m.err = nil
			}
		}

	case callResultMsg:
		m.result = msg.result
		m.err = msg.err
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

func (m *interactiveModel) prepareInputs() {
	c := consoleCalls[m.selected]
	m.inputs = make([]textinput.Model, len(c.params))
	for i, p := range c.params {
		ti := textinput.New()
		ti.Placeholder = p.hint
		ti.Prompt = p.name + ": "
		ti.Width = 40
		if i == 0 {
			ti.Focus()
		}
		m.inputs[i] = ti
	}
	m.focusIdx = 0
}

func (m *interactiveModel) invoke() tea.Msg {
	c := consoleCalls[m.selected]
	values := make([]string, len(m.inputs))
	for i, input := range m.inputs {
		values[i] = strings.TrimSpace(input.Value())
		if c.params[i].kind == paramString {
			values[i] = input.Value()
		}
	}

	result, err := invokeSyscall(context.Background(), m.caller, m.mem, c.call, values)
	return callResultMsg{result: result, err: err}
}

// invokeSyscall stages string arguments in mem, runs call and describes the
// outcome the way a guest would see it.
func invokeSyscall(ctx context.Context, c syscalls.Caller, mem *uio.FlatMemory, call syscalls.Number, values []string) (string, error) {
	ints := make([]int64, len(values))
	for i, v := range values {
		ints[i], _ = strconv.ParseInt(v, 0, 64)
	}

	var args []uint64
	switch call {
	case syscalls.SysOpen:
		if len(values[0]) >= syscalls.PathMax {
			return "", errors.NameTooLong(errors.OpOpen, syscalls.PathMax)
		}
		if err := mem.WriteString(pathAddr, values[0]); err != nil {
			return "", err
		}
		flags, err := parseFlags(values[1])
		if err != nil {
			return "", err
		}
		mode, _ := strconv.ParseUint(values[2], 8, 32)
		args = []uint64{pathAddr, uint64(flags), mode}
	case syscalls.SysRead:
		n := ints[1]
		if n < 0 || n > bufSize {
			n = bufSize
		}
		args = []uint64{uint64(uint32(ints[0])), bufAddr, uint64(n)}
	case syscalls.SysWrite:
		data := []byte(values[1])
		if len(data) > bufSize {
			data = data[:bufSize]
		}
		if err := mem.Write(bufAddr, data); err != nil {
			return "", err
		}
		args = []uint64{uint64(uint32(ints[0])), bufAddr, uint64(len(data))}
	case syscalls.SysLseek:
		whence, err := parseWhence(values[2])
		if err != nil {
			return "", err
		}
		args = []uint64{uint64(uint32(ints[0])), uint64(ints[1]), uint64(whence)}
	default:
		for _, v := range ints {
			args = append(args, uint64(uint32(v)))
		}
	}

	r := c.Invoke(ctx, call, args...)
	if r < 0 {
		return fmt.Sprintf("%s = %d (%s)", call, r, errors.Errno(-r)), nil
	}

	if call == syscalls.SysRead && r > 0 {
		data, err := mem.Read(bufAddr, uint32(r))
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s = %d\n%q", call, r, data), nil
	}
	return fmt.Sprintf("%s = %d", call, r), nil
}

func parseFlags(s string) (int, error) {
	if s == "" {
		return vfs.O_RDONLY, nil
	}
	if n, err := strconv.ParseInt(s, 0, 32); err == nil {
		return int(n), nil
	}

	flags := vfs.O_RDONLY
	for _, f := range strings.Fields(strings.ReplaceAll(s, "|", " ")) {
		switch f {
		case "r":
			flags = flags&^vfs.O_ACCMODE | vfs.O_RDONLY
		case "w":
			flags = flags&^vfs.O_ACCMODE | vfs.O_WRONLY
		case "rw":
			flags = flags&^vfs.O_ACCMODE | vfs.O_RDWR
		case "c":
			flags |= vfs.O_CREAT
		case "x":
			flags |= vfs.O_EXCL
		case "t":
			flags |= vfs.O_TRUNC
		case "a":
			flags |= vfs.O_APPEND
		default:
			return 0, errors.InvalidArgument(errors.OpOpen, "unknown flag %q", f)
		}
	}
	return flags, nil
}

func parseWhence(s string) (int, error) {
	switch strings.ToLower(s) {
	case "", "set":
		return vfs.SEEK_SET, nil
	case "cur":
		return vfs.SEEK_CUR, nil
	case "end":
		return vfs.SEEK_END, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.InvalidArgument(errors.OpLseek, "unknown whence %q", s)
	}
	return n, nil
}

func (m *interactiveModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Syscall Console"))
	b.WriteString(fmt.Sprintf(" pid %d on %s", m.process.PID(), m.root))
	b.WriteString("\n\n")

	switch m.state {
	case stateSelectCall:
		b.WriteString("Select a system call:\n\n")
		for i, c := range consoleCalls {
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> " + formatCall(c)))
			} else {
				b.WriteString("  " + formatCall(c))
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter call • q quit"))

	case stateInputArgs:
		c := consoleCalls[m.selected]
		b.WriteString(fmt.Sprintf("Calling %s\n\n", funcStyle.Render(c.call.String())))
		for i, input := range m.inputs {
			b.WriteString(input.View())
			b.WriteString(" ")
			b.WriteString(typeStyle.Render(c.params[i].hint))
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("tab next field • enter call • esc back"))

	case stateShowResult:
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		} else {
			b.WriteString(resultStyle.Render(m.result))
		}
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter continue • q quit"))
	}

	b.WriteString("\n\n")
	b.WriteString(tableStyle.Render(renderTable(m.process.Files())))

	if m.console.Len() > 0 {
		b.WriteString("\n\nconsole:\n")
		b.WriteString(lastLines(m.console.String(), 5))
	}
	return b.String()
}

func formatCall(c callInfo) string {
	var params []string
	for _, p := range c.params {
		params = append(params, p.name)
	}
	return funcStyle.Render(c.call.String()) + "(" + strings.Join(params, ", ") + ")"
}

// renderTable lists the bound descriptors with their cursor and the size of
// the backing resource.
func renderTable(t *resource.Table) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-3s %-20s %-3s %10s %4s %10s\n", "fd", "path", "mod", "offset", "refs", "size")

	t.Each(func(fd int, h *resource.Handle) bool {
		size := "-"
		if st, err := h.Vnode().Stat(); err == nil && !st.IsDevice() {
			size = humanize.IBytes(uint64(st.Size))
		}
		fmt.Fprintf(&b, "%-3d %-20s %-3s %10s %4d %10s\n",
			fd, truncate(h.Path(), 20), h.Mode(), humanize.Comma(h.Offset()), h.Refcount(), size)
		return true
	})

	fmt.Fprintf(&b, "%d of %d descriptors in use", t.Len(), t.Cap())
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return "…" + s[len(s)-n+1:]
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}

func runInteractive(cfg config.Config, log *zap.Logger) error {
	m, err := newInteractiveModel(cfg, log)
	if err != nil {
		return err
	}
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err = p.Run()
	return err
}
