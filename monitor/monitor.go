/*
 * rv64sim - Interactive monitor.
 *
 * Copyright 2024, Richard Cornwell
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

package monitor

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/peterh/liner"

	"rv64sim/addr"
	"rv64sim/cpu"
)

type cmdLine struct {
	line string
	pos  int
}

func (c *cmdLine) getWord() string {
	for c.pos < len(c.line) && c.line[c.pos] == ' ' {
		c.pos++
	}
	start := c.pos
	for c.pos < len(c.line) && c.line[c.pos] != ' ' {
		c.pos++
	}
	return c.line[start:c.pos]
}

type command struct {
	name    string
	min     int
	process func(*Monitor, *cmdLine) (quit bool, err error)
}

var commands = []command{
	{name: "si", min: 2, process: (*Monitor).cmdStep},
	{name: "info", min: 1, process: (*Monitor).cmdInfo},
	{name: "x", min: 1, process: (*Monitor).cmdExamine},
	{name: "break", min: 1, process: (*Monitor).cmdBreak},
	{name: "continue", min: 1, process: (*Monitor).cmdContinue},
	{name: "quit", min: 1, process: (*Monitor).cmdQuit},
}

func match(word string) []command {
	var out []command
	for _, c := range commands {
		if len(word) >= c.min && strings.HasPrefix(c.name, word) {
			out = append(out, c)
		}
	}
	return out
}

// Monitor drives a CPU under interactive control: single-step, register
// and memory dump, and a software watchpoint distinct from the ebreak halt
// convention (the halt convention is a CPU state transition; a watchpoint
// here is a monitor-only predicate checked between instructions).
type Monitor struct {
	c          *cpu.CPU
	watchAddr  addr.VAddr
	watchValid bool
}

// New creates a Monitor driving c.
func New(c *cpu.CPU) *Monitor {
	return &Monitor{c: c}
}

// SetBreakpoint installs a software watchpoint at address a: execution stops
// when the PC reaches a. It is checked between instructions by Step and the
// continue command and does not alter CPU.ExecOnce semantics.
func (m *Monitor) SetBreakpoint(a addr.VAddr) {
	m.watchAddr = a
	m.watchValid = true
}

// ClearBreakpoint removes any installed watchpoint.
func (m *Monitor) ClearBreakpoint() {
	m.watchValid = false
}

// Step retires n instructions or stops early on a state change or a hit
// watchpoint.
func (m *Monitor) Step(n int) error {
	for i := 0; i < n; i++ {
		if m.c.State() != cpu.Running {
			return nil
		}
		if m.watchValid && m.c.PC() == m.watchAddr {
			return nil
		}
		if err := m.c.ExecOnce(); err != nil {
			return err
		}
	}
	return nil
}

// PrintRegs renders all 32 general registers plus PC, one per line.
func (m *Monitor) PrintRegs() string {
	var b strings.Builder
	regs := m.c.DumpRegisters()
	for i := 0; i < 32; i++ {
		fmt.Fprintf(&b, "x%-2d = %#018x\n", i, regs[fmt.Sprintf("x%d", i)])
	}
	fmt.Fprintf(&b, "pc  = %#018x\n", regs["pc"])
	return b.String()
}

// ReadMem reads n bytes of memory starting at a through the CPU's MMU view,
// for monitor display purposes only; it does not affect architectural state.
func (m *Monitor) ReadMem(a addr.VAddr, n int) ([]byte, error) {
	out := make([]byte, 0, n)
	for i := 0; i < n; i++ {
		b, err := m.c.ReadByte(a.Add(uint64(i)))
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

// Run starts a liner-driven REPL over the monitor. It returns when the
// user quits or aborts the prompt (Ctrl-D).
func Run(m *Monitor) {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	for {
		input, err := line.Prompt("rv64sim> ")
		if err == nil {
			line.AppendHistory(input)
			quit, perr := process(m, input)
			if perr != nil {
				fmt.Println("Error: " + perr.Error())
			}
			if quit {
				return
			}
			continue
		}
		if errors.Is(err, liner.ErrPromptAborted) {
			return
		}
		return
	}
}

func process(m *Monitor, line string) (bool, error) {
	cl := &cmdLine{line: line}
	word := cl.getWord()
	if word == "" {
		return false, nil
	}
	matches := match(word)
	if len(matches) == 0 {
		return false, fmt.Errorf("command not found: %s", word)
	}
	if len(matches) > 1 {
		return false, fmt.Errorf("ambiguous command: %s", word)
	}
	return matches[0].process(m, cl)
}

func (m *Monitor) cmdStep(cl *cmdLine) (bool, error) {
	n := 1
	if w := cl.getWord(); w != "" {
		v, err := strconv.Atoi(w)
		if err != nil {
			return false, fmt.Errorf("invalid step count: %s", w)
		}
		n = v
	}
	return false, m.Step(n)
}

func (m *Monitor) cmdInfo(cl *cmdLine) (bool, error) {
	w := cl.getWord()
	if w != "" && !strings.HasPrefix("registers", w) {
		return false, fmt.Errorf("unknown info subcommand: %s", w)
	}
	fmt.Print(m.PrintRegs())
	return false, nil
}

func (m *Monitor) cmdExamine(cl *cmdLine) (bool, error) {
	w := cl.getWord()
	a, err := parseAddr(w)
	if err != nil {
		return false, err
	}
	v, err := m.c.ReadWord(a)
	if err != nil {
		return false, err
	}
	fmt.Printf("%s: %#010x\n", a, v)
	return false, nil
}

func (m *Monitor) cmdBreak(cl *cmdLine) (bool, error) {
	w := cl.getWord()
	a, err := parseAddr(w)
	if err != nil {
		return false, err
	}
	m.SetBreakpoint(a)
	return false, nil
}

func (m *Monitor) cmdContinue(cl *cmdLine) (bool, error) {
	for m.c.State() == cpu.Running {
		if err := m.Step(1); err != nil {
			return false, err
		}
		if !m.watchValid {
			continue
		}
		if m.c.PC() == m.watchAddr {
			break
		}
	}
	return false, nil
}

func (m *Monitor) cmdQuit(cl *cmdLine) (bool, error) {
	return true, nil
}

func parseAddr(w string) (addr.VAddr, error) {
	w = strings.TrimPrefix(w, "0x")
	v, err := strconv.ParseUint(w, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid address: %s", w)
	}
	return addr.VAddr(v), nil
}
