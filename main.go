/*
 * rv64sim - Main process.
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

// rv64sim is the thin CLI wrapper around the core packages: it wires RAM,
// the MMIO bus, the devices, the MMU, the virtual clock, and the
// interpreter, then runs batch, interactive, or difftest lockstep
// execution.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	getopt "github.com/pborman/getopt/v2"

	"rv64sim/addr"
	"rv64sim/bus"
	"rv64sim/clock"
	"rv64sim/cpu"
	"rv64sim/device"
	"rv64sim/difftest"
	"rv64sim/image"
	logging "rv64sim/internal/logging"
	"rv64sim/memory"
	"rv64sim/mmu"
	"rv64sim/monitor"
)

const (
	ramBase = addr.PAddr(0x8000_0000)
	ramSize = 0x0800_0000 // 128 MiB

	mmioStart      = addr.PAddr(0xa000_0000)
	serialOffset   = 0x3f8
	keyboardOffset = 0x60
	rtcOffset      = 0x48
	vgaCtrlOffset  = 0x100
	vgaFBOffset    = 0x100_0000

	vgaWidth  = 640
	vgaHeight = 480

	maxSteps = 1 << 30
)

func main() {
	optImage := getopt.StringLong("image", 'i', "", "Guest flat binary image")
	optDifftest := getopt.StringLong("difftest", 'd', "none", "Difftest reference: spike|qemu|none")
	optDifftestAddr := getopt.StringLong("difftest-addr", 0, "127.0.0.1:1234", "Difftest reference GDB-RSP address")
	optBatch := getopt.BoolLong("batch", 'b', "Disable the interactive monitor")
	optLogFile := getopt.StringLong("log", 'l', "", "Log file")
	optLogLevel := getopt.StringLong("log-level", 0, "info", "Log level: debug|info|warn|error")
	optHelp := getopt.BoolLong("help", 'h', "Help")
	getopt.Parse()

	if *optHelp {
		getopt.Usage()
		os.Exit(0)
	}

	level, debug := parseLevel(*optLogLevel)
	var logDest io.Writer
	if *optLogFile != "" {
		file, err := os.Create(*optLogFile)
		if err != nil {
			fmt.Fprintln(os.Stderr, "rv64sim: cannot create log file:", err)
			os.Exit(1)
		}
		logDest = file
	}
	log := logging.New(logDest, level, debug)
	slog.SetDefault(log)

	if *optImage == "" {
		log.Error("no --image given")
		os.Exit(1)
	}

	m, clk, err := newMachine(log)
	if err != nil {
		log.Error("failed building machine", "err", err)
		os.Exit(1)
	}

	data, err := image.Load(*optImage)
	if err != nil {
		log.Error("failed loading image", "path", *optImage, "err", err)
		os.Exit(1)
	}
	if err := m.LoadProgram(addr.VAddr(ramBase), data); err != nil {
		log.Error("failed copying image into RAM", "err", err)
		os.Exit(1)
	}

	c := cpu.New(m, clk, log, addr.VAddr(ramBase))

	if *optDifftest != "none" {
		os.Exit(runDifftest(c, log, *optDifftest, *optDifftestAddr, data))
	}

	if !*optBatch {
		monitor.Run(monitor.New(c))
		report(c, log)
		os.Exit(exitCode(c))
	}

	if _, err := c.Exec(maxSteps); err != nil {
		log.Error("run aborted", "err", err)
	}
	report(c, log)
	os.Exit(exitCode(c))
}

// newMachine assembles RAM, the fixed MMIO device map, the MMU, and the
// virtual clock with its three device callbacks registered.
func newMachine(log *slog.Logger) (*mmu.MMU, *clock.Clock, error) {
	ram := memory.New(ramBase, ramSize)
	b := bus.New(ram)

	sink := device.NullHostSink{}

	rtc := device.NewRTC(func() uint64 { return uint64(time.Now().UnixMicro()) })
	if err := b.Register(mmioStart.Add(rtcOffset), rtc.Len(), "rtc", rtc); err != nil {
		return nil, nil, err
	}

	serial := device.NewSerial(log, sink)
	if err := b.Register(mmioStart.Add(serialOffset), serial.Len(), "serial", serial); err != nil {
		return nil, nil, err
	}

	kbd := device.NewKeyboard(sink)
	if err := b.Register(mmioStart.Add(keyboardOffset), kbd.Len(), "keyboard", kbd); err != nil {
		return nil, nil, err
	}

	fb := device.NewVGAFramebuffer(vgaWidth, vgaHeight)
	if err := b.Register(mmioStart.Add(vgaFBOffset), fb.Len(), "vga-fb", fb); err != nil {
		return nil, nil, err
	}
	vga := device.NewVGAControl(fb, sink)
	if err := b.Register(mmioStart.Add(vgaCtrlOffset), vga.Len(), "vga-ctrl", vga); err != nil {
		return nil, nil, err
	}

	m := mmu.New(b)
	clk := clock.New()

	serialPeriod := serial.Period()
	clk.Register(serialPeriod, &serialPeriod, clock.PolicyCompensation, serial.Flush)
	kbdPeriod := kbd.Period()
	clk.Register(kbdPeriod, &kbdPeriod, clock.PolicyCompensation, kbd.Poll)
	vgaPeriod := vga.Period()
	clk.Register(vgaPeriod, &vgaPeriod, clock.PolicyCompensation, vga.Present)

	return m, clk, nil
}

// runDifftest loads the same initial state into the reference (the image
// at ramBase and the register block), then steps both machines in
// lockstep, asserting register equality after every instruction. A fresh
// CPU starts with every GPR at 0 and PC at ramBase, so the initial RegBlock
// pushed to the reference is all zero except the PC slot.
func runDifftest(c *cpu.CPU, log *slog.Logger, kind, dialAddr string, data []byte) int {
	log.Info("connecting to difftest reference", "kind", kind, "addr", dialAddr)
	conn, err := difftest.Dial(dialAddr)
	if err != nil {
		log.Error("difftest dial failed", "err", err)
		return 1
	}
	defer conn.Close()

	r := difftest.NewRunner(conn)

	if err := r.MemcpyTo(uint64(ramBase), data); err != nil {
		log.Error("difftest image copy failed", "err", err)
		return 1
	}

	var regs difftest.RegBlock
	regs[32] = uint64(c.PC())
	if err := r.SetRegs(regs); err != nil {
		log.Error("difftest initial register sync failed", "err", err)
		return 1
	}

	if err := r.Lockstep(c, maxSteps); err != nil {
		log.Error("difftest divergence", "err", err)
		return 1
	}
	report(c, log)
	return exitCode(c)
}

func report(c *cpu.CPU, log *slog.Logger) {
	switch c.State() {
	case cpu.End:
		log.Info("guest halted", "halt_pc", c.HaltPC().String(), "halt_ret", c.HaltRet())
		fmt.Println(c.HaltRet())
	case cpu.Abort:
		fmt.Fprintln(os.Stderr, "rv64sim: aborted:", c.AbortError())
		fmt.Fprintln(os.Stderr, formatRegisters(c))
	}
}

func formatRegisters(c *cpu.CPU) string {
	regs := c.DumpRegisters()
	out := ""
	for i := 0; i < 32; i++ {
		name := fmt.Sprintf("x%d", i)
		out += fmt.Sprintf("%-4s = %#018x\n", name, regs[name])
	}
	out += fmt.Sprintf("pc   = %#018x\n", regs["pc"])
	return out
}

func exitCode(c *cpu.CPU) int {
	switch c.State() {
	case cpu.End:
		return int(uint32(c.HaltRet()))
	case cpu.Abort:
		return 1
	default:
		return 0
	}
}

func parseLevel(s string) (slog.Level, bool) {
	switch s {
	case "debug":
		return slog.LevelDebug, true
	case "warn":
		return slog.LevelWarn, false
	case "error":
		return slog.LevelError, false
	default:
		return slog.LevelInfo, false
	}
}
