package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"nanobc/vm"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run parses flags, loads the requested image, and either dumps its
// disassembly or executes it, returning the ErrorKind code the process
// should exit with. Split out from main so tests can drive it without
// touching os.Exit.
func run(args []string) int {
	fs := flag.NewFlagSet("nanobc", flag.ContinueOnError)
	filePath := fs.String("f", "", "bytecode file to load (alternative to the positional argument)")
	logPath := fs.String("l", "", "write structured logs to this file instead of stderr")
	tracePath := fs.String("trace", "", "write a per-instruction execution trace to this file")
	disasm := fs.Bool("disasm", false, "disassemble the bytecode image and exit, without executing it")
	verbose := fs.Bool("v", false, "enable debug-level logging")

	if err := fs.Parse(args); err != nil {
		return vm.InvalidOperand.Code()
	}

	path := *filePath
	switch {
	case path != "" && fs.NArg() > 0:
		fmt.Fprintln(os.Stderr, "usage: nanobc [-f file | program.nbvm] [-l logfile] [-v] [-trace tracefile] [-disasm]")
		return vm.InvalidOperand.Code()
	case path == "" && fs.NArg() == 1:
		path = fs.Arg(0)
	case path == "":
		fmt.Fprintln(os.Stderr, "usage: nanobc [-f file | program.nbvm] [-l logfile] [-v] [-trace tracefile] [-disasm]")
		return vm.InvalidOperand.Code()
	}

	logWriter := io.Writer(os.Stderr)
	if *logPath != "" {
		f, err := os.Create(*logPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "nanobc: cannot open log file: %v\n", err)
			return vm.FileRead.Code()
		}
		defer f.Close()
		logWriter = f
	}
	log := vm.NewLogger(logWriter, *verbose)

	code, entryPoint, err := vm.LoadImage(path, log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return vm.KindOf(err).Code()
	}

	if *disasm {
		if err := vm.Disassemble(code, os.Stdout); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return vm.KindOf(err).Code()
		}
		return vm.Success.Code()
	}

	machine := vm.New(log)
	if err := machine.LoadProgram(code, entryPoint); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return vm.KindOf(err).Code()
	}

	if *tracePath != "" {
		tf, err := os.Create(*tracePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "nanobc: cannot open trace file: %v\n", err)
			return vm.FileRead.Code()
		}
		defer tf.Close()
		trace := vm.NewTrace(tf)
		machine.SetTrace(trace)
		defer trace.Close()
	}

	if err := machine.Run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return vm.KindOf(err).Code()
	}

	return vm.Success.Code()
}
