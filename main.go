// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

// Command sim8086 decodes 8086 machine code into
// assembly that NASM can reassemble.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sort"

	"firefly-os.dev/tools/sim8086/cmd/decode"
	"firefly-os.dev/tools/sim8086/cmd/table"
)

func init() {
	log.SetFlags(0)
	log.SetOutput(os.Stderr)
	log.SetPrefix("")
}

// Command is a subcommand of sim8086.
type Command struct {
	Name        string
	Description string
	Func        func(ctx context.Context, w io.Writer, args []string) error
}

var (
	commands = make(map[string]*Command)

	program = filepath.Base(os.Args[0])
)

// RegisterCommand adds a subcommand. Each
// name can only be registered once.
func RegisterCommand(name, description string, fun func(ctx context.Context, w io.Writer, args []string) error) {
	if commands[name] != nil {
		panic("command " + name + " already registered")
	}

	if fun == nil {
		panic("command " + name + " registered with nil implementation")
	}

	commands[name] = &Command{Name: name, Description: description, Func: fun}
}

func init() {
	RegisterCommand("decode", "Disassemble files of 8086 machine code", decode.Main)
	RegisterCommand("table", "List the instruction encodings the decoder recognises", table.Main)
}

// usage prints the available commands
// and exits.
func usage() {
	names := make([]string, 0, len(commands))
	width := 0
	for name := range commands {
		names = append(names, name)
		width = max(width, len(name))
	}

	sort.Strings(names)

	w := os.Stderr
	fmt.Fprintf(w, "%s disassembles a subset of 8086 machine code.\n\n", program)
	fmt.Fprintf(w, "Usage:\n  %s COMMAND [OPTIONS] FILE...\n\n", program)
	fmt.Fprintf(w, "Commands:\n")
	for _, name := range names {
		fmt.Fprintf(w, "  %-*s  %s\n", width, name, commands[name].Description)
	}

	fmt.Fprintf(w, "\nRun '%s COMMAND -h' for the options of each command.\n", program)
	os.Exit(2)
}

func main() {
	var help bool
	flag.BoolVar(&help, "h", false, "Show this message and exit.")
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if help || len(args) == 0 {
		usage()
	}

	cmd, ok := commands[args[0]]
	if !ok {
		log.Printf("Unknown command %q.", args[0])
		usage()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	log.SetPrefix(cmd.Name + ": ")
	err := cmd.Func(ctx, os.Stdout, args[1:])
	if err != nil {
		stop()
		log.Fatal(err)
	}
}
