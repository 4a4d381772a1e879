// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

// Package decode disassembles files of 8086 machine code.
package decode

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/davecgh/go-spew/spew"
	"golang.org/x/sync/errgroup"

	"firefly-os.dev/tools/sim8086/format"
	"firefly-os.dev/tools/sim8086/internal/i8086"
)

var program = filepath.Base(os.Args[0])

// options controls how each file is
// decoded and printed.
type options struct {
	dump    bool
	json    bool
	skip    bool
	offsets bool
}

// Main decodes each file and prints the
// instructions it contains.
func Main(ctx context.Context, w io.Writer, args []string) error {
	flags := flag.NewFlagSet("decode", flag.ExitOnError)

	var help bool
	var opts options
	flags.BoolVar(&help, "h", false, "Show this message and exit.")
	flags.BoolVar(&opts.dump, "dump", false, "Print the decoded instructions as Go values.")
	flags.BoolVar(&opts.json, "json", false, "Print the decoded instructions as JSON.")
	flags.BoolVar(&opts.skip, "skip", false, "Emit unrecognised bytes as data and continue decoding.")
	flags.BoolVar(&opts.offsets, "offsets", false, "Annotate each line with its offset and machine code.")

	flags.Usage = func() {
		log.Printf("Usage:\n  %s %s [OPTIONS] FILE...\n\n", program, flags.Name())
		flags.PrintDefaults()
		os.Exit(2)
	}

	err := flags.Parse(args)
	if err != nil || help {
		flags.Usage()
	}

	filenames := flags.Args()
	if len(filenames) == 0 {
		log.Printf("Expected at least one file to decode.")
		flags.Usage()
	}

	if opts.dump && opts.json {
		return fmt.Errorf("-dump and -json cannot be used together")
	}

	// Decode the files in parallel,
	// then print them in order.
	outputs := make([]bytes.Buffer, len(filenames))
	g, ctx := errgroup.WithContext(ctx)
	for i, filename := range filenames {
		i, filename := i, filename
		g.Go(func() error {
			return decodeFile(ctx, &outputs[i], filename, opts)
		})
	}

	err = g.Wait()
	if err != nil {
		return err
	}

	for i := range outputs {
		if i > 0 {
			// Add a spacer.
			fmt.Fprintln(w)
		}

		_, err = w.Write(outputs[i].Bytes())
		if err != nil {
			return err
		}
	}

	return nil
}

// decodeFile decodes the machine code in
// the named file, writing the result to
// buf.
func decodeFile(ctx context.Context, buf *bytes.Buffer, filename string, opts options) error {
	code, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", filename, err)
	}

	name := filepath.Base(filename)
	text := !opts.dump && !opts.json
	p := format.Printer{Offsets: opts.offsets}
	if text {
		p.WriteHeader(buf, name)
	}

	var insts []*i8086.Instruction
	for offset := 0; offset < len(code); {
		err = ctx.Err()
		if err != nil {
			return err
		}

		inst, err := i8086.Decode(code, offset)
		if err != nil {
			var unrecognised *i8086.UnrecognizedOpcodeError
			if !opts.skip || !errors.As(err, &unrecognised) {
				return fmt.Errorf("failed to decode %s: %w", name, err)
			}

			log.Printf("WARN: %s: %v", name, err)
			if text {
				p.WriteData(buf, offset, code[offset:offset+1])
			}

			offset++
			continue
		}

		if text {
			p.WriteInstruction(buf, inst)
		}

		insts = append(insts, inst)
		offset += inst.Len
	}

	switch {
	case opts.dump:
		config := spew.ConfigState{
			Indent:                  "\t",
			DisablePointerAddresses: true,
			DisableCapacities:       true,
			SortKeys:                true,
		}

		fmt.Fprintf(buf, "; %s\n", name)
		for _, inst := range insts {
			config.Fdump(buf, inst)
		}
	case opts.json:
		data, err := json.MarshalIndent(insts, "", "\t")
		if err != nil {
			return fmt.Errorf("failed to marshal %s: %w", name, err)
		}

		buf.Write(data)
		buf.WriteByte('\n')
	}

	return nil
}
