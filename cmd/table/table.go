// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

// Package table prints the decoder's understanding of the
// 8086 instruction set.
package table

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/davecgh/go-spew/spew"

	"firefly-os.dev/tools/sim8086/internal/i8086"
)

var program = filepath.Base(os.Args[0])

// Main prints the encodings for the given
// instruction mnemonics, or all encodings
// if none are given.
func Main(ctx context.Context, w io.Writer, args []string) error {
	flags := flag.NewFlagSet("table", flag.ExitOnError)

	var help, dump bool
	flags.BoolVar(&help, "h", false, "Show this message and exit.")
	flags.BoolVar(&dump, "dump", false, "Print the structured encodings as Go values.")

	flags.Usage = func() {
		log.Printf("Usage:\n  %s %s [OPTIONS] [MNEMONIC...]\n\n", program, flags.Name())
		flags.PrintDefaults()
		os.Exit(2)
	}

	err := flags.Parse(args)
	if err != nil || help {
		flags.Usage()
	}

	mnemonics := flags.Args()
	if len(mnemonics) == 0 {
		mnemonics = i8086.Mnemonics
	}

	config := spew.ConfigState{
		Indent:                  "\t",
		DisablePointerAddresses: true,
		DisableCapacities:       true,
		DisableMethods:          true,
	}

	var buf bytes.Buffer
	for _, mnemonic := range mnemonics {
		encodings, ok := i8086.EncodingsByMnemonic[mnemonic]
		if !ok {
			fmt.Fprintf(&buf, "%s: no encodings found\n", mnemonic)
			continue
		}

		for _, enc := range encodings {
			fmt.Fprintf(&buf, "%s\n", enc)
			if dump {
				config.Fdump(&buf, enc.Bits)
			}
		}
	}

	_, err = w.Write(buf.Bytes())
	return err
}
