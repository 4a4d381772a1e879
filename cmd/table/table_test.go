// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package table

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"rsc.io/diff"

	"firefly-os.dev/tools/sim8086/internal/i8086"
)

func TestTable(t *testing.T) {
	tests := []struct {
		Name string
		Args []string
		Want string
	}{
		{
			Name: "mov",
			Args: []string{"mov"},
			Want: `mov: 100010 d w | mod reg rm | disp
mov: 1100011 w | mod 000 rm | disp data
mov: 1011 w reg | data
mov: 1010000 w | addr d=1 mod=00 reg=000 rm=110
mov: 1010001 w | addr d=0 mod=00 reg=000 rm=110
`,
		},
		{
			Name: "several",
			Args: []string{"cmp", "je", "jcxz"},
			Want: `cmp: 001110 d w | mod reg rm | disp
cmp: 100000 s w | mod 111 rm | disp data
cmp: 0011110 w | data reg=000
je: 01110100 | ip-inc8
jcxz: 11100011 | ip-inc8
`,
		},
		{
			Name: "unknown",
			Args: []string{"jmp", "add"},
			Want: `jmp: no encodings found
add: 000000 d w | mod reg rm | disp
add: 100000 s w | mod 000 rm | disp data
add: 0000010 w | data reg=000
`,
		},
	}

	for _, test := range tests {
		t.Run(test.Name, func(t *testing.T) {
			var buf bytes.Buffer
			err := Main(context.Background(), &buf, test.Args)
			if err != nil {
				t.Fatalf("Main(): %v", err)
			}

			got := buf.String()
			if got != test.Want {
				t.Fatalf("Main():\n%s", diff.Format(got, test.Want))
			}
		})
	}
}

func TestTableAll(t *testing.T) {
	var buf bytes.Buffer
	err := Main(context.Background(), &buf, nil)
	if err != nil {
		t.Fatalf("Main(): %v", err)
	}

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	if len(lines) != len(i8086.Encodings) {
		t.Fatalf("Main(): got %d lines, want %d", len(lines), len(i8086.Encodings))
	}

	for i, enc := range i8086.Encodings {
		if lines[i] != enc.String() {
			t.Errorf("Main(): line %d: got %q, want %q", i, lines[i], enc.String())
		}
	}
}

func TestTableDump(t *testing.T) {
	var buf bytes.Buffer
	err := Main(context.Background(), &buf, []string{"-dump", "je"})
	if err != nil {
		t.Fatalf("Main(): %v", err)
	}

	got := buf.String()
	for _, want := range []string{"je: 01110100 | ip-inc8\n", "([]i8086.Bits)", "Width: (uint8) 8", "Value: (uint8) 116"} {
		if !strings.Contains(got, want) {
			t.Errorf("Main(): output does not contain %q:\n%s", want, got)
		}
	}
}
