package pix

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"testing"
)

func mustParse(t *testing.T, csv string) Image {
	t.Helper()
	img, err := ParseCSV([]byte(csv))
	if err != nil {
		t.Fatalf("ParseCSV() error = %v", err)
	}
	return img
}

func TestCompile_SingleOpaquePixel(t *testing.T) {
	// 2x1 grid with one opaque and one transparent cell at offset (10,20)
	// compiles to exactly one command line.
	set, err := Compile(mustParse(t, "ff0000,000000\n"), 10, 20)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if set.Pixels() != 1 {
		t.Fatalf("Pixels() = %d, want 1", set.Pixels())
	}
	got := string(set.Blob())
	if got != "PX 10 20 ff0000\n" {
		t.Errorf("Blob() = %q, want %q", got, "PX 10 20 ff0000\n")
	}
	if set.ByteLen() != len("PX 10 20 ff0000\n") {
		t.Errorf("ByteLen() = %d, want %d", set.ByteLen(), len("PX 10 20 ff0000\n"))
	}
}

func TestCompile_AllTransparent(t *testing.T) {
	set, err := Compile(mustParse(t, "000000,000000\n000000,000000\n"), 0, 0)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if set.Pixels() != 0 {
		t.Errorf("Pixels() = %d, want 0", set.Pixels())
	}
	if set.ByteLen() != 0 {
		t.Errorf("ByteLen() = %d, want 0", set.ByteLen())
	}
	if len(set.Blob()) != 0 {
		t.Errorf("Blob() length = %d, want 0", len(set.Blob()))
	}
}

func TestCompile_TransparentCount(t *testing.T) {
	// 3x2 grid with 2 transparent cells: command count is w*h-k at any offset.
	csv := "ff0000,000000,00ff00\n0000ff,ffffff,000000\n"
	for _, off := range [][2]int{{0, 0}, {10, 20}, {-5, 3}} {
		set, err := Compile(mustParse(t, csv), off[0], off[1])
		if err != nil {
			t.Fatalf("Compile(%v) error = %v", off, err)
		}
		if set.Pixels() != 4 {
			t.Errorf("Compile(%v) Pixels() = %d, want 4", off, set.Pixels())
		}
	}
}

func TestCompile_InvalidColor(t *testing.T) {
	tests := []struct {
		name string
		csv  string
	}{
		{"non-hex", "zz0000\n"},
		{"too short", "ff00\n"},
		{"seven chars", "ff00000\n"},
		{"empty token", ",ff0000\n"},
		{"sign prefix", "+f0000\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set, err := Compile(mustParse(t, tt.csv), 0, 0)
			if !errors.Is(err, ErrInvalidColor) {
				t.Fatalf("Compile() error = %v, want ErrInvalidColor", err)
			}
			if set != nil {
				t.Error("Compile() returned a partial set alongside the error")
			}
		})
	}
}

func TestCompile_RGBAAndCase(t *testing.T) {
	// 8-char RGBA and uppercase hex are both valid, and tokens are emitted
	// verbatim.
	set, err := Compile(mustParse(t, "ff0000ff,ABCDEF\n"), 0, 0)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	blob := string(set.Blob())
	for _, want := range []string{"PX 0 0 ff0000ff\n", "PX 1 0 ABCDEF\n"} {
		if !bytes.Contains([]byte(blob), []byte(want)) {
			t.Errorf("Blob() = %q, missing %q", blob, want)
		}
	}
}

func TestCompile_FailFast(t *testing.T) {
	// The bad cell in the middle aborts the whole build even though later
	// cells are fine.
	set, err := Compile(mustParse(t, "ff0000,bad,00ff00\n"), 0, 0)
	if !errors.Is(err, ErrInvalidColor) {
		t.Fatalf("Compile() error = %v, want ErrInvalidColor", err)
	}
	if set != nil {
		t.Error("Compile() must not return a partial set")
	}
}

func TestBlob_ShuffledMultiset(t *testing.T) {
	// A full blob cycle contains every command exactly once, shuffled.
	var csv bytes.Buffer
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			if x > 0 {
				csv.WriteByte(',')
			}
			fmt.Fprintf(&csv, "%06x", y*100+x+1)
		}
		csv.WriteByte('\n')
	}
	set, err := Compile(mustParse(t, csv.String()), 3, 7)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if set.Pixels() != 100 {
		t.Fatalf("Pixels() = %d, want 100", set.Pixels())
	}

	blob := set.Blob()
	if len(blob) != set.ByteLen() {
		t.Errorf("Blob() length = %d, want %d", len(blob), set.ByteLen())
	}
	if blob[len(blob)-1] != '\n' {
		t.Error("Blob() must end with a newline")
	}

	lines := splitLines(blob)
	if len(lines) != 100 {
		t.Fatalf("blob contains %d lines, want 100", len(lines))
	}
	want := splitLines(bytes.Join(set.cmds, nil))
	sort.Strings(lines)
	sort.Strings(want)
	for i := range want {
		if lines[i] != want[i] {
			t.Fatalf("blob multiset differs at %d: %q != %q", i, lines[i], want[i])
		}
	}

	// A second blob is an independent shuffle of the same multiset.
	if bytes.Equal(blob, set.Blob()) {
		t.Error("two Blob() calls produced the same order for 100 commands")
	}
}

func splitLines(b []byte) []string {
	var out []string
	for _, l := range bytes.Split(b, []byte{'\n'}) {
		if len(l) > 0 {
			out = append(out, string(l))
		}
	}
	return out
}
