package main

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"mempatch/coloransi"
	"mempatch/process_blob"
)

func init() {
	coloransi.Disabled = true
}

func target() *process_blob.ProcessDump {
	proc := process_blob.NewProcessDump(4242)
	img := process_blob.PEImage(0x2000, true)
	copy(img[0x1100:], []byte{0x09, 0x83, 0x5A, 0x01, 0x00, 0x00, 0x3B, 0xC7})
	proc.AddModule("client.dll", 0x10000000, img)
	return proc
}

func TestRunFindsMatch(t *testing.T) {
	proc := target()
	var out bytes.Buffer

	code := run([]string{"-pid", "4242", "-module", "client.dll", "-aob", "09 83 ?? ?? 00 00 ?? C7"}, &out, proc.Opener())
	if code != 0 {
		t.Fatalf("expected exit code 0 - got %d: %s", code, out.String())
	}
	if !strings.Contains(out.String(), "Found 1 matches") || !strings.Contains(out.String(), "client.dll+0x1100") {
		t.Fatalf("expected one match at client.dll+0x1100 - got %q", out.String())
	}
	if proc.Releases() != 1 {
		t.Fatalf("expected the process to be closed once - got %d", proc.Releases())
	}
}

func TestRunClosesOnError(t *testing.T) {
	proc := target()

	code := run([]string{"-pid", "4242", "-module", "server.dll", "-aob", "09 83"}, io.Discard, proc.Opener())
	if code != 1 {
		t.Fatalf("expected exit code 1 - got %d", code)
	}
	if proc.Releases() != 1 {
		t.Fatalf("expected the process to be closed after a failed lookup - got %d", proc.Releases())
	}
}

func TestRunArguments(t *testing.T) {
	proc := target()

	if code := run([]string{"-module", "client.dll", "-aob", "90"}, io.Discard, proc.Opener()); code != 1 {
		t.Fatalf("expected a missing pid to fail - got %d", code)
	}
	if code := run([]string{"-pid", "4242", "-module", "client.dll", "-aob", "zz"}, io.Discard, proc.Opener()); code != 1 {
		t.Fatalf("expected a bad pattern to fail - got %d", code)
	}
	if code := run([]string{"-pid", "1", "-module", "client.dll", "-aob", "90"}, io.Discard, proc.Opener()); code != 1 {
		t.Fatalf("expected an unknown pid to fail - got %d", code)
	}
	if code := run([]string{"-bogus"}, io.Discard, proc.Opener()); code != 2 {
		t.Fatalf("expected an unknown flag to fail with 2 - got %d", code)
	}
	if proc.Releases() != 0 {
		t.Fatalf("expected no attach on argument errors - got %d releases", proc.Releases())
	}
}
