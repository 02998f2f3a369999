// Package hexdump renders process memory for the verbose diagnostics
package hexdump

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"

	"mempatch/coloransi"
	"mempatch/process"
)

// Span marks length bytes starting at Offset (relative to the dumped data)
type Span struct {
	Offset int
	Length int
}

func (s Span) contains(i int) bool {
	return i >= s.Offset && i < s.Offset+s.Length
}

// HexDumpOptions defines options for customizing the hexdump output
type HexDumpOptions struct {
	// BytesPerLine defines the number of bytes to display per line
	BytesPerLine int

	// ShowASCII determines whether to show the ASCII representation
	ShowASCII bool

	// StartAddress is the address of the first byte
	StartAddress uint64

	// AddressWidth is the width of the address column in hex digits
	AddressWidth int

	// Module, when set, adds a name+offset column for addresses inside it
	Module *process.Module

	// Highlight marks the bytes of a match or a patch
	Highlight []Span

	AddressColor      coloransi.ColorCode
	HexColor          coloransi.ColorCode
	ASCIIColor        coloransi.ColorCode
	NonPrintableColor coloransi.ColorCode
	ZeroColor         coloransi.ColorCode
	HighlightColor    coloransi.ColorCode
	HighlightBgColor  coloransi.ColorCode

	// MaxLines is the maximum number of lines to show (0 for no limit)
	MaxLines int
}

// DefaultOptions returns the default hexdump options
func DefaultOptions() HexDumpOptions {
	return HexDumpOptions{
		BytesPerLine:      16,
		ShowASCII:         true,
		AddressWidth:      12,
		AddressColor:      coloransi.Cyan,
		HexColor:          coloransi.Green,
		ASCIIColor:        coloransi.White,
		NonPrintableColor: coloransi.Red,
		ZeroColor:         coloransi.BrightBlack,
		HighlightColor:    coloransi.Black,
		HighlightBgColor:  coloransi.Yellow,
	}
}

// Dump creates a hex dump of the given data with specified options
func Dump(data []byte, options HexDumpOptions) string {
	var buffer bytes.Buffer
	DumpToWriter(&buffer, data, options)
	return buffer.String()
}

// DumpToWriter writes a hex dump of the given data to the specified writer
func DumpToWriter(writer io.Writer, data []byte, options HexDumpOptions) {
	if options.BytesPerLine <= 0 {
		options.BytesPerLine = 16
	}
	if options.AddressWidth <= 0 {
		options.AddressWidth = 12
	}

	lineCount := 0
	for offset := 0; offset < len(data); offset += options.BytesPerLine {
		if options.MaxLines > 0 && lineCount >= options.MaxLines {
			fmt.Fprintf(writer, "... %d more bytes\n", len(data)-offset)
			break
		}

		end := offset + options.BytesPerLine
		if end > len(data) {
			end = len(data)
		}

		formatLine(writer, data[offset:end], offset, options)
		lineCount++
	}
}

// formatLine writes one line:
//
//	00007ff612341000  client.dll+0x1000  09 83 5a 01 00 00 3b c7 | ..Z...;. |
func formatLine(writer io.Writer, line []byte, offset int, options HexDumpOptions) {
	addr := options.StartAddress + uint64(offset)
	fmt.Fprint(writer, coloransi.Foreground(options.AddressColor,
		fmt.Sprintf("%0"+strconv.Itoa(options.AddressWidth)+"x", addr)), "  ")

	if m := options.Module; m != nil {
		pa := process.ProcessMemoryAddress(addr)
		label := ""
		if pa >= m.Base && pa < m.End() {
			label = fmt.Sprintf("%s+0x%x", m.Name, uint64(pa-m.Base))
		}
		fmt.Fprintf(writer, "%-*s  ", len(m.Name)+10, label)
	}

	hexParts := make([]string, 0, options.BytesPerLine)
	for i, b := range line {
		hexParts = append(hexParts, colorByte(fmt.Sprintf("%02x", b), b, offset+i, options, options.HexColor))
	}
	if options.BytesPerLine >= 8 && len(hexParts) > options.BytesPerLine/2 {
		mid := options.BytesPerLine / 2
		fmt.Fprint(writer, strings.Join(hexParts[:mid], " "), " | ", strings.Join(hexParts[mid:], " "))
	} else {
		fmt.Fprint(writer, strings.Join(hexParts, " "))
	}

	// Keep the ASCII column aligned on a short last line
	if missing := options.BytesPerLine - len(line); missing > 0 {
		pad := missing * 3
		if options.BytesPerLine >= 8 && len(line) <= options.BytesPerLine/2 {
			pad += 3 - 1
		}
		fmt.Fprint(writer, strings.Repeat(" ", pad))
	}

	if options.ShowASCII {
		fmt.Fprint(writer, " | ")
		for i, b := range line {
			c := "."
			color := options.NonPrintableColor
			switch {
			case b == 0:
				color = options.ZeroColor
			case b < 0x80 && unicode.IsPrint(rune(b)):
				c = string(rune(b))
				color = options.ASCIIColor
			}
			fmt.Fprint(writer, colorByte(c, b, offset+i, options, color))
		}
		fmt.Fprint(writer, strings.Repeat(" ", options.BytesPerLine-len(line)), " |")
	}

	fmt.Fprintln(writer)
}

func colorByte(text string, b byte, pos int, options HexDumpOptions, color coloransi.ColorCode) string {
	for _, s := range options.Highlight {
		if s.contains(pos) {
			return coloransi.Color(options.HighlightColor, options.HighlightBgColor, text)
		}
	}
	if b == 0 {
		color = options.ZeroColor
	}
	return coloransi.Foreground(color, text)
}

// Context reads before bytes ahead of addr and after bytes following the
// highlighted length bytes at addr, clamped to m, and dumps them.
func Context(proc process.Process, m process.Module, addr process.ProcessMemoryAddress, length, before, after int) (string, error) {
	start := addr - process.ProcessMemoryAddress(before)
	if start < m.Base || start > addr {
		start = m.Base
	}
	end := addr + process.ProcessMemoryAddress(length+after)
	if end > m.End() {
		end = m.End()
	}
	if end <= start {
		return "", fmt.Errorf("empty window at %s", addr.ToString())
	}

	data, err := proc.ReadMemory(start, process.ProcessMemorySize(end-start))
	if err != nil {
		return "", err
	}

	options := DefaultOptions()
	options.StartAddress = uint64(start)
	options.Module = &m
	options.Highlight = []Span{{Offset: int(addr - start), Length: length}}
	return Dump(data, options), nil
}

// Diff dumps before and after, both starting at addr, with the changed bytes
// highlighted in the second dump
func Diff(addr process.ProcessMemoryAddress, before, after []byte) string {
	options := DefaultOptions()
	options.StartAddress = uint64(addr)

	var b strings.Builder
	b.WriteString("before:\n")
	DumpToWriter(&b, before, options)

	for i := range after {
		if i >= len(before) || before[i] != after[i] {
			options.Highlight = append(options.Highlight, Span{Offset: i, Length: 1})
		}
	}
	b.WriteString("after:\n")
	DumpToWriter(&b, after, options)
	return b.String()
}
