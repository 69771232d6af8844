// Package hpgl implements an interpreter for HP-GL v1, the plotting
// command language spoken by vintage HP test and measurement
// instruments. The package splits a raw command stream into
// instructions, tracks plotter state (pen position, scaling window,
// character attributes) and emits device-independent drawing
// primitives to a Sink.
package hpgl

import (
	"strconv"
	"strings"
)

// Opcode identifies a supported two-letter HPGL instruction. Mnemonics
// outside this set still tokenize; the interpreter reports them as
// unsupported and moves on.
type Opcode uint8

const (
	OpUnknown Opcode = iota
	OpIN             // initialize
	OpDF             // restore defaults
	OpDT             // define label terminator
	OpIP             // input P1/P2 frame
	OpSC             // scale (user window)
	OpRO             // rotate coordinate system
	OpIW             // input window (soft clip)
	OpPA             // plot absolute
	OpPR             // plot relative
	OpPU             // pen up
	OpPD             // pen down
	OpSP             // select pen
	OpLT             // line type
	OpCI             // circle
	OpAA             // arc absolute
	OpPM             // polygon mode
	OpEP             // edge polygon
	OpFP             // fill polygon
	OpSI             // character size (cm)
	OpSR             // character size (relative)
	OpSU             // character size (user units)
	OpSL             // character slant
	OpDI             // character direction
	OpLB             // label
	OpBL             // buffer label
)

var opcodeByMnemonic = map[string]Opcode{
	"IN": OpIN, "DF": OpDF, "DT": OpDT,
	"IP": OpIP, "SC": OpSC, "RO": OpRO, "IW": OpIW,
	"PA": OpPA, "PR": OpPR, "PU": OpPU, "PD": OpPD,
	"SP": OpSP, "LT": OpLT,
	"CI": OpCI, "AA": OpAA,
	"PM": OpPM, "EP": OpEP, "FP": OpFP,
	"SI": OpSI, "SR": OpSR, "SU": OpSU, "SL": OpSL, "DI": OpDI,
	"LB": OpLB, "BL": OpBL,
}

// LookupOpcode maps a two-letter mnemonic to its opcode, or OpUnknown.
func LookupOpcode(mnemonic string) Opcode {
	return opcodeByMnemonic[mnemonic]
}

// takesText reports whether the instruction body is free text read up
// to the label terminator rather than a numeric parameter list.
func (o Opcode) takesText() bool {
	return o == OpLB || o == OpBL
}

// Instruction is one parsed HPGL command: a mnemonic plus its numeric
// parameters, or the label text for LB/BL. Instructions are immutable
// once parsed and are consumed exactly once by the interpreter.
type Instruction struct {
	Op       Opcode
	Mnemonic string
	Args     []float64
	Text     string
}

// String renders the instruction as canonical HPGL text: uppercase
// mnemonic, comma-separated parameters, trailing semicolon. Labels are
// terminated with ETX regardless of the terminator active when they
// were scanned.
func (i Instruction) String() string {
	var b strings.Builder
	b.WriteString(i.Mnemonic)
	switch {
	case i.Op.takesText():
		b.WriteString(i.Text)
		b.WriteByte(defaultTerminator)
	case i.Op == OpDT && i.Text != "":
		b.WriteString(i.Text)
		b.WriteByte(';')
	default:
		for j, a := range i.Args {
			if j > 0 {
				b.WriteByte(',')
			}
			b.WriteString(strconv.FormatFloat(a, 'g', -1, 64))
		}
		b.WriteByte(';')
	}
	return b.String()
}
