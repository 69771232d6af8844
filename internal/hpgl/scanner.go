package hpgl

import (
	"bufio"
	"io"
	"strconv"
	"strings"
)

// defaultTerminator is the power-on label terminator (ETX).
const defaultTerminator = '\x03'

// Scanner splits a raw HPGL byte stream into instructions. Instructions
// end at a semicolon or, implicitly, at the first letter of the next
// mnemonic; whitespace between tokens is insignificant. A missing
// trailing semicolon at end of stream completes the final instruction.
//
// The scanner owns the label terminator: LB and BL bodies are read
// verbatim up to the terminator byte, DT redefines it and IN restores
// the ETX default. This mirrors the special-terminator handling a real
// plotter's front end performs before command dispatch.
type Scanner struct {
	r    *bufio.Reader
	term byte
}

// NewScanner returns a Scanner reading from r.
func NewScanner(r io.Reader) *Scanner {
	return &Scanner{
		r:    bufio.NewReader(r),
		term: defaultTerminator,
	}
}

// Next returns the next instruction in the stream. It returns io.EOF at
// a clean end of stream. A *CommandError with kind ErrMalformed is
// returned when the stream cannot be tokenized at the current point;
// the scanner has already resynchronized past the next semicolon and
// the caller may keep calling Next. Any other error comes from the
// underlying reader and is fatal.
func (s *Scanner) Next() (Instruction, error) {
	if err := s.skipFiller(); err != nil {
		return Instruction{}, err
	}

	b0, err := s.r.ReadByte()
	if err != nil {
		return Instruction{}, err
	}
	if !isLetter(b0) {
		detail := s.resync()
		return Instruction{}, cmdErrorf(ErrMalformed, string(b0), "command must start with a letter%s", detail)
	}
	b1, err := s.r.ReadByte()
	if err == io.EOF {
		// A lone trailing letter cannot form a mnemonic.
		return Instruction{}, cmdErrorf(ErrMalformed, string(b0), "truncated mnemonic at end of stream")
	}
	if err != nil {
		return Instruction{}, err
	}
	if !isLetter(b1) {
		detail := s.resync()
		return Instruction{}, cmdErrorf(ErrMalformed, string([]byte{b0, b1}), "mnemonic must be two letters%s", detail)
	}

	mnemonic := strings.ToUpper(string([]byte{b0, b1}))
	inst := Instruction{
		Op:       LookupOpcode(mnemonic),
		Mnemonic: mnemonic,
	}

	if inst.Op == OpIN {
		s.term = defaultTerminator
	}
	if inst.Op.takesText() {
		return s.scanLabel(inst)
	}
	if inst.Op == OpDT {
		return s.scanTerminator(inst)
	}
	return s.scanArgs(inst)
}

// skipFiller consumes whitespace, stray semicolons and NUL bytes
// between instructions. NULs show up on noisy serial links and are
// never meaningful in HPGL.
func (s *Scanner) skipFiller() error {
	for {
		b, err := s.r.ReadByte()
		if err != nil {
			return err
		}
		switch b {
		case ' ', '\t', '\r', '\n', ';', 0:
			continue
		default:
			return s.r.UnreadByte()
		}
	}
}

// scanArgs reads the comma/space separated numeric parameter list. The
// list ends at a semicolon (consumed), at a letter (left in the stream,
// it starts the next mnemonic) or at end of stream.
func (s *Scanner) scanArgs(inst Instruction) (Instruction, error) {
	for {
		b, err := s.r.ReadByte()
		if err == io.EOF {
			return inst, nil
		}
		if err != nil {
			return Instruction{}, err
		}
		switch {
		case b == ';':
			return inst, nil
		case isLetter(b):
			s.r.UnreadByte()
			return inst, nil
		case b == ',' || b == ' ' || b == '\t' || b == '\r' || b == '\n' || b == 0:
			continue
		case b == '+' || b == '-' || b == '.' || isDigit(b):
			s.r.UnreadByte()
			v, err := s.scanNumber(inst.Mnemonic)
			if err != nil {
				return Instruction{}, err
			}
			inst.Args = append(inst.Args, v)
		default:
			detail := s.resync()
			return Instruction{}, cmdErrorf(ErrMalformed, inst.Mnemonic, "unexpected byte %q in parameter list%s", b, detail)
		}
	}
}

// scanNumber reads one signed integer or decimal parameter.
func (s *Scanner) scanNumber(mnemonic string) (float64, error) {
	var tok []byte
	for {
		b, err := s.r.ReadByte()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, err
		}
		if b == '+' || b == '-' || b == '.' || isDigit(b) {
			tok = append(tok, b)
			continue
		}
		s.r.UnreadByte()
		break
	}
	v, err := strconv.ParseFloat(string(tok), 64)
	if err != nil {
		detail := s.resync()
		return 0, cmdErrorf(ErrMalformed, mnemonic, "bad number %q%s", tok, detail)
	}
	return v, nil
}

// scanLabel reads LB/BL text up to the current label terminator. The
// terminator is consumed and not part of the text. End of stream
// completes the label implicitly.
func (s *Scanner) scanLabel(inst Instruction) (Instruction, error) {
	var text []byte
	for {
		b, err := s.r.ReadByte()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Instruction{}, err
		}
		if b == s.term {
			break
		}
		text = append(text, b)
	}
	inst.Text = string(text)
	return inst, nil
}

// scanTerminator handles DT: the byte immediately after the mnemonic
// becomes the new label terminator. DT with no operand restores ETX.
func (s *Scanner) scanTerminator(inst Instruction) (Instruction, error) {
	b, err := s.r.ReadByte()
	if err == io.EOF {
		s.term = defaultTerminator
		return inst, nil
	}
	if err != nil {
		return Instruction{}, err
	}
	if b == ';' || isLetter(b) {
		if isLetter(b) {
			s.r.UnreadByte()
		}
		s.term = defaultTerminator
		return inst, nil
	}
	s.term = b
	inst.Text = string(b)
	// A semicolon after the terminator byte belongs to this command.
	if nxt, err := s.r.ReadByte(); err == nil && nxt != ';' {
		s.r.UnreadByte()
	}
	return inst, nil
}

// resync discards input up to and including the next semicolon so the
// stream can continue after a malformed instruction. It returns a
// detail suffix describing how much was skipped.
func (s *Scanner) resync() string {
	skipped := 0
	for {
		b, err := s.r.ReadByte()
		if err != nil || b == ';' {
			break
		}
		skipped++
	}
	if skipped == 0 {
		return ""
	}
	return " (skipped " + strconv.Itoa(skipped) + " bytes)"
}

func isLetter(b byte) bool {
	return (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z')
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
