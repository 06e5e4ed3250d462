package bytecode

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/silklang/moth/pkg/value"
)

func buildSampleProgram() *Program {
	p := NewProgram()
	p.AddConstant(value.Void)
	p.AddConstant(value.Bool(true))
	p.AddConstant(value.Int(-42))
	p.AddConstant(value.Real(3.5))
	p.AddConstant(value.Char('z'))
	p.AddConstant(value.Str(p.AddString("hello, moth")))
	p.InternSymbol("x")
	p.InternSymbol("main")
	p.Emit(VAL, 0)
	p.Emit(SYM, 1)
	p.Emit(ADD, 0)
	p.Emit(FIN, 0)
	return p
}

// snapshot captures the externally observable shape of a Program as
// plain comparable data, since value.Value carries unexported fields
// that go-cmp cannot diff directly.
type snapshot struct {
	Constants []string
	Symbols   []string
	Code      []byte
}

func snapshotOf(p *Program) snapshot {
	s := snapshot{Code: append([]byte(nil), p.Code...)}
	for _, c := range p.Constants {
		s.Constants = append(s.Constants, c.Kind().String()+":"+c.String())
	}
	for _, n := range p.SymbolNames {
		s.Symbols = append(s.Symbols, *n)
	}
	return s
}

func TestWriteReadRoundTrip(t *testing.T) {
	want := buildSampleProgram()

	var buf bytes.Buffer
	if err := WriteFile(want, &buf); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	got, err := ReadFile(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	if diff := cmp.Diff(snapshotOf(want), snapshotOf(got)); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestReadFileRejectsBadMagic(t *testing.T) {
	p := buildSampleProgram()
	var buf bytes.Buffer
	if err := WriteFile(p, &buf); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	corrupted := buf.Bytes()
	corrupted[0] ^= 0xFF
	if _, err := ReadFile(bytes.NewReader(corrupted)); err != ErrBadMagic {
		t.Fatalf("ReadFile with corrupted magic = %v, want ErrBadMagic", err)
	}
}

func TestReadFileRejectsBadVersion(t *testing.T) {
	p := buildSampleProgram()
	var buf bytes.Buffer
	if err := WriteFile(p, &buf); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	corrupted := buf.Bytes()
	corrupted[4] ^= 0xFF
	if _, err := ReadFile(bytes.NewReader(corrupted)); err != ErrBadVersion {
		t.Fatalf("ReadFile with corrupted version = %v, want ErrBadVersion", err)
	}
}

// TestSingleBitFlipFailsChecksum is scenario S6/S7: flipping any one bit
// in the body must be caught by the CRC32 check rather than silently
// decoding garbage.
func TestSingleBitFlipFailsChecksum(t *testing.T) {
	p := buildSampleProgram()
	var buf bytes.Buffer
	if err := WriteFile(p, &buf); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	original := buf.Bytes()
	if len(original) <= headerSize {
		t.Fatalf("sample program body must be non-empty")
	}

	// Flip one bit partway into the body, leaving magic/version intact.
	corrupted := append([]byte(nil), original...)
	flipAt := headerSize + 1
	corrupted[flipAt] ^= 0x01

	if _, err := ReadFile(bytes.NewReader(corrupted)); err != ErrBadChecksum {
		t.Fatalf("ReadFile with flipped bit = %v, want ErrBadChecksum", err)
	}
}

func TestReadFileRejectsTruncatedHeader(t *testing.T) {
	if _, err := ReadFile(bytes.NewReader([]byte{'M', 'V', 'M'})); err != ErrTruncated {
		t.Fatalf("ReadFile on truncated header = %v, want ErrTruncated", err)
	}
}
