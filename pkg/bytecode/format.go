// File format per spec §6: a 24-byte header (magic, version, pool
// counts, instruction length, CRC32 checksum) followed by the constant
// pool, the symbol pool, and the instruction bytes. All multi-byte
// integers are little-endian.
package bytecode

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"io"
	"math"
	"os"

	"github.com/edsrzf/mmap-go"
	"github.com/pkg/errors"

	"github.com/silklang/moth/pkg/value"
)

// Magic is the 4-byte file signature, "MVM\0".
var Magic = [4]byte{'M', 'V', 'M', 0}

// FormatVersion is the current .moth file format version.
const FormatVersion uint32 = 1

const headerSize = 24

// Constant type tags for the on-disk encoding (spec §6). Object
// constants are not permitted, matching invariant: only the value types
// listed here ever reach the constant pool.
const (
	ctVoid byte = iota
	ctBool
	ctInt
	ctReal
	ctChar
	ctStr
)

// ErrBadMagic, ErrBadVersion, ErrBadChecksum, and ErrTruncated are the
// four failure reasons ReadFile reports, per spec §6.
var (
	ErrBadMagic    = errors.New("bad magic")
	ErrBadVersion  = errors.New("bad version")
	ErrBadChecksum = errors.New("bad checksum")
	ErrTruncated   = errors.New("truncated")
)

// WriteFile computes the checksum and writes the file-format layout of
// §6 to w.
func WriteFile(p *Program, w io.Writer) error {
	var body bytes.Buffer
	if err := writeConstants(&body, p.Constants); err != nil {
		return errors.Wrap(err, "write constants")
	}
	if err := writeSymbols(&body, p.SymbolNames); err != nil {
		return errors.Wrap(err, "write symbols")
	}
	body.Write(p.Code)

	var header [headerSize]byte
	copy(header[0:4], Magic[:])
	binary.LittleEndian.PutUint32(header[4:8], FormatVersion)
	binary.LittleEndian.PutUint32(header[8:12], uint32(len(p.Constants)))
	binary.LittleEndian.PutUint32(header[12:16], uint32(len(p.SymbolNames)))
	binary.LittleEndian.PutUint32(header[16:20], uint32(len(p.Code)))
	binary.LittleEndian.PutUint32(header[20:24], crc32.ChecksumIEEE(body.Bytes()))

	if _, err := w.Write(header[:]); err != nil {
		return errors.Wrap(err, "write header")
	}
	if _, err := w.Write(body.Bytes()); err != nil {
		return errors.Wrap(err, "write body")
	}
	return nil
}

// ReadFile validates the header and decodes a Program from r.
func ReadFile(r io.Reader) (*Program, error) {
	var header [headerSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if err == io.ErrUnexpectedEOF || err == io.EOF {
			return nil, ErrTruncated
		}
		return nil, errors.Wrap(err, "read header")
	}
	if !bytes.Equal(header[0:4], Magic[:]) {
		return nil, ErrBadMagic
	}
	version := binary.LittleEndian.Uint32(header[4:8])
	if version != FormatVersion {
		return nil, ErrBadVersion
	}
	constCount := binary.LittleEndian.Uint32(header[8:12])
	symCount := binary.LittleEndian.Uint32(header[12:16])
	codeLen := binary.LittleEndian.Uint32(header[16:20])
	wantCRC := binary.LittleEndian.Uint32(header[20:24])

	body, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "read body")
	}
	if crc32.ChecksumIEEE(body) != wantCRC {
		return nil, ErrBadChecksum
	}

	buf := bytes.NewReader(body)
	p := NewProgram()
	if err := readConstants(buf, p, int(constCount)); err != nil {
		if err == io.ErrUnexpectedEOF || err == io.EOF {
			return nil, ErrTruncated
		}
		return nil, errors.Wrap(err, "read constants")
	}
	if err := readSymbols(buf, p, int(symCount)); err != nil {
		if err == io.ErrUnexpectedEOF || err == io.EOF {
			return nil, ErrTruncated
		}
		return nil, errors.Wrap(err, "read symbols")
	}
	code := make([]byte, codeLen)
	if _, err := io.ReadFull(buf, code); err != nil {
		return nil, ErrTruncated
	}
	p.Code = code
	return p, nil
}

func writeConstants(w io.Writer, constants []value.Value) error {
	for _, c := range constants {
		switch c.Kind() {
		case value.KindVoid:
			if _, err := w.Write([]byte{ctVoid}); err != nil {
				return err
			}
		case value.KindBool:
			b := byte(0)
			if c.AsBool() {
				b = 1
			}
			if _, err := w.Write([]byte{ctBool, b}); err != nil {
				return err
			}
		case value.KindInt:
			var buf [9]byte
			buf[0] = ctInt
			binary.LittleEndian.PutUint64(buf[1:], uint64(c.AsInt()))
			if _, err := w.Write(buf[:]); err != nil {
				return err
			}
		case value.KindReal:
			var buf [9]byte
			buf[0] = ctReal
			binary.LittleEndian.PutUint64(buf[1:], math.Float64bits(c.AsReal()))
			if _, err := w.Write(buf[:]); err != nil {
				return err
			}
		case value.KindChar:
			var buf [5]byte
			buf[0] = ctChar
			binary.LittleEndian.PutUint32(buf[1:], uint32(c.AsChar()))
			if _, err := w.Write(buf[:]); err != nil {
				return err
			}
		case value.KindStr:
			s := *c.AsStr()
			if _, err := w.Write([]byte{ctStr}); err != nil {
				return err
			}
			var lenBuf [4]byte
			binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(s)))
			if _, err := w.Write(lenBuf[:]); err != nil {
				return err
			}
			if _, err := w.Write([]byte(s)); err != nil {
				return err
			}
			if _, err := w.Write([]byte{0}); err != nil {
				return err
			}
		default:
			return errors.Errorf("object constants are not permitted (kind %v)", c.Kind())
		}
	}
	return nil
}

func readConstants(r io.Reader, p *Program, count int) error {
	for i := 0; i < count; i++ {
		var tag [1]byte
		if _, err := io.ReadFull(r, tag[:]); err != nil {
			return err
		}
		switch tag[0] {
		case ctVoid:
			p.AddConstant(value.Void)
		case ctBool:
			var b [1]byte
			if _, err := io.ReadFull(r, b[:]); err != nil {
				return err
			}
			p.AddConstant(value.Bool(b[0] != 0))
		case ctInt:
			var buf [8]byte
			if _, err := io.ReadFull(r, buf[:]); err != nil {
				return err
			}
			p.AddConstant(value.Int(int64(binary.LittleEndian.Uint64(buf[:]))))
		case ctReal:
			var buf [8]byte
			if _, err := io.ReadFull(r, buf[:]); err != nil {
				return err
			}
			p.AddConstant(value.Real(math.Float64frombits(binary.LittleEndian.Uint64(buf[:]))))
		case ctChar:
			var buf [4]byte
			if _, err := io.ReadFull(r, buf[:]); err != nil {
				return err
			}
			p.AddConstant(value.Char(rune(binary.LittleEndian.Uint32(buf[:]))))
		case ctStr:
			var lenBuf [4]byte
			if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
				return err
			}
			n := binary.LittleEndian.Uint32(lenBuf[:])
			data := make([]byte, n+1)
			if _, err := io.ReadFull(r, data); err != nil {
				return err
			}
			s := string(data[:n])
			ptr := p.AddString(s)
			p.AddConstant(value.Str(ptr))
		default:
			return errors.Errorf("unknown constant tag 0x%02x", tag[0])
		}
	}
	return nil
}

func writeSymbols(w io.Writer, names []*string) error {
	for _, n := range names {
		s := *n
		var lenBuf [4]byte
		binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(s)))
		if _, err := w.Write(lenBuf[:]); err != nil {
			return err
		}
		if _, err := w.Write([]byte(s)); err != nil {
			return err
		}
		if _, err := w.Write([]byte{0}); err != nil {
			return err
		}
	}
	return nil
}

func readSymbols(r io.Reader, p *Program, count int) error {
	for i := 0; i < count; i++ {
		var lenBuf [4]byte
		if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
			return err
		}
		n := binary.LittleEndian.Uint32(lenBuf[:])
		data := make([]byte, n+1)
		if _, err := io.ReadFull(r, data); err != nil {
			return err
		}
		p.InternSymbol(string(data[:n]))
	}
	return nil
}

// WriteToPath writes p to a new file at path.
func WriteToPath(p *Program, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create bytecode file")
	}
	defer f.Close()
	return WriteFile(p, f)
}

// ReadFromPath reads a Program from path. Files large enough to benefit
// are read through an mmap view (mmap-go) rather than slurped into a
// heap buffer first, per SPEC_FULL's domain-stack wiring; small files
// fall back to a plain read since mapping has fixed per-call overhead.
const mmapThreshold = 64 * 1024

func ReadFromPath(path string) (*Program, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open bytecode file")
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, errors.Wrap(err, "stat bytecode file")
	}
	if info.Size() < mmapThreshold {
		return ReadFile(f)
	}

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		// Mapping can fail on filesystems that don't support it; fall
		// back to a regular read rather than treating this as fatal.
		if _, serr := f.Seek(0, io.SeekStart); serr != nil {
			return nil, errors.Wrap(serr, "seek after failed mmap")
		}
		return ReadFile(f)
	}
	defer m.Unmap()
	return ReadFile(bytes.NewReader(m))
}
