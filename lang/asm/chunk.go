package asm

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/mna/cassette/lang/heap"
)

// Chunk is the assembled, loadable unit spec.md §6.2 calls a "tape": raw
// bytecode plus every out-of-line piece of data the bytecode references by
// index rather than inline, so the code array itself stays a flat byte
// string with fixed-width instructions.
type Chunk struct {
	Code      []byte
	Constants []heap.Value
	// Symbols holds, in first-use order, the name of every symbol that
	// appears inside a Constants entry (including the entry itself, if it is
	// a KSymbol). The VM re-interns each one into its own SymbolTable at load
	// time rather than trusting the hash to already mean the same thing in a
	// different process (spec.md §3.3).
	Symbols []string
	// SourceMap and FileMap hold the raw, already-encoded §6.2 sections
	// (delta-encoded (Δline, run_length) pairs, and (symbol_idx, byte_length)
	// pairs, respectively). Neither Sequence nor Stmt currently threads a
	// token.Pos through the register-tracking compiler, so Assemble always
	// leaves these nil; a chunk round-trips with empty (but present, per the
	// wire format) source_map/file_map sections until position tracking is
	// added to the compiler. report.Print does not use these: compile-time
	// errors carry their own line/col, and runtime traces print bytecode
	// offsets.
	SourceMap []byte
	FileMap   []byte
}

const (
	tapeMagic   = "CTPE"
	tapeVersion = uint32(1)
)

// TapeExt is the file extension `-c` writes a compiled chunk under
// (spec.md §6.1).
const TapeExt = ".tape"

// LooksLikeChunk reports whether data begins with the chunk magic tag, the
// signal internal/maincmd uses to tell a pre-compiled chunk apart from
// source text without needing the file extension.
func LooksLikeChunk(data []byte) bool {
	return len(data) >= len(tapeMagic) && string(data[:len(tapeMagic)]) == tapeMagic
}

// constTag identifies how a Constants entry is encoded on disk. Only the
// kinds push() and LAMBDA's address constant can actually produce appear
// here: Int, Float, Symbol and Binary (String literals).
type constTag byte

const (
	tagInt constTag = iota
	tagFloat
	tagSymbol
	tagBinary
)

// Write serializes c as a .tape file (spec.md §6.2): a 4-byte magic, a
// 4-byte little-endian version, then the code, constants, symbols,
// source_map and file_map sections in order, each written as a little-endian u32 byte count
// followed by that many bytes.
func (c *Chunk) Write(w io.Writer, h *heap.Heap) error {
	if _, err := io.WriteString(w, tapeMagic); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, tapeVersion); err != nil {
		return err
	}
	if err := writeSection(w, c.Code); err != nil {
		return err
	}
	constBytes, err := encodeConstants(c.Constants, h)
	if err != nil {
		return err
	}
	if err := writeSection(w, constBytes); err != nil {
		return err
	}
	if err := writeSection(w, encodeSymbols(c.Symbols)); err != nil {
		return err
	}
	if err := writeSection(w, c.SourceMap); err != nil {
		return err
	}
	return writeSection(w, c.FileMap)
}

func writeSection(w io.Writer, body []byte) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(body))); err != nil {
		return err
	}
	_, err := w.Write(body)
	return err
}

func encodeConstants(consts []heap.Value, h *heap.Heap) ([]byte, error) {
	var buf bytes.Buffer
	for _, v := range consts {
		switch v.Kind() {
		case heap.KInt:
			buf.WriteByte(byte(tagInt))
			var tmp [4]byte
			binary.LittleEndian.PutUint32(tmp[:], uint32(v.AsInt()))
			buf.Write(tmp[:])
		case heap.KFloat:
			buf.WriteByte(byte(tagFloat))
			var tmp [8]byte
			binary.LittleEndian.PutUint64(tmp[:], math.Float64bits(v.AsFloat()))
			buf.Write(tmp[:])
		case heap.KSymbol:
			buf.WriteByte(byte(tagSymbol))
			var tmp [4]byte
			binary.LittleEndian.PutUint32(tmp[:], v.AsSymbolHash())
			buf.Write(tmp[:])
		case heap.KObject:
			buf.WriteByte(byte(tagBinary))
			data := h.BinaryBytes(v)
			var tmp [4]byte
			binary.LittleEndian.PutUint32(tmp[:], uint32(len(data)))
			buf.Write(tmp[:])
			buf.Write(data)
		default:
			return nil, fmt.Errorf("asm: constant of kind %s cannot be encoded in a chunk", v.Kind())
		}
	}
	return buf.Bytes(), nil
}

func encodeSymbols(names []string) []byte {
	var buf bytes.Buffer
	for _, n := range names {
		buf.WriteString(n)
		buf.WriteByte(0)
	}
	return buf.Bytes()
}

// ReadChunk parses a .tape file written by Chunk.Write, materializing every
// symbol constant's name into h's symbol table so the hashes stored in the
// constants section resolve identically to how they did at compile time (fold is a pure
// function of the name, so re-interning the same names reproduces the same
// hashes without needing to persist them).
func ReadChunk(r io.Reader, h *heap.Heap) (*Chunk, error) {
	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, err
	}
	if string(magic[:]) != tapeMagic {
		return nil, fmt.Errorf("asm: not a cassette chunk (bad magic %q)", magic)
	}
	var version uint32
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return nil, err
	}
	if version != tapeVersion {
		return nil, fmt.Errorf("asm: unsupported chunk version %d", version)
	}

	code, err := readSection(r)
	if err != nil {
		return nil, err
	}
	constBytes, err := readSection(r)
	if err != nil {
		return nil, err
	}
	symBytes, err := readSection(r)
	if err != nil {
		return nil, err
	}
	sourceMap, err := readSection(r)
	if err != nil {
		return nil, err
	}
	fileMap, err := readSection(r)
	if err != nil {
		return nil, err
	}

	symbols := decodeSymbols(symBytes)
	for _, name := range symbols {
		if _, err := h.Syms.Intern(name); err != nil {
			// a *CollisionError here means two distinct chunk symbols hash to
			// the same 20-bit slot; the load is rejected and the error
			// returned to the caller.
			return nil, err
		}
	}

	consts, err := decodeConstants(constBytes, h)
	if err != nil {
		return nil, err
	}

	return &Chunk{Code: code, Constants: consts, Symbols: symbols, SourceMap: sourceMap, FileMap: fileMap}, nil
}

func readSection(r io.Reader) ([]byte, error) {
	var size uint32
	if err := binary.Read(r, binary.LittleEndian, &size); err != nil {
		return nil, err
	}
	buf := make([]byte, size)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func decodeSymbols(b []byte) []string {
	var names []string
	start := 0
	for i, c := range b {
		if c == 0 {
			names = append(names, string(b[start:i]))
			start = i + 1
		}
	}
	return names
}

func decodeConstants(b []byte, h *heap.Heap) ([]heap.Value, error) {
	var out []heap.Value
	pos := 0
	for pos < len(b) {
		tag := constTag(b[pos])
		pos++
		switch tag {
		case tagInt:
			if pos+4 > len(b) {
				return nil, fmt.Errorf("asm: truncated int constant")
			}
			out = append(out, heap.Int(int32(binary.LittleEndian.Uint32(b[pos:]))))
			pos += 4
		case tagFloat:
			if pos+8 > len(b) {
				return nil, fmt.Errorf("asm: truncated float constant")
			}
			out = append(out, heap.Float(math.Float64frombits(binary.LittleEndian.Uint64(b[pos:]))))
			pos += 8
		case tagSymbol:
			if pos+4 > len(b) {
				return nil, fmt.Errorf("asm: truncated symbol constant")
			}
			out = append(out, heap.Symbol(binary.LittleEndian.Uint32(b[pos:])))
			pos += 4
		case tagBinary:
			if pos+4 > len(b) {
				return nil, fmt.Errorf("asm: truncated binary constant length")
			}
			n := int(binary.LittleEndian.Uint32(b[pos:]))
			pos += 4
			if pos+n > len(b) {
				return nil, fmt.Errorf("asm: truncated binary constant body")
			}
			out = append(out, h.AllocBinary(b[pos:pos+n]))
			pos += n
		default:
			return nil, fmt.Errorf("asm: unknown constant tag %d", tag)
		}
	}
	return out, nil
}
