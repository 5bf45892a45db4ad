package primitive

import (
	"io"
	"os"
	"strconv"

	"github.com/mna/cassette/lang/cerr"
	"github.com/mna/cassette/lang/heap"
	"github.com/mna/cassette/lang/vm"
)

// Gateway is the external device layer spec.md §6.4 places out of scope for
// the core ("I/O is delegated to the external device layer; the core only
// defines the boundary shape"): open/close/read/write/get-param/set-param
// all go through this interface rather than touching the OS directly from
// the primitive table, so a host embedding the VM (an SDL canvas, a serial
// port, a resource-fork reader - spec.md §1's own examples) can swap in its
// own Gateway without touching lang/primitive.
type Gateway interface {
	Open(path string, mode string) (handle int32, err error)
	Close(handle int32) error
	Read(handle int32, n int) ([]byte, error)
	Write(handle int32, data []byte) (n int, err error)
	GetParam(handle int32, name string) (heap.Value, error)
	SetParam(handle int32, name string, val heap.Value) error
}

// handleTagName marks a device-handle pair's tail, distinguishing it from an
// ordinary (int . nil) list cell (spec.md §6.4 "opaque integers wrapped in a
// tagged pair").
const handleTagName = "device-handle"

func wrapHandle(h *heap.Heap, id int32) heap.Value {
	sym, _ := h.Syms.Intern(handleTagName)
	return h.AllocPair(heap.Int(id), sym)
}

func unwrapHandle(h *heap.Heap, v heap.Value) (int32, bool) {
	if v.Kind() != heap.KPair || v.IsNil() {
		return 0, false
	}
	tail := h.Tail(v)
	if tail.Kind() != heap.KSymbol {
		return 0, false
	}
	name, ok := h.Syms.Name(tail.AsSymbolHash())
	if !ok || name != handleTagName {
		return 0, false
	}
	return h.Head(v).AsInt(), true
}

func (p *table) primOpen(vmach *vm.VM, argc int) {
	if !wantArgc(vmach, "open", argc, 2) {
		return
	}
	a := args(vmach, 2)
	path, mode := a[0], a[1]
	if !vmach.H.IsBinary(path) || !vmach.H.IsBinary(mode) {
		vmach.Fail(cerr.TypeError, "open: expected (binary path, binary mode)")
		vmach.Push(heap.Nil)
		return
	}
	id, err := p.gw.Open(vmach.H.GoString(path), vmach.H.GoString(mode))
	if err != nil {
		vmach.Fail(cerr.RuntimeError, "open: %s", err)
		vmach.Push(heap.Nil)
		return
	}
	vmach.Push(wrapHandle(vmach.H, id))
}

func (p *table) primClose(vmach *vm.VM, argc int) {
	if !wantArgc(vmach, "close", argc, 1) {
		return
	}
	v := args(vmach, 1)[0]
	id, ok := unwrapHandle(vmach.H, v)
	if !ok {
		vmach.Fail(cerr.TypeError, "close: expected a device handle")
		vmach.Push(heap.Nil)
		return
	}
	if err := p.gw.Close(id); err != nil {
		vmach.Fail(cerr.RuntimeError, "close: %s", err)
		vmach.Push(heap.Nil)
		return
	}
	vmach.Push(heap.Nil)
}

func (p *table) primRead(vmach *vm.VM, argc int) {
	if !wantArgc(vmach, "read", argc, 2) {
		return
	}
	a := args(vmach, 2)
	v, n := a[0], a[1]
	id, ok := unwrapHandle(vmach.H, v)
	if !ok || n.Kind() != heap.KInt {
		vmach.Fail(cerr.TypeError, "read: expected (handle, int)")
		vmach.Push(heap.Nil)
		return
	}
	data, err := p.gw.Read(id, int(n.AsInt()))
	if err != nil && err != io.EOF {
		vmach.Fail(cerr.RuntimeError, "read: %s", err)
		vmach.Push(heap.Nil)
		return
	}
	vmach.Push(vmach.H.AllocBinary(data))
}

func (p *table) primWrite(vmach *vm.VM, argc int) {
	if !wantArgc(vmach, "write", argc, 2) {
		return
	}
	a := args(vmach, 2)
	v, data := a[0], a[1]
	id, ok := unwrapHandle(vmach.H, v)
	if !ok || !vmach.H.IsBinary(data) {
		vmach.Fail(cerr.TypeError, "write: expected (handle, binary)")
		vmach.Push(heap.Nil)
		return
	}
	n, err := p.gw.Write(id, vmach.H.BinaryBytes(data))
	if err != nil {
		vmach.Fail(cerr.RuntimeError, "write: %s", err)
		vmach.Push(heap.Nil)
		return
	}
	vmach.Push(heap.Int(int32(n)))
}

func (p *table) primGetParam(vmach *vm.VM, argc int) {
	if !wantArgc(vmach, "get-param", argc, 2) {
		return
	}
	a := args(vmach, 2)
	v, name := a[0], a[1]
	id, ok := unwrapHandle(vmach.H, v)
	if !ok || !vmach.H.IsBinary(name) {
		vmach.Fail(cerr.TypeError, "get-param: expected (handle, binary name)")
		vmach.Push(heap.Nil)
		return
	}
	val, err := p.gw.GetParam(id, vmach.H.GoString(name))
	if err != nil {
		vmach.Fail(cerr.RuntimeError, "get-param: %s", err)
		vmach.Push(heap.Nil)
		return
	}
	vmach.Push(val)
}

func (p *table) primSetParam(vmach *vm.VM, argc int) {
	if !wantArgc(vmach, "set-param", argc, 3) {
		return
	}
	a := args(vmach, 3)
	v, name, val := a[0], a[1], a[2]
	id, ok := unwrapHandle(vmach.H, v)
	if !ok || !vmach.H.IsBinary(name) {
		vmach.Fail(cerr.TypeError, "set-param: expected (handle, binary name, value)")
		vmach.Push(heap.Nil)
		return
	}
	if err := p.gw.SetParam(id, vmach.H.GoString(name), val); err != nil {
		vmach.Fail(cerr.RuntimeError, "set-param: %s", err)
		vmach.Push(heap.Nil)
		return
	}
	vmach.Push(heap.Nil)
}

// OSGateway is the default Gateway: plain os.File-backed file access. It is
// the concrete device layer the CLI entry point wires in; a host embedding
// the VM for something other than file I/O (a canvas, a serial port) is
// expected to supply its own Gateway instead (see the type's doc comment).
type OSGateway struct {
	files  map[int32]*os.File
	nextID int32
}

// NewOSGateway returns an OSGateway ready to hand out file handles.
func NewOSGateway() *OSGateway {
	return &OSGateway{files: make(map[int32]*os.File)}
}

func (g *OSGateway) Open(path string, mode string) (int32, error) {
	var flag int
	switch mode {
	case "r":
		flag = os.O_RDONLY
	case "w":
		flag = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	case "a":
		flag = os.O_WRONLY | os.O_CREATE | os.O_APPEND
	default:
		flag = os.O_RDONLY
	}
	f, err := os.OpenFile(path, flag, 0o644)
	if err != nil {
		return 0, err
	}
	g.nextID++
	id := g.nextID
	g.files[id] = f
	return id, nil
}

func (g *OSGateway) Close(handle int32) error {
	f, ok := g.files[handle]
	if !ok {
		return os.ErrClosed
	}
	delete(g.files, handle)
	return f.Close()
}

func (g *OSGateway) Read(handle int32, n int) ([]byte, error) {
	f, ok := g.files[handle]
	if !ok {
		return nil, os.ErrClosed
	}
	buf := make([]byte, n)
	read, err := f.Read(buf)
	return buf[:read], err
}

func (g *OSGateway) Write(handle int32, data []byte) (int, error) {
	f, ok := g.files[handle]
	if !ok {
		return 0, os.ErrClosed
	}
	return f.Write(data)
}

func (g *OSGateway) GetParam(handle int32, name string) (heap.Value, error) {
	f, ok := g.files[handle]
	if !ok {
		return heap.Nil, os.ErrClosed
	}
	switch name {
	case "size":
		info, err := f.Stat()
		if err != nil {
			return heap.Nil, err
		}
		return heap.Int(int32(info.Size())), nil
	case "pos":
		pos, err := f.Seek(0, io.SeekCurrent)
		if err != nil {
			return heap.Nil, err
		}
		return heap.Int(int32(pos)), nil
	default:
		return heap.Nil, errUnknownParam(name)
	}
}

func (g *OSGateway) SetParam(handle int32, name string, val heap.Value) error {
	f, ok := g.files[handle]
	if !ok {
		return os.ErrClosed
	}
	switch name {
	case "pos":
		if val.Kind() != heap.KInt {
			return errBadParamValue(name)
		}
		_, err := f.Seek(int64(val.AsInt()), io.SeekStart)
		return err
	default:
		return errUnknownParam(name)
	}
}

type paramError string

func (e paramError) Error() string { return string(e) }

func errUnknownParam(name string) error  { return paramError("unknown param " + strconv.Quote(name)) }
func errBadParamValue(name string) error { return paramError("bad value for param " + strconv.Quote(name)) }
