package mem

import (
	"fmt"

	"github.com/sarchlab/memhier/sim"
)

var accessReqByteOverhead = 12
var accessRspByteOverhead = 4

// AccessKind tells what a request does to the memory.
type AccessKind int

// Kinds issued by a core are Fetch, Load and Store. Fill and Writeback are
// only used between cache levels.
const (
	Fetch AccessKind = iota
	Load
	Store
	Fill
	Writeback
)

// IsRead returns true if the access brings data back to the requester.
func (k AccessKind) IsRead() bool {
	return k == Fetch || k == Load || k == Fill
}

// IsWrite returns true if the access carries data down.
func (k AccessKind) IsWrite() bool {
	return k == Store || k == Writeback
}

func (k AccessKind) String() string {
	switch k {
	case Fetch:
		return "Fetch"
	case Load:
		return "Load"
	case Store:
		return "Store"
	case Fill:
		return "Fill"
	case Writeback:
		return "Writeback"
	default:
		return fmt.Sprintf("AccessKind(%d)", int(k))
	}
}

// ParseAccessKind converts the short trace mnemonics (F, L, S) and the full
// kind names into an AccessKind.
func ParseAccessKind(s string) (AccessKind, error) {
	switch s {
	case "F", "f", "Fetch":
		return Fetch, nil
	case "L", "l", "Load":
		return Load, nil
	case "S", "s", "Store":
		return Store, nil
	case "Fill":
		return Fill, nil
	case "Writeback":
		return Writeback, nil
	}

	return 0, fmt.Errorf("unknown access kind %q", s)
}

// An Access is a memory operation before it is turned into a request.
type Access struct {
	Kind    AccessKind
	Address uint64
	Size    uint64
	Data    []byte
}

// An AccessReq is a request that travels from a requester toward the memory
// controller.
type AccessReq struct {
	sim.MsgMeta

	Address  uint64
	Kind     AccessKind
	ByteSize uint64
	Data     []byte
	CoreID   int
}

// Meta returns the message meta.
func (r *AccessReq) Meta() *sim.MsgMeta {
	return &r.MsgMeta
}

// AccessReqBuilder can build access requests.
type AccessReqBuilder struct {
	src, dst sim.RemotePort
	address  uint64
	kind     AccessKind
	byteSize uint64
	data     []byte
	coreID   int
}

// WithSrc sets the source of the request to build.
func (b AccessReqBuilder) WithSrc(src sim.RemotePort) AccessReqBuilder {
	b.src = src
	return b
}

// WithDst sets the destination of the request to build.
func (b AccessReqBuilder) WithDst(dst sim.RemotePort) AccessReqBuilder {
	b.dst = dst
	return b
}

// WithAddress sets the address of the request to build.
func (b AccessReqBuilder) WithAddress(address uint64) AccessReqBuilder {
	b.address = address
	return b
}

// WithKind sets the kind of the request to build.
func (b AccessReqBuilder) WithKind(kind AccessKind) AccessReqBuilder {
	b.kind = kind
	return b
}

// WithByteSize sets the number of bytes to access.
func (b AccessReqBuilder) WithByteSize(byteSize uint64) AccessReqBuilder {
	b.byteSize = byteSize
	return b
}

// WithData sets the data to write. The byte size follows the data length.
func (b AccessReqBuilder) WithData(data []byte) AccessReqBuilder {
	b.data = data
	b.byteSize = uint64(len(data))
	return b
}

// WithCoreID sets the ID of the core that issues the request.
func (b AccessReqBuilder) WithCoreID(id int) AccessReqBuilder {
	b.coreID = id
	return b
}

// Build creates a new AccessReq
func (b AccessReqBuilder) Build() *AccessReq {
	r := &AccessReq{}
	r.ID = sim.GetIDGenerator().Generate()
	r.Src = b.src
	r.Dst = b.dst
	r.Address = b.address
	r.Kind = b.kind
	r.ByteSize = b.byteSize
	r.Data = b.data
	r.CoreID = b.coreID
	r.TrafficBytes = len(r.Data) + accessReqByteOverhead

	return r
}

// An AccessRsp replies to an AccessReq. Reads carry data back. A non-nil
// Fault ends the request.
type AccessRsp struct {
	sim.MsgMeta

	RespondTo string
	Data      []byte
	Fault     error
}

// Meta returns the message meta.
func (r *AccessRsp) Meta() *sim.MsgMeta {
	return &r.MsgMeta
}

// GetRspTo returns the ID of the request that the respond is responding to.
func (r *AccessRsp) GetRspTo() string {
	return r.RespondTo
}

// AccessRspBuilder can build access responses.
type AccessRspBuilder struct {
	src, dst sim.RemotePort
	rspTo    string
	data     []byte
	fault    error
}

// WithSrc sets the source of the respond to build.
func (b AccessRspBuilder) WithSrc(src sim.RemotePort) AccessRspBuilder {
	b.src = src
	return b
}

// WithDst sets the destination of the respond to build.
func (b AccessRspBuilder) WithDst(dst sim.RemotePort) AccessRspBuilder {
	b.dst = dst
	return b
}

// WithRspTo sets ID of the request that the respond to build is replying to.
func (b AccessRspBuilder) WithRspTo(id string) AccessRspBuilder {
	b.rspTo = id
	return b
}

// WithData sets the data of the respond to build.
func (b AccessRspBuilder) WithData(data []byte) AccessRspBuilder {
	b.data = data
	return b
}

// WithFault marks the respond to build as failed.
func (b AccessRspBuilder) WithFault(err error) AccessRspBuilder {
	b.fault = err
	return b
}

// Build creates a new AccessRsp
func (b AccessRspBuilder) Build() *AccessRsp {
	r := &AccessRsp{}
	r.ID = sim.GetIDGenerator().Generate()
	r.Src = b.src
	r.Dst = b.dst
	r.RespondTo = b.rspTo
	r.Data = b.data
	r.Fault = b.fault
	r.TrafficBytes = len(r.Data) + accessRspByteOverhead

	return r
}
