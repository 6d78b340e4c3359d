package tracejob

import "unsafe"

// TracePointType says which kind of communication event a trace job was
// captured at.
type TracePointType uint8

const (
	TracePointSkelEventSend TracePointType = iota
	TracePointSkelEventSendA
	TracePointProxyEventReceive
	TracePointProxyEventSubscribe
	TracePointProxyEventUnsubscribe
)

// BindingType names the communication binding the traced event travelled
// over.
type BindingType uint8

const (
	BindingVector BindingType = iota
	BindingSomeIP
)

// AppID is a fixed-width application identifier, so the trace format stays a
// flat, pointer-free record that can be copied into shared memory as raw
// bytes.
type AppID [16]byte

// AppIDOf builds an AppID from s, truncating past the fixed width.
func AppIDOf(s string) AppID {
	var id AppID
	copy(id[:], s)

	return id
}

// ServiceInstanceElement identifies the service element an event belongs to.
type ServiceInstanceElement struct {
	ServiceID    uint32
	InstanceID   uint32
	MajorVersion uint32
	MinorVersion uint32
	ElementID    uint32
}

// AraComProperties is the ara::com-specific part of a job's meta info.
type AraComProperties struct {
	TracePoint TracePointType
	_          [3]byte
	Instance   ServiceInstanceElement
	DataID     uint32
}

// AraComMetaInfo is the meta-info variant the trace-job allocator accepts.
type AraComMetaInfo struct {
	Properties AraComProperties
}

// AraComMetaInfoTraceFormat is the flat record written into the job's
// synthetic meta-info chunk: the meta info plus the binding and application
// identity. It contains no pointers, so its in-memory bytes are its wire
// form.
type AraComMetaInfoTraceFormat struct {
	MetaInfo AraComMetaInfo
	Binding  BindingType
	_        [3]byte
	App      AppID
}

// MetaInfoTraceFormatSize is the byte size of the synthetic meta-info chunk
// every published job carries at index 1.
const MetaInfoTraceFormatSize = unsafe.Sizeof(AraComMetaInfoTraceFormat{})

// TimestampSize is the byte size of the synthetic timestamp chunk every
// published job carries at index 0.
const TimestampSize = 8

// syntheticChunkCount is how many synthetic chunks (timestamp, meta-info)
// the allocator prepends ahead of the caller's payload.
const syntheticChunkCount = 2

type metaInfoKind uint8

const (
	metaInfoNone metaInfoKind = iota
	metaInfoAraCom
	metaInfoDlt
)

// MetaInfo is the variant type a caller passes to Allocate{Local,Shm}Job.
// Only the ara::com variant carries enough identity to publish a job; any
// other variant is rejected with a NoMetaInfoProvided error.
type MetaInfo struct {
	kind   metaInfoKind
	araCom AraComMetaInfo
}

// AraCom wraps an AraComMetaInfo as the accepted meta-info variant.
func AraCom(info AraComMetaInfo) MetaInfo {
	return MetaInfo{kind: metaInfoAraCom, araCom: info}
}

// Dlt is the DLT meta-info variant. The trace-job allocator does not accept
// it; it exists so callers routing DLT messages elsewhere can share one
// MetaInfo type.
func Dlt() MetaInfo {
	return MetaInfo{kind: metaInfoDlt}
}

func (m MetaInfo) araComOK() (AraComMetaInfo, bool) {
	return m.araCom, m.kind == metaInfoAraCom
}
