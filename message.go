package ocr

import "fmt"

// MessageKind discriminates the policy message union of spec §4.9/§3. The
// set below covers the request kinds named explicitly in the spec plus the
// remaining members needed to round out each subsystem's request/response
// pair, matching the "~30 request kinds" scale without inventing unrelated
// traffic.
type MessageKind uint8

const (
	MsgEvtCreate MessageKind = iota
	MsgEvtDestroy
	MsgEvtSatisfy
	MsgWorkCreate
	MsgWorkDestroy
	MsgWorkExecute
	MsgDepAdd
	MsgDepSatisfy
	MsgDepUnregister
	MsgDbCreate
	MsgDbDestroy
	MsgDbAcquire
	MsgDbRelease
	MsgGuidCreate
	MsgGuidInfo
	MsgGuidMetadataClone
	MsgGuidReserve
	MsgGuidDestroy
	MsgSchedGetWork
	MsgSchedNotify
	MsgSchedTransact
	MsgSchedAnalyze
	MsgMemAlloc
	MsgMemFree
	MsgCommTakeComm
	MsgCommGiveComm
	MsgMgtRlNotify
	MsgMgtOpsNotify
	MsgMgtMonitorProgress
	MsgHintSet
	MsgHintQuery
)

func (k MessageKind) String() string {
	names := [...]string{
		"EVT_CREATE", "EVT_DESTROY", "EVT_SATISFY",
		"WORK_CREATE", "WORK_DESTROY", "WORK_EXECUTE",
		"DEP_ADD", "DEP_SATISFY", "DEP_UNREGISTER",
		"DB_CREATE", "DB_DESTROY", "DB_ACQUIRE", "DB_RELEASE",
		"GUID_CREATE", "GUID_INFO", "GUID_METADATA_CLONE", "GUID_RESERVE", "GUID_DESTROY",
		"SCHED_GET_WORK", "SCHED_NOTIFY", "SCHED_TRANSACT", "SCHED_ANALYZE",
		"MEM_ALLOC", "MEM_FREE",
		"COMM_TAKE_COMM", "COMM_GIVE_COMM",
		"MGT_RL_NOTIFY", "MGT_OPS_NOTIFY", "MGT_MONITOR_PROGRESS",
		"HINT_SET", "HINT_QUERY",
	}
	if int(k) < len(names) {
		return names[k]
	}
	return fmt.Sprintf("MSG(%d)", uint8(k))
}

// MessageDirection captures the request/response/request-response flags
// carried on every message (spec §3).
type MessageDirection uint8

const (
	DirRequest MessageDirection = 1 << iota
	DirResponse
)

// MarshalMode selects how PolicyMessage.Marshal packages variable-length
// payloads (spec §4.9).
type MarshalMode uint8

const (
	ModeDuplicate MarshalMode = iota // copy into a new buffer, fix pointers
	ModeAppend                       // copy into the same buffer, in-place append
	ModeAddl                         // split: base in buffer, payloads in a second buffer
	ModeFullCopy                     // copy entire buffer plus payloads
)

const marshalAlignment = 8

// PolicyMessage is the uniform envelope every request/response in the
// runtime is packaged as (spec §3's "discriminated union over ~30 request
// kinds"). Only the fields relevant to Kind are meaningful; unused fields
// are left at their zero value, matching the invariant that "response-only
// fields are untouched on send; request-only fields are untouched on
// reply".
type PolicyMessage struct {
	Kind        MessageKind
	Direction   MessageDirection
	Source      uint8
	Destination uint8

	// Input fields (request-only).
	TargetGuid Guid
	Payload    []uint64
	ParamV     []uint64
	DepV       []DependenceSlot
	Hint       Hint
	Size       uint64
	Mode       AccessMode

	// Output fields (response-only).
	ReturnDetail Status
	ResultGuid   Guid
	ResultData   []byte
}

// NewRequest builds a bare request envelope.
func NewRequest(kind MessageKind, source, dest uint8) *PolicyMessage {
	return &PolicyMessage{Kind: kind, Direction: DirRequest, Source: source, Destination: dest}
}

// marshalledPayload is the wire-shape one marshal call produces: a header
// (the message struct fields other than the variable-length buffers) plus
// one or two payload buffers, sized and aligned per the active mode.
type marshalledPayload struct {
	Mode       MarshalMode
	Header     PolicyMessage
	Base       []byte
	Additional []byte
}

func alignUp(n int) int {
	return (n + marshalAlignment - 1) &^ (marshalAlignment - 1)
}

// encodeUint64Slice flattens a []uint64 into an 8-byte-aligned buffer,
// appended to dst.
func encodeUint64Slice(dst []byte, vals []uint64) []byte {
	for _, v := range vals {
		var b [8]byte
		for i := 0; i < 8; i++ {
			b[i] = byte(v >> (8 * i))
		}
		dst = append(dst, b[:]...)
	}
	return dst
}

func decodeUint64Slice(src []byte) []uint64 {
	n := len(src) / 8
	out := make([]uint64, n)
	for i := 0; i < n; i++ {
		var v uint64
		for j := 0; j < 8; j++ {
			v |= uint64(src[i*8+j]) << (8 * j)
		}
		out[i] = v
	}
	return out
}

// Marshal packages m's variable-length payloads (ParamV, Payload, DepV's
// resolved payload GUIDs) per mode, returning a marshalledPayload whose
// usefulSize (len(Base)+len(Additional)) is baseSize+marshalledSize,
// 8-byte aligned, per spec §4.9's invariant. The payload is a flat run of
// little-endian uint64 words (ParamV, then Payload, then three words per
// DepV entry); it holds no pointer fields and no (offset<<1)|isAdditional
// encoding is applied. ModeDuplicate, ModeAppend and ModeFullCopy all put
// the words in Base; ModeAddl puts them in Additional.
func (m *PolicyMessage) Marshal(mode MarshalMode) *marshalledPayload {
	header := *m
	var base, additional []byte

	encode := func(dst []byte) []byte {
		dst = encodeUint64Slice(dst, m.ParamV)
		dst = encodeUint64Slice(dst, m.Payload)
		for _, d := range m.DepV {
			dst = encodeUint64Slice(dst, []uint64{uint64(d.Source), uint64(d.Payload), uint64(d.Mode)})
		}
		for len(dst)%marshalAlignment != 0 {
			dst = append(dst, 0)
		}
		return dst
	}

	switch mode {
	case ModeDuplicate, ModeAppend, ModeFullCopy:
		base = encode(nil)
		header.ParamV, header.Payload, header.DepV = nil, nil, nil
	case ModeAddl:
		additional = encode(nil)
		header.ParamV, header.Payload, header.DepV = nil, nil, nil
	}

	return &marshalledPayload{Mode: mode, Header: header, Base: base, Additional: additional}
}

// Unmarshal reverses Marshal, reconstructing a PolicyMessage with ParamV
// restored; the round trip is equal modulo pointer identity of marshalled
// substructures, per spec §4.9's invariant
// unmarshall(marshall(m)) ≅ m.
func (p *marshalledPayload) Unmarshal(origParamCount, origDepCount int) PolicyMessage {
	out := p.Header
	buf := p.Base
	if p.Mode == ModeAddl {
		buf = p.Additional
	}
	vals := decodeUint64Slice(buf)
	if origParamCount > len(vals) {
		origParamCount = len(vals)
	}
	out.ParamV = append([]uint64(nil), vals[:origParamCount]...)
	rest := vals[origParamCount:]
	payloadCount := len(rest) - origDepCount*3
	if payloadCount < 0 {
		payloadCount = 0
	}
	out.Payload = append([]uint64(nil), rest[:payloadCount]...)
	depRaw := rest[payloadCount:]
	dv := make([]DependenceSlot, 0, origDepCount)
	for i := 0; i+2 < len(depRaw); i += 3 {
		dv = append(dv, DependenceSlot{Source: Guid(depRaw[i]), Payload: Guid(depRaw[i+1]), Mode: AccessMode(depRaw[i+2])})
	}
	out.DepV = dv
	return out
}
