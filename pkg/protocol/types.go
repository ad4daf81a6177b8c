package protocol

// Message types (fits in uint8).
const (
	MsgUnknown     uint8 = iota
	MsgObject            // encoded object graph
	MsgObjectReply       // reply carrying a graph back to the sender
	MsgControl           // control/management
	MsgHeartbeat         // liveness ping
)

// Flags bitmask (uint32)
const (
	FlagCompressed uint32 = 1 << 0 // payload compressed
	FlagAck        uint32 = 1 << 1 // ack requested
	FlagFragment   uint32 = 1 << 2 // this envelope is a fragment
	FlagLastFrag   uint32 = 1 << 3 // last fragment
	FlagRefs       uint32 = 1 << 4 // graph carries remote references
)

// ContentType is optional hint for payload decoding.
// Kept as constants to avoid coupling; not serialized in header.
const (
	ContentUnknown = "application/octet-stream"
	ContentCBOR    = "application/cbor"
	ContentJSON    = "application/json"
	ContentProto   = "application/x-protobuf"
	ContentMsgPack = "application/msgpack"
)
