package protocol

// Database flags carried in DBID.Flags
const (
	DBFlagPersistent uint8 = 0x01
	DBFlagReadonly   uint8 = 0x02
	DBFlagSticky     uint8 = 0x04
	DBFlagReplicated uint8 = 0x08
)

// --------------------------------------------------------------------------
// Database Map
// --------------------------------------------------------------------------

// DBID identifies an attached database
type DBID struct {
	DBID  uint32
	Flags uint8
}

func (*DBID) Kind() Kind { return KindDBID }

func (m *DBID) fields(l *layout) {
	field(l, &m.DBID, Uint32)
	field(l, &m.Flags, Uint8)
}

// DBIDMap lists the databases attached on a node
type DBIDMap struct {
	DBs []DBID
}

var dbidListCodec = ListOf(structOf[DBID]())

func (*DBIDMap) Kind() Kind { return KindDBIDMap }

func (m *DBIDMap) fields(l *layout) {
	field(l, &m.DBs, dbidListCodec)
}

// --------------------------------------------------------------------------
// Pull
// --------------------------------------------------------------------------

// PullDB requests all records of a database for which lmaster is the location master
type PullDB struct {
	DBID    uint32
	LMaster uint32
}

func (*PullDB) Kind() Kind { return KindPullDB }

func (m *PullDB) fields(l *layout) {
	field(l, &m.DBID, Uint32)
	field(l, &m.LMaster, Uint32)
}

// PullDBExt is PullDB with a server id the records are streamed to
type PullDBExt struct {
	DBID    uint32
	LMaster uint32
	SrvID   uint64
}

func (*PullDBExt) Kind() Kind { return KindPullDBExt }

func (m *PullDBExt) fields(l *layout) {
	field(l, &m.DBID, Uint32)
	field(l, &m.LMaster, Uint32)
	field(l, &m.SrvID, Uint64)
}

// --------------------------------------------------------------------------
// Records
// --------------------------------------------------------------------------

// LTDBHeader is the header stored in front of every record of a local database
type LTDBHeader struct {
	RSN       uint64
	DMaster   uint32
	Reserved1 uint32
	Flags     uint32
}

var ltdbHeaderCodec = structOf[LTDBHeader]()

func (*LTDBHeader) Kind() Kind { return KindLTDBHeader }

func (m *LTDBHeader) fields(l *layout) {
	field(l, &m.RSN, Uint64)
	field(l, &m.DMaster, Uint32)
	field(l, &m.Reserved1, Uint32)
	field(l, &m.Flags, Uint32)
}

// LTDBHeaderSize is the encoded size of LTDBHeader
const LTDBHeaderSize = 20

// LMasterAny selects the records of every location master in PullDB
const LMasterAny uint32 = 0xFFFFFFFF

// JoinLTDBRecord returns header and data as one record value, the layout records have
// inside pulled and pushed record buffers
func JoinLTDBRecord(h *LTDBHeader, data []byte) []byte {
	buf := make([]byte, LTDBHeaderSize+len(data))
	pushOf(h, buf)
	copy(buf[LTDBHeaderSize:], data)
	return buf
}

// SplitLTDBRecord splits a record value into header and data. The data aliases value.
func SplitLTDBRecord(value []byte) (LTDBHeader, []byte, error) {
	if len(value) < LTDBHeaderSize {
		return LTDBHeader{}, nil, truncated("record header", LTDBHeaderSize, len(value))
	}
	h, err := DecodeScalar[LTDBHeader](value[:LTDBHeaderSize])
	if err != nil {
		return LTDBHeader{}, nil, err
	}
	return h, value[LTDBHeaderSize:], nil
}

// RecData is a single record, optionally with its header
type RecData struct {
	ReqID  uint32
	Header *LTDBHeader
	Key    []byte
	Data   []byte
}

var optionalLTDBHeaderCodec = OptionalOf(ltdbHeaderCodec)

func (*RecData) Kind() Kind { return KindRecData }

func (m *RecData) fields(l *layout) {
	field(l, &m.ReqID, Uint32)
	field(l, &m.Header, optionalLTDBHeaderCodec)
	field(l, &m.Key, Blob)
	field(l, &m.Data, Blob)
}

// RecBuffer is a batch of records of one database
type RecBuffer struct {
	DBID    uint32
	Records []Record
}

var recBufferWire Codec[RecBuffer] = recBufferCodec{}

func (*RecBuffer) Kind() Kind { return KindRecBuffer }

func (m *RecBuffer) fields(l *layout) {
	field(l, m, recBufferWire)
}

// KeyData names one record of a database together with its header
type KeyData struct {
	DBID   uint32
	Header LTDBHeader
	Key    []byte
}

func (*KeyData) Kind() Kind { return KindKeyData }

func (m *KeyData) fields(l *layout) {
	field(l, &m.DBID, Uint32)
	m.Header.fields(l)
	field(l, &m.Key, Blob)
}

// TransDB names a database transaction
type TransDB struct {
	DBID uint32
	TID  uint64
}

func (*TransDB) Kind() Kind { return KindTransDB }

func (m *TransDB) fields(l *layout) {
	field(l, &m.DBID, Uint32)
	field(l, &m.TID, Uint64)
}

// --------------------------------------------------------------------------
// Traverse
// --------------------------------------------------------------------------

// TraverseStart asks a node to traverse a database and send the records to srvid
type TraverseStart struct {
	DBID  uint32
	ReqID uint32
	SrvID uint64
}

func (*TraverseStart) Kind() Kind { return KindTraverseStart }

func (m *TraverseStart) fields(l *layout) {
	field(l, &m.DBID, Uint32)
	field(l, &m.ReqID, Uint32)
	field(l, &m.SrvID, Uint64)
}

// TraverseAll is the traverse request fanned out to all nodes
type TraverseAll struct {
	DBID        uint32
	ReqID       uint32
	PNN         uint32
	ClientReqID uint32
	SrvID       uint64
}

func (*TraverseAll) Kind() Kind { return KindTraverseAll }

func (m *TraverseAll) fields(l *layout) {
	field(l, &m.DBID, Uint32)
	field(l, &m.ReqID, Uint32)
	field(l, &m.PNN, Uint32)
	field(l, &m.ClientReqID, Uint32)
	field(l, &m.SrvID, Uint64)
}

// TraverseStartExt is TraverseStart with control over empty records
type TraverseStartExt struct {
	DBID             uint32
	ReqID            uint32
	SrvID            uint64
	WithEmptyRecords bool
}

func (*TraverseStartExt) Kind() Kind { return KindTraverseStartExt }

func (m *TraverseStartExt) fields(l *layout) {
	field(l, &m.DBID, Uint32)
	field(l, &m.ReqID, Uint32)
	field(l, &m.SrvID, Uint64)
	field(l, &m.WithEmptyRecords, Bool)
}

// TraverseAllExt is TraverseAll with control over empty records
type TraverseAllExt struct {
	DBID             uint32
	ReqID            uint32
	PNN              uint32
	ClientReqID      uint32
	SrvID            uint64
	WithEmptyRecords bool
}

func (*TraverseAllExt) Kind() Kind { return KindTraverseAllExt }

func (m *TraverseAllExt) fields(l *layout) {
	field(l, &m.DBID, Uint32)
	field(l, &m.ReqID, Uint32)
	field(l, &m.PNN, Uint32)
	field(l, &m.ClientReqID, Uint32)
	field(l, &m.SrvID, Uint64)
	field(l, &m.WithEmptyRecords, Bool)
}
