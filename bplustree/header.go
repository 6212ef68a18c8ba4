package bplus

import (
	"encoding/binary"

	"TinyRDB/types"

	"github.com/cespare/xxhash/v2"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
)

/*
Index file header, HeaderSize bytes at offset 0:

	0   magic "BPIX"
	4   version      uint16 little endian
	6   reserved
	8   metadata     BSON document (headerDoc), zero padded
	248 checksum     uint64 little endian, xxhash64 of bytes [0, 248)
*/

const (
	HeaderSize    = 256
	headerVersion = 2
	headerMagic   = "BPIX"

	docOffset      = 8
	checksumOffset = HeaderSize - 8
	maxKeyFields   = 8
)

// headerDoc is the BSON form of fileHeader. Tags are short to keep
// maxKeyFields fields inside the header.
type headerDoc struct {
	Degree    int32         `bson:"d"`
	KeyWidth  int32         `bson:"w"`
	PageSize  int32         `bson:"p"`
	Root      int32         `bson:"r"`
	FreeHead  int32         `bson:"h"`
	FreeCount int32         `bson:"n"`
	Fields    []headerField `bson:"f"`
}

type headerField struct {
	Kind int32 `bson:"k"`
	Size int32 `bson:"s"`
}

type fileHeader struct {
	degree    int
	keyWidth  int
	pageSize  int
	root      int32
	freeHead  int32
	freeCount uint32
	ks        types.KeyStructure
}

func newFileHeader(degree int, ks types.KeyStructure) (*fileHeader, error) {
	if degree < 1 {
		return nil, errors.Errorf("degree must be at least 1, got %d", degree)
	}
	if len(ks) == 0 || len(ks) > maxKeyFields {
		return nil, errors.Errorf("key structure must have 1..%d fields, got %d", maxKeyFields, len(ks))
	}
	return &fileHeader{
		degree:   degree,
		keyWidth: ks.Width(),
		pageSize: NodeSize(degree, ks.Width()),
		root:     types.NullPointer,
		freeHead: types.NullPointer,
		ks:       ks,
	}, nil
}

func (h *fileHeader) encode() ([]byte, error) {
	doc := headerDoc{
		Degree:    int32(h.degree),
		KeyWidth:  int32(h.keyWidth),
		PageSize:  int32(h.pageSize),
		Root:      h.root,
		FreeHead:  h.freeHead,
		FreeCount: int32(h.freeCount),
		Fields:    make([]headerField, len(h.ks)),
	}
	for i, ft := range h.ks {
		doc.Fields[i] = headerField{Kind: int32(ft.Kind), Size: int32(ft.Size)}
	}
	meta, err := bson.Marshal(&doc)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode index header")
	}
	if len(meta) > checksumOffset-docOffset {
		return nil, errors.Errorf("index header metadata too large (%d bytes)", len(meta))
	}

	buf := make([]byte, HeaderSize)
	copy(buf[0:4], headerMagic)
	binary.LittleEndian.PutUint16(buf[4:], headerVersion)
	copy(buf[docOffset:], meta)
	binary.LittleEndian.PutUint64(buf[checksumOffset:], xxhash.Sum64(buf[:checksumOffset]))
	return buf, nil
}

func decodeFileHeader(buf []byte) (*fileHeader, error) {
	if len(buf) != HeaderSize {
		return nil, errors.Errorf("header size mismatch: expected %d, got %d", HeaderSize, len(buf))
	}
	if string(buf[0:4]) != headerMagic {
		return nil, errors.Errorf("not an index file (magic %q)", buf[0:4])
	}
	if sum := binary.LittleEndian.Uint64(buf[checksumOffset:]); sum != xxhash.Sum64(buf[:checksumOffset]) {
		return nil, errors.New("index header checksum mismatch")
	}
	if v := binary.LittleEndian.Uint16(buf[4:]); v != headerVersion {
		return nil, errors.Errorf("unsupported index file version %d", v)
	}

	region := buf[docOffset:checksumOffset]
	n := int(binary.LittleEndian.Uint32(region))
	if n < 5 || n > len(region) {
		return nil, errors.Errorf("bad index header metadata length %d", n)
	}
	var doc headerDoc
	if err := bson.Unmarshal(region[:n], &doc); err != nil {
		return nil, errors.Wrap(err, "failed to decode index header")
	}
	if len(doc.Fields) == 0 || len(doc.Fields) > maxKeyFields {
		return nil, errors.Errorf("bad key field count %d", len(doc.Fields))
	}

	h := &fileHeader{
		degree:    int(doc.Degree),
		keyWidth:  int(doc.KeyWidth),
		pageSize:  int(doc.PageSize),
		root:      doc.Root,
		freeHead:  doc.FreeHead,
		freeCount: uint32(doc.FreeCount),
		ks:        make(types.KeyStructure, len(doc.Fields)),
	}
	for i, f := range doc.Fields {
		h.ks[i] = types.FieldType{Kind: types.Kind(f.Kind), Size: int(f.Size)}
	}

	if h.keyWidth != h.ks.Width() {
		return nil, errors.Errorf("key width %d does not match key structure %v", h.keyWidth, h.ks)
	}
	if h.degree < 1 || h.pageSize != NodeSize(h.degree, h.keyWidth) {
		return nil, errors.Errorf("page size %d does not match degree %d", h.pageSize, h.degree)
	}
	return h, nil
}
