package recorder

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"time"

	"simexchange/pkg/exception"
)

const (
	recordVersion      uint16 = 1
	recordHeaderSize          = 28
	recordChecksumSize        = 4
	maxPayloadLen             = uint64(^uint32(0))
)

var (
	recordMagic = [4]byte{'B', 'A', 'R', '1'}
	crcTable    = crc32.MakeTable(crc32.Castagnoli)
)

// Header describes one WAL record.
type Header struct {
	Seq     uint64
	TsEvent int64
}

// Time returns the event timestamp.
func (h Header) Time() time.Time {
	return time.Unix(0, h.TsEvent).UTC()
}

func encodeHeader(dst []byte, header Header, payloadLen int) {
	_ = dst[recordHeaderSize-1]
	copy(dst[0:4], recordMagic[:])
	binary.LittleEndian.PutUint16(dst[4:6], recordVersion)
	binary.LittleEndian.PutUint16(dst[6:8], uint16(recordHeaderSize))
	binary.LittleEndian.PutUint32(dst[8:12], uint32(payloadLen))
	binary.LittleEndian.PutUint64(dst[12:20], header.Seq)
	binary.LittleEndian.PutUint64(dst[20:28], uint64(header.TsEvent))
}

func checksum(header []byte, payload []byte) uint32 {
	crc := crc32.Update(0, crcTable, header)
	return crc32.Update(crc, crcTable, payload)
}

func decodeRecordHeader(src []byte) (Header, uint32, error) {
	if len(src) < recordHeaderSize {
		return Header{}, 0, exception.ErrWALHeaderSize
	}
	if !bytes.Equal(src[0:4], recordMagic[:]) {
		return Header{}, 0, exception.ErrWALMagic
	}
	if ver := binary.LittleEndian.Uint16(src[4:6]); ver != recordVersion {
		return Header{}, 0, exception.ErrWALVersion
	}
	if size := binary.LittleEndian.Uint16(src[6:8]); size != recordHeaderSize {
		return Header{}, 0, exception.ErrWALHeaderSize
	}
	return Header{
		Seq:     binary.LittleEndian.Uint64(src[12:20]),
		TsEvent: int64(binary.LittleEndian.Uint64(src[20:28])),
	}, binary.LittleEndian.Uint32(src[8:12]), nil
}
