package recorder

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"simexchange/internal/codec"
	"simexchange/internal/model"
	"simexchange/pkg/exception"
)

// Writer appends bars to WAL segments.
//
// Appends are synchronous so a bar is on its way to disk before the next one
// reaches the exchange. Segments rotate once SegmentMaxBytes is exceeded.
type Writer struct {
	cfg Config

	mu        sync.Mutex
	seg       *segmentWriter
	segID     uint64
	seq       uint64
	closed    bool
	headerBuf []byte
	payload   []byte
}

// NewWriter creates a WAL writer and ensures the target directory exists.
// New segments are numbered after any segment already in the directory.
func NewWriter(cfg Config) (*Writer, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create wal dir")
	}

	files, err := collectSegments(cfg.Dir, cfg.FilePrefix)
	if err != nil {
		return nil, err
	}

	return &Writer{
		cfg:       cfg,
		segID:     uint64(len(files)),
		headerBuf: make([]byte, recordHeaderSize),
	}, nil
}

// Append encodes and writes one bar.
func (w *Writer) Append(bar model.Bar) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return exception.ErrWALClosed
	}

	payload, err := codec.EncodeBar(w.payload[:0], bar)
	if err != nil {
		return err
	}
	w.payload = payload
	if uint64(len(payload)) > maxPayloadLen {
		return exception.ErrWALPayloadTooLarge
	}

	recordSize := int64(recordHeaderSize + len(payload) + recordChecksumSize)
	if w.seg == nil || (w.seg.size > 0 && w.seg.size+recordSize > w.cfg.SegmentMaxBytes) {
		if err := w.rotateLocked(); err != nil {
			return err
		}
	}

	w.seq++
	encodeHeader(w.headerBuf, Header{Seq: w.seq, TsEvent: bar.Timestamp.UnixNano()}, len(payload))
	var sum [recordChecksumSize]byte
	binary.LittleEndian.PutUint32(sum[:], checksum(w.headerBuf, payload))

	if err := w.seg.write(w.headerBuf, payload, sum[:]); err != nil {
		return errors.Wrapf(err, "append bar, seq: %d", w.seq)
	}
	return nil
}

// Seq returns the sequence number of the last appended record.
func (w *Writer) Seq() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.seq
}

// Flush pushes buffered records to the segment file.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.seg == nil {
		return nil
	}
	return w.seg.flush(w.cfg.SyncOnFlush)
}

// Close flushes and closes the current segment. Further appends fail.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	if w.seg == nil {
		return nil
	}
	err := w.seg.close()
	w.seg = nil
	return err
}

func (w *Writer) rotateLocked() error {
	if w.seg != nil {
		if err := w.seg.close(); err != nil {
			return err
		}
		w.seg = nil
	}

	w.segID++
	path := filepath.Join(w.cfg.Dir, segmentName(w.cfg.FilePrefix, w.segID))
	seg, err := openSegment(path, w.cfg.BufferSize)
	if err != nil {
		return err
	}
	w.seg = seg
	logs.Infof("wal segment opened, path: %s", path)
	return nil
}

func segmentName(prefix string, id uint64) string {
	return fmt.Sprintf("%s-%06d%s", prefix, id, fileSuffix)
}

type segmentWriter struct {
	file *os.File
	buf  *bufio.Writer
	size int64
}

func openSegment(path string, bufferSize int) (*segmentWriter, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "open segment %s", path)
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, errors.Wrapf(err, "stat segment %s", path)
	}
	return &segmentWriter{
		file: file,
		buf:  bufio.NewWriterSize(file, bufferSize),
		size: info.Size(),
	}, nil
}

func (s *segmentWriter) write(parts ...[]byte) error {
	for _, p := range parts {
		n, err := s.buf.Write(p)
		s.size += int64(n)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *segmentWriter) flush(sync bool) error {
	if err := s.buf.Flush(); err != nil {
		return err
	}
	if sync {
		return s.file.Sync()
	}
	return nil
}

func (s *segmentWriter) close() error {
	flushErr := s.buf.Flush()
	syncErr := s.file.Sync()
	closeErr := s.file.Close()
	switch {
	case flushErr != nil:
		return flushErr
	case syncErr != nil:
		return syncErr
	default:
		return closeErr
	}
}
