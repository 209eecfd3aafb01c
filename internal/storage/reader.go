package storage

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
	"golang.org/x/xerrors"

	"github.com/coffersTech/nanolog/stalecheck/internal/engine"
)

var (
	ErrInvalidHeader = xerrors.New("invalid snapshot header")
	ErrCorrupt       = xerrors.New("corrupt snapshot")
)

type ColumnReader struct {
	decoder *zstd.Decoder
}

func NewColumnReader() (*ColumnReader, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, xerrors.Errorf("create zstd decoder: %w", err)
	}
	return &ColumnReader{decoder: dec}, nil
}

// Close releases the decoder.
func (cr *ColumnReader) Close() {
	cr.decoder.Close()
}

// ReadFooter returns the summary of a snapshot after checking its header.
func (cr *ColumnReader) ReadFooter(filename string) (Footer, error) {
	f, err := os.Open(filename)
	if err != nil {
		return Footer{}, xerrors.Errorf("open snapshot: %w", err)
	}
	defer f.Close()
	_, ft, err := cr.readHeaderFooter(f)
	return ft, err
}

// ReadColumns decodes every column of a snapshot.
func (cr *ColumnReader) ReadColumns(filename string) (*engine.TimelineColumns, Footer, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, Footer{}, xerrors.Errorf("open snapshot: %w", err)
	}
	defer f.Close()

	size, ft, err := cr.readHeaderFooter(f)
	if err != nil {
		return nil, Footer{}, err
	}

	body := io.NewSectionReader(f, int64(len(MagicHeader)), size-int64(len(MagicHeader))-footerSize)
	r := bufio.NewReader(body)

	rows := int(ft.Intervals)
	cols := engine.NewTimelineColumns(rows)

	keyData, err := cr.readAndDecompress(r)
	if err != nil {
		return nil, Footer{}, xerrors.Errorf("read key column: %w", err)
	}
	if err := decodeBytesCol(keyData, cols.Keys); err != nil {
		return nil, Footer{}, err
	}
	for _, col := range []*engine.Int64Column{cols.Starts, cols.Ends, cols.Deltas} {
		data, err := cr.readAndDecompress(r)
		if err != nil {
			return nil, Footer{}, xerrors.Errorf("read int column: %w", err)
		}
		col.Data = bytesToInt64Slice(data)
	}

	if cols.Len() != rows {
		return nil, Footer{}, xerrors.Errorf("column length mismatch: footer says %d rows: %w", rows, ErrCorrupt)
	}
	return cols, ft, nil
}

// ReadSnapshot loads a snapshot into ts and returns its interval count.
func (cr *ColumnReader) ReadSnapshot(filename string, ts *engine.Timelines) (int64, error) {
	cols, ft, err := cr.ReadColumns(filename)
	if err != nil {
		return 0, err
	}
	engine.LoadColumns(ts, cols)
	return int64(ft.Intervals), nil
}

func (cr *ColumnReader) readHeaderFooter(f *os.File) (int64, Footer, error) {
	header := make([]byte, len(MagicHeader))
	if _, err := io.ReadFull(f, header); err != nil {
		return 0, Footer{}, xerrors.Errorf("read header: %w", err)
	}
	if !bytes.Equal(header, MagicHeader) {
		return 0, Footer{}, ErrInvalidHeader
	}

	info, err := f.Stat()
	if err != nil {
		return 0, Footer{}, xerrors.Errorf("stat snapshot: %w", err)
	}
	if info.Size() < int64(len(MagicHeader))+footerSize {
		return 0, Footer{}, xerrors.Errorf("file too small: %w", ErrCorrupt)
	}

	raw := make([]byte, footerSize)
	if _, err := f.ReadAt(raw, info.Size()-footerSize); err != nil {
		return 0, Footer{}, xerrors.Errorf("read footer: %w", err)
	}
	ft := Footer{
		Intervals: binary.LittleEndian.Uint64(raw[0:8]),
		Resources: binary.LittleEndian.Uint32(raw[8:12]),
		MinStart:  int64(binary.LittleEndian.Uint64(raw[12:20])),
		MaxEnd:    int64(binary.LittleEndian.Uint64(raw[20:28])),
	}
	return info.Size(), ft, nil
}

// readAndDecompress reads a compressed block (size + data) and decompresses it.
func (cr *ColumnReader) readAndDecompress(r io.Reader) ([]byte, error) {
	var size uint32
	if err := binary.Read(r, binary.LittleEndian, &size); err != nil {
		return nil, err
	}
	compressed := make([]byte, size)
	if _, err := io.ReadFull(r, compressed); err != nil {
		return nil, err
	}
	return cr.decoder.DecodeAll(compressed, nil)
}

func bytesToInt64Slice(data []byte) []int64 {
	out := make([]int64, len(data)/8)
	for i := range out {
		out[i] = int64(binary.LittleEndian.Uint64(data[i*8:]))
	}
	return out
}

// decodeBytesCol parses [Len uint32][Bytes]... into col.
func decodeBytesCol(data []byte, col *engine.BytesColumn) error {
	for len(data) > 0 {
		if len(data) < 4 {
			return xerrors.Errorf("truncated key length: %w", ErrCorrupt)
		}
		n := int(binary.LittleEndian.Uint32(data))
		data = data[4:]
		if n > len(data) {
			return xerrors.Errorf("truncated key: %w", ErrCorrupt)
		}
		col.AppendString(string(data[:n]))
		data = data[n:]
	}
	return nil
}
