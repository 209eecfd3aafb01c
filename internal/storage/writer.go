package storage

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"os"

	"github.com/klauspost/compress/zstd"
	"golang.org/x/xerrors"

	"github.com/coffersTech/nanolog/stalecheck/internal/engine"
)

// MagicHeader opens every timeline snapshot.
var MagicHeader = []byte("STLTIME1")

// footerSize is Intervals(8) + Resources(4) + MinStart(8) + MaxEnd(8).
const footerSize = 28

// Footer summarizes a snapshot without decoding its columns.
type Footer struct {
	Intervals uint64
	Resources uint32
	MinStart  int64
	MaxEnd    int64
}

type ColumnWriter struct {
	encoder *zstd.Encoder
}

func NewColumnWriter() (*ColumnWriter, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, xerrors.Errorf("create zstd encoder: %w", err)
	}
	return &ColumnWriter{encoder: enc}, nil
}

// Close releases the encoder.
func (cw *ColumnWriter) Close() error {
	return cw.encoder.Close()
}

// WriteSnapshot writes every interval of ts to filename. The file is built
// next to the target and renamed into place once complete.
func (cw *ColumnWriter) WriteSnapshot(filename string, ts *engine.Timelines) error {
	cols := ts.Columns()
	rows := cols.Len()
	if rows < 0 {
		return xerrors.New("timeline columns have mismatched lengths")
	}

	tmp := filename + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return xerrors.Errorf("create snapshot: %w", err)
	}
	w := bufio.NewWriter(f)

	err = cw.write(w, cols, uint32(ts.Len()))
	if err == nil {
		err = w.Flush()
	}
	if err == nil {
		err = f.Sync()
	}
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmp)
		return xerrors.Errorf("write snapshot %s: %w", filename, err)
	}
	if err := os.Rename(tmp, filename); err != nil {
		return xerrors.Errorf("rename snapshot: %w", err)
	}
	return nil
}

func (cw *ColumnWriter) write(w *bufio.Writer, cols *engine.TimelineColumns, resources uint32) error {
	if _, err := w.Write(MagicHeader); err != nil {
		return err
	}
	if err := cw.writeBytesCol(w, cols.Keys); err != nil {
		return err
	}
	for _, col := range []*engine.Int64Column{cols.Starts, cols.Ends, cols.Deltas} {
		if err := cw.writeInt64Col(w, col.Data); err != nil {
			return err
		}
	}

	minStart, maxEnd := cols.MinMax()
	return writeFooter(w, Footer{
		Intervals: uint64(cols.Len()),
		Resources: resources,
		MinStart:  minStart,
		MaxEnd:    maxEnd,
	})
}

func (cw *ColumnWriter) writeInt64Col(w *bufio.Writer, data []int64) error {
	raw := make([]byte, 8*len(data))
	for i, v := range data {
		binary.LittleEndian.PutUint64(raw[i*8:], uint64(v))
	}
	return cw.compressAndWrite(w, raw)
}

// writeBytesCol serializes [Len uint32][Bytes] per row.
func (cw *ColumnWriter) writeBytesCol(w *bufio.Writer, col *engine.BytesColumn) error {
	buf := new(bytes.Buffer)
	buf.Grow(len(col.Data) + 4*col.Size())
	var n [4]byte
	for i := 0; i < col.Size(); i++ {
		v := col.Get(i)
		binary.LittleEndian.PutUint32(n[:], uint32(len(v)))
		buf.Write(n[:])
		buf.Write(v)
	}
	return cw.compressAndWrite(w, buf.Bytes())
}

func (cw *ColumnWriter) compressAndWrite(w *bufio.Writer, raw []byte) error {
	compressed := cw.encoder.EncodeAll(raw, make([]byte, 0, len(raw)/2+64))
	if err := binary.Write(w, binary.LittleEndian, uint32(len(compressed))); err != nil {
		return err
	}
	_, err := w.Write(compressed)
	return err
}

func writeFooter(w *bufio.Writer, ft Footer) error {
	for _, v := range []any{ft.Intervals, ft.Resources, ft.MinStart, ft.MaxEnd} {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return err
		}
	}
	return nil
}
