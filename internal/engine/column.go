package engine

// Int64Column stores int64 values back to back.
type Int64Column struct {
	Data []int64
}

func NewInt64Column(capacity int) *Int64Column {
	return &Int64Column{
		Data: make([]int64, 0, capacity),
	}
}

func (c *Int64Column) Append(v int64) {
	c.Data = append(c.Data, v)
}

func (c *Int64Column) Size() int {
	return len(c.Data)
}

// BytesColumn stores variable-length values in one flat buffer plus offsets,
// which keeps a column of resource keys to two allocations.
type BytesColumn struct {
	Data    []byte // The flat buffer storing all bytes
	Offsets []int  // Starting offset for each row. Length is RowCount + 1
}

func NewBytesColumn(dataCap, rowsCap int) *BytesColumn {
	c := &BytesColumn{
		Data:    make([]byte, 0, dataCap),
		Offsets: make([]int, 0, rowsCap+1),
	}
	c.Offsets = append(c.Offsets, 0)
	return c
}

// AppendString adds a string to the column.
func (c *BytesColumn) AppendString(v string) {
	c.Data = append(c.Data, v...)
	c.Offsets = append(c.Offsets, len(c.Data))
}

func (c *BytesColumn) Size() int {
	return len(c.Offsets) - 1
}

// Get returns the value at index i. The slice aliases the column buffer.
func (c *BytesColumn) Get(i int) []byte {
	if i < 0 || i >= len(c.Offsets)-1 {
		return nil
	}
	return c.Data[c.Offsets[i]:c.Offsets[i+1]]
}

// TimelineColumns is the columnar view of every recorded interval, used by
// the snapshot writer and reader.
type TimelineColumns struct {
	Keys   *BytesColumn
	Starts *Int64Column
	Ends   *Int64Column
	Deltas *Int64Column
}

func NewTimelineColumns(rows int) *TimelineColumns {
	return &TimelineColumns{
		Keys:   NewBytesColumn(rows*8, rows),
		Starts: NewInt64Column(rows),
		Ends:   NewInt64Column(rows),
		Deltas: NewInt64Column(rows),
	}
}

func (tc *TimelineColumns) Append(key string, iv Interval) {
	tc.Keys.AppendString(key)
	tc.Starts.Append(iv.Start)
	tc.Ends.Append(iv.End)
	tc.Deltas.Append(iv.Delta)
}

// Len returns the row count, or -1 when the columns disagree.
func (tc *TimelineColumns) Len() int {
	n := tc.Keys.Size()
	if tc.Starts.Size() != n || tc.Ends.Size() != n || tc.Deltas.Size() != n {
		return -1
	}
	return n
}

// Row returns row i as a resource key and interval.
func (tc *TimelineColumns) Row(i int) (string, Interval) {
	return string(tc.Keys.Get(i)), Interval{
		Start: tc.Starts.Data[i],
		End:   tc.Ends.Data[i],
		Delta: tc.Deltas.Data[i],
	}
}

// MinMax returns the earliest start and latest end across all rows.
func (tc *TimelineColumns) MinMax() (int64, int64) {
	if tc.Starts.Size() == 0 {
		return 0, 0
	}
	lo, hi := tc.Starts.Data[0], tc.Ends.Data[0]
	for i := range tc.Starts.Data {
		if tc.Starts.Data[i] < lo {
			lo = tc.Starts.Data[i]
		}
		if tc.Ends.Data[i] > hi {
			hi = tc.Ends.Data[i]
		}
	}
	return lo, hi
}

// LoadColumns replays columnar rows into ts.
func LoadColumns(ts *Timelines, tc *TimelineColumns) {
	for i := 0; i < tc.Keys.Size(); i++ {
		key, iv := tc.Row(i)
		ts.Add(key, iv)
	}
}
