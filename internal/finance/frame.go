package finance

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/tidwall/btree"
)

// Frame is a time-indexed table with one column of Values per asset. It
// backs the price matrix and every series derived from it.
type Frame struct {
	index   []time.Time
	columns []AssetID
	cells   map[AssetID][]Value
}

// PriceMatrix and ReturnSeries name the two roles a Frame plays.
type (
	PriceMatrix  = Frame
	ReturnSeries = Frame
)

// NewFrame allocates a frame with every cell missing.
func NewFrame(index []time.Time, columns []AssetID) *Frame {
	f := &Frame{
		index:   append([]time.Time(nil), index...),
		columns: append([]AssetID(nil), columns...),
		cells:   make(map[AssetID][]Value, len(columns)),
	}
	for _, c := range columns {
		f.cells[c] = make([]Value, len(index))
	}
	return f
}

// AlignPrices outer-joins the series on timestamp. Cells with no price at a
// timestamp are missing; nothing is filled.
func AlignPrices(series ...PriceSeries) (*Frame, error) {
	var idx btree.Set[int64]
	columns := make([]AssetID, 0, len(series))
	seen := make(map[AssetID]struct{}, len(series))
	for _, s := range series {
		if _, dup := seen[s.Asset]; dup {
			return nil, fmt.Errorf("align prices: duplicate asset %s", s.Asset)
		}
		seen[s.Asset] = struct{}{}
		columns = append(columns, s.Asset)
		for _, p := range s.Points {
			idx.Insert(p.Time.UnixNano())
		}
	}

	index := make([]time.Time, 0, idx.Len())
	row := make(map[int64]int, idx.Len())
	idx.Scan(func(ns int64) bool {
		row[ns] = len(index)
		index = append(index, time.Unix(0, ns).UTC())
		return true
	})

	f := NewFrame(index, columns)
	for _, s := range series {
		col := f.cells[s.Asset]
		for _, p := range s.Points {
			col[row[p.Time.UnixNano()]] = Number(p.Price)
		}
	}
	return f, nil
}

func (f *Frame) Len() int { return len(f.index) }

func (f *Frame) Empty() bool { return len(f.index) == 0 || len(f.columns) == 0 }

// Index returns a copy of the time index.
func (f *Frame) Index() []time.Time { return append([]time.Time(nil), f.index...) }

// Columns returns the asset columns in insertion order.
func (f *Frame) Columns() []AssetID { return append([]AssetID(nil), f.columns...) }

func (f *Frame) Has(asset AssetID) bool {
	_, ok := f.cells[asset]
	return ok
}

// Column returns a copy of an asset's cells; nil for an unknown asset.
func (f *Frame) Column(asset AssetID) []Value {
	col, ok := f.cells[asset]
	if !ok {
		return nil
	}
	return append([]Value(nil), col...)
}

// At returns the cell at row i for asset; unknown cells are missing.
func (f *Frame) At(i int, asset AssetID) Value {
	col, ok := f.cells[asset]
	if !ok || i < 0 || i >= len(col) {
		return Missing()
	}
	return col[i]
}

// Set stores v at row i for asset. It panics on an unknown asset or row.
func (f *Frame) Set(i int, asset AssetID, v Value) {
	col, ok := f.cells[asset]
	if !ok {
		panic(fmt.Sprintf("frame: unknown column %s", asset))
	}
	col[i] = v
}

// Last returns the final row's cell for asset.
func (f *Frame) Last(asset AssetID) Value {
	return f.At(len(f.index)-1, asset)
}

// rows builds a new frame from the given row positions, in order.
func (f *Frame) rows(keep []int) *Frame {
	index := make([]time.Time, len(keep))
	for i, r := range keep {
		index[i] = f.index[r]
	}
	out := NewFrame(index, f.columns)
	for _, c := range f.columns {
		src, dst := f.cells[c], out.cells[c]
		for i, r := range keep {
			dst[i] = src[r]
		}
	}
	return out
}

type frameJSON struct {
	Index   []time.Time         `json:"index"`
	Columns []AssetID           `json:"columns"`
	Data    map[AssetID][]Value `json:"data"`
}

func (f *Frame) MarshalJSON() ([]byte, error) {
	return json.Marshal(frameJSON{Index: f.index, Columns: f.columns, Data: f.cells})
}

func (f *Frame) UnmarshalJSON(b []byte) error {
	var raw frameJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	out := NewFrame(raw.Index, raw.Columns)
	for _, c := range raw.Columns {
		col := raw.Data[c]
		if len(col) != len(raw.Index) {
			return fmt.Errorf("frame: column %s has %d cells, index has %d", c, len(col), len(raw.Index))
		}
		copy(out.cells[c], col)
	}
	*f = *out
	return nil
}
