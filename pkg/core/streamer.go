package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// DataType names the type of a result column.
type DataType string

const (
	TypeUndefined DataType = "undefined"
	TypeString    DataType = "string"
	TypeLong      DataType = "long"
	TypeDouble    DataType = "double"
	TypeBoolean   DataType = "boolean"
	TypeTimestamp DataType = "timestamp"
)

// Streamer encodes and decodes the values of one column.
type Streamer interface {
	Encode(v any) (json.RawMessage, error)
	Decode(raw json.RawMessage) (any, error)
}

// JSONStreamer is the default Streamer. Values travel as JSON and are
// converted back to the Go type matching the column's DataType.
type JSONStreamer struct {
	Type DataType
}

// StreamersFor returns one JSONStreamer per column type.
func StreamersFor(types []DataType) []Streamer {
	streamers := make([]Streamer, len(types))
	for i, t := range types {
		streamers[i] = JSONStreamer{Type: t}
	}
	return streamers
}

func (s JSONStreamer) Encode(v any) (json.RawMessage, error) {
	if t, ok := v.(time.Time); ok && s.Type == TypeTimestamp {
		v = t.UnixMilli()
	}
	return json.Marshal(v)
}

func (s JSONStreamer) Decode(raw json.RawMessage) (any, error) {
	if bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	switch s.Type {
	case TypeString:
		var v string
		err := json.Unmarshal(raw, &v)
		return v, err
	case TypeLong:
		var v int64
		err := json.Unmarshal(raw, &v)
		return v, err
	case TypeDouble:
		var v float64
		err := json.Unmarshal(raw, &v)
		return v, err
	case TypeBoolean:
		var v bool
		err := json.Unmarshal(raw, &v)
		return v, err
	case TypeTimestamp:
		var ms int64
		if err := json.Unmarshal(raw, &ms); err != nil {
			return nil, err
		}
		return time.UnixMilli(ms).UTC(), nil
	default:
		var v any
		err := json.Unmarshal(raw, &v)
		return v, err
	}
}

// EncodeBucket serializes a bucket, one streamer per column. Without
// streamers every value is encoded as plain JSON.
func EncodeBucket(streamers []Streamer, b Bucket) ([]byte, error) {
	rows := make([][]json.RawMessage, len(b))
	for i, row := range b {
		if len(streamers) > 0 && len(row) != len(streamers) {
			return nil, fmt.Errorf("row %d has %d columns, expected %d", i, len(row), len(streamers))
		}
		cells := make([]json.RawMessage, len(row))
		for j, v := range row {
			var s Streamer = JSONStreamer{Type: TypeUndefined}
			if len(streamers) > 0 {
				s = streamers[j]
			}
			raw, err := s.Encode(v)
			if err != nil {
				return nil, fmt.Errorf("row %d column %d: %w", i, j, err)
			}
			cells[j] = raw
		}
		rows[i] = cells
	}
	return json.Marshal(rows)
}

// DecodeBucket is the inverse of EncodeBucket.
func DecodeBucket(streamers []Streamer, data []byte) (Bucket, error) {
	var rows [][]json.RawMessage
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("decode bucket: %w", err)
	}
	b := make(Bucket, len(rows))
	for i, cells := range rows {
		if len(streamers) > 0 && len(cells) != len(streamers) {
			return nil, fmt.Errorf("row %d has %d columns, expected %d", i, len(cells), len(streamers))
		}
		row := make(Row, len(cells))
		for j, raw := range cells {
			var s Streamer = JSONStreamer{Type: TypeUndefined}
			if len(streamers) > 0 {
				s = streamers[j]
			}
			v, err := s.Decode(raw)
			if err != nil {
				return nil, fmt.Errorf("row %d column %d: %w", i, j, err)
			}
			row[j] = v
		}
		b[i] = row
	}
	return b, nil
}
