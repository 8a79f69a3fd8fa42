package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBucketCodec_TypedColumns(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	streamers := StreamersFor([]DataType{TypeString, TypeLong, TypeDouble, TypeBoolean, TypeTimestamp})
	in := Bucket{
		{"alice", int64(7), 1.5, true, ts},
		{nil, int64(-1), 0.0, false, ts.Add(time.Hour)},
	}

	data, err := EncodeBucket(streamers, in)
	require.NoError(t, err)

	out, err := DecodeBucket(streamers, data)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestBucketCodec_Untyped(t *testing.T) {
	data, err := EncodeBucket(nil, Bucket{{"x", 1}})
	require.NoError(t, err)

	out, err := DecodeBucket(nil, data)
	require.NoError(t, err)
	assert.Equal(t, Bucket{{"x", float64(1)}}, out)
}

func TestBucketCodec_ColumnMismatch(t *testing.T) {
	streamers := StreamersFor([]DataType{TypeString})

	_, err := EncodeBucket(streamers, Bucket{{"a", "b"}})
	assert.Error(t, err)

	_, err = DecodeBucket(streamers, []byte(`[["a","b"]]`))
	assert.Error(t, err)
}

func TestBucketCodec_Garbage(t *testing.T) {
	_, err := DecodeBucket(nil, []byte("{"))
	assert.Error(t, err)

	_, err = DecodeBucket(StreamersFor([]DataType{TypeLong}), []byte(`[["nope"]]`))
	assert.Error(t, err)
}
