package json

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type wrapper struct {
	Data []map[string]interface{} `json:"data"`
}

func TestMarshalCompact(t *testing.T) {
	out, err := MarshalCompact(wrapper{Data: []map[string]interface{}{{"url": "http://a.example/?x=1&y=<2>"}}})
	require.NoError(t, err)

	assert.Equal(t, `{"data":[{"url":"http://a.example/?x=1&y=<2>"}]}`, string(out))
}

func TestMarshalIndent(t *testing.T) {
	out, err := MarshalIndent(map[string]string{"content_type": "application/json"}, "", "  ")
	require.NoError(t, err)

	assert.Equal(t, "{\n  \"content_type\": \"application/json\"\n}", string(out))
}

func TestMarshalCompactReturnsOwnedSlice(t *testing.T) {
	first, err := MarshalCompact(map[string]int{"a": 1})
	require.NoError(t, err)
	_, err = MarshalCompact(map[string]int{"b": 2})
	require.NoError(t, err)

	assert.Equal(t, `{"a":1}`, string(first))
}

func TestNewDecoderUsesNumber(t *testing.T) {
	dec := NewDecoder(strings.NewReader(`{"id": 12345678901234567}`))

	var v map[string]interface{}
	require.NoError(t, dec.Decode(&v))

	n, ok := v["id"].(Number)
	require.True(t, ok)
	assert.Equal(t, "12345678901234567", n.String())
}

func TestBufferPool(t *testing.T) {
	buf := GetBuffer()
	buf.WriteString("stale")
	PutBuffer(buf)

	assert.Equal(t, 0, GetBuffer().Len())
}
