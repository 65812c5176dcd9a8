package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSerializer(t *testing.T) {
	tests := []struct {
		in      string
		want    Serializer
		wantErr bool
	}{
		{"", SerializerMsgpack, false},
		{"msgpack", SerializerMsgpack, false},
		{" GOB ", SerializerGob, false},
		{"json", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSerializer(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeValue_ReadsEitherEncoding(t *testing.T) {
	rec := nodeRecord{Seq: 7, Node: Node{ID: "n", Labels: []string{"L"}, Properties: map[string]any{"k": "v"}}}

	gobData, err := encodeValue(SerializerGob, rec)
	require.NoError(t, err)
	msgpackData, err := encodeValue(SerializerMsgpack, rec)
	require.NoError(t, err)

	for name, data := range map[string][]byte{"gob": gobData, "msgpack": msgpackData} {
		t.Run(name, func(t *testing.T) {
			var got nodeRecord
			require.NoError(t, decodeValue(data, &got))
			assert.Equal(t, uint64(7), got.Seq)
			assert.Equal(t, NodeID("n"), got.Node.ID)
			assert.Equal(t, "v", got.Node.Properties["k"])
		})
	}
}

func TestDecodeValue_RejectsBadHeader(t *testing.T) {
	var rec nodeRecord
	assert.ErrorIs(t, decodeValue([]byte("plain"), &rec), ErrInvalidData)

	data, err := encodeValue(SerializerMsgpack, rec)
	require.NoError(t, err)
	data[len(serializationMagic)] = 99
	assert.Error(t, decodeValue(data, &rec))
}
