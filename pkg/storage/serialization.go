package storage

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// Serializer selects the record encoding used by BadgerEngine.
type Serializer string

const (
	SerializerMsgpack Serializer = "msgpack"
	SerializerGob     Serializer = "gob"
)

const (
	serializationMagic   = "\xffNQ"
	serializationVersion = byte(1)
	serializerIDGob      = byte(1)
	serializerIDMsgpack  = byte(2)
)

// gob needs every concrete type that may sit behind an any in Properties.
func init() {
	gob.Register(int(0))
	gob.Register(int64(0))
	gob.Register(float64(0))
	gob.Register("")
	gob.Register(true)
	gob.Register([]any{})
	gob.Register([]string{})
	gob.Register([]int64{})
	gob.Register([]float64{})
	gob.Register(map[string]any{})
}

// ParseSerializer normalizes and validates a serializer name. The empty
// string selects msgpack.
func ParseSerializer(value string) (Serializer, error) {
	normalized := Serializer(strings.ToLower(strings.TrimSpace(value)))
	switch normalized {
	case "":
		return SerializerMsgpack, nil
	case SerializerGob, SerializerMsgpack:
		return normalized, nil
	default:
		return "", fmt.Errorf("unsupported storage serializer: %s", value)
	}
}

func serializerIDFor(s Serializer) (byte, error) {
	switch s {
	case SerializerGob:
		return serializerIDGob, nil
	case SerializerMsgpack:
		return serializerIDMsgpack, nil
	default:
		return 0, fmt.Errorf("unsupported storage serializer: %s", s)
	}
}

func serializerFromID(id byte) (Serializer, error) {
	switch id {
	case serializerIDGob:
		return SerializerGob, nil
	case serializerIDMsgpack:
		return SerializerMsgpack, nil
	default:
		return "", fmt.Errorf("unsupported storage serializer id: %d", id)
	}
}

// encodeValue writes magic, version and serializer id ahead of the payload
// so records stay readable after the configured serializer changes.
func encodeValue(s Serializer, value any) ([]byte, error) {
	id, err := serializerIDFor(s)
	if err != nil {
		return nil, err
	}
	var payload []byte
	switch s {
	case SerializerGob:
		var buf bytes.Buffer
		if err := gob.NewEncoder(&buf).Encode(value); err != nil {
			return nil, err
		}
		payload = buf.Bytes()
	default:
		payload, err = msgpack.Marshal(value)
		if err != nil {
			return nil, err
		}
	}
	out := make([]byte, 0, len(serializationMagic)+2+len(payload))
	out = append(out, serializationMagic...)
	out = append(out, serializationVersion, id)
	return append(out, payload...), nil
}

func decodeValue(data []byte, value any) error {
	header := len(serializationMagic) + 2
	if len(data) < header || string(data[:len(serializationMagic)]) != serializationMagic {
		return fmt.Errorf("%w: missing serialization header", ErrInvalidData)
	}
	if v := data[len(serializationMagic)]; v != serializationVersion {
		return fmt.Errorf("unsupported serialization version: %d", v)
	}
	s, err := serializerFromID(data[len(serializationMagic)+1])
	if err != nil {
		return err
	}
	payload := data[header:]
	switch s {
	case SerializerGob:
		return gob.NewDecoder(bytes.NewReader(payload)).Decode(value)
	default:
		// Loose decoding widens integers to int64 and floats to float64.
		dec := msgpack.NewDecoder(bytes.NewReader(payload))
		dec.UseLooseInterfaceDecoding(true)
		return dec.Decode(value)
	}
}
