package httpapi

import (
	"errors"
	"io"
	"net/http"

	"google.golang.org/protobuf/encoding/protowire"
)

// maxRequestBody caps the request body size for both protobuf and JSON
// payloads. Reader messages are well under 256 bytes.
const maxRequestBody = 4096

const protobufContentType = "application/x-protobuf"

// isProtobuf returns true if the request's Content-Type indicates a
// protobuf payload. ESP32 readers send "application/x-protobuf".
func isProtobuf(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	return ct == protobufContentType ||
		ct == "application/protobuf" ||
		ct == "application/octet-stream"
}

// wireMessage is a decoded flat protobuf message: length-delimited fields as
// strings and varint fields as raw uint64. Nested messages are not used by
// the reader protocol.
type wireMessage struct {
	strs    map[protowire.Number]string
	varints map[protowire.Number]uint64
}

var errBodyTooLarge = errors.New("protobuf: body too large")

// readProto reads the request body and decodes it field by field. Unknown
// fields are skipped; the last occurrence of a field wins.
func readProto(r *http.Request) (wireMessage, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody+1))
	if err != nil {
		return wireMessage{}, err
	}
	if len(body) > maxRequestBody {
		return wireMessage{}, errBodyTooLarge
	}
	return parseWire(body)
}

func parseWire(b []byte) (wireMessage, error) {
	m := wireMessage{
		strs:    make(map[protowire.Number]string),
		varints: make(map[protowire.Number]uint64),
	}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return wireMessage{}, protowire.ParseError(n)
		}
		b = b[n:]

		switch typ {
		case protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return wireMessage{}, protowire.ParseError(n)
			}
			m.strs[num] = string(v)
			b = b[n:]
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return wireMessage{}, protowire.ParseError(n)
			}
			m.varints[num] = v
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return wireMessage{}, protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	return m, nil
}

func (m wireMessage) str(num protowire.Number) string { return m.strs[num] }

func (m wireMessage) uint(num protowire.Number) uint64 { return m.varints[num] }

// int32Ptr returns a proto3 optional int32, nil when absent.
func (m wireMessage) int32Ptr(num protowire.Number) *int {
	v, ok := m.varints[num]
	if !ok {
		return nil
	}
	i := int(int32(v))
	return &i
}

// wireBuilder appends proto3 fields, omitting zero values.
type wireBuilder struct{ b []byte }

func (w *wireBuilder) str(num protowire.Number, v string) {
	if v == "" {
		return
	}
	w.b = protowire.AppendTag(w.b, num, protowire.BytesType)
	w.b = protowire.AppendString(w.b, v)
}

func (w *wireBuilder) varint(num protowire.Number, v uint64) {
	if v == 0 {
		return
	}
	w.b = protowire.AppendTag(w.b, num, protowire.VarintType)
	w.b = protowire.AppendVarint(w.b, v)
}

func (w *wireBuilder) boolean(num protowire.Number, v bool) {
	w.varint(num, protowire.EncodeBool(v))
}

// writeProto writes an encoded message with the given HTTP status.
func writeProto(w http.ResponseWriter, status int, data []byte) {
	w.Header().Set("Content-Type", protobufContentType)
	w.WriteHeader(status)
	_, _ = w.Write(data)
}
