package vault

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// 记录字段号
const (
	fieldKey   protowire.Number = 1
	fieldValue protowire.Number = 2
)

// Record 键值记录
type Record struct {
	Key   string
	Value []byte
}

// MarshalRecord 按 protobuf 线格式编码
func MarshalRecord(r Record) []byte {
	b := make([]byte, 0, len(r.Key)+len(r.Value)+8)
	b = protowire.AppendTag(b, fieldKey, protowire.BytesType)
	b = protowire.AppendString(b, r.Key)
	b = protowire.AppendTag(b, fieldValue, protowire.BytesType)
	b = protowire.AppendBytes(b, r.Value)
	return b
}

// UnmarshalRecord 解码记录；未知字段被跳过
func UnmarshalRecord(b []byte) (Record, error) {
	var r Record
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return Record{}, fmt.Errorf("%w: %v", ErrMalformedRecord, protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == fieldKey && typ == protowire.BytesType:
			v, m := protowire.ConsumeString(b)
			if m < 0 {
				return Record{}, fmt.Errorf("%w: %v", ErrMalformedRecord, protowire.ParseError(m))
			}
			r.Key, b = v, b[m:]
		case num == fieldValue && typ == protowire.BytesType:
			v, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return Record{}, fmt.Errorf("%w: %v", ErrMalformedRecord, protowire.ParseError(m))
			}
			r.Value, b = append([]byte(nil), v...), b[m:]
		default:
			m := protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return Record{}, fmt.Errorf("%w: %v", ErrMalformedRecord, protowire.ParseError(m))
			}
			b = b[m:]
		}
	}
	return r, nil
}
