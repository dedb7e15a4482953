package graphdb

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

const recordVersion byte = 2

// RecordKind tags what a page holds
type RecordKind byte

const (
	RecordEmpty  RecordKind = 0
	RecordVertex RecordKind = 'V'
	RecordEdge   RecordKind = 'E'
)

var errEmptyRecord = errors.New("empty record")

// Serialize converts a Vertex or Edge to a byte slice:
// version(1) kind(1) id(8) active(1) then kind specific fields and properties.
func Serialize(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(64)
	buf.WriteByte(recordVersion)

	switch val := v.(type) {
	case Vertex:
		buf.WriteByte(byte(RecordVertex))
		if err := binary.Write(&buf, binary.LittleEndian, val.ID); err != nil {
			return nil, fmt.Errorf("failed to write vertex ID: %w", err)
		}
		buf.WriteByte(btoi(val.Active))
		if err := writeString(&buf, val.NodeType); err != nil {
			return nil, fmt.Errorf("failed to write node type: %w", err)
		}
		if err := writeProperties(&buf, val.Properties); err != nil {
			return nil, err
		}
	case Edge:
		buf.WriteByte(byte(RecordEdge))
		if err := binary.Write(&buf, binary.LittleEndian, val.ID); err != nil {
			return nil, fmt.Errorf("failed to write edge ID: %w", err)
		}
		buf.WriteByte(btoi(val.Active))
		if err := writeString(&buf, val.Label); err != nil {
			return nil, fmt.Errorf("failed to write edge label %q: %w", val.Label, err)
		}
		if err := binary.Write(&buf, binary.LittleEndian, val.Out); err != nil {
			return nil, fmt.Errorf("failed to write out vertex ID: %w", err)
		}
		if err := binary.Write(&buf, binary.LittleEndian, val.In); err != nil {
			return nil, fmt.Errorf("failed to write in vertex ID: %w", err)
		}
		if err := writeProperties(&buf, val.Properties); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported type for serialization: %T", v)
	}
	return buf.Bytes(), nil
}

// PeekKind reports the record kind stored in data without decoding it
func PeekKind(data []byte) (RecordKind, error) {
	if len(data) < 2 || data[0] == 0 {
		return RecordEmpty, nil
	}
	if data[0] != recordVersion {
		return RecordEmpty, fmt.Errorf("unsupported record version: %d", data[0])
	}
	return RecordKind(data[1]), nil
}

// Deserialize converts a byte slice into *Vertex or *Edge
func Deserialize(data []byte, v interface{}) error {
	kind, err := PeekKind(data)
	if err != nil {
		return err
	}
	if kind == RecordEmpty {
		return errEmptyRecord
	}
	buf := bytes.NewReader(data[2:])

	switch val := v.(type) {
	case *Vertex:
		if kind != RecordVertex {
			return fmt.Errorf("record kind %q is not a vertex", kind)
		}
		if err := binary.Read(buf, binary.LittleEndian, &val.ID); err != nil {
			return fmt.Errorf("failed to read vertex ID: %w", err)
		}
		active, err := buf.ReadByte()
		if err != nil {
			return fmt.Errorf("failed to read vertex active flag: %w", err)
		}
		val.Active = active != 0
		if val.NodeType, err = readString(buf); err != nil {
			return fmt.Errorf("failed to read node type: %w", err)
		}
		if val.Properties, err = readProperties(buf); err != nil {
			return err
		}
	case *Edge:
		if kind != RecordEdge {
			return fmt.Errorf("record kind %q is not an edge", kind)
		}
		if err := binary.Read(buf, binary.LittleEndian, &val.ID); err != nil {
			return fmt.Errorf("failed to read edge ID: %w", err)
		}
		active, err := buf.ReadByte()
		if err != nil {
			return fmt.Errorf("failed to read edge active flag: %w", err)
		}
		val.Active = active != 0
		if val.Label, err = readString(buf); err != nil {
			return fmt.Errorf("failed to read edge label: %w", err)
		}
		if err := binary.Read(buf, binary.LittleEndian, &val.Out); err != nil {
			return fmt.Errorf("failed to read out vertex ID: %w", err)
		}
		if err := binary.Read(buf, binary.LittleEndian, &val.In); err != nil {
			return fmt.Errorf("failed to read in vertex ID: %w", err)
		}
		if val.Properties, err = readProperties(buf); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unsupported type for deserialization: %T", v)
	}
	return nil
}

func writeString(buf *bytes.Buffer, s string) error {
	if err := binary.Write(buf, binary.LittleEndian, uint32(len(s))); err != nil {
		return err
	}
	_, err := buf.WriteString(s)
	return err
}

func readString(buf *bytes.Reader) (string, error) {
	var n uint32
	if err := binary.Read(buf, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	if int(n) > buf.Len() {
		return "", fmt.Errorf("string length %d exceeds remaining buffer %d", n, buf.Len())
	}
	b := make([]byte, n)
	if _, err := buf.Read(b); err != nil {
		return "", err
	}
	return string(b), nil
}

func writeProperties(buf *bytes.Buffer, props []Property) error {
	if err := binary.Write(buf, binary.LittleEndian, uint32(len(props))); err != nil {
		return fmt.Errorf("failed to write property count: %w", err)
	}
	for _, prop := range props {
		if err := writeProperty(buf, prop); err != nil {
			return fmt.Errorf("failed to serialize property %q: %w", prop.Key, err)
		}
	}
	return nil
}

func readProperties(buf *bytes.Reader) ([]Property, error) {
	var count uint32
	if err := binary.Read(buf, binary.LittleEndian, &count); err != nil {
		return nil, fmt.Errorf("failed to read property count: %w", err)
	}
	props := make([]Property, count)
	for i := range props {
		if err := readProperty(buf, &props[i]); err != nil {
			return nil, fmt.Errorf("failed to deserialize property at index %d: %w", i, err)
		}
	}
	return props, nil
}

// writeProperty serializes a single property
func writeProperty(buf *bytes.Buffer, prop Property) error {
	if err := writeString(buf, prop.Key); err != nil {
		return fmt.Errorf("failed to write key: %w", err)
	}
	buf.WriteByte(byte(prop.Type))
	switch prop.Type {
	case PropertyInt:
		v, ok := prop.Value.(int64)
		if !ok {
			return fmt.Errorf("invalid int64 value for property %q: %T", prop.Key, prop.Value)
		}
		return binary.Write(buf, binary.LittleEndian, v)
	case PropertyString:
		v, ok := prop.Value.(string)
		if !ok {
			return fmt.Errorf("invalid string value for property %q: %T", prop.Key, prop.Value)
		}
		return writeString(buf, v)
	case PropertyBool:
		v, ok := prop.Value.(bool)
		if !ok {
			return fmt.Errorf("invalid bool value for property %q: %T", prop.Key, prop.Value)
		}
		return buf.WriteByte(btoi(v))
	default:
		return fmt.Errorf("unsupported property type %d for property %q", prop.Type, prop.Key)
	}
}

// readProperty deserializes a single property
func readProperty(buf *bytes.Reader, prop *Property) error {
	key, err := readString(buf)
	if err != nil {
		return fmt.Errorf("failed to read key: %w", err)
	}
	propType, err := buf.ReadByte()
	if err != nil {
		return fmt.Errorf("failed to read property type: %w", err)
	}
	prop.Key = key
	prop.Type = PropertyType(propType)

	switch prop.Type {
	case PropertyInt:
		var v int64
		if err := binary.Read(buf, binary.LittleEndian, &v); err != nil {
			return fmt.Errorf("failed to read int64 value: %w", err)
		}
		prop.Value = v
	case PropertyString:
		v, err := readString(buf)
		if err != nil {
			return fmt.Errorf("failed to read string value: %w", err)
		}
		prop.Value = v
	case PropertyBool:
		v, err := buf.ReadByte()
		if err != nil {
			return fmt.Errorf("failed to read bool value: %w", err)
		}
		prop.Value = v != 0
	default:
		return fmt.Errorf("unsupported property type %d", prop.Type)
	}
	return nil
}

// btoi converts bool to byte (0 or 1)
func btoi(b bool) byte {
	if b {
		return 1
	}
	return 0
}
