package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

const (
	// principalFormatV1 used single-byte name lengths and uint16 set counts.
	// It is still decoded so sessions written before the upgrade stay valid.
	principalFormatV1 = 1

	principalFormatVersionCurrent = 2
)

var errPrincipalLength = errors.New("principal length exceeds payload")

// EncodePrincipal serializes p into the compact binary form stored by
// [RedisStore]:
//
//	version(1) | uvarint idLen id | uvarint roleCount [uvarint len name]... | uvarint permCount [uvarint len name]...
//
// Set members are written in sorted order so equal principals encode equally.
// Names and sets of any size are representable.
func EncodePrincipal(p Principal) []byte {
	var buf bytes.Buffer

	buf.WriteByte(principalFormatVersionCurrent)
	writeName(&buf, p.id)
	writeSet(&buf, p.Roles())
	writeSet(&buf, p.Permissions())

	return buf.Bytes()
}

// DecodePrincipal parses data produced by [EncodePrincipal].
func DecodePrincipal(data []byte) (Principal, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return Principal{}, err
	}

	var d decoder
	switch version {
	case principalFormatVersionCurrent:
		d = decoder{readLen: readUvarint, readCount: readUvarint}
	case principalFormatV1:
		d = decoder{readLen: readByteLen, readCount: readUint16}
	default:
		return Principal{}, errors.New("invalid principal version")
	}

	id, err := d.name(reader)
	if err != nil {
		return Principal{}, err
	}
	roles, err := d.set(reader)
	if err != nil {
		return Principal{}, err
	}
	perms, err := d.set(reader)
	if err != nil {
		return Principal{}, err
	}
	if reader.Len() != 0 {
		return Principal{}, errors.New("trailing principal bytes")
	}

	return NewPrincipal(id, roles, perms), nil
}

func writeName(buf *bytes.Buffer, name string) {
	buf.Write(binary.AppendUvarint(nil, uint64(len(name))))
	buf.WriteString(name)
}

func writeSet(buf *bytes.Buffer, names []string) {
	buf.Write(binary.AppendUvarint(nil, uint64(len(names))))
	for _, name := range names {
		writeName(buf, name)
	}
}

type decoder struct {
	readLen   func(*bytes.Reader) (uint64, error)
	readCount func(*bytes.Reader) (uint64, error)
}

func (d decoder) name(reader *bytes.Reader) (string, error) {
	n, err := d.readLen(reader)
	if err != nil {
		return "", err
	}
	if n > uint64(reader.Len()) {
		return "", errPrincipalLength
	}
	name := make([]byte, n)
	if _, err := io.ReadFull(reader, name); err != nil {
		return "", err
	}
	return string(name), nil
}

func (d decoder) set(reader *bytes.Reader) ([]string, error) {
	count, err := d.readCount(reader)
	if err != nil {
		return nil, err
	}
	// every member carries at least one length byte
	if count > uint64(reader.Len()) {
		return nil, errPrincipalLength
	}
	names := make([]string, 0, count)
	for i := uint64(0); i < count; i++ {
		name, err := d.name(reader)
		if err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, nil
}

func readUvarint(reader *bytes.Reader) (uint64, error) {
	return binary.ReadUvarint(reader)
}

func readByteLen(reader *bytes.Reader) (uint64, error) {
	b, err := reader.ReadByte()
	return uint64(b), err
}

func readUint16(reader *bytes.Reader) (uint64, error) {
	var n uint16
	if err := binary.Read(reader, binary.BigEndian, &n); err != nil {
		return 0, err
	}
	return uint64(n), nil
}
