// Copyright (c) 2020-2023 Ozan Hacıbekiroğlu.
// Use of this source code is governed by a MIT License
// that can be found in the LICENSE file.

package encoder

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/ozanh/ulan"
)

// Code signature and version are written to the header of encoded Code.
// Code is encoded with current CodeVersion and its format.
const (
	CodeSignature uint32 = 0x756C616E
	CodeVersion   uint16 = 1
)

// Types implementing encoding.BinaryMarshaler encoding.BinaryUnmarshaler.
type (
	Code   ulan.Code
	Tuple  ulan.Tuple
	String ulan.String
	Int    ulan.Int
	Float  ulan.Float
	Bool   ulan.Bool
)

const (
	binNoneV1 byte = iota
	binTrueV1
	binFalseV1
	binIntV1
	binFloatV1
	binStringV1
	binTupleV1
	binCodeV1
)

var (
	errVarintTooSmall = errors.New("read varint error: buf too small")
	errVarintOverflow = errors.New("read varint error: value larger than 64 bits (overflow)")
)

func newError(name, msg string) *ulan.Error {
	return &ulan.Error{Name: name, Message: msg}
}

// MarshalBinary implements encoding.BinaryMarshaler
func (o *Code) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	if err := writeCodeHeader(&buf); err != nil {
		return nil, err
	}
	if err := o.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler. Decoded code is
// validated before it is returned.
func (o *Code) UnmarshalBinary(data []byte) error {
	if len(data) < 6 {
		return newError("encoder.Code.UnmarshalBinary", "invalid data")
	}

	sig := binary.BigEndian.Uint32(data[0:4])
	if sig != CodeSignature {
		return newError("encoder.Code.UnmarshalBinary", "signature mismatch")
	}

	version := binary.BigEndian.Uint16(data[4:6])
	if version != CodeVersion {
		return newError("encoder.Code.UnmarshalBinary",
			"unsupported version:"+strconv.Itoa(int(version)))
	}

	r := bytes.NewReader(data[6:])
	btype, err := r.ReadByte()
	if err != nil {
		return err
	}
	if btype != binCodeV1 {
		return newError("encoder.Code.UnmarshalBinary", "code expected")
	}
	if err := o.decode(r); err != nil {
		return err
	}
	return Validate((*ulan.Code)(o))
}

func writeCodeHeader(w io.Writer) error {
	var hdr [6]byte
	binary.BigEndian.PutUint32(hdr[0:4], CodeSignature)
	binary.BigEndian.PutUint16(hdr[4:6], CodeVersion)
	_, err := w.Write(hdr[:])
	return err
}

func (o *Code) encode(w *bytes.Buffer) error {
	w.WriteByte(binCodeV1)
	for _, v := range []int{
		o.ArgCount,
		o.KwOnlyArgCount,
		o.NLocals,
		o.StackSize,
		o.Flags,
		o.FirstLineNo,
	} {
		writeVarint(w, int64(v))
	}
	writeBytes(w, o.Code)
	writeBytes(w, o.LnoTab)
	writeBytes(w, []byte(o.Filename))
	writeBytes(w, []byte(o.Name))
	for _, names := range [][]string{o.Names, o.VarNames, o.FreeVars, o.CellVars} {
		writeStrings(w, names)
	}

	writeVarint(w, int64(len(o.Consts)))
	for i, c := range o.Consts {
		if err := encodeObject(w, c); err != nil {
			return fmt.Errorf("constant %d of %s: %w", i, o.Name, err)
		}
	}
	return nil
}

func (o *Code) decode(r *bytes.Reader) error {
	ints := make([]int, 6)
	for i := range ints {
		v, err := readVarint(r)
		if err != nil {
			return err
		}
		ints[i] = int(v)
	}
	o.ArgCount, o.KwOnlyArgCount, o.NLocals = ints[0], ints[1], ints[2]
	o.StackSize, o.Flags, o.FirstLineNo = ints[3], ints[4], ints[5]

	var err error
	if o.Code, err = readBytes(r); err != nil {
		return err
	}
	if o.LnoTab, err = readBytes(r); err != nil {
		return err
	}
	var s []byte
	if s, err = readBytes(r); err != nil {
		return err
	}
	o.Filename = string(s)
	if s, err = readBytes(r); err != nil {
		return err
	}
	o.Name = string(s)

	for _, dst := range []*[]string{&o.Names, &o.VarNames, &o.FreeVars, &o.CellVars} {
		if *dst, err = readStrings(r); err != nil {
			return err
		}
	}

	n, err := readLen(r)
	if err != nil {
		return err
	}
	o.Consts = make([]ulan.Object, n)
	for i := range o.Consts {
		if o.Consts[i], err = DecodeObject(r); err != nil {
			return err
		}
	}
	return nil
}

// MarshalBinary implements encoding.BinaryMarshaler
func (o Bool) MarshalBinary() ([]byte, error) {
	if o {
		return []byte{binTrueV1}, nil
	}
	return []byte{binFalseV1}, nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler
func (o *Bool) UnmarshalBinary(data []byte) error {
	if len(data) < 1 {
		return errors.New("invalid ulan.Bool data")
	}
	switch data[0] {
	case binTrueV1:
		*o = true
	case binFalseV1:
		*o = false
	default:
		return errors.New("invalid ulan.Bool data")
	}
	return nil
}

// MarshalBinary implements encoding.BinaryMarshaler
func (o Int) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(binIntV1)
	writeVarint(&buf, int64(o))
	return buf.Bytes(), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler
func (o *Int) UnmarshalBinary(data []byte) error {
	if len(data) < 2 || data[0] != binIntV1 {
		return errors.New("invalid ulan.Int data")
	}
	v, err := readVarint(bytes.NewReader(data[1:]))
	if err != nil {
		return err
	}
	*o = Int(v)
	return nil
}

// MarshalBinary implements encoding.BinaryMarshaler
func (o Float) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 9)
	buf[0] = binFloatV1
	binary.BigEndian.PutUint64(buf[1:], math.Float64bits(float64(o)))
	return buf, nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler
func (o *Float) UnmarshalBinary(data []byte) error {
	if len(data) < 9 || data[0] != binFloatV1 {
		return errors.New("invalid ulan.Float data")
	}
	*o = Float(math.Float64frombits(binary.BigEndian.Uint64(data[1:9])))
	return nil
}

// MarshalBinary implements encoding.BinaryMarshaler
func (o String) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(binStringV1)
	writeBytes(&buf, []byte(o))
	return buf.Bytes(), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler
func (o *String) UnmarshalBinary(data []byte) error {
	if len(data) < 2 || data[0] != binStringV1 {
		return errors.New("invalid ulan.String data")
	}
	s, err := readBytes(bytes.NewReader(data[1:]))
	if err != nil {
		return err
	}
	*o = String(s)
	return nil
}

// MarshalBinary implements encoding.BinaryMarshaler
func (o Tuple) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeObject(&buf, ulan.Tuple(o)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler
func (o *Tuple) UnmarshalBinary(data []byte) error {
	v, err := DecodeObject(bytes.NewReader(data))
	if err != nil {
		return err
	}
	t, ok := v.(ulan.Tuple)
	if !ok {
		return errors.New("invalid ulan.Tuple data")
	}
	*o = Tuple(t)
	return nil
}

func encodeObject(w *bytes.Buffer, o ulan.Object) error {
	switch v := o.(type) {
	case ulan.NoneType:
		w.WriteByte(binNoneV1)
	case ulan.Bool:
		data, _ := Bool(v).MarshalBinary()
		w.Write(data)
	case ulan.Int:
		data, _ := Int(v).MarshalBinary()
		w.Write(data)
	case ulan.Float:
		data, _ := Float(v).MarshalBinary()
		w.Write(data)
	case ulan.String:
		data, _ := String(v).MarshalBinary()
		w.Write(data)
	case ulan.Tuple:
		w.WriteByte(binTupleV1)
		writeVarint(w, int64(len(v)))
		for _, e := range v {
			if err := encodeObject(w, e); err != nil {
				return err
			}
		}
	case *ulan.Code:
		return (*Code)(v).encode(w)
	default:
		return fmt.Errorf("cannot encode object of type %s", o.TypeName())
	}
	return nil
}

// DecodeObject decodes a constant object from r.
func DecodeObject(r *bytes.Reader) (ulan.Object, error) {
	btype, err := r.ReadByte()
	if err != nil {
		return nil, err
	}

	switch btype {
	case binNoneV1:
		return ulan.None, nil
	case binTrueV1:
		return ulan.True, nil
	case binFalseV1:
		return ulan.False, nil
	case binIntV1:
		v, err := readVarint(r)
		if err != nil {
			return nil, err
		}
		return ulan.Int(v), nil
	case binFloatV1:
		var b [8]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return nil, err
		}
		return ulan.Float(math.Float64frombits(binary.BigEndian.Uint64(b[:]))), nil
	case binStringV1:
		s, err := readBytes(r)
		if err != nil {
			return nil, err
		}
		return ulan.String(s), nil
	case binTupleV1:
		n, err := readLen(r)
		if err != nil {
			return nil, err
		}
		t := make(ulan.Tuple, n)
		for i := range t {
			if t[i], err = DecodeObject(r); err != nil {
				return nil, err
			}
		}
		return t, nil
	case binCodeV1:
		var c Code
		if err := c.decode(r); err != nil {
			return nil, err
		}
		return (*ulan.Code)(&c), nil
	}
	return nil, errors.New(
		"decode error: unknown encoding type:" + strconv.Itoa(int(btype)),
	)
}

func writeVarint(w *bytes.Buffer, v int64) {
	var vi varintConv
	w.Write(vi.toBytes(v))
}

func readVarint(r *bytes.Reader) (int64, error) {
	vi := varintConv{reader: r}
	return vi.read()
}

func readLen(r *bytes.Reader) (int, error) {
	n, err := readVarint(r)
	if err != nil {
		return 0, err
	}
	if n < 0 || n > int64(r.Len()) {
		return 0, errors.New("invalid length")
	}
	return int(n), nil
}

func writeBytes(w *bytes.Buffer, b []byte) {
	writeVarint(w, int64(len(b)))
	w.Write(b)
}

func readBytes(r *bytes.Reader) ([]byte, error) {
	n, err := readLen(r)
	if err != nil {
		return nil, err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}

func writeStrings(w *bytes.Buffer, list []string) {
	writeVarint(w, int64(len(list)))
	for _, s := range list {
		writeBytes(w, []byte(s))
	}
}

func readStrings(r *bytes.Reader) ([]string, error) {
	n, err := readLen(r)
	if err != nil {
		return nil, err
	}
	list := make([]string, n)
	for i := range list {
		b, err := readBytes(r)
		if err != nil {
			return nil, err
		}
		list[i] = string(b)
	}
	return list, nil
}

type varintConv struct {
	buf    [1 + binary.MaxVarintLen64]byte
	reader *bytes.Reader
}

func (vi *varintConv) toBytes(v int64) []byte {
	n := binary.PutVarint(vi.buf[1:], v)
	vi.buf[0] = byte(n)
	return vi.buf[:n+1]
}

func (vi *varintConv) read() (value int64, err error) {
	var n byte
	n, err = vi.reader.ReadByte()
	if err != nil {
		return
	}

	if int(n) > len(vi.buf) {
		return 0, errVarintOverflow
	}

	data := vi.buf[:n]
	if n == 0 {
		return
	}

	if _, err = io.ReadFull(vi.reader, data); err != nil {
		return
	}

	var offset int
	value, offset = binary.Varint(data)
	if offset < 1 {
		if offset == 0 {
			err = errVarintTooSmall
			return
		}
		err = errVarintOverflow
		return
	}
	return
}
