package codec

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"reflect"
)

func encodeValue(buf *bytes.Buffer, v interface{}) error {
	return encodeReflect(buf, reflect.ValueOf(v))
}

func encodeReflect(buf *bytes.Buffer, rv reflect.Value) error {
	switch rv.Kind() {
	case reflect.Ptr:
		// optional value: presence byte then payload
		if rv.IsNil() {
			buf.WriteByte(0)
			return nil
		}
		buf.WriteByte(1)
		return encodeReflect(buf, rv.Elem())

	case reflect.Bool:
		if rv.Bool() {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
		return nil

	case reflect.Uint8:
		buf.WriteByte(byte(rv.Uint()))
		return nil

	case reflect.Uint16:
		var b [2]byte
		binary.LittleEndian.PutUint16(b[:], uint16(rv.Uint()))
		buf.Write(b[:])
		return nil

	case reflect.Uint32:
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], uint32(rv.Uint()))
		buf.Write(b[:])
		return nil

	case reflect.Uint64, reflect.Uint:
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], rv.Uint())
		buf.Write(b[:])
		return nil

	case reflect.String:
		s := rv.String()
		buf.Write(EncodeCompactLength(uint64(len(s))))
		buf.WriteString(s)
		return nil

	case reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			for i := 0; i < rv.Len(); i++ {
				buf.WriteByte(byte(rv.Index(i).Uint()))
			}
			return nil
		}
		for i := 0; i < rv.Len(); i++ {
			if err := encodeReflect(buf, rv.Index(i)); err != nil {
				return err
			}
		}
		return nil

	case reflect.Slice:
		buf.Write(EncodeCompactLength(uint64(rv.Len())))
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			buf.Write(rv.Bytes())
			return nil
		}
		for i := 0; i < rv.Len(); i++ {
			if err := encodeReflect(buf, rv.Index(i)); err != nil {
				return err
			}
		}
		return nil

	case reflect.Struct:
		for i := 0; i < rv.NumField(); i++ {
			if !rv.Type().Field(i).IsExported() {
				continue
			}
			if err := encodeReflect(buf, rv.Field(i)); err != nil {
				return fmt.Errorf("field %s: %w", rv.Type().Field(i).Name, err)
			}
		}
		return nil

	default:
		return fmt.Errorf("codec: unsupported kind %s", rv.Kind())
	}
}

func decodeValue(r *bytes.Reader, v interface{}) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return fmt.Errorf("codec: decode target must be a non-nil pointer")
	}
	return decodeReflect(r, rv.Elem())
}

func decodeReflect(r *bytes.Reader, rv reflect.Value) error {
	switch rv.Kind() {
	case reflect.Ptr:
		present, err := r.ReadByte()
		if err != nil {
			return fmt.Errorf("codec: truncated optional: %w", err)
		}
		switch present {
		case 0:
			rv.Set(reflect.Zero(rv.Type()))
			return nil
		case 1:
			rv.Set(reflect.New(rv.Type().Elem()))
			return decodeReflect(r, rv.Elem())
		default:
			return fmt.Errorf("codec: invalid optional tag %d", present)
		}

	case reflect.Bool:
		b, err := r.ReadByte()
		if err != nil {
			return fmt.Errorf("codec: truncated bool: %w", err)
		}
		if b > 1 {
			return fmt.Errorf("codec: invalid bool byte %d", b)
		}
		rv.SetBool(b == 1)
		return nil

	case reflect.Uint8:
		b, err := r.ReadByte()
		if err != nil {
			return fmt.Errorf("codec: truncated uint8: %w", err)
		}
		rv.SetUint(uint64(b))
		return nil

	case reflect.Uint16:
		var b [2]byte
		if _, err := readFull(r, b[:]); err != nil {
			return fmt.Errorf("codec: truncated uint16: %w", err)
		}
		rv.SetUint(uint64(binary.LittleEndian.Uint16(b[:])))
		return nil

	case reflect.Uint32:
		var b [4]byte
		if _, err := readFull(r, b[:]); err != nil {
			return fmt.Errorf("codec: truncated uint32: %w", err)
		}
		rv.SetUint(uint64(binary.LittleEndian.Uint32(b[:])))
		return nil

	case reflect.Uint64, reflect.Uint:
		var b [8]byte
		if _, err := readFull(r, b[:]); err != nil {
			return fmt.Errorf("codec: truncated uint64: %w", err)
		}
		rv.SetUint(binary.LittleEndian.Uint64(b[:]))
		return nil

	case reflect.String:
		n, err := DecodeCompactLength(r)
		if err != nil {
			return err
		}
		if n > uint64(r.Len()) {
			return fmt.Errorf("codec: string length %d exceeds remaining input", n)
		}
		b := make([]byte, n)
		if _, err := readFull(r, b); err != nil {
			return fmt.Errorf("codec: truncated string: %w", err)
		}
		rv.SetString(string(b))
		return nil

	case reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			b := make([]byte, rv.Len())
			if _, err := readFull(r, b); err != nil {
				return fmt.Errorf("codec: truncated [%d]byte: %w", rv.Len(), err)
			}
			reflect.Copy(rv, reflect.ValueOf(b))
			return nil
		}
		for i := 0; i < rv.Len(); i++ {
			if err := decodeReflect(r, rv.Index(i)); err != nil {
				return err
			}
		}
		return nil

	case reflect.Slice:
		n, err := DecodeCompactLength(r)
		if err != nil {
			return err
		}
		if n == 0 {
			rv.Set(reflect.Zero(rv.Type()))
			return nil
		}
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			if n > uint64(r.Len()) {
				return fmt.Errorf("codec: byte slice length %d exceeds remaining input", n)
			}
			b := make([]byte, n)
			if _, err := readFull(r, b); err != nil {
				return fmt.Errorf("codec: truncated byte slice: %w", err)
			}
			rv.SetBytes(b)
			return nil
		}
		if n > uint64(r.Len()) {
			return fmt.Errorf("codec: slice length %d exceeds remaining input", n)
		}
		s := reflect.MakeSlice(rv.Type(), int(n), int(n))
		for i := 0; i < int(n); i++ {
			if err := decodeReflect(r, s.Index(i)); err != nil {
				return err
			}
		}
		rv.Set(s)
		return nil

	case reflect.Struct:
		for i := 0; i < rv.NumField(); i++ {
			if !rv.Type().Field(i).IsExported() {
				continue
			}
			if err := decodeReflect(r, rv.Field(i)); err != nil {
				return fmt.Errorf("field %s: %w", rv.Type().Field(i).Name, err)
			}
		}
		return nil

	default:
		return fmt.Errorf("codec: unsupported kind %s", rv.Kind())
	}
}

func readFull(r *bytes.Reader, b []byte) (int, error) {
	n, err := r.Read(b)
	if err != nil {
		return n, err
	}
	if n != len(b) {
		return n, fmt.Errorf("short read: %d of %d", n, len(b))
	}
	return n, nil
}
