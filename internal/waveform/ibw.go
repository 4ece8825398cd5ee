package waveform

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	apperrors "ivfeatures/internal/errors"
)

// Igor Binary Wave numeric type codes
const (
	ibwComplex  = 0x01
	ibwFloat32  = 0x02
	ibwFloat64  = 0x04
	ibwInt8     = 0x08
	ibwInt16    = 0x10
	ibwInt32    = 0x20
	ibwUnsigned = 0x40
)

// Header sizes and the offsets of the wave-header fields we read. Data
// begins at the wData member, which is the tail of the wave header.
const (
	binHeader2Size = 16
	waveData2Off   = 110 // offset of wData inside WaveHeader2
	binHeader5Size = 64
	waveData5Off   = 320 // offset of wData inside WaveHeader5
)

// Wave is the decoded content of one Igor Binary Wave file
type Wave struct {
	Name    string
	Version int
	// Step is the x increment (hsA / sfA[0]) stored in the file
	Step float64
	// Offset is the x of the first sample (hsB / sfB[0])
	Offset float64
	Data   []float64
}

// DecodeIBW parses an Igor Binary Wave, versions 2 and 5, in either byte order
func DecodeIBW(raw []byte) (*Wave, error) {
	if len(raw) < 2 {
		return nil, apperrors.NewFormatError("ibw: file too short", nil)
	}

	order, version, err := detectOrder(raw)
	if err != nil {
		return nil, err
	}

	switch version {
	case 2:
		return decodeV2(raw, order)
	case 5:
		return decodeV5(raw, order)
	default:
		return nil, apperrors.NewFormatError(fmt.Sprintf("ibw: unsupported version %d", version), nil)
	}
}

// detectOrder reads the version field; a value that only makes sense when
// byte-swapped identifies a big-endian file.
func detectOrder(raw []byte) (binary.ByteOrder, int, error) {
	le := int(binary.LittleEndian.Uint16(raw[0:2]))
	if le >= 1 && le <= 5 {
		return binary.LittleEndian, le, nil
	}
	be := int(binary.BigEndian.Uint16(raw[0:2]))
	if be >= 1 && be <= 5 {
		return binary.BigEndian, be, nil
	}
	return nil, 0, apperrors.NewFormatError(fmt.Sprintf("ibw: unrecognised version word 0x%04x", le), nil)
}

func decodeV2(raw []byte, order binary.ByteOrder) (*Wave, error) {
	if len(raw) < binHeader2Size+waveData2Off {
		return nil, apperrors.NewFormatError("ibw: truncated version 2 header", nil)
	}
	wh := raw[binHeader2Size:]

	typ := int(order.Uint16(wh[0:2]))
	name := cString(wh[6:26])
	npnts := int(int32(order.Uint32(wh[42:46])))
	step := math.Float64frombits(order.Uint64(wh[48:56]))
	offset := math.Float64frombits(order.Uint64(wh[56:64]))

	data, err := decodeSamples(raw[binHeader2Size+waveData2Off:], order, typ, npnts)
	if err != nil {
		return nil, err
	}
	return &Wave{Name: name, Version: 2, Step: step, Offset: offset, Data: data}, nil
}

func decodeV5(raw []byte, order binary.ByteOrder) (*Wave, error) {
	if len(raw) < binHeader5Size+waveData5Off {
		return nil, apperrors.NewFormatError("ibw: truncated version 5 header", nil)
	}
	wh := raw[binHeader5Size:]

	npnts := int(int32(order.Uint32(wh[12:16])))
	typ := int(order.Uint16(wh[16:18]))
	name := cString(wh[28:60])
	dims := int(int32(order.Uint32(wh[72:76])))
	if dims > 0 {
		return nil, apperrors.NewFormatError("ibw: multi-dimensional waves are not supported", nil)
	}
	step := math.Float64frombits(order.Uint64(wh[84:92]))
	offset := math.Float64frombits(order.Uint64(wh[116:124]))

	data, err := decodeSamples(raw[binHeader5Size+waveData5Off:], order, typ, npnts)
	if err != nil {
		return nil, err
	}
	return &Wave{Name: name, Version: 5, Step: step, Offset: offset, Data: data}, nil
}

func decodeSamples(buf []byte, order binary.ByteOrder, typ, npnts int) ([]float64, error) {
	if npnts < 0 {
		return nil, apperrors.NewFormatError(fmt.Sprintf("ibw: negative point count %d", npnts), nil)
	}
	if typ&ibwComplex != 0 {
		return nil, apperrors.NewFormatError("ibw: complex waves are not supported", nil)
	}

	unsigned := typ&ibwUnsigned != 0
	var size int
	switch typ &^ ibwUnsigned {
	case ibwFloat32, ibwInt32:
		size = 4
	case ibwFloat64:
		size = 8
	case ibwInt8:
		size = 1
	case ibwInt16:
		size = 2
	default:
		return nil, apperrors.NewFormatError(fmt.Sprintf("ibw: unsupported numeric type 0x%x", typ), nil)
	}

	if len(buf) < npnts*size {
		return nil, apperrors.NewFormatError(
			fmt.Sprintf("ibw: data section holds %d bytes, need %d", len(buf), npnts*size), nil)
	}

	out := make([]float64, npnts)
	for i := range out {
		b := buf[i*size : (i+1)*size]
		switch typ &^ ibwUnsigned {
		case ibwFloat32:
			out[i] = float64(math.Float32frombits(order.Uint32(b)))
		case ibwFloat64:
			out[i] = math.Float64frombits(order.Uint64(b))
		case ibwInt8:
			if unsigned {
				out[i] = float64(b[0])
			} else {
				out[i] = float64(int8(b[0]))
			}
		case ibwInt16:
			if unsigned {
				out[i] = float64(order.Uint16(b))
			} else {
				out[i] = float64(int16(order.Uint16(b)))
			}
		case ibwInt32:
			if unsigned {
				out[i] = float64(order.Uint32(b))
			} else {
				out[i] = float64(int32(order.Uint32(b)))
			}
		}
	}
	return out, nil
}

func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

// EncodeIBW writes data as a little-endian version 5 float64 wave. Recorded
// traces and simulator output share this format so both go through the same
// loader.
func EncodeIBW(w io.Writer, name string, step float64, data []float64) error {
	header := make([]byte, binHeader5Size+waveData5Off)
	order := binary.LittleEndian

	bh := header[:binHeader5Size]
	order.PutUint16(bh[0:2], 5)
	wfmSize := waveData5Off + 8*len(data)
	order.PutUint32(bh[4:8], uint32(wfmSize))

	wh := header[binHeader5Size:]
	order.PutUint32(wh[12:16], uint32(len(data)))
	order.PutUint16(wh[16:18], ibwFloat64)
	order.PutUint16(wh[26:28], 1) // whVersion
	copy(wh[28:59], name)
	order.PutUint32(wh[68:72], uint32(len(data))) // nDim[0]
	order.PutUint64(wh[84:92], math.Float64bits(step))

	body := make([]byte, 8*len(data))
	for i, v := range data {
		order.PutUint64(body[i*8:], math.Float64bits(v))
	}

	// checksum makes the 16-bit sum over both headers zero
	var sum uint16
	for i := 0; i+1 < binHeader5Size+waveData5Off; i += 2 {
		sum += order.Uint16(header[i : i+2])
	}
	order.PutUint16(bh[2:4], -sum)

	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("write ibw header: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("write ibw data: %w", err)
	}
	return nil
}
