package nn

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// Weights file layout, little endian:
//
//	magic "PCNN" | version u32 | param count u32
//	per param: rank u32 | dims u32... | values f32...
const (
	weightsMagic   = "PCNN"
	weightsVersion = 1
	maxRank        = 8
)

var ErrWeightsFormat = errors.New("invalid weights file")

// WriteWeights serialises every parameter in layer order.
func (s *Sequential) WriteWeights(w io.Writer) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(weightsMagic); err != nil {
		return err
	}
	header := []uint32{weightsVersion, uint32(len(s.params))}
	if err := binary.Write(bw, binary.LittleEndian, header); err != nil {
		return err
	}

	buf := make([]byte, 4)
	for _, p := range s.params {
		dims := make([]uint32, 0, len(p.Shape)+1)
		dims = append(dims, uint32(len(p.Shape)))
		for _, d := range p.Shape {
			dims = append(dims, uint32(d))
		}
		if err := binary.Write(bw, binary.LittleEndian, dims); err != nil {
			return err
		}
		for _, v := range p.Value {
			binary.LittleEndian.PutUint32(buf, math.Float32bits(v))
			if _, err := bw.Write(buf); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}

// ReadWeights loads parameters written by WriteWeights. The file must match
// the model parameter for parameter; on any mismatch or truncation the model
// is left unchanged.
func (s *Sequential) ReadWeights(r io.Reader) error {
	br := bufio.NewReader(r)

	magic := make([]byte, len(weightsMagic))
	if _, err := io.ReadFull(br, magic); err != nil {
		return fmt.Errorf("%w: reading magic: %v", ErrWeightsFormat, err)
	}
	if string(magic) != weightsMagic {
		return fmt.Errorf("%w: bad magic %q", ErrWeightsFormat, magic)
	}

	var header [2]uint32
	if err := binary.Read(br, binary.LittleEndian, &header); err != nil {
		return fmt.Errorf("%w: reading header: %v", ErrWeightsFormat, err)
	}
	if header[0] != weightsVersion {
		return fmt.Errorf("%w: unsupported version %d", ErrWeightsFormat, header[0])
	}
	if int(header[1]) != len(s.params) {
		return fmt.Errorf("%w: file has %d parameters, model has %d", ErrWeightsFormat, header[1], len(s.params))
	}

	loaded := make([][]float32, len(s.params))
	buf := make([]byte, 4)
	for i, p := range s.params {
		var rank uint32
		if err := binary.Read(br, binary.LittleEndian, &rank); err != nil {
			return fmt.Errorf("%w: parameter %d rank: %v", ErrWeightsFormat, i, err)
		}
		if rank == 0 || rank > maxRank {
			return fmt.Errorf("%w: parameter %d has rank %d", ErrWeightsFormat, i, rank)
		}
		dims := make([]uint32, rank)
		if err := binary.Read(br, binary.LittleEndian, dims); err != nil {
			return fmt.Errorf("%w: parameter %d shape: %v", ErrWeightsFormat, i, err)
		}
		shape := make(Shape, rank)
		for j, d := range dims {
			shape[j] = int(d)
		}
		if !shape.Equal(p.Shape) {
			return fmt.Errorf("%w: parameter %d (%s) has shape %s, model expects %s", ErrWeightsFormat, i, p.Name, shape, p.Shape)
		}

		values := make([]float32, len(p.Value))
		for j := range values {
			if _, err := io.ReadFull(br, buf); err != nil {
				return fmt.Errorf("%w: parameter %d truncated: %v", ErrWeightsFormat, i, err)
			}
			values[j] = math.Float32frombits(binary.LittleEndian.Uint32(buf))
		}
		loaded[i] = values
	}

	if _, err := br.ReadByte(); err != io.EOF {
		return fmt.Errorf("%w: trailing data after last parameter", ErrWeightsFormat)
	}

	for i, p := range s.params {
		copy(p.Value, loaded[i])
	}
	return nil
}
