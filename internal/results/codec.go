package results

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/klauspost/compress/zstd"

	"github.com/GoSim-25-26J-441/readout-calibration/pkg/models"
)

// ErrCorruptPayload is returned when a stored IQ payload cannot be decoded.
var ErrCorruptPayload = errors.New("corrupt IQ payload")

// Compressor packs IQ clouds into zstd-compressed binary payloads.
// The layout before compression is two little-endian uint32 shot counts
// followed by the (I, Q) float64 pairs of the ground then excited cloud.
type Compressor struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewCompressor creates a compressor. Levels 1-4 map from fastest to best
// compression; anything else uses the zstd default.
func NewCompressor(level int) (*Compressor, error) {
	encLevel := zstd.SpeedDefault
	switch level {
	case 1:
		encLevel = zstd.SpeedFastest
	case 3:
		encLevel = zstd.SpeedBetterCompression
	case 4:
		encLevel = zstd.SpeedBestCompression
	}

	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(encLevel))
	if err != nil {
		return nil, fmt.Errorf("failed to create encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		encoder.Close()
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}
	return &Compressor{encoder: encoder, decoder: decoder}, nil
}

// EncodeClouds serialises and compresses both clouds. Two empty clouds encode to nil.
func (c *Compressor) EncodeClouds(c0, c1 models.IQCloud) []byte {
	if len(c0) == 0 && len(c1) == 0 {
		return nil
	}
	buf := make([]byte, 8, 8+16*(len(c0)+len(c1)))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(c0)))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(len(c1)))
	for _, cloud := range []models.IQCloud{c0, c1} {
		for _, p := range cloud {
			buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(p[0]))
			buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(p[1]))
		}
	}
	return c.encoder.EncodeAll(buf, make([]byte, 0, len(buf)/2))
}

// DecodeClouds reverses EncodeClouds.
func (c *Compressor) DecodeClouds(payload []byte) (models.IQCloud, models.IQCloud, error) {
	if len(payload) == 0 {
		return nil, nil, nil
	}
	raw, err := c.decoder.DecodeAll(payload, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrCorruptPayload, err)
	}
	if len(raw) < 8 {
		return nil, nil, fmt.Errorf("%w: short header", ErrCorruptPayload)
	}
	n0 := int(binary.LittleEndian.Uint32(raw[0:4]))
	n1 := int(binary.LittleEndian.Uint32(raw[4:8]))
	body := raw[8:]
	if len(body) != 16*(n0+n1) {
		return nil, nil, fmt.Errorf("%w: expected %d points, got %d bytes", ErrCorruptPayload, n0+n1, len(body))
	}

	read := func(n int) models.IQCloud {
		if n == 0 {
			return nil
		}
		cloud := make(models.IQCloud, n)
		for k := range cloud {
			cloud[k][0] = math.Float64frombits(binary.LittleEndian.Uint64(body[0:8]))
			cloud[k][1] = math.Float64frombits(binary.LittleEndian.Uint64(body[8:16]))
			body = body[16:]
		}
		return cloud
	}
	c0 := read(n0)
	c1 := read(n1)
	return c0, c1, nil
}

// Close releases encoder and decoder resources.
func (c *Compressor) Close() error {
	c.decoder.Close()
	return c.encoder.Close()
}
