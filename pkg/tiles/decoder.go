package tiles

import (
	"bytes"

	"github.com/paulmach/orb/encoding/mvt"

	errs "tilecov/pkg/errors"
)

var gzipMagic = []byte{0x1f, 0x8b}

// Decoder counts features in one named layer of a Mapbox vector tile.
type Decoder struct {
	layer string
}

// NewDecoder creates a decoder that inspects the given layer.
func NewDecoder(layer string) *Decoder {
	return &Decoder{layer: layer}
}

// Layer returns the layer name the decoder inspects.
func (d *Decoder) Layer() string {
	return d.layer
}

// FeatureCount decodes a vector tile body and returns the number of
// features in the decoder's layer. An empty body and a tile without the
// layer both count as zero; a body that fails to parse returns a decode
// error, which callers must not retry.
func (d *Decoder) FeatureCount(data []byte) (int, error) {
	if len(data) == 0 {
		return 0, nil
	}

	var (
		layers mvt.Layers
		err    error
	)
	if bytes.HasPrefix(data, gzipMagic) {
		layers, err = mvt.UnmarshalGzipped(data)
	} else {
		layers, err = mvt.Unmarshal(data)
	}
	if err != nil {
		return 0, errs.Wrap(err, errs.ErrorTypeDecode, "failed to decode vector tile")
	}

	for _, layer := range layers {
		if layer.Name == d.layer {
			return len(layer.Features), nil
		}
	}

	return 0, nil
}

// Covered reports whether the tile body carries at least one feature in
// the decoder's layer.
func (d *Decoder) Covered(data []byte) (bool, error) {
	count, err := d.FeatureCount(data)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
