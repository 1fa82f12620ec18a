package cache

import (
	"bytes"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/klauspost/compress/gzip"
	"github.com/vmihailenco/msgpack/v5"
)

// Frame markers prepended to encoded values so Decode can tell whether the
// payload was compressed, regardless of which tier it was read back from.
const (
	frameRaw        = 0x00
	frameCompressed = 0x01
)

// Compressor is a pluggable compression strategy applied to encoded values
// above a size threshold. The default is Identity (no compression).
type Compressor interface {
	Name() string
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
}

// Identity is the no-op Compressor.
type Identity struct{}

func (Identity) Name() string { return "identity" }

func (Identity) Compress(data []byte) ([]byte, error) { return data, nil }

func (Identity) Decompress(data []byte) ([]byte, error) { return data, nil }

// Gzip compresses with gzip at the default level.
type Gzip struct{}

func (Gzip) Name() string { return "gzip" }

func (Gzip) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, errors.Wrap(err, "gzip write")
	}
	if err := w.Close(); err != nil {
		return nil, errors.Wrap(err, "gzip close")
	}
	return buf.Bytes(), nil
}

func (Gzip) Decompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, "gzip reader")
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "gzip read")
	}
	return out, nil
}

// Codec turns values into the byte payloads tiers store. Values are msgpack
// encoded; payloads larger than the threshold are additionally compressed
// when a non-identity Compressor is configured. Every payload carries a one
// byte frame marker so decoding is self-describing.
type Codec struct {
	compressor Compressor
	threshold  int
}

// NewCodec returns a Codec. A nil compressor means identity. A non-positive
// threshold compresses everything (when the compressor is not identity).
func NewCodec(compressor Compressor, threshold int) *Codec {
	if compressor == nil {
		compressor = Identity{}
	}
	return &Codec{compressor: compressor, threshold: threshold}
}

// Encode serializes val and returns the framed payload.
func (c *Codec) Encode(val any) ([]byte, error) {
	data, err := msgpack.Marshal(val)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "codec encode"), ErrSerialization)
	}
	if _, identity := c.compressor.(Identity); !identity && len(data) >= c.threshold {
		compressed, err := c.compressor.Compress(data)
		if err != nil {
			return nil, errors.Mark(errors.Wrap(err, "codec compress"), ErrSerialization)
		}
		// Only keep the compressed form when it actually saved space.
		if len(compressed) < len(data) {
			return append([]byte{frameCompressed}, compressed...), nil
		}
	}
	return append([]byte{frameRaw}, data...), nil
}

// Decode deserializes a framed payload into out.
func (c *Codec) Decode(data []byte, out any) error {
	if len(data) == 0 {
		return errors.Mark(errors.New("codec decode: empty payload"), ErrSerialization)
	}
	payload := data[1:]
	if data[0] == frameCompressed {
		var err error
		payload, err = c.compressor.Decompress(payload)
		if err != nil {
			return errors.Mark(errors.Wrap(err, "codec decompress"), ErrSerialization)
		}
	}
	if err := msgpack.Unmarshal(payload, out); err != nil {
		return errors.Mark(errors.Wrap(err, "codec decode"), ErrSerialization)
	}
	return nil
}
