// Package codec frames joint-state records for the leader and follower links.
//
// A frame is "<topic> <payload>". The payload is a JSON or CBOR map in either
// the modern shape (joint_0..joint_5, gripper, timestamp) or the legacy shape
// ({"joints": [...], "timestamp": t}). Both shapes are normalised into a
// domain.JointState on decode, so nothing downstream branches on shape.
package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"

	"github.com/Servo7/robot-comm/internal/domain"
)

// Format selects the payload encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatCBOR Format = "cbor"
)

// Shape tags which record layout a payload used.
type Shape int

const (
	ShapeModern Shape = iota
	ShapeLegacy
)

func (s Shape) String() string {
	if s == ShapeLegacy {
		return "legacy"
	}
	return "modern"
}

var (
	// ErrTopicMismatch is returned for frames addressed to another topic.
	ErrTopicMismatch = errors.New("codec: topic mismatch")
	// ErrMalformed wraps payloads that cannot be turned into a JointState.
	ErrMalformed = errors.New("codec: malformed record")
)

var (
	cborEnc cbor.EncMode
	cborDec cbor.DecMode
)

func init() {
	var err error
	cborEnc, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}
	cborDec, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// ParseFormat accepts "json" (the default when empty) or "cbor".
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatCBOR:
		return FormatCBOR, nil
	default:
		return "", fmt.Errorf("codec: unknown format %q", s)
	}
}

// Message is a decoded payload: the normalised state plus the shape it arrived in.
type Message struct {
	Shape Shape
	State domain.JointState
}

// Codec frames and unframes records for one topic.
type Codec struct {
	topic  string
	format Format
}

// New returns a codec for topic using format.
func New(topic string, format Format) (*Codec, error) {
	if topic == "" {
		return nil, errors.New("codec: topic is required")
	}
	if _, err := ParseFormat(string(format)); err != nil {
		return nil, err
	}
	if format == "" {
		format = FormatJSON
	}
	return &Codec{topic: topic, format: format}, nil
}

func (c *Codec) Topic() string  { return c.topic }
func (c *Codec) Format() Format { return c.format }

// Encode renders s as a modern record frame.
func (c *Codec) Encode(s domain.JointState) ([]byte, error) {
	payload, err := EncodePayload(c.format, s.ToRecord())
	if err != nil {
		return nil, err
	}
	frame := make([]byte, 0, len(c.topic)+1+len(payload))
	frame = append(frame, c.topic...)
	frame = append(frame, ' ')
	return append(frame, payload...), nil
}

// EncodeLegacy renders joints and timestamp in the legacy list shape.
func (c *Codec) EncodeLegacy(joints []float64, timestamp float64) ([]byte, error) {
	payload, err := EncodePayload(c.format, domain.LegacyRecord{Joints: joints, Timestamp: timestamp})
	if err != nil {
		return nil, err
	}
	return append([]byte(c.topic+" "), payload...), nil
}

// Decode strips the topic prefix and normalises the payload.
func (c *Codec) Decode(frame []byte) (Message, error) {
	topic, payload, found := bytes.Cut(frame, []byte{' '})
	if !found || string(topic) != c.topic {
		return Message{}, ErrTopicMismatch
	}
	if c.format == FormatJSON {
		payload = bytes.TrimSpace(payload)
	}
	return DecodePayload(c.format, payload)
}

// EncodePayload marshals v without framing.
func EncodePayload(format Format, v any) ([]byte, error) {
	switch format {
	case FormatCBOR:
		return cborEnc.Marshal(v)
	case FormatJSON, "":
		return json.Marshal(v)
	default:
		return nil, fmt.Errorf("codec: unknown format %q", format)
	}
}

// DecodePayload parses an unframed record of either shape.
func DecodePayload(format Format, payload []byte) (Message, error) {
	var raw map[string]any
	var err error
	switch format {
	case FormatCBOR:
		err = cborDec.Unmarshal(payload, &raw)
	case FormatJSON, "":
		err = json.Unmarshal(payload, &raw)
	default:
		return Message{}, fmt.Errorf("codec: unknown format %q", format)
	}
	if err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return Normalize(raw)
}

// Normalize turns a decoded map into a Message. The presence of "joint_0"
// selects the modern shape.
func Normalize(raw map[string]any) (Message, error) {
	if _, modern := raw["joint_0"]; modern {
		js, err := domain.FromMap(raw)
		if err != nil {
			return Message{}, fmt.Errorf("%w: %w", ErrMalformed, err)
		}
		return Message{Shape: ShapeModern, State: js}, nil
	}

	joints, err := floatList(raw["joints"])
	if err != nil {
		return Message{}, fmt.Errorf("%w: joints: %w", ErrMalformed, err)
	}
	var ts float64
	if v, ok := raw["timestamp"]; ok && v != nil {
		if ts, ok = domain.ToFloat(v); !ok {
			return Message{}, fmt.Errorf("%w: %w: timestamp=%v", ErrMalformed, domain.ErrNonNumeric, v)
		}
	}
	js, err := domain.FromSlice(joints, 0, ts)
	if err != nil {
		return Message{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return Message{Shape: ShapeLegacy, State: js}, nil
}

func floatList(v any) ([]float64, error) {
	if v == nil {
		return nil, nil
	}
	items, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("expected a list, got %T", v)
	}
	out := make([]float64, len(items))
	for i, item := range items {
		f, ok := domain.ToFloat(item)
		if !ok {
			return nil, fmt.Errorf("%w: index %d=%v", domain.ErrNonNumeric, i, item)
		}
		out[i] = f
	}
	return out, nil
}
