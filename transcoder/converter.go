package transcoder

import (
	"reflect"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/wippyai/afb-runtime/errors"
	"github.com/wippyai/afb-runtime/jsonc"
	"github.com/wippyai/afb-runtime/types"
)

// EncodeFunc renders a custom value as JSON text.
type EncodeFunc func(value any) (string, error)

// DecodeFunc rebuilds a custom value from JSON text.
type DecodeFunc func(text string) (any, error)

// Converter binds a custom type to the json builtin type.
type Converter struct {
	Type   *types.Type
	Target *types.Type
	GoType reflect.Type
	encode EncodeFunc
	decode DecodeFunc
}

// Encode runs the encoder on v.
func (c *Converter) Encode(v any) (string, error) {
	return c.encode(v)
}

// Decode runs the decoder on text.
func (c *Converter) Decode(text string) (any, error) {
	return c.decode(text)
}

// RegisterConverter registers uid as a custom type and installs its
// encoder (custom to target) and decoder (target to custom). Only the json
// builtin is accepted as target.
//
// An encoder installation failure aborts before the decoder is attempted.
// A decoder failure reports the converter as failed but leaves the encoder
// edge installed.
func (tc *Transcoder) RegisterConverter(uid string, goType reflect.Type, target string, enc EncodeFunc, dec DecodeFunc) (*Converter, error) {
	if goType == nil || enc == nil || dec == nil {
		return nil, errors.Registration(uid, errors.New(errors.PhaseRegister, errors.KindNilPointer).
			Detail("converter requires a Go type, an encoder and a decoder").
			Build())
	}
	if target != types.UIDJSON {
		return nil, errors.Registration(uid, errors.Unsupported(errors.PhaseRegister, "converter target "+target))
	}

	if bound, ok := tc.TypeFor(goType); ok && (bound.Builtin || bound.UID != uid) {
		return nil, errors.Registration(uid, errors.New(errors.PhaseRegister, errors.KindAlreadyExists).
			GoType(goType.String()).
			TypeUID(bound.UID).
			Detail("Go type already bound").
			Build())
	}

	custom, err := tc.types.Register(uid)
	if err != nil {
		return nil, err
	}
	jsonType := tc.types.MustLookup(types.UIDJSON)

	encodeEdge := func(v any) (any, error) {
		text, err := enc(v)
		if err != nil {
			return nil, errors.New(errors.PhaseEncode, errors.KindInvalidData).
				TypeUID(uid).
				GoType(goType.String()).
				Cause(err).
				Build()
		}
		return jsonc.Raw(text), nil
	}
	if err := tc.types.AddConvertTo(custom, jsonType, encodeEdge); err != nil {
		return nil, errors.Registration(uid, err)
	}

	decodeEdge := func(v any) (any, error) {
		raw, ok := v.(jsonc.Raw)
		if !ok {
			return nil, errors.TypeMismatch(errors.PhaseDecode, nil, reflect.TypeOf(v).String(), types.UIDJSON)
		}
		out, err := dec(string(raw))
		if err != nil {
			return nil, errors.New(errors.PhaseDecode, errors.KindInvalidData).
				TypeUID(uid).
				GoType(goType.String()).
				Cause(err).
				Build()
		}
		return out, nil
	}
	if err := tc.types.AddConvertFrom(custom, jsonType, decodeEdge); err != nil {
		tc.logger.Error("converter half installed",
			zap.String("uid", uid),
			zap.Error(err))
		return nil, errors.Registration(uid, err)
	}

	c := &Converter{
		Type:   custom,
		Target: jsonType,
		GoType: goType,
		encode: enc,
		decode: dec,
	}
	tc.converters.Store(uid, c)
	tc.goTypes.Store(goType, custom)

	tc.logger.Debug("converter registered",
		zap.String("uid", uid),
		zap.String("go_type", goType.String()))
	return c, nil
}

// Register registers T as a custom type encoded through go-json.
func Register[T any](tc *Transcoder, uid string) (*Converter, error) {
	enc := func(v any) (string, error) {
		data, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
	dec := func(text string) (any, error) {
		var v T
		if err := json.Unmarshal([]byte(text), &v); err != nil {
			return nil, err
		}
		return v, nil
	}
	return tc.RegisterConverter(uid, reflect.TypeFor[T](), types.UIDJSON, enc, dec)
}

// MustRegister is like Register but panics on error. Intended for
// package-level registration in bindings whose init must abort on failure.
func MustRegister[T any](tc *Transcoder, uid string) *Converter {
	c, err := Register[T](tc, uid)
	if err != nil {
		panic(err)
	}
	return c
}

// Converter returns the converter registered under uid.
func (tc *Transcoder) Converter(uid string) (*Converter, bool) {
	c, ok := tc.converters.Load(uid)
	if !ok {
		return nil, false
	}
	return c.(*Converter), true
}
