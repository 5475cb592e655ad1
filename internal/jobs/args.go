package jobs

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// Kind tags the type carried by a Value.
type Kind string

const (
	KindNull   Kind = "null"
	KindBool   Kind = "bool"
	KindInt    Kind = "int"
	KindFloat  Kind = "float"
	KindString Kind = "string"
	KindBytes  Kind = "bytes"
)

// Value is a single tagged job argument.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
	raw  []byte
}

func Null() Value           { return Value{kind: KindNull} }
func Bool(b bool) Value     { return Value{kind: KindBool, b: b} }
func Int(i int64) Value     { return Value{kind: KindInt, i: i} }
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }
func String(s string) Value { return Value{kind: KindString, s: s} }
func Bytes(b []byte) Value  { return Value{kind: KindBytes, raw: append([]byte(nil), b...)} }

// Kind reports the tag; the zero Value is null.
func (v Value) Kind() Kind {
	if v.kind == "" {
		return KindNull
	}
	return v.kind
}

func (v Value) IsNull() bool { return v.Kind() == KindNull }

func (v Value) AsBool() (bool, bool)     { return v.b, v.kind == KindBool }
func (v Value) AsInt() (int64, bool)     { return v.i, v.kind == KindInt }
func (v Value) AsString() (string, bool) { return v.s, v.kind == KindString }
func (v Value) AsBytes() ([]byte, bool)  { return v.raw, v.kind == KindBytes }

// AsFloat also accepts ints, which JSON producers cannot always distinguish.
func (v Value) AsFloat() (float64, bool) {
	switch v.kind {
	case KindFloat:
		return v.f, true
	case KindInt:
		return float64(v.i), true
	}
	return 0, false
}

// Any returns the value as a plain Go scalar; bytes stay []byte.
func (v Value) Any() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindString:
		return v.s
	case KindBytes:
		return v.raw
	}
	return nil
}

// String renders the value for logs.
func (v Value) String() string {
	switch v.kind {
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindString:
		return strconv.Quote(v.s)
	case KindBytes:
		return "bytes:" + base64.StdEncoding.EncodeToString(v.raw)
	}
	return "null"
}

func (v Value) Equal(o Value) bool {
	if v.Kind() != o.Kind() {
		return false
	}
	switch v.kind {
	case KindBool:
		return v.b == o.b
	case KindInt:
		return v.i == o.i
	case KindFloat:
		return v.f == o.f
	case KindString:
		return v.s == o.s
	case KindBytes:
		return bytes.Equal(v.raw, o.raw)
	}
	return true
}

// Args is the ordered argument list passed to a job handler.
type Args []Value

// ArgsOf converts Go scalars into Args.
func ArgsOf(vals ...any) (Args, error) {
	out := make(Args, 0, len(vals))
	for i, raw := range vals {
		switch x := raw.(type) {
		case nil:
			out = append(out, Null())
		case Value:
			out = append(out, x)
		case bool:
			out = append(out, Bool(x))
		case int:
			out = append(out, Int(int64(x)))
		case int32:
			out = append(out, Int(int64(x)))
		case int64:
			out = append(out, Int(x))
		case float32:
			out = append(out, Float(float64(x)))
		case float64:
			out = append(out, Float(x))
		case string:
			out = append(out, String(x))
		case []byte:
			out = append(out, Bytes(x))
		default:
			return nil, errors.Wrapf(ErrInvalidArgs, "argument %d has unsupported type %T", i, raw)
		}
	}
	return out, nil
}

func (a Args) Len() int { return len(a) }

func (a Args) at(i int, want Kind) (Value, error) {
	if i < 0 || i >= len(a) {
		return Value{}, errors.Wrapf(ErrInvalidArgs, "argument %d out of range (have %d)", i, len(a))
	}
	if a[i].Kind() != want {
		return Value{}, errors.Wrapf(ErrInvalidArgs, "argument %d is %s, want %s", i, a[i].Kind(), want)
	}
	return a[i], nil
}

func (a Args) String(i int) (string, error) {
	v, err := a.at(i, KindString)
	return v.s, err
}

func (a Args) Int(i int) (int64, error) {
	v, err := a.at(i, KindInt)
	return v.i, err
}

func (a Args) Bool(i int) (bool, error) {
	v, err := a.at(i, KindBool)
	return v.b, err
}

type wireValue struct {
	T Kind            `json:"t"`
	V json.RawMessage `json:"v,omitempty"`
}

// EncodeArgs serializes args as a JSON array of {"t":kind,"v":value} objects.
func EncodeArgs(args Args) ([]byte, error) {
	wire := make([]wireValue, 0, len(args))
	for _, v := range args {
		w := wireValue{T: v.Kind()}
		var payload any
		switch v.Kind() {
		case KindBool:
			payload = v.b
		case KindInt:
			payload = v.i
		case KindFloat:
			if math.IsNaN(v.f) || math.IsInf(v.f, 0) {
				return nil, errors.Wrapf(ErrInvalidArgs, "float %v is not encodable", v.f)
			}
			payload = v.f
		case KindString:
			payload = v.s
		case KindBytes:
			payload = v.raw
		}
		if payload != nil {
			b, err := json.Marshal(payload)
			if err != nil {
				return nil, errors.Wrap(err, "encode argument")
			}
			w.V = b
		}
		wire = append(wire, w)
	}
	return json.Marshal(wire)
}

// DecodeArgs reverses EncodeArgs. An empty blob decodes to no arguments.
func DecodeArgs(data []byte) (Args, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Args{}, nil
	}
	var wire []wireValue
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, errors.Wrap(ErrInvalidArgs, err.Error())
	}

	out := make(Args, 0, len(wire))
	for i, w := range wire {
		v, err := decodeValue(w)
		if err != nil {
			return nil, errors.Wrapf(err, "argument %d", i)
		}
		out = append(out, v)
	}
	return out, nil
}

func decodeValue(w wireValue) (Value, error) {
	var err error
	switch w.T {
	case KindNull:
		return Null(), nil
	case KindBool:
		var b bool
		err = json.Unmarshal(w.V, &b)
		return Bool(b), wrapDecode(err, w.T)
	case KindInt:
		var i int64
		err = json.Unmarshal(w.V, &i)
		return Int(i), wrapDecode(err, w.T)
	case KindFloat:
		var f float64
		err = json.Unmarshal(w.V, &f)
		return Float(f), wrapDecode(err, w.T)
	case KindString:
		var s string
		err = json.Unmarshal(w.V, &s)
		return String(s), wrapDecode(err, w.T)
	case KindBytes:
		var b []byte
		err = json.Unmarshal(w.V, &b)
		return Bytes(b), wrapDecode(err, w.T)
	}
	return Value{}, errors.Wrapf(ErrInvalidArgs, "unknown kind %q", w.T)
}

func wrapDecode(err error, k Kind) error {
	if err == nil {
		return nil
	}
	return errors.Wrapf(ErrInvalidArgs, "decode %s: %v", k, err)
}

// ArgsFromJSON maps plain JSON scalars to Args. Integral numbers become ints.
// Objects and arrays are rejected.
func ArgsFromJSON(raw []json.RawMessage) (Args, error) {
	out := make(Args, 0, len(raw))
	for i, r := range raw {
		dec := json.NewDecoder(bytes.NewReader(r))
		dec.UseNumber()
		var x any
		if err := dec.Decode(&x); err != nil {
			return nil, errors.Wrapf(ErrInvalidArgs, "argument %d: %v", i, err)
		}
		switch t := x.(type) {
		case nil:
			out = append(out, Null())
		case bool:
			out = append(out, Bool(t))
		case string:
			out = append(out, String(t))
		case json.Number:
			if n, err := t.Int64(); err == nil {
				out = append(out, Int(n))
				continue
			}
			f, err := t.Float64()
			if err != nil {
				return nil, errors.Wrapf(ErrInvalidArgs, "argument %d: %v", i, err)
			}
			out = append(out, Float(f))
		default:
			return nil, errors.Wrapf(ErrInvalidArgs, "argument %d must be a scalar, got %T", i, x)
		}
	}
	return out, nil
}

// ParseArg reads a command-line argument. Prefixes int:, float:, bool:, bytes:
// (base64) and null: select a kind; str: forces a string; anything else is a string.
func ParseArg(s string) (Value, error) {
	prefix, rest, found := strings.Cut(s, ":")
	if !found {
		return String(s), nil
	}
	switch prefix {
	case "int":
		n, err := strconv.ParseInt(rest, 10, 64)
		if err != nil {
			return Value{}, errors.Wrapf(ErrInvalidArgs, "parse %q: %v", s, err)
		}
		return Int(n), nil
	case "float":
		f, err := strconv.ParseFloat(rest, 64)
		if err != nil {
			return Value{}, errors.Wrapf(ErrInvalidArgs, "parse %q: %v", s, err)
		}
		return Float(f), nil
	case "bool":
		b, err := strconv.ParseBool(rest)
		if err != nil {
			return Value{}, errors.Wrapf(ErrInvalidArgs, "parse %q: %v", s, err)
		}
		return Bool(b), nil
	case "bytes":
		b, err := base64.StdEncoding.DecodeString(rest)
		if err != nil {
			return Value{}, errors.Wrapf(ErrInvalidArgs, "parse %q: %v", s, err)
		}
		return Bytes(b), nil
	case "null":
		return Null(), nil
	case "str":
		return String(rest), nil
	}
	return String(s), nil
}
