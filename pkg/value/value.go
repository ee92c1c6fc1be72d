// Package value implements the dynamic tagged value used to carry driver
// call arguments and results over the wire: a bidirectional mapping between
// native Go values and google.protobuf.Value, the same dynamic-value type
// the rest of the jumpstarter wire protocol already standardizes on for
// DriverCallRequest.args and DriverCallResponse.result.
package value

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"google.golang.org/protobuf/types/known/structpb"
)

// intOverflowPrefix tags a string-encoded integer that would lose precision
// if round-tripped through a float64, per the "use string on overflow of
// IEEE-754" rule.
const intOverflowPrefix = "$int:"

// maxSafeInt is the largest integer magnitude exactly representable as a
// float64 (2^53).
const maxSafeInt int64 = 1 << 53

// Encode converts a native Go value produced by driver code into a
// structpb.Value suitable for DriverCallResponse.result / args.
func Encode(v any) (*structpb.Value, error) {
	switch t := v.(type) {
	case nil:
		return structpb.NewNullValue(), nil
	case bool:
		return structpb.NewBoolValue(t), nil
	case string:
		return structpb.NewStringValue(t), nil
	case float32:
		return structpb.NewNumberValue(float64(t)), nil
	case float64:
		return structpb.NewNumberValue(t), nil
	case int:
		return encodeInt(int64(t))
	case int32:
		return encodeInt(int64(t))
	case int64:
		return encodeInt(t)
	case uint:
		return encodeUint(uint64(t))
	case uint32:
		return encodeUint(uint64(t))
	case uint64:
		return encodeUint(t)
	case []any:
		return encodeList(t)
	case map[string]any:
		return encodeMap(t)
	case *structpb.Value:
		return t, nil
	default:
		return encodeReflect(reflect.ValueOf(v))
	}
}

func encodeInt(n int64) (*structpb.Value, error) {
	if n > maxSafeInt || n < -maxSafeInt {
		return structpb.NewStringValue(intOverflowPrefix + strconv.FormatInt(n, 10)), nil
	}
	return structpb.NewNumberValue(float64(n)), nil
}

func encodeUint(n uint64) (*structpb.Value, error) {
	if n > uint64(maxSafeInt) {
		return structpb.NewStringValue(intOverflowPrefix + strconv.FormatUint(n, 10)), nil
	}
	return structpb.NewNumberValue(float64(n)), nil
}

func encodeList(items []any) (*structpb.Value, error) {
	vals := make([]*structpb.Value, 0, len(items))
	for _, it := range items {
		v, err := Encode(it)
		if err != nil {
			return nil, err
		}
		vals = append(vals, v)
	}
	return structpb.NewListValue(&structpb.ListValue{Values: vals}), nil
}

func encodeMap(m map[string]any) (*structpb.Value, error) {
	fields := make(map[string]*structpb.Value, len(m))
	for k, it := range m {
		// Absent keys never reach here: the caller only populates fields
		// that are actually set, keeping "absent" distinct from "null".
		v, err := Encode(it)
		if err != nil {
			return nil, fmt.Errorf("value: encoding field %q: %w", k, err)
		}
		fields[k] = v
	}
	return structpb.NewStructValue(&structpb.Struct{Fields: fields}), nil
}

// encodeReflect handles driver-return structs and slices/maps of concrete
// types by round-tripping through encoding/json, which already implements
// the Go struct tag / omitempty semantics we want for "absent vs null".
func encodeReflect(rv reflect.Value) (*structpb.Value, error) {
	if !rv.IsValid() {
		return structpb.NewNullValue(), nil
	}
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return structpb.NewNullValue(), nil
		}
		return encodeReflect(rv.Elem())
	}

	raw, err := json.Marshal(rv.Interface())
	if err != nil {
		return nil, fmt.Errorf("value: encoding %T: %w", rv.Interface(), err)
	}
	var generic any
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("value: re-decoding %T: %w", rv.Interface(), err)
	}
	return encodeGeneric(generic)
}

func encodeGeneric(v any) (*structpb.Value, error) {
	switch t := v.(type) {
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return encodeInt(n)
		}
		f, err := t.Float64()
		if err != nil {
			return nil, err
		}
		if f == math.Trunc(f) {
			return encodeInt(int64(f))
		}
		return structpb.NewNumberValue(f), nil
	case []any:
		return encodeList(t)
	case map[string]any:
		return encodeMap(t)
	default:
		return Encode(t)
	}
}

// Decode converts a structpb.Value back into the native Go representation:
// nil, bool, float64, string, []any (elements decoded), or map[string]any,
// with any string carrying the overflow prefix decoded back to int64.
func Decode(v *structpb.Value) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch k := v.Kind.(type) {
	case *structpb.Value_NullValue, nil:
		return nil, nil
	case *structpb.Value_BoolValue:
		return k.BoolValue, nil
	case *structpb.Value_NumberValue:
		return k.NumberValue, nil
	case *structpb.Value_StringValue:
		if strings.HasPrefix(k.StringValue, intOverflowPrefix) {
			n, err := strconv.ParseInt(strings.TrimPrefix(k.StringValue, intOverflowPrefix), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("value: decoding overflow int %q: %w", k.StringValue, err)
			}
			return n, nil
		}
		return k.StringValue, nil
	case *structpb.Value_ListValue:
		out := make([]any, 0, len(k.ListValue.GetValues()))
		for _, e := range k.ListValue.GetValues() {
			dv, err := Decode(e)
			if err != nil {
				return nil, err
			}
			out = append(out, dv)
		}
		return out, nil
	case *structpb.Value_StructValue:
		out := make(map[string]any, len(k.StructValue.GetFields()))
		for key, e := range k.StructValue.GetFields() {
			dv, err := Decode(e)
			if err != nil {
				return nil, err
			}
			out[key] = dv
		}
		return out, nil
	default:
		return nil, fmt.Errorf("value: unknown structpb.Value kind %T", k)
	}
}

// DecodeInto decodes v and json-round-trips it into dst, which must be a
// pointer — a convenience for driver stub methods that want a typed result.
func DecodeInto(v *structpb.Value, dst any) error {
	native, err := Decode(v)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(native)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}
