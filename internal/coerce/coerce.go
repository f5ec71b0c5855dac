package coerce

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"

	"github.com/xomicsdatascience/pscs-api/internal/ir"
)

// CoercionError reports raw input that does not fit a parameter's hint.
type CoercionError struct {
	Hint string
	Raw  any
	Err  error
}

// Error implements the error interface.
func (e *CoercionError) Error() string {
	return fmt.Sprintf("cannot coerce %s to %s: %v", describe(e.Raw), e.Hint, e.Err)
}

// Unwrap returns the underlying cause.
func (e *CoercionError) Unwrap() error {
	return e.Err
}

// IsCoercion reports whether err is, or wraps, a CoercionError.
func IsCoercion(err error) bool {
	var ce *CoercionError
	return errors.As(err, &ce)
}

func describe(raw any) string {
	switch v := raw.(type) {
	case nil:
		return "null"
	case string:
		return fmt.Sprintf("%q", v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// Coercer converts one raw parameter value according to its hint.
// Raw values are JSON-like: string, float64, bool, []any, map[string]any or nil.
type Coercer interface {
	Coerce(raw any, hint string) (ir.Value, error)
}

// CtyCoercer is the default Coercer.
type CtyCoercer struct{}

// Coerce implements Coercer. Every failure is a *CoercionError.
func (CtyCoercer) Coerce(raw any, hint string) (ir.Value, error) {
	h, err := ParseHint(hint)
	if err != nil {
		return nil, &CoercionError{Hint: hint, Raw: raw, Err: err}
	}
	v, err := h.Coerce(raw)
	if err != nil {
		return nil, &CoercionError{Hint: hint, Raw: raw, Err: err}
	}
	return v, nil
}

// Coerce converts raw with the default Coercer.
func Coerce(raw any, hint string) (ir.Value, error) {
	return CtyCoercer{}.Coerce(raw, hint)
}

// Coerce converts raw to a value of this hint.
func (h Hint) Coerce(raw any) (ir.Value, error) {
	if v, ok := raw.(ir.Value); ok {
		raw = ir.Native(v)
	}

	if isNull(raw) {
		if h.Optional || h.Kind == KindAny {
			return ir.Null{}, nil
		}
		return nil, errors.New("a value is required")
	}

	switch h.Kind {
	case KindAny:
		return ir.FromNative(raw)
	case KindList:
		return h.coerceList(raw)
	case KindDict:
		return h.coerceDict(raw)
	default:
		return h.coerceScalar(raw)
	}
}

func isNull(raw any) bool {
	if raw == nil {
		return true
	}
	s, ok := raw.(string)
	return ok && strings.TrimSpace(s) == "null"
}

func (h Hint) coerceScalar(raw any) (ir.Value, error) {
	val, err := toCty(raw)
	if err != nil {
		return nil, err
	}
	if val.Type() == cty.String && h.Kind != KindString {
		val = cty.StringVal(strings.TrimSpace(val.AsString()))
	}

	conv, err := convert.Convert(val, h.CtyType())
	if err != nil {
		return nil, err
	}

	switch h.Kind {
	case KindString:
		return ir.String(conv.AsString()), nil
	case KindBool:
		return ir.Bool(conv.True()), nil
	case KindFloat:
		var f float64
		if err := gocty.FromCtyValue(conv, &f); err != nil {
			return nil, err
		}
		return ir.Float(f), nil
	case KindInt:
		var i int64
		if err := gocty.FromCtyValue(conv, &i); err != nil {
			return nil, err
		}
		return ir.Int(i), nil
	default:
		return nil, fmt.Errorf("unsupported kind %q", h.Kind)
	}
}

// toCty lifts a raw scalar into cty.
func toCty(raw any) (cty.Value, error) {
	switch v := raw.(type) {
	case string:
		return cty.StringVal(v), nil
	case bool:
		return cty.BoolVal(v), nil
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return cty.NilVal, fmt.Errorf("%v is not a number", v)
		}
		return cty.NumberFloatVal(v), nil
	case json.Number:
		return cty.ParseNumberVal(string(v))
	case []any, map[string]any:
		return cty.NilVal, fmt.Errorf("expected a single value, got %T", raw)
	default:
		ty, err := gocty.ImpliedType(raw)
		if err != nil {
			return cty.NilVal, err
		}
		if !ty.IsPrimitiveType() {
			return cty.NilVal, fmt.Errorf("expected a single value, got %s", ty.FriendlyName())
		}
		return gocty.ToCtyValue(raw, ty)
	}
}

func (h Hint) coerceList(raw any) (ir.Value, error) {
	items, err := listItems(raw)
	if err != nil {
		return nil, err
	}
	elem := h.elem()
	out := make(ir.Array, len(items))
	for i, item := range items {
		v, err := elem.Coerce(item)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

// listItems accepts a list, a JSON array string, or a comma-separated string.
// A lone scalar becomes a one-element list.
func listItems(raw any) ([]any, error) {
	switch v := raw.(type) {
	case []any:
		return v, nil
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out, nil
	case map[string]any:
		return nil, errors.New("expected a list, got an object")
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return []any{}, nil
		}
		if strings.HasPrefix(s, "[") {
			var items []any
			if err := decodeJSON(s, &items); err != nil {
				return nil, fmt.Errorf("invalid list: %w", err)
			}
			return items, nil
		}
		parts := strings.Split(s, ",")
		out := make([]any, len(parts))
		for i, p := range parts {
			out[i] = strings.TrimSpace(p)
		}
		return out, nil
	default:
		return []any{raw}, nil
	}
}

func (h Hint) coerceDict(raw any) (ir.Value, error) {
	var m map[string]any
	switch v := raw.(type) {
	case map[string]any:
		m = v
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return ir.Object{}, nil
		}
		if err := decodeJSON(s, &m); err != nil {
			return nil, fmt.Errorf("invalid object: %w", err)
		}
	default:
		return nil, fmt.Errorf("expected an object, got %T", raw)
	}

	elem := h.elem()
	out := make(ir.Object, len(m))
	for k, item := range m {
		v, err := elem.Coerce(item)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		out[k] = v
	}
	return out, nil
}

func decodeJSON(s string, dst any) error {
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.UseNumber()
	return dec.Decode(dst)
}
