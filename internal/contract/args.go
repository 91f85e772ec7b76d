package contract

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"reflect"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"

	"github.com/mrz1836/conduit/internal/chain/eth"
	cerr "github.com/mrz1836/conduit/pkg/errors"
)

// ParseArgs converts command line strings into values that m's inputs accept.
// Integers may be decimal or 0x hex. Slices and arrays are JSON arrays or
// comma separated lists. Tuples are not supported.
func ParseArgs(m abi.Method, args []string) ([]any, error) {
	if len(args) != len(m.Inputs) {
		return nil, cerr.WithDetails(cerr.ErrInvalidArgument, map[string]string{
			"method": m.Name,
			"reason": fmt.Sprintf("expected %d argument(s), got %d", len(m.Inputs), len(args)),
		})
	}

	out := make([]any, len(args))
	for i, input := range m.Inputs {
		v, err := parseValue(input.Type, args[i])
		if err != nil {
			name := input.Name
			if name == "" {
				name = strconv.Itoa(i)
			}
			return nil, cerr.WithDetails(cerr.WithCause(cerr.ErrInvalidArgument, err), map[string]string{
				"method":   m.Name,
				"argument": name,
				"type":     input.Type.String(),
			})
		}
		out[i] = v.Interface()
	}
	return out, nil
}

//nolint:gocyclo // One branch per ABI type family
func parseValue(t abi.Type, s string) (reflect.Value, error) {
	s = strings.TrimSpace(s)

	switch t.T {
	case abi.AddressTy:
		addr, err := eth.ParseAddress(s)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(addr), nil

	case abi.BoolTy:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("invalid bool %q", s)
		}
		return reflect.ValueOf(b), nil

	case abi.StringTy:
		return reflect.ValueOf(s), nil

	case abi.UintTy, abi.IntTy:
		return parseInteger(t, s)

	case abi.BytesTy:
		b, err := decodeHex(s)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(b), nil

	case abi.FixedBytesTy:
		b, err := decodeHex(s)
		if err != nil {
			return reflect.Value{}, err
		}
		if len(b) > t.Size {
			return reflect.Value{}, fmt.Errorf("value is %d bytes, max %d", len(b), t.Size)
		}
		v := reflect.New(t.GetType()).Elem()
		reflect.Copy(v, reflect.ValueOf(b))
		return v, nil

	case abi.SliceTy, abi.ArrayTy:
		return parseList(t, s)

	default:
		return reflect.Value{}, fmt.Errorf("unsupported argument type %s", t.String())
	}
}

func parseInteger(t abi.Type, s string) (reflect.Value, error) {
	base, digits := 10, s
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		base, digits = 16, s[2:]
	}
	n, ok := new(big.Int).SetString(digits, base)
	if !ok {
		return reflect.Value{}, fmt.Errorf("invalid integer %q", s)
	}
	if t.T == abi.UintTy && n.Sign() < 0 {
		return reflect.Value{}, fmt.Errorf("negative value %s for %s", s, t.String())
	}
	bits := t.Size
	if t.T == abi.IntTy {
		bits--
	}
	if n.BitLen() > bits {
		return reflect.Value{}, fmt.Errorf("value %s overflows %s", s, t.String())
	}

	target := t.GetType()
	switch target.Kind() {
	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return reflect.ValueOf(n.Uint64()).Convert(target), nil
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if !n.IsInt64() {
			return reflect.Value{}, fmt.Errorf("value %s overflows %s", s, t.String())
		}
		return reflect.ValueOf(n.Int64()).Convert(target), nil
	default:
		return reflect.ValueOf(n), nil
	}
}

func parseList(t abi.Type, s string) (reflect.Value, error) {
	items, err := splitList(s)
	if err != nil {
		return reflect.Value{}, err
	}

	var v reflect.Value
	if t.T == abi.ArrayTy {
		if len(items) != t.Size {
			return reflect.Value{}, fmt.Errorf("expected %d elements, got %d", t.Size, len(items))
		}
		v = reflect.New(t.GetType()).Elem()
	} else {
		v = reflect.MakeSlice(t.GetType(), len(items), len(items))
	}

	for i, item := range items {
		elem, err := parseValue(*t.Elem, item)
		if err != nil {
			return reflect.Value{}, fmt.Errorf("element %d: %w", i, err)
		}
		v.Index(i).Set(elem)
	}
	return v, nil
}

// splitList accepts `["a","b"]`, `[1,2]` or `a,b`.
func splitList(s string) ([]string, error) {
	if s == "" || s == "[]" {
		return []string{}, nil
	}
	if !strings.HasPrefix(s, "[") {
		return strings.Split(s, ","), nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return nil, fmt.Errorf("invalid list: %w", err)
	}
	out := make([]string, len(raw))
	for i, r := range raw {
		var str string
		if err := json.Unmarshal(r, &str); err == nil {
			out[i] = str
			continue
		}
		out[i] = string(r)
	}
	return out, nil
}

func decodeHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex: %w", err)
	}
	return b, nil
}

// FormatValue renders a decoded output for display.
func FormatValue(v any) string {
	switch val := v.(type) {
	case *big.Int:
		return val.String()
	case []byte:
		return "0x" + hex.EncodeToString(val)
	case [32]byte:
		return "0x" + hex.EncodeToString(val[:])
	case fmt.Stringer:
		return val.String()
	default:
		rv := reflect.ValueOf(v)
		if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
			parts := make([]string, rv.Len())
			for i := range parts {
				parts[i] = FormatValue(rv.Index(i).Interface())
			}
			return "[" + strings.Join(parts, ",") + "]"
		}
		return fmt.Sprint(v)
	}
}
