// Package canonical provides deterministic serialization and hashing of
// credential payloads. Every proof hash, merkle leaf, and replay fingerprint
// in the system flows through this package, so its output must be stable
// across processes, platforms, and releases.
//
// Two modes exist and are never interchangeable:
//
//   - ModeStrict ("RFC8785-V1") sorts object keys recursively, preserves
//     array order, and rejects any value that is not a plain mapping, array,
//     string, boolean, null, or finite number.
//   - ModeLegacy ("JCS-LIKE-V1") reproduces the historical top-level-only
//     hashing behavior and tolerates non-finite numbers. It exists solely so
//     proofs issued before strict canonicalization can still be verified.
package canonical

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"

	dErrors "veritas/pkg/domain-errors"
)

// Mode selects the canonicalization algorithm. The string values are part of
// the wire contract and must round-trip bit-exact.
type Mode string

const (
	// ModeStrict is the RFC 8785 style recursive canonicalization.
	ModeStrict Mode = "RFC8785-V1"
	// ModeLegacy is the historical top-level-only canonicalization.
	ModeLegacy Mode = "JCS-LIKE-V1"
)

// ParseMode validates a wire mode identifier. An empty string selects strict.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", string(ModeStrict):
		return ModeStrict, nil
	case string(ModeLegacy):
		return ModeLegacy, nil
	default:
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown canonicalization mode: "+s)
	}
}

// PathError reports a payload value that strict canonicalization rejects,
// naming the offending path. It is permanent: retrying cannot succeed.
type PathError struct {
	Path   string
	Reason string
}

func (e *PathError) Error() string {
	return "canonicalization failed at " + e.Path + ": " + e.Reason
}

// Canonicalize serializes the payload deterministically under the given mode.
func Canonicalize(payload map[string]any, mode Mode) (string, error) {
	switch mode {
	case ModeStrict:
		return canonicalizeStrict(payload)
	case ModeLegacy:
		return canonicalizeLegacy(payload)
	default:
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown canonicalization mode: "+string(mode))
	}
}

func canonicalizeStrict(payload map[string]any) (string, error) {
	var buf bytes.Buffer
	if err := writeStrict(&buf, payload, "$"); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// writeStrict serializes one value. Object keys are sorted lexicographically
// at every depth; arrays retain order.
func writeStrict(buf *bytes.Buffer, value any, path string) error {
	switch v := value.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		if v {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case string:
		writeEscapedString(buf, v)
	case float64:
		return writeStrictNumber(buf, v, path)
	case float32:
		return writeStrictNumber(buf, float64(v), path)
	case int:
		buf.WriteString(strconv.FormatInt(int64(v), 10))
	case int32:
		buf.WriteString(strconv.FormatInt(int64(v), 10))
	case int64:
		buf.WriteString(strconv.FormatInt(v, 10))
	case uint:
		buf.WriteString(strconv.FormatUint(uint64(v), 10))
	case uint64:
		buf.WriteString(strconv.FormatUint(v, 10))
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return &PathError{Path: path, Reason: "unparseable number " + v.String()}
		}
		return writeStrictNumber(buf, f, path)
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeEscapedString(buf, k)
			buf.WriteByte(':')
			if err := writeStrict(buf, v[k], path+"."+k); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case []any:
		buf.WriteByte('[')
		for i, elem := range v {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeStrict(buf, elem, fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	default:
		// Date-like objects, structs, channels, and anything else that is
		// not a plain JSON value is rejected rather than guessed at.
		return &PathError{Path: path, Reason: fmt.Sprintf("unsupported value type %T", value)}
	}
	return nil
}

func writeStrictNumber(buf *bytes.Buffer, f float64, path string) error {
	if math.IsNaN(f) {
		return &PathError{Path: path, Reason: "non-finite number NaN"}
	}
	if math.IsInf(f, 0) {
		return &PathError{Path: path, Reason: "non-finite number Infinity"}
	}
	buf.WriteString(formatNumber(f))
	return nil
}

// formatNumber renders a finite number the way ES6 JSON.stringify does:
// integral values within the safe range print without a fraction or
// exponent, everything else uses the shortest round-trippable form.
func formatNumber(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e21 {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// writeEscapedString emits a JSON string using the minimal escaping rules of
// RFC 8785 (no HTML escaping, two-character sequences where defined).
func writeEscapedString(buf *bytes.Buffer, s string) {
	buf.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		case '\b':
			buf.WriteString(`\b`)
		case '\f':
			buf.WriteString(`\f`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		default:
			if r < 0x20 {
				buf.WriteString(fmt.Sprintf(`\u%04x`, r))
			} else {
				buf.WriteRune(r)
			}
		}
	}
	buf.WriteByte('"')
}

// canonicalizeLegacy is the clearly-labeled legacy code path. Top-level keys
// are sorted; values are serialized with encoding/json (HTML escaping, Go
// float formatting) and non-finite numbers degrade to null instead of
// failing. Do not extend this: new hashes always use strict mode.
func canonicalizeLegacy(payload map[string]any) (string, error) {
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyJSON, err := json.Marshal(k)
		if err != nil {
			return "", dErrors.Wrap(err, dErrors.CodeInternal, "marshal legacy key")
		}
		buf.Write(keyJSON)
		buf.WriteByte(':')
		valueJSON, err := json.Marshal(sanitizeNonFinite(payload[k]))
		if err != nil {
			return "", dErrors.Wrap(err, dErrors.CodeInternal, "marshal legacy value")
		}
		buf.Write(valueJSON)
	}
	buf.WriteByte('}')
	return buf.String(), nil
}

// sanitizeNonFinite walks the value replacing NaN and Infinity with nil, the
// way the historical serializer did.
func sanitizeNonFinite(value any) any {
	switch v := value.(type) {
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil
		}
		return v
	case float32:
		return sanitizeNonFinite(float64(v))
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, elem := range v {
			out[k] = sanitizeNonFinite(elem)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, elem := range v {
			out[i] = sanitizeNonFinite(elem)
		}
		return out
	default:
		return v
	}
}
