package paybox

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

const (
	legacySigKey = "pg_sig"
	modernSigKey = "sig"
	sigSeparator = ";"
)

func digest(parts []string) string {
	sum := md5.Sum([]byte(strings.Join(parts, sigSeparator)))
	return hex.EncodeToString(sum[:])
}

func sortedKeys[V any](m map[string]V, skip string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		if k != skip {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// SignLegacy signs a flat pg_ parameter set for the named operation:
// md5("operation;v1;...;vn;secret") with values in bytewise key order.
func SignLegacy(operation string, params map[string]string, secret string) string {
	keys := sortedKeys(params, legacySigKey)

	parts := make([]string, 0, len(keys)+2)
	parts = append(parts, operation)
	for _, k := range keys {
		parts = append(parts, params[k])
	}
	parts = append(parts, secret)

	return digest(parts)
}

// VerifyLegacy recomputes the signature and compares it with pg_sig.
// Plain string equality: the scheme is the provider's, not a secret comparison.
func VerifyLegacy(params map[string]string, secret, operation string) bool {
	sig := params[legacySigKey]
	if sig == "" {
		return false
	}
	return SignLegacy(operation, params, secret) == sig
}

// SignModern signs a JSON payload. No operation name is used; nested
// objects and arrays contribute their compact JSON text.
func SignModern(payload map[string]any, secret string) (string, error) {
	keys := sortedKeys(payload, modernSigKey)

	parts := make([]string, 0, len(keys)+1)
	for _, k := range keys {
		v, err := modernValue(payload[k])
		if err != nil {
			return "", fmt.Errorf("paybox: field %q: %w", k, err)
		}
		parts = append(parts, v)
	}
	parts = append(parts, secret)

	return digest(parts), nil
}

// VerifyModern checks the top-level sig of a JSON payload
func VerifyModern(payload map[string]any, secret string) bool {
	sig, ok := payload[modernSigKey].(string)
	if !ok || sig == "" {
		return false
	}
	expected, err := SignModern(payload, secret)
	if err != nil {
		return false
	}
	return expected == sig
}

// modernValue renders one payload value for the canonical string
func modernValue(v any) (string, error) {
	switch val := v.(type) {
	case nil:
		return "null", nil
	case string:
		return val, nil
	case json.Number:
		return val.String(), nil
	case bool:
		return strconv.FormatBool(val), nil
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(val), nil
	case int64:
		return strconv.FormatInt(val, 10), nil
	default:
		return compactJSON(val)
	}
}

// compactJSON marshals with sorted map keys and no HTML escaping
func compactJSON(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// flattenLegacy turns a decoded callback body into the flat legacy form
func flattenLegacy(payload map[string]any) map[string]string {
	params := make(map[string]string, len(payload))
	for k, v := range payload {
		s, err := modernValue(v)
		if err != nil {
			continue
		}
		params[k] = s
	}
	return params
}
