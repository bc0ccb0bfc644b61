// Package payload decodes device reading bodies shared by the HTTP and MQTT transports.
package payload

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"iot-climate-monitor/internal/apperr"
)

// Reading is a decoded device payload. Nil numeric fields were absent.
type Reading struct {
	DeviceCode  string
	Temperature *float64
	Humidity    *float64
	Light       *float64
}

// Canonical field names and the legacy aliases early firmware sends.
var fieldAliases = map[string][]string{
	"temperature": {"temperature", "suhu"},
	"humidity":    {"humidity", "kelembaban"},
	"light":       {"light", "cahaya"},
}

// Decode parses a JSON object body. Canonical names win over aliases.
// Numbers may be JSON numbers or numeric strings.
func Decode(data []byte) (Reading, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return Reading{}, apperr.Validation("invalid json body")
	}
	if fields == nil {
		return Reading{}, apperr.Validation("request body required")
	}

	var out Reading
	if raw, ok := present(fields, "device_code"); ok {
		var code string
		if err := json.Unmarshal(raw, &code); err != nil {
			return Reading{}, apperr.Validation("device_code must be a string")
		}
		out.DeviceCode = strings.TrimSpace(code)
	}

	var err error
	if out.Temperature, err = number(fields, "temperature"); err != nil {
		return Reading{}, err
	}
	if out.Humidity, err = number(fields, "humidity"); err != nil {
		return Reading{}, err
	}
	if out.Light, err = number(fields, "light"); err != nil {
		return Reading{}, err
	}
	return out, nil
}

func present(fields map[string]json.RawMessage, key string) (json.RawMessage, bool) {
	raw, ok := fields[key]
	if !ok {
		return nil, false
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, false
	}
	return trimmed, true
}

func number(fields map[string]json.RawMessage, canonical string) (*float64, error) {
	for _, key := range fieldAliases[canonical] {
		raw, ok := present(fields, key)
		if !ok {
			continue
		}
		value, err := parseNumber(raw)
		if err != nil {
			return nil, apperr.Validationf("%s must be a number", canonical)
		}
		return &value, nil
	}
	return nil, nil
}

func parseNumber(raw json.RawMessage) (float64, error) {
	var value float64
	if raw[0] == '"' {
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return 0, err
		}
		parsed, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
		if err != nil {
			return 0, err
		}
		value = parsed
	} else if err := json.Unmarshal(raw, &value); err != nil {
		return 0, err
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, strconv.ErrRange
	}
	return value, nil
}
