package filament

import (
	"encoding/json"
	"strconv"
	"strings"

	platformerrors "filament-recognition-go/internal/platform/errors"
)

// FieldCount is the number of attributes the confidence heuristic counts.
const FieldCount = 6

// Standard spool diameters in millimetres. Anything else the model
// reports, including near misses like 1.70, is discarded.
var allowedDiameters = []float64{1.75, 2.85}

var (
	// ErrNoObject means the reply contains no JSON object at all.
	ErrNoObject = platformerrors.New(platformerrors.KindDomain, "filament.extract",
		"no structured data in model reply")
	// ErrMalformedObject means braces were present but nothing between
	// them parsed as JSON, which usually signals prompt drift.
	ErrMalformedObject = platformerrors.New(platformerrors.KindDomain, "filament.extract",
		"malformed structured data in model reply")
)

// Interpret recovers a normalized attribute record plus its confidence
// score from raw model output text.
func Interpret(text string) (RecognizedFilamentData, float64, error) {
	parsed, err := ExtractObject(text)
	if err != nil {
		return RecognizedFilamentData{}, 0, err
	}
	data := Normalize(parsed)
	return data, Confidence(data), nil
}

// ExtractObject pulls a JSON object out of unstructured model output.
// Models routinely wrap the payload in markdown fences or surround it
// with prose despite instructions not to, so parsing falls back step by
// step: strip fences, parse directly, then parse the widest brace window.
func ExtractObject(text string) (map[string]interface{}, error) {
	text = strings.TrimSpace(text)

	// Longer fence prefix first, otherwise "```json" loses its tag.
	if strings.HasPrefix(text, "```json") {
		text = text[len("```json"):]
	} else if strings.HasPrefix(text, "```") {
		text = text[len("```"):]
	}
	if strings.HasSuffix(text, "```") {
		text = text[:len(text)-len("```")]
	}
	text = strings.TrimSpace(text)

	var parsed map[string]interface{}
	if err := json.Unmarshal([]byte(text), &parsed); err == nil {
		return parsed, nil
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end <= start {
		return nil, ErrNoObject
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), &parsed); err != nil {
		return nil, ErrMalformedObject
	}
	return parsed, nil
}

// Normalize validates the parsed mapping field by field. Fields are
// independent: a junk diameter does not invalidate a good brand.
func Normalize(raw map[string]interface{}) RecognizedFilamentData {
	return RecognizedFilamentData{
		Brand:     stringField(raw, "brand"),
		Material:  stringField(raw, "material"),
		ColorName: stringField(raw, "colorName"),
		ColorHex:  normalizeColorHex(raw["colorHex"]),
		Weight:    normalizeWeight(raw["weight"]),
		Diameter:  normalizeDiameter(raw["diameter"]),
	}
}

// Confidence is the fraction of the six target fields that survived
// normalization. A crude completeness heuristic, not a calibrated
// probability: six junk-free fields read off a wrong label still score 1.0.
func Confidence(data RecognizedFilamentData) float64 {
	populated := 0
	for _, s := range []*string{data.Brand, data.Material, data.ColorName, data.ColorHex, data.Weight} {
		if s != nil && *s != "" {
			populated++
		}
	}
	if data.Diameter != nil {
		populated++
	}
	return float64(populated) / FieldCount
}

func stringField(raw map[string]interface{}, key string) *string {
	value, ok := raw[key].(string)
	if !ok {
		return nil
	}
	return &value
}

// normalizeDiameter accepts the value as a JSON number or a numeric
// string, then enforces strict membership in the two standard diameters.
func normalizeDiameter(value interface{}) *float64 {
	var diameter float64
	switch v := value.(type) {
	case float64:
		diameter = v
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil
		}
		diameter = parsed
	default:
		return nil
	}

	for _, allowed := range allowedDiameters {
		if diameter == allowed {
			return &diameter
		}
	}
	return nil
}

// normalizeWeight keeps the value as text. Numbers are rendered in their
// shortest decimal form so 1000 stays "1000", preserving whatever
// formatting the label used without imposing a schema.
func normalizeWeight(value interface{}) *string {
	switch v := value.(type) {
	case string:
		return &v
	case float64:
		text := strconv.FormatFloat(v, 'f', -1, 64)
		return &text
	case bool:
		text := strconv.FormatBool(v)
		return &text
	default:
		return nil
	}
}

// normalizeColorHex guarantees the leading '#'. Hex-digit well-formedness
// is deliberately not checked; the value is display-only.
func normalizeColorHex(value interface{}) *string {
	hex, ok := value.(string)
	if !ok || hex == "" {
		return nil
	}
	if !strings.HasPrefix(hex, "#") {
		hex = "#" + hex
	}
	return &hex
}
