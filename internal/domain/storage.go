package domain

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// DecimalPattern is the only text form read as a numeric storage value.
// It avoids "?" so SQL builders can embed it unchanged.
const DecimalPattern = `^[-+]{0,1}[0-9]*[.]{0,1}[0-9]+$`

var decimalRe = regexp.MustCompile(DecimalPattern)

type StorageKind uint8

const (
	NoVariant StorageKind = iota
	NumericVariant
	TextVariant
)

// Storage is the normalized storage variant of an inventory identity.
// Null, empty and numeric zero all collapse into NoVariant; plain decimals
// are Numeric, everything else is kept as trimmed Text.
type Storage struct {
	kind StorageKind
	num  float64
	text string
}

func NoStorage() Storage {
	return Storage{}
}

func NumericStorage(n float64) Storage {
	if n == 0 || math.IsNaN(n) || math.IsInf(n, 0) {
		return Storage{}
	}
	return Storage{kind: NumericVariant, num: n}
}

func ParseStorage(raw string) Storage {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Storage{}
	}
	if decimalRe.MatchString(trimmed) {
		if n, err := strconv.ParseFloat(trimmed, 64); err == nil {
			return NumericStorage(n)
		}
	}
	return Storage{kind: TextVariant, text: trimmed}
}

// StorageFrom normalizes a loosely typed value as found in request payloads
// and database drivers.
func StorageFrom(v any) Storage {
	switch val := v.(type) {
	case nil:
		return Storage{}
	case Storage:
		return val
	case *Storage:
		if val == nil {
			return Storage{}
		}
		return *val
	case string:
		return ParseStorage(val)
	case *string:
		if val == nil {
			return Storage{}
		}
		return ParseStorage(*val)
	case []byte:
		return ParseStorage(string(val))
	case json.Number:
		return ParseStorage(val.String())
	case float64:
		return NumericStorage(val)
	case float32:
		return NumericStorage(float64(val))
	case int:
		return NumericStorage(float64(val))
	case int32:
		return NumericStorage(float64(val))
	case int64:
		return NumericStorage(float64(val))
	default:
		return ParseStorage(fmt.Sprint(val))
	}
}

func (s Storage) Kind() StorageKind {
	return s.kind
}

func (s Storage) IsNone() bool {
	return s.kind == NoVariant
}

func (s Storage) Number() (float64, bool) {
	return s.num, s.kind == NumericVariant
}

func (s Storage) Equal(other Storage) bool {
	if s.kind != other.kind {
		return false
	}
	switch s.kind {
	case NumericVariant:
		return s.num == other.num
	case TextVariant:
		return s.text == other.text
	default:
		return true
	}
}

// String returns the canonical stored form: empty for NoVariant.
func (s Storage) String() string {
	switch s.kind {
	case NumericVariant:
		return strconv.FormatFloat(s.num, 'f', -1, 64)
	case TextVariant:
		return s.text
	default:
		return ""
	}
}

// Key is the storage segment of a line key.
func (s Storage) Key() string {
	if s.kind == NoVariant {
		return "NULL"
	}
	return s.String()
}

func (s Storage) Label() string {
	switch s.kind {
	case NumericVariant:
		return s.String() + "GB"
	case TextVariant:
		return s.text
	default:
		return "no storage"
	}
}

func (s Storage) MarshalJSON() ([]byte, error) {
	switch s.kind {
	case NumericVariant:
		return []byte(s.String()), nil
	case TextVariant:
		return json.Marshal(s.text)
	default:
		return []byte("null"), nil
	}
}

func (s *Storage) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*s = Storage{}
		return nil
	}
	if trimmed[0] == '"' {
		var raw string
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return err
		}
		*s = ParseStorage(raw)
		return nil
	}
	n, err := strconv.ParseFloat(string(trimmed), 64)
	if err != nil {
		return fmt.Errorf("storage: unsupported value %s", trimmed)
	}
	*s = NumericStorage(n)
	return nil
}

func (s *Storage) Scan(src any) error {
	*s = StorageFrom(src)
	return nil
}

func (s Storage) Value() (driver.Value, error) {
	if s.kind == NoVariant {
		return nil, nil
	}
	return s.String(), nil
}
