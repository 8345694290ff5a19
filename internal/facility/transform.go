package facility

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"math/big"
	"reflect"
	"strconv"
	"strings"

	gojson "github.com/goccy/go-json"
	"github.com/jackc/pgx/v5/pgtype"
)

// ErrMissingID is reported by Validate for a record without an id.
var ErrMissingID = errors.New("facility record has no id")

// Transform maps a raw row onto a FeedRecord. It never fails: missing or
// unusable values become nil and extra keys are ignored. A record without an
// id yields the bare prefix as its entity id; use Validate to reject those.
func Transform(raw RawRecord) FeedRecord {
	return FeedRecord{
		EntityID:  EntityIDPrefix + idText(raw["id"]),
		Name:      text(raw["name"]),
		Telephone: text(raw["phone"]),
		URL:       text(raw["url"]),
		Location: Location{
			Latitude:  number(raw["latitude"]),
			Longitude: number(raw["longitude"]),
			Address: Address{
				Country:       text(raw["country"]),
				Locality:      text(raw["locality"]),
				Region:        text(raw["region"]),
				PostalCode:    text(raw["postal_code"]),
				StreetAddress: text(raw["street_address"]),
			},
		},
	}
}

// TransformChunk maps every record of a chunk, preserving order.
func TransformChunk(chunk Chunk) []FeedRecord {
	out := make([]FeedRecord, len(chunk))
	for i, raw := range chunk {
		out[i] = Transform(raw)
	}
	return out
}

// Validate reports whether raw carries a usable id.
func Validate(raw RawRecord) error {
	if idText(raw["id"]) == "" {
		return ErrMissingID
	}
	return nil
}

func idText(v any) string {
	if nilPointer(v) {
		return ""
	}
	switch id := v.(type) {
	case nil:
		return ""
	case string:
		return id
	case []byte:
		return string(id)
	case int:
		return strconv.Itoa(id)
	case int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", id)
	case float32:
		return strconv.FormatFloat(float64(id), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	case gojson.Number:
		return id.String()
	case [16]byte:
		return uuidText(id)
	case pgtype.Numeric:
		return numericText(id)
	case pgtype.UUID:
		if !id.Valid {
			return ""
		}
		return uuidText(id.Bytes)
	case pgtype.Int8:
		if !id.Valid {
			return ""
		}
		return strconv.FormatInt(id.Int64, 10)
	case pgtype.Text:
		if !id.Valid {
			return ""
		}
		return id.String
	case fmt.Stringer:
		return id.String()
	default:
		return fmt.Sprintf("%v", id)
	}
}

func text(v any) *string {
	if nilPointer(v) {
		return nil
	}
	var s string
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		s = val
	case []byte:
		s = string(val)
	case pgtype.Text:
		if !val.Valid {
			return nil
		}
		s = val.String
	case fmt.Stringer:
		s = val.String()
	default:
		s = fmt.Sprintf("%v", val)
	}
	return &s
}

func number(v any) *float64 {
	var f float64
	switch val := v.(type) {
	case nil:
		return nil
	case float64:
		f = val
	case float32:
		f = float64(val)
	case int:
		f = float64(val)
	case int8:
		f = float64(val)
	case int16:
		f = float64(val)
	case int32:
		f = float64(val)
	case int64:
		f = float64(val)
	case uint:
		f = float64(val)
	case uint8:
		f = float64(val)
	case uint16:
		f = float64(val)
	case uint32:
		f = float64(val)
	case uint64:
		f = float64(val)
	case gojson.Number:
		parsed, err := val.Float64()
		if err != nil {
			return nil
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return nil
		}
		f = parsed
	case []byte:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(string(val)), 64)
		if err != nil {
			return nil
		}
		f = parsed
	case pgtype.Numeric:
		fv, err := val.Float64Value()
		if err != nil || !fv.Valid {
			return nil
		}
		f = fv.Float64
	case pgtype.Float8:
		if !val.Valid {
			return nil
		}
		f = val.Float64
	default:
		return nil
	}
	// NaN and infinities have no JSON encoding
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// nilPointer reports whether v is a typed nil pointer, which would panic
// in a value-receiver String method.
func nilPointer(v any) bool {
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}

func numericText(n pgtype.Numeric) string {
	if !n.Valid || n.NaN || n.InfinityModifier != pgtype.Finite || n.Int == nil {
		return ""
	}
	if n.Exp >= 0 {
		scaled := new(big.Int).Mul(n.Int, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n.Exp)), nil))
		return scaled.String()
	}
	fv, err := n.Float64Value()
	if err != nil || !fv.Valid {
		return ""
	}
	return strconv.FormatFloat(fv.Float64, 'f', -1, 64)
}

func uuidText(b [16]byte) string {
	var buf [36]byte
	hex.Encode(buf[0:8], b[0:4])
	buf[8] = '-'
	hex.Encode(buf[9:13], b[4:6])
	buf[13] = '-'
	hex.Encode(buf[14:18], b[6:8])
	buf[18] = '-'
	hex.Encode(buf[19:23], b[8:10])
	buf[23] = '-'
	hex.Encode(buf[24:], b[10:])
	return string(buf[:])
}
