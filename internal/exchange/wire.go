// Package exchange holds helpers shared by the venue profiles under it.
package exchange

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Rhinoquantify/Rhino-Gateway-Temp/internal/rest"
	"github.com/Rhinoquantify/Rhino-Gateway-Temp/internal/ws"
)

// JSONMapper decodes the raw body into T and converts it with fn.
func JSONMapper[T any](fn func(T) (any, error)) rest.Mapper {
	return func(raw []byte, _ any) (any, error) {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("decode %T: %w", v, err)
		}
		return fn(v)
	}
}

// Decode unmarshals a stream message into T.
func Decode[T any](msg ws.Message) (T, error) {
	var v T
	if err := json.Unmarshal(msg.Raw, &v); err != nil {
		return v, fmt.Errorf("decode %T: %w", v, err)
	}
	return v, nil
}

// Dec parses a decimal string, zero on failure.
func Dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero
	}
	return d
}

// Millis converts epoch milliseconds.
func Millis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

// Seconds converts epoch seconds given as a decimal string ("1700000000.123").
func Seconds(s string) time.Time {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f == 0 {
		return time.Time{}
	}
	return time.UnixMilli(int64(f * 1000))
}

// ClientOrderID returns id, or a fresh uuid without dashes truncated to n
// characters when id is empty. n <= 0 keeps the full 32 characters.
func ClientOrderID(id string, n int) string {
	if id != "" {
		return id
	}
	s := strings.ReplaceAll(uuid.NewString(), "-", "")
	if n > 0 && n < len(s) {
		s = s[:n]
	}
	return s
}

// RequestID returns a numeric websocket request id derived from a uuid.
func RequestID() uint32 {
	return uuid.New().ID()
}

// StringOrNumber accepts "123" and 123 in JSON.
type StringOrNumber string

func (s *StringOrNumber) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*s = StringOrNumber(str)
		return nil
	}
	if string(b) == "null" {
		*s = ""
		return nil
	}
	*s = StringOrNumber(b)
	return nil
}

func (s StringOrNumber) String() string { return string(s) }
