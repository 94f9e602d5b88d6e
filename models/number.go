package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// Number 是寬鬆的數值型別，接受 JSON 數字或數字字串，其餘一律視為 0。
type Number float64

func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*n = 0
		return nil
	}

	var v any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		*n = 0
		return nil
	}
	*n = Number(ParseNumber(v))
	return nil
}

func (n Number) Float64() float64 {
	return float64(n)
}

// ParseNumber converts v to a finite float64 without ever failing.
// Numbers pass through, strings are read up to the end of their numeric
// prefix ("1299 Kč" is 1299), everything else is 0.
func ParseNumber(v any) float64 {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int32:
		f = float64(x)
	case int64:
		f = float64(x)
	case uint:
		f = float64(x)
	case uint32:
		f = float64(x)
	case uint64:
		f = float64(x)
	case Number:
		f = float64(x)
	case json.Number:
		parsed, err := x.Float64()
		if err != nil {
			return 0
		}
		f = parsed
	case string:
		f = leadingFloat(x)
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// ParseQuantity returns a whole quantity of at least 1.
func ParseQuantity(v any) int {
	f := math.Floor(ParseNumber(v))
	switch {
	case f < 1:
		return 1
	case f > math.MaxInt32:
		return math.MaxInt32
	}
	return int(f)
}

// leadingFloat reads the longest decimal float at the start of s after
// leading whitespace: sign, digits, fraction, exponent. No prefix reads as 0.
func leadingFloat(s string) float64 {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)

	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	digits := 0
	for ; i < len(s) && isDigit(s[i]); i++ {
		digits++
	}
	if i < len(s) && s[i] == '.' {
		for i++; i < len(s) && isDigit(s[i]); i++ {
			digits++
		}
	}
	if digits == 0 {
		return 0
	}

	end := i
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		j := i + 1
		if j < len(s) && (s[j] == '+' || s[j] == '-') {
			j++
		}
		k := j
		for k < len(s) && isDigit(s[k]) {
			k++
		}
		// 指數沒有數字時只取前面的部分
		if k > j {
			end = k
		}
	}

	// 超出範圍時 ParseFloat 回傳 ±Inf，由呼叫端歸零
	f, err := strconv.ParseFloat(s[:end], 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0
	}
	return f
}

func isDigit(c byte) bool {
	return '0' <= c && c <= '9'
}
