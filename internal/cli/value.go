package cli

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/pior/statedb/wire"
)

// parseValue turns command-line text into a value for type t.
//
// With AutoSuggest the text is tried as an integer, then a decimal number,
// and falls back to a string. Blobs are hex, with or without a 0x prefix.
func parseValue(text string, t wire.DataType) (any, error) {
	switch t {
	case wire.AutoSuggest:
		if n, err := strconv.ParseInt(text, 10, 64); err == nil {
			return n, nil
		}
		if n, ok := new(big.Int).SetString(text, 10); ok {
			return n, nil
		}
		if f, err := strconv.ParseFloat(text, 64); err == nil {
			return f, nil
		}
		return text, nil

	case wire.TypeNone:
		if text != "" && !strings.EqualFold(text, "none") {
			return nil, fmt.Errorf("type None takes no value, got %q", text)
		}
		return nil, nil

	case wire.TypeString:
		return text, nil

	case wire.TypeBlob:
		b, err := hex.DecodeString(strings.TrimPrefix(strings.TrimPrefix(text, "0x"), "0X"))
		if err != nil {
			return nil, fmt.Errorf("blob must be hex: %w", err)
		}
		return b, nil

	case wire.TypeBigInt:
		n, ok := new(big.Int).SetString(text, 10)
		if !ok {
			return nil, fmt.Errorf("invalid integer %q", text)
		}
		return n, nil

	case wire.TypeFloat32, wire.TypeFloat64:
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", text)
		}
		return f, nil
	}

	// fixed-width integers, range checked by the codec
	n, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid integer %q", text)
	}
	return n, nil
}
