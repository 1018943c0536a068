package cli

import (
	"encoding/hex"
	"fmt"
	"io"
	"math/big"
	"strconv"
	"time"

	"github.com/pior/statedb/wire"
)

// printer writes tagged lines, e.g. "[OK] stored".
type printer struct {
	w io.Writer
}

func (p printer) print(title, format string, args ...any) {
	fmt.Fprintf(p.w, "[%s] %s\n", title, fmt.Sprintf(format, args...))
}

func (p printer) success(format string, args ...any) { p.print("OK", format, args...) }
func (p printer) info(format string, args ...any)    { p.print("INFO", format, args...) }
func (p printer) warn(format string, args ...any)    { p.print("WARN", format, args...) }

// entry prints "key = value (Type)"
func (p printer) entry(key string, value any, t wire.DataType) {
	fmt.Fprintf(p.w, "%s = %s (%s)\n", key, formatValue(value), t)
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "none"
	case string:
		return strconv.Quote(x)
	case []byte:
		return "0x" + hex.EncodeToString(x)
	case *big.Int:
		return x.String()
	}
	return fmt.Sprint(v)
}

func took(start time.Time) string {
	return "(took " + time.Since(start).Round(time.Microsecond).String() + ")"
}
