package pruntime

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf16"
)

type builtin struct {
	minArity int
	maxArity int
	call     func(ev *Evaluator, line int, args []Value) (Value, error)
}

func (b builtin) arityText() string {
	if b.minArity == b.maxArity {
		return strconv.Itoa(b.minArity)
	}
	return fmt.Sprintf("%d or %d", b.minArity, b.maxArity)
}

func fixed(arity int, fn func(ev *Evaluator, line int, args []Value) (Value, error)) builtin {
	return builtin{minArity: arity, maxArity: arity, call: fn}
}

// builtins is keyed by folded name; lookups go through foldName so calls are
// case-insensitive. pow and power are the same function under two spellings.
var builtins = map[string]builtin{
	"sqrt": fixed(1, func(ev *Evaluator, line int, args []Value) (Value, error) {
		f, err := wantNumber("sqrt", args[0], line)
		if err != nil {
			return Value{}, err
		}
		if f < 0 {
			return Value{}, rangeErr(line, "sqrt of a negative number")
		}
		return Real(math.Sqrt(f)), nil
	}),
	// round is half away from zero: round(0.5) is 1, round(-0.5) is -1
	"round": fixed(1, func(ev *Evaluator, line int, args []Value) (Value, error) {
		f, err := wantNumber("round", args[0], line)
		if err != nil {
			return Value{}, err
		}
		return Int(int64(math.Round(f))), nil
	}),
	"abs": fixed(1, func(ev *Evaluator, line int, args []Value) (Value, error) {
		if !args[0].IsNumber() {
			return Value{}, typeErr(line, "abs needs a number, got %s", args[0].Kind())
		}
		if args[0].Kind() == IntKind {
			n := args[0].Int64()
			if n < 0 {
				n = -n
			}
			return Int(n), nil
		}
		return Real(math.Abs(args[0].Float64())), nil
	}),
	"cos": mathFn("cos", math.Cos),
	"sin": mathFn("sin", math.Sin),
	"tan": mathFn("tan", math.Tan),
	"pow": fixed(2, func(ev *Evaluator, line int, args []Value) (Value, error) {
		base, err := wantNumber("pow", args[0], line)
		if err != nil {
			return Value{}, err
		}
		exp, err := wantNumber("pow", args[1], line)
		if err != nil {
			return Value{}, err
		}
		return Real(math.Pow(base, exp)), nil
	}),
	"random": fixed(2, func(ev *Evaluator, line int, args []Value) (Value, error) {
		if !args[0].IsNumber() || !args[1].IsNumber() {
			return Value{}, typeErr(line, "random needs numeric bounds")
		}
		lo, hi := args[0].Int64(), args[1].Int64()
		if lo > hi {
			return Value{}, rangeErr(line, "random bounds reversed: %d > %d", lo, hi)
		}
		return Int(lo + ev.rng.Int63n(hi-lo+1)), nil
	}),
	"tointeger": fixed(1, func(ev *Evaluator, line int, args []Value) (Value, error) {
		f, err := wantNumber("toInteger", args[0], line)
		if err != nil {
			return Value{}, err
		}
		return Int(int64(f)), nil
	}),
	"toreal": fixed(1, func(ev *Evaluator, line int, args []Value) (Value, error) {
		f, err := wantNumber("toReal", args[0], line)
		if err != nil {
			return Value{}, err
		}
		return Real(f), nil
	}),
	"stringtointeger": fixed(1, func(ev *Evaluator, line int, args []Value) (Value, error) {
		s, err := wantString("stringToInteger", args[0], line)
		if err != nil {
			return Value{}, err
		}
		trimmed := strings.TrimSpace(s)
		if !intValueRe.MatchString(trimmed) {
			return Value{}, typeErr(line, "cannot convert %q to Integer", s)
		}
		n, err2 := strconv.ParseInt(trimmed, 10, 64)
		if err2 != nil {
			return Value{}, typeErr(line, "cannot convert %q to Integer", s)
		}
		return Int(n), nil
	}),
	"stringtoreal": fixed(1, func(ev *Evaluator, line int, args []Value) (Value, error) {
		s, err := wantString("stringToReal", args[0], line)
		if err != nil {
			return Value{}, err
		}
		trimmed := strings.TrimSpace(s)
		if !realValueRe.MatchString(trimmed) {
			return Value{}, typeErr(line, "cannot convert %q to Real", s)
		}
		f, err2 := strconv.ParseFloat(trimmed, 64)
		if err2 != nil {
			return Value{}, typeErr(line, "cannot convert %q to Real", s)
		}
		return Real(f), nil
	}),
	"isinteger": fixed(1, func(ev *Evaluator, line int, args []Value) (Value, error) {
		return Bool(intValueRe.MatchString(strings.TrimSpace(args[0].String()))), nil
	}),
	"isreal": fixed(1, func(ev *Evaluator, line int, args []Value) (Value, error) {
		return Bool(realValueRe.MatchString(strings.TrimSpace(args[0].String()))), nil
	}),
	"currencyformat": fixed(1, func(ev *Evaluator, line int, args []Value) (Value, error) {
		f, err := wantNumber("currencyFormat", args[0], line)
		if err != nil {
			return Value{}, err
		}
		return Str(formatUSD(f)), nil
	}),
	// length counts UTF-16 code units, matching how editors count characters
	"length": fixed(1, func(ev *Evaluator, line int, args []Value) (Value, error) {
		s, err := wantString("length", args[0], line)
		if err != nil {
			return Value{}, err
		}
		return Int(int64(len(utf16.Encode([]rune(s))))), nil
	}),
	"toupper": fixed(1, func(ev *Evaluator, line int, args []Value) (Value, error) {
		s, err := wantString("toUpper", args[0], line)
		if err != nil {
			return Value{}, err
		}
		return Str(strings.ToUpper(s)), nil
	}),
	"tolower": fixed(1, func(ev *Evaluator, line int, args []Value) (Value, error) {
		s, err := wantString("toLower", args[0], line)
		if err != nil {
			return Value{}, err
		}
		return Str(strings.ToLower(s)), nil
	}),
	"append": fixed(2, func(ev *Evaluator, line int, args []Value) (Value, error) {
		return Str(args[0].String() + args[1].String()), nil
	}),
	"contains": fixed(2, func(ev *Evaluator, line int, args []Value) (Value, error) {
		s, err := wantString("contains", args[0], line)
		if err != nil {
			return Value{}, err
		}
		sub, err := wantString("contains", args[1], line)
		if err != nil {
			return Value{}, err
		}
		return Bool(strings.Contains(s, sub)), nil
	}),
	"substring": {minArity: 2, maxArity: 3, call: func(ev *Evaluator, line int, args []Value) (Value, error) {
		s, err := wantString("substring", args[0], line)
		if err != nil {
			return Value{}, err
		}
		runes := []rune(s)
		start, err := wantIndex("substring", args[1], line)
		if err != nil {
			return Value{}, err
		}
		end := int64(len(runes))
		if len(args) == 3 {
			end, err = wantIndex("substring", args[2], line)
			if err != nil {
				return Value{}, err
			}
		}
		if start > end {
			return Value{}, rangeErr(line, "substring start %d is past end %d", start, end)
		}
		if start < 0 || end > int64(len(runes)) {
			return Value{}, rangeErr(line, "substring bounds [%d, %d) outside string of length %d", start, end, len(runes))
		}
		return Str(string(runes[start:end])), nil
	}},
}

func init() {
	builtins["power"] = builtins["pow"]
}

var (
	intValueRe  = regexp.MustCompile(`^-?\d+$`)
	realValueRe = regexp.MustCompile(`^-?\d+(\.\d+)?$`)
)

func mathFn(name string, fn func(float64) float64) builtin {
	return fixed(1, func(ev *Evaluator, line int, args []Value) (Value, error) {
		f, err := wantNumber(name, args[0], line)
		if err != nil {
			return Value{}, err
		}
		return Real(fn(f)), nil
	})
}

func wantNumber(name string, v Value, line int) (float64, error) {
	if !v.IsNumber() {
		return 0, typeErr(line, "%s needs a number, got %s", name, v.Kind())
	}
	return v.Float64(), nil
}

func wantString(name string, v Value, line int) (string, error) {
	if v.Kind() != StringKind {
		return "", typeErr(line, "%s needs a string, got %s", name, v.Kind())
	}
	return v.Text(), nil
}

func wantIndex(name string, v Value, line int) (int64, error) {
	if !v.IsNumber() || v.Float64() != float64(v.Int64()) {
		return 0, typeErr(line, "%s index must be an integer", name)
	}
	return v.Int64(), nil
}

// formatUSD renders 1234.5 as $1,234.50 and -20 as -$20.00.
func formatUSD(f float64) string {
	neg := math.Signbit(f)
	cents := int64(math.Round(math.Abs(f) * 100))
	whole := cents / 100
	frac := cents % 100
	digits := strconv.FormatInt(whole, 10)
	var groups []string
	for len(digits) > 3 {
		groups = append([]string{digits[len(digits)-3:]}, groups...)
		digits = digits[:len(digits)-3]
	}
	groups = append([]string{digits}, groups...)
	out := "$" + strings.Join(groups, ",") + fmt.Sprintf(".%02d", frac)
	if neg {
		return "-" + out
	}
	return out
}
