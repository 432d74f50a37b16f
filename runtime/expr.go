package pruntime

import (
	"math"

	"github.com/edulang/pseudo/ast"
)

func (ev *Evaluator) evalExpr(e ast.Expr, env *Env) (Value, error) {
	switch ex := e.(type) {
	case ast.NumberLit:
		if ex.IsInt {
			return Int(int64(ex.Value)), nil
		}
		return Real(ex.Value), nil

	case ast.StringLit:
		return Str(ex.Value), nil

	case ast.Ident:
		v, err := env.Get(ex.Name)
		if err != nil {
			return Value{}, semanticErr(ex.Line, "%s", err)
		}
		return v, nil

	case ast.ArrayLit:
		arr := NewArray(len(ex.Elements))
		for i, el := range ex.Elements {
			v, err := ev.evalExpr(el, env)
			if err != nil {
				return Value{}, err
			}
			arr.Array().Elems[i] = v
		}
		return arr, nil

	case ast.IndexExpr:
		arr, idx, err := ev.resolveIndex(ex, env)
		if err != nil {
			return Value{}, err
		}
		return arr.Elems[idx], nil

	case ast.GroupExpr:
		return ev.evalExpr(ex.Inner, env)

	case ast.UnaryExpr:
		v, err := ev.evalExpr(ex.Right, env)
		if err != nil {
			return Value{}, err
		}
		switch ex.Op {
		case "-":
			if !v.IsNumber() {
				return Value{}, typeErr(ex.Line, "unary - needs a number, got %s", v.Kind())
			}
			if v.Kind() == IntKind {
				return Int(-v.Int64()), nil
			}
			return Real(-v.Float64()), nil
		case "Not":
			return Bool(!v.Truthy()), nil
		default:
			return Value{}, typeErr(ex.Line, "unsupported unary operator %s", ex.Op)
		}

	case ast.BinaryExpr:
		switch ex.Op {
		case "And":
			left, err := ev.evalExpr(ex.Left, env)
			if err != nil {
				return Value{}, err
			}
			if !left.Truthy() {
				return Bool(false), nil
			}
			right, err := ev.evalExpr(ex.Right, env)
			if err != nil {
				return Value{}, err
			}
			return Bool(right.Truthy()), nil
		case "Or":
			left, err := ev.evalExpr(ex.Left, env)
			if err != nil {
				return Value{}, err
			}
			if left.Truthy() {
				return Bool(true), nil
			}
			right, err := ev.evalExpr(ex.Right, env)
			if err != nil {
				return Value{}, err
			}
			return Bool(right.Truthy()), nil
		}
		left, err := ev.evalExpr(ex.Left, env)
		if err != nil {
			return Value{}, err
		}
		right, err := ev.evalExpr(ex.Right, env)
		if err != nil {
			return Value{}, err
		}
		return evalBinary(ex.Op, left, right, ex.Line)

	case ast.CallExpr:
		if fn, ok := builtins[foldName(ex.Callee)]; ok {
			args := make([]Value, len(ex.Args))
			for i, a := range ex.Args {
				v, err := ev.evalExpr(a, env)
				if err != nil {
					return Value{}, err
				}
				args[i] = v
			}
			if len(args) < fn.minArity || len(args) > fn.maxArity {
				return Value{}, semanticErr(ex.Line, "%s expects %s argument(s), got %d", ex.Callee, fn.arityText(), len(args))
			}
			return fn.call(ev, ex.Line, args)
		}
		return ev.callFunction(ex, env)

	case ast.TapMarker:
		return Str(tapSpacer), nil

	default:
		return Value{}, typeErr(e.Pos(), "unsupported expression")
	}
}

func evalBinary(op string, left, right Value, line int) (Value, error) {
	switch op {
	case "+":
		if left.Kind() == StringKind && right.Kind() == StringKind {
			return Str(left.Text() + right.Text()), nil
		}
		if left.IsNumber() && right.IsNumber() {
			if left.Kind() == IntKind && right.Kind() == IntKind {
				return Int(left.Int64() + right.Int64()), nil
			}
			return Real(left.Float64() + right.Float64()), nil
		}
		return Value{}, typeErr(line, "cannot add %s and %s", left.Kind(), right.Kind())

	case "-", "*":
		if !left.IsNumber() || !right.IsNumber() {
			return Value{}, typeErr(line, "operator %s needs numbers, got %s and %s", op, left.Kind(), right.Kind())
		}
		if left.Kind() == IntKind && right.Kind() == IntKind {
			if op == "-" {
				return Int(left.Int64() - right.Int64()), nil
			}
			return Int(left.Int64() * right.Int64()), nil
		}
		if op == "-" {
			return Real(left.Float64() - right.Float64()), nil
		}
		return Real(left.Float64() * right.Float64()), nil

	case "/":
		if !left.IsNumber() || !right.IsNumber() {
			return Value{}, typeErr(line, "operator / needs numbers, got %s and %s", left.Kind(), right.Kind())
		}
		if right.Float64() == 0 {
			return Value{}, divZeroErr(line)
		}
		return Real(left.Float64() / right.Float64()), nil

	case "%":
		if !left.IsNumber() || !right.IsNumber() {
			return Value{}, typeErr(line, "operator Mod needs numbers, got %s and %s", left.Kind(), right.Kind())
		}
		if right.Float64() == 0 {
			return Value{}, divZeroErr(line)
		}
		if left.Kind() == IntKind && right.Kind() == IntKind {
			return Int(left.Int64() % right.Int64()), nil
		}
		return Real(math.Mod(left.Float64(), right.Float64())), nil

	case "==":
		return Bool(valuesEqual(left, right)), nil
	case "!=":
		return Bool(!valuesEqual(left, right)), nil

	case "<", "<=", ">", ">=":
		return compareOrdered(op, left, right, line)

	default:
		return Value{}, typeErr(line, "unsupported operator %s", op)
	}
}

func valuesEqual(left, right Value) bool {
	if left.IsNumber() && right.IsNumber() {
		return left.Float64() == right.Float64()
	}
	if left.Kind() == StringKind && right.Kind() == StringKind {
		return left.Text() == right.Text()
	}
	if left.Kind() == NullKind && right.Kind() == NullKind {
		return true
	}
	return false
}

func compareOrdered(op string, left, right Value, line int) (Value, error) {
	var cmp int
	switch {
	case left.IsNumber() && right.IsNumber():
		lf, rf := left.Float64(), right.Float64()
		switch {
		case lf < rf:
			cmp = -1
		case lf > rf:
			cmp = 1
		}
	case left.Kind() == StringKind && right.Kind() == StringKind:
		ls, rs := left.Text(), right.Text()
		switch {
		case ls < rs:
			cmp = -1
		case ls > rs:
			cmp = 1
		}
	default:
		return Value{}, typeErr(line, "cannot compare %s and %s", left.Kind(), right.Kind())
	}
	switch op {
	case "<":
		return Bool(cmp < 0), nil
	case "<=":
		return Bool(cmp <= 0), nil
	case ">":
		return Bool(cmp > 0), nil
	default:
		return Bool(cmp >= 0), nil
	}
}
