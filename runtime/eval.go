package pruntime

import (
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/edulang/pseudo/ast"
	"github.com/emirpasic/gods/maps/linkedhashmap"
)

// Host is the driver side of the evaluator: a synchronous display channel, a
// blocking input channel and a cooperative stop flag. Input returns ok=false
// when the driver cancels the read.
type Host interface {
	Display(line string)
	Input(prompt string) (string, bool)
	ShouldStop() bool
}

// Step is one debugger step point: the line about to execute and a snapshot
// of the visible scope (displayName -> Value, declaration order).
type Step struct {
	Line  int
	Scope *linkedhashmap.Map
}

// tapSpacer is what a Tap display item renders as.
const tapSpacer = "    "

type resultKind int

const (
	resultNone resultKind = iota
	resultReturn
)

type execResult struct {
	kind  resultKind
	value Value
}

type Evaluator struct {
	program   *ast.Program
	host      Host
	globals   *Env
	modules   map[string]*ast.ModuleDecl
	functions map[string]*ast.FuncDecl
	rng       *rand.Rand

	// stepHook is called before every statement when set; it is nil in run
	// mode. suppress is non-zero inside called subroutine bodies, where step
	// points are not emitted (step-over semantics).
	stepHook func(Step) error
	suppress int
}

func New(program *ast.Program, host Host) *Evaluator {
	ev := &Evaluator{
		program:   program,
		host:      host,
		globals:   NewEnv(nil),
		modules:   map[string]*ast.ModuleDecl{},
		functions: map[string]*ast.FuncDecl{},
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, s := range program.Statements {
		switch d := s.(type) {
		case ast.ModuleDecl:
			cp := d
			ev.modules[foldName(d.Name)] = &cp
		case ast.FuncDecl:
			cp := d
			ev.functions[foldName(d.Name)] = &cp
		}
	}
	return ev
}

// Seed fixes the random source, for reproducible runs.
func (ev *Evaluator) Seed(n int64) {
	ev.rng = rand.New(rand.NewSource(n))
}

// Run executes the program to completion. When modules exist, top-level
// declarations populate the global scope and the module named main is the
// entry point; otherwise the top-level statements run in order.
func (ev *Evaluator) Run() error {
	if len(ev.modules) > 0 {
		for _, s := range ev.program.Statements {
			decl, ok := s.(ast.DeclareStmt)
			if !ok {
				continue
			}
			if err := ev.checkStop(); err != nil {
				return err
			}
			if err := ev.emitStep(decl, ev.globals); err != nil {
				return err
			}
			if _, err := ev.execStatement(decl, ev.globals); err != nil {
				return err
			}
		}
		main, ok := ev.modules[foldName("main")]
		if !ok {
			return semanticErr(1, "a module named main is required")
		}
		env := NewEnv(ev.globals)
		_, err := ev.execBlock(main.Body, env)
		return err
	}

	var err error
	for _, s := range ev.program.Statements {
		if _, ok := s.(ast.FuncDecl); ok {
			continue
		}
		if err = ev.checkStop(); err != nil {
			return err
		}
		if err = ev.emitStep(s, ev.globals); err != nil {
			return err
		}
		if _, err = ev.execStatement(s, ev.globals); err != nil {
			return err
		}
	}
	return nil
}

func (ev *Evaluator) checkStop() error {
	if ev.host.ShouldStop() {
		return stoppedErr()
	}
	return nil
}

func (ev *Evaluator) emitStep(s ast.Statement, env *Env) error {
	if ev.stepHook == nil || ev.suppress > 0 {
		return nil
	}
	return ev.stepHook(Step{Line: s.Pos(), Scope: env.Serialize()})
}

func (ev *Evaluator) execBlock(stmts []ast.Statement, env *Env) (execResult, error) {
	for _, s := range stmts {
		if err := ev.checkStop(); err != nil {
			return execResult{}, err
		}
		if err := ev.emitStep(s, env); err != nil {
			return execResult{}, err
		}
		res, err := ev.execStatement(s, env)
		if err != nil {
			return execResult{}, err
		}
		if res.kind != resultNone {
			return res, nil
		}
	}
	return execResult{kind: resultNone}, nil
}

func (ev *Evaluator) execStatement(stmt ast.Statement, env *Env) (execResult, error) {
	switch s := stmt.(type) {
	case ast.DeclareStmt:
		return execResult{kind: resultNone}, ev.execDeclare(s, env)

	case ast.SetStmt:
		v, err := ev.evalExpr(s.Value, env)
		if err != nil {
			return execResult{}, err
		}
		return execResult{kind: resultNone}, ev.assignTo(s.Target, v, env)

	case ast.DisplayStmt:
		var b strings.Builder
		for _, item := range s.Items {
			if _, ok := item.(ast.TapMarker); ok {
				b.WriteString(tapSpacer)
				continue
			}
			v, err := ev.evalExpr(item, env)
			if err != nil {
				return execResult{}, err
			}
			b.WriteString(v.String())
		}
		ev.host.Display(b.String())
		return execResult{kind: resultNone}, nil

	case ast.InputStmt:
		return execResult{kind: resultNone}, ev.execInput(s, env)

	case ast.IfStmt:
		cond, err := ev.evalExpr(s.Cond, env)
		if err != nil {
			return execResult{}, err
		}
		if cond.Truthy() {
			return ev.execBlock(s.Then, NewEnv(env))
		}
		if s.Else != nil {
			return ev.execBlock(s.Else, NewEnv(env))
		}
		return execResult{kind: resultNone}, nil

	case ast.WhileStmt:
		for {
			if err := ev.checkStop(); err != nil {
				return execResult{}, err
			}
			cond, err := ev.evalExpr(s.Cond, env)
			if err != nil {
				return execResult{}, err
			}
			if !cond.Truthy() {
				return execResult{kind: resultNone}, nil
			}
			res, err := ev.execBlock(s.Body, NewEnv(env))
			if err != nil {
				return execResult{}, err
			}
			if res.kind != resultNone {
				return res, nil
			}
		}

	case ast.DoWhileStmt:
		return ev.execPostTest(s.Body, s.Cond, s.Line, true, env)

	case ast.DoUntilStmt:
		return ev.execPostTest(s.Body, s.Cond, s.Line, false, env)

	case ast.ForStmt:
		return ev.execFor(s, env)

	case ast.CallStmt:
		module, ok := ev.modules[foldName(s.Name)]
		if !ok {
			return execResult{}, semanticErr(s.Line, "undefined module %s", s.Name)
		}
		if len(s.Args) != len(module.Params) {
			return execResult{}, semanticErr(s.Line, "module %s expects %d argument(s), got %d", module.Name, len(module.Params), len(s.Args))
		}
		callEnv := NewEnv(ev.globals)
		if err := ev.bindParams(s.Line, module.Params, s.Args, env, callEnv); err != nil {
			return execResult{}, err
		}
		ev.suppress++
		_, err := ev.execBlock(module.Body, callEnv)
		ev.suppress--
		// a Return inside a module body just exits the module
		return execResult{kind: resultNone}, err

	case ast.ReturnStmt:
		v, err := ev.evalExpr(s.Value, env)
		if err != nil {
			return execResult{}, err
		}
		return execResult{kind: resultReturn, value: v}, nil

	case ast.ModuleDecl, ast.FuncDecl:
		// declarations are collected at construction; executing one is a no-op
		return execResult{kind: resultNone}, nil

	default:
		return execResult{}, semanticErr(stmt.Pos(), "unsupported statement")
	}
}

func (ev *Evaluator) execPostTest(body []ast.Statement, cond ast.Expr, line int, whileTrue bool, env *Env) (execResult, error) {
	for {
		if err := ev.checkStop(); err != nil {
			return execResult{}, err
		}
		res, err := ev.execBlock(body, NewEnv(env))
		if err != nil {
			return execResult{}, err
		}
		if res.kind != resultNone {
			return res, nil
		}
		c, err := ev.evalExpr(cond, env)
		if err != nil {
			return execResult{}, err
		}
		if c.Truthy() != whileTrue {
			return execResult{kind: resultNone}, nil
		}
	}
}

func (ev *Evaluator) execFor(s ast.ForStmt, env *Env) (execResult, error) {
	start, err := ev.evalExpr(s.Start, env)
	if err != nil {
		return execResult{}, err
	}
	end, err := ev.evalExpr(s.End, env)
	if err != nil {
		return execResult{}, err
	}
	if !start.IsNumber() || !end.IsNumber() {
		return execResult{}, typeErr(s.Line, "For bounds must be numbers")
	}
	loopEnv := NewEnv(env)
	if err := loopEnv.Define(s.Counter, false, "Real", Real(start.Float64())); err != nil {
		return execResult{}, semanticErr(s.Line, "%s", err)
	}
	limit := end.Float64()
	for {
		if err := ev.checkStop(); err != nil {
			return execResult{}, err
		}
		counter, err := loopEnv.Get(s.Counter)
		if err != nil {
			return execResult{}, semanticErr(s.Line, "%s", err)
		}
		if counter.Float64() > limit {
			return execResult{kind: resultNone}, nil
		}
		res, err := ev.execBlock(s.Body, NewEnv(loopEnv))
		if err != nil {
			return execResult{}, err
		}
		if res.kind != resultNone {
			return res, nil
		}
		counter, err = loopEnv.Get(s.Counter)
		if err != nil {
			return execResult{}, semanticErr(s.Line, "%s", err)
		}
		if err := loopEnv.Assign(s.Counter, Real(counter.Float64()+1)); err != nil {
			return execResult{}, semanticErr(s.Line, "%s", err)
		}
	}
}

func (ev *Evaluator) execDeclare(s ast.DeclareStmt, env *Env) error {
	for _, d := range s.Declarators {
		if d.Size != nil {
			sizeVal, err := ev.evalExpr(d.Size, env)
			if err != nil {
				return err
			}
			if !sizeVal.IsNumber() || sizeVal.Float64() != float64(sizeVal.Int64()) {
				return typeErr(d.Line, "array size must be an integer")
			}
			size := sizeVal.Int64()
			if size < 0 {
				return rangeErr(d.Line, "array size cannot be negative")
			}
			arr := NewArray(int(size))
			if d.Init != nil {
				lit, ok := d.Init.(ast.ArrayLit)
				if !ok {
					return typeErr(d.Line, "array initializer must be a value list")
				}
				if int64(len(lit.Elements)) > size {
					return rangeErr(d.Line, "too many initializers for array %s of size %d", d.Name, size)
				}
				for i, el := range lit.Elements {
					v, err := ev.evalExpr(el, env)
					if err != nil {
						return err
					}
					arr.Array().Elems[i] = v
				}
			}
			if err := env.Define(d.Name, s.IsConstant, s.DataType, arr); err != nil {
				return semanticErr(d.Line, "%s", err)
			}
			continue
		}

		v := Null()
		if d.Init != nil {
			var err error
			v, err = ev.evalExpr(d.Init, env)
			if err != nil {
				return err
			}
		} else if s.IsConstant {
			return semanticErr(d.Line, "constant %s must have an initializer", d.Name)
		}
		if err := env.Define(d.Name, s.IsConstant, s.DataType, v); err != nil {
			return semanticErr(d.Line, "%s", err)
		}
	}
	return nil
}

func (ev *Evaluator) assignTo(target ast.Expr, v Value, env *Env) error {
	switch t := target.(type) {
	case ast.Ident:
		if err := env.Assign(t.Name, v); err != nil {
			return semanticErr(t.Line, "%s", err)
		}
		return nil
	case ast.IndexExpr:
		arr, idx, err := ev.resolveIndex(t, env)
		if err != nil {
			return err
		}
		arr.Elems[idx] = v
		return nil
	default:
		return semanticErr(target.Pos(), "invalid assignment target")
	}
}

// resolveIndex evaluates an ArrayAccess down to backing storage and a
// bounds-checked index.
func (ev *Evaluator) resolveIndex(t ast.IndexExpr, env *Env) (*Array, int, error) {
	arrVal, err := ev.evalExpr(t.Array, env)
	if err != nil {
		return nil, 0, err
	}
	if arrVal.Kind() != ArrayKind {
		return nil, 0, typeErr(t.Line, "cannot index a %s value", arrVal.Kind())
	}
	idxVal, err := ev.evalExpr(t.Index, env)
	if err != nil {
		return nil, 0, err
	}
	if !idxVal.IsNumber() || idxVal.Float64() != float64(idxVal.Int64()) {
		return nil, 0, typeErr(t.Line, "array index must be an integer")
	}
	idx := idxVal.Int64()
	if idx < 0 || idx >= int64(len(arrVal.Array().Elems)) {
		return nil, 0, rangeErr(t.Line, "array index %d out of bounds (length %d)", idx, len(arrVal.Array().Elems))
	}
	return arrVal.Array(), int(idx), nil
}

func (ev *Evaluator) execInput(s ast.InputStmt, env *Env) error {
	slot, ok := env.Slot(s.Name)
	if !ok {
		return semanticErr(s.Line, "undeclared variable %s", s.Name)
	}
	if slot.IsConstant {
		return semanticErr(s.Line, "cannot assign to constant %s", slot.DisplayName)
	}
	for {
		if err := ev.checkStop(); err != nil {
			return err
		}
		raw, ok := ev.host.Input(slot.DisplayName)
		if !ok {
			ev.host.Display("Input cancelled.")
			return nil
		}
		switch slot.DataType {
		case "Integer":
			if !intValueRe.MatchString(strings.TrimSpace(raw)) {
				ev.host.Display("Invalid input. Expected Integer. Try again:")
				continue
			}
			n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
			if err != nil {
				ev.host.Display("Invalid input. Expected Integer. Try again:")
				continue
			}
			slot.Value = Int(n)
		case "Real":
			trimmed := strings.TrimSpace(raw)
			if !realValueRe.MatchString(trimmed) {
				ev.host.Display("Invalid input. Expected Real. Try again:")
				continue
			}
			f, err := strconv.ParseFloat(trimmed, 64)
			if err != nil {
				ev.host.Display("Invalid input. Expected Real. Try again:")
				continue
			}
			if strings.Contains(trimmed, ".") {
				slot.Value = Real(f)
			} else {
				slot.Value = Int(int64(f))
			}
		default:
			slot.Value = Str(raw)
		}
		return nil
	}
}

// bindParams binds a positional argument list into the callee scope.
// Reference parameters require a bare identifier argument and alias its
// slot; value parameters copy, resolving "auto" types from the caller's slot
// when the argument is an identifier.
func (ev *Evaluator) bindParams(line int, params []ast.Param, args []ast.Expr, callerEnv, calleeEnv *Env) error {
	for i, prm := range params {
		arg := args[i]
		if prm.IsRef {
			ident, ok := arg.(ast.Ident)
			if !ok {
				return semanticErr(arg.Pos(), "argument for Ref parameter %s must be a variable", prm.Name)
			}
			slot, ok := callerEnv.Slot(ident.Name)
			if !ok {
				return semanticErr(ident.Line, "undeclared variable %s", ident.Name)
			}
			if err := calleeEnv.DefineAlias(prm.Name, slot); err != nil {
				return semanticErr(line, "%s", err)
			}
			continue
		}
		v, err := ev.evalExpr(arg, callerEnv)
		if err != nil {
			return err
		}
		dataType := prm.DataType
		if dataType == "auto" {
			if ident, ok := arg.(ast.Ident); ok {
				if slot, ok := callerEnv.Slot(ident.Name); ok {
					dataType = slot.DataType
				}
			}
		}
		if err := calleeEnv.Define(prm.Name, false, dataType, v); err != nil {
			return semanticErr(line, "%s", err)
		}
	}
	return nil
}

// callFunction evaluates a user function call appearing in an expression.
// The body runs without emitting step points; completing without Return is
// an error.
func (ev *Evaluator) callFunction(call ast.CallExpr, env *Env) (Value, error) {
	fn, ok := ev.functions[foldName(call.Callee)]
	if !ok {
		return Value{}, semanticErr(call.Line, "undefined function %s", call.Callee)
	}
	if len(call.Args) != len(fn.Params) {
		return Value{}, semanticErr(call.Line, "function %s expects %d argument(s), got %d", fn.Name, len(fn.Params), len(call.Args))
	}
	callEnv := NewEnv(ev.globals)
	if err := ev.bindParams(call.Line, fn.Params, call.Args, env, callEnv); err != nil {
		return Value{}, err
	}
	ev.suppress++
	res, err := ev.execBlock(fn.Body, callEnv)
	ev.suppress--
	if err != nil {
		return Value{}, err
	}
	if res.kind != resultReturn {
		return Value{}, missingReturnErr(call.Line, fn.Name)
	}
	return res.value, nil
}
