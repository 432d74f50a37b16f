package pruntime

import (
	"strconv"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/edulang/pseudo/parser"
)

// scriptHost feeds queued input lines and records every Display line.
// Running out of queued input reads as a cancelled Input.
type scriptHost struct {
	inputs   []string
	displays []string
	prompts  []string
	stop     bool
}

func (h *scriptHost) Display(line string) {
	h.displays = append(h.displays, line)
}

func (h *scriptHost) Input(prompt string) (string, bool) {
	h.prompts = append(h.prompts, prompt)
	if len(h.inputs) == 0 {
		return "", false
	}
	v := h.inputs[0]
	h.inputs = h.inputs[1:]
	return v, true
}

func (h *scriptHost) ShouldStop() bool {
	return h.stop
}

func run(t *testing.T, source string, inputs ...string) *scriptHost {
	t.Helper()
	host := &scriptHost{inputs: inputs}
	program, err := parser.Parse(source)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if err := New(program, host).Run(); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	return host
}

func runErr(t *testing.T, source string) error {
	t.Helper()
	program, err := parser.Parse(source)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	err = New(program, &scriptHost{}).Run()
	if err == nil {
		t.Fatalf("expected run to fail")
	}
	return err
}

func TestHelloWorld(t *testing.T) {
	host := run(t, `
Module main()
   Display "Hello, World!"
End Module
`)
	want := []string{"Hello, World!"}
	if diff := cmp.Diff(want, host.displays); diff != "" {
		t.Fatalf("display mismatch (-want +got):\n%s", diff)
	}
}

func TestForLoopAccumulation(t *testing.T) {
	host := run(t, `
Declare Integer s = 0, i
For i = 1 To 5
   Set s = s + i
End For
Display s
`)
	if len(host.displays) != 1 || host.displays[0] != "15" {
		t.Fatalf("unexpected displays: %v", host.displays)
	}
}

func TestRecursiveFactorial(t *testing.T) {
	host := run(t, `
Function Integer f(Integer n)
   If n == 0 Then
      Return 1
   Else
      Return n * f(n - 1)
   End If
End Function

Module main()
   Display f(4)
End Module
`)
	if len(host.displays) != 1 || host.displays[0] != "24" {
		t.Fatalf("unexpected displays: %v", host.displays)
	}
}

func TestInputValidationLoop(t *testing.T) {
	host := run(t, `
Module main()
   Declare Integer x
   Input x
   Display x
End Module
`, "abc", "7")
	want := []string{"Invalid input. Expected Integer. Try again:", "7"}
	if diff := cmp.Diff(want, host.displays); diff != "" {
		t.Fatalf("display mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"x", "x"}, host.prompts); diff != "" {
		t.Fatalf("prompt mismatch (-want +got):\n%s", diff)
	}
}

func TestInputCancellationLeavesVariable(t *testing.T) {
	host := run(t, `
Module main()
   Declare Integer x = 9
   Input x
   Display x
End Module
`)
	want := []string{"Input cancelled.", "9"}
	if diff := cmp.Diff(want, host.displays); diff != "" {
		t.Fatalf("display mismatch (-want +got):\n%s", diff)
	}
}

func TestInputStringPreservesWhitespace(t *testing.T) {
	host := run(t, `
Module main()
   Declare String s
   Input s
   Display "[", s, "]"
End Module
`, "  padded  ")
	if host.displays[len(host.displays)-1] != "[  padded  ]" {
		t.Fatalf("unexpected displays: %v", host.displays)
	}
}

func TestByReferenceSwap(t *testing.T) {
	host := run(t, `
Module swap(Ref Integer x, Ref Integer y)
   Declare Integer t
   Set t = x
   Set x = y
   Set y = t
End Module

Module main()
   Declare Integer a = 1, b = 2
   Call swap(a, b)
   Display a, " ", b
End Module
`)
	if len(host.displays) != 1 || host.displays[0] != "2 1" {
		t.Fatalf("unexpected displays: %v", host.displays)
	}
}

func TestRefArgumentMustBeIdentifier(t *testing.T) {
	err := runErr(t, `
Module bump(Ref Integer x)
   Set x = x + 1
End Module

Module main()
   Call bump(1 + 2)
End Module
`)
	if !strings.Contains(err.Error(), "must be a variable") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCaseFoldingKeywordsAndIdentifiers(t *testing.T) {
	lower := run(t, `
module main()
   declare integer total = 3
   set TOTAL = Total + 1
   display total
end module
`)
	if len(lower.displays) != 1 || lower.displays[0] != "4" {
		t.Fatalf("unexpected displays: %v", lower.displays)
	}
}

func TestTapSpacer(t *testing.T) {
	host := run(t, `
Module main()
   Display "A", Tap, "B"
End Module
`)
	if host.displays[0] != "A    B" {
		t.Fatalf("unexpected display: %q", host.displays[0])
	}
}

func TestWhileLoop(t *testing.T) {
	host := run(t, `
Declare Integer n = 0
While n < 3
   Set n = n + 1
   Display n
End While
`)
	want := []string{"1", "2", "3"}
	if diff := cmp.Diff(want, host.displays); diff != "" {
		t.Fatalf("display mismatch (-want +got):\n%s", diff)
	}
}

func TestDoUntilLoop(t *testing.T) {
	host := run(t, `
Declare Integer n = 0
Do
   Set n = n + 1
Until n >= 3
Display n
`)
	if host.displays[0] != "3" {
		t.Fatalf("unexpected displays: %v", host.displays)
	}
}

func TestDoWhileLoop(t *testing.T) {
	host := run(t, `
Declare Integer n = 5
Do
   Set n = n - 1
While n > 0
Display n
`)
	if host.displays[0] != "0" {
		t.Fatalf("unexpected displays: %v", host.displays)
	}
}

func TestElseIfChain(t *testing.T) {
	host := run(t, `
Declare Integer score = 75
If score >= 90 Then
   Display "A"
Else If score >= 70 Then
   Display "B"
Else
   Display "C"
End If
`)
	if host.displays[0] != "B" {
		t.Fatalf("unexpected displays: %v", host.displays)
	}
}

func TestEqualSignIsEqualityOutsideSet(t *testing.T) {
	host := run(t, `
Declare Integer x = 3
If x = 3 Then
   Display "eq"
End If
`)
	if len(host.displays) != 1 || host.displays[0] != "eq" {
		t.Fatalf("unexpected displays: %v", host.displays)
	}
}

func TestArrays(t *testing.T) {
	host := run(t, `
Declare Integer a[3] = 1, 2, 3
Set a[1] = 5
Display a[0], a[1], a[2]
`)
	if host.displays[0] != "153" {
		t.Fatalf("unexpected display: %q", host.displays[0])
	}
}

func TestArrayPassedToModuleSharesStorage(t *testing.T) {
	host := run(t, `
Module fill(Integer items[], Integer n)
   Declare Integer i
   For i = 0 To n - 1
      Set items[i] = i * 10
   End For
End Module

Module main()
   Declare Integer a[3]
   Call fill(a, 3)
   Display a[0], " ", a[1], " ", a[2]
End Module
`)
	if host.displays[0] != "0 10 20" {
		t.Fatalf("unexpected display: %q", host.displays[0])
	}
}

func TestArrayIndexOutOfBounds(t *testing.T) {
	err := runErr(t, `
Declare Integer a[2]
Set a[2] = 1
`)
	if !strings.Contains(err.Error(), "out of bounds") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestTooManyInitializers(t *testing.T) {
	err := runErr(t, `
Declare Integer a[2] = 1, 2, 3
`)
	if !strings.Contains(err.Error(), "too many initializers") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNegativeArraySize(t *testing.T) {
	err := runErr(t, `
Declare Integer a[0 - 1]
`)
	if !strings.Contains(err.Error(), "negative") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestConstantAssignmentFails(t *testing.T) {
	err := runErr(t, `
Constant Real PI = 3.14
Set PI = 1
`)
	if !strings.Contains(err.Error(), "constant") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDuplicateDeclarationFails(t *testing.T) {
	err := runErr(t, `
Declare Integer x
Declare Real X
`)
	if !strings.Contains(err.Error(), "already declared") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDivisionByZero(t *testing.T) {
	err := runErr(t, `
Display 1 / 0
`)
	if err.Error() != "Error on line 2: Division by zero" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDivisionYieldsReal(t *testing.T) {
	host := run(t, `
Display 7 / 2
`)
	if host.displays[0] != "3.5" {
		t.Fatalf("unexpected display: %q", host.displays[0])
	}
}

func TestModOperator(t *testing.T) {
	host := run(t, `
Display 7 Mod 3, " ", 7 % 3
`)
	if host.displays[0] != "1 1" {
		t.Fatalf("unexpected display: %q", host.displays[0])
	}
}

func TestMissingReturn(t *testing.T) {
	err := runErr(t, `
Function Integer f(Integer n)
   Declare Integer unused
End Function

Module main()
   Display f(1)
End Module
`)
	if !strings.Contains(err.Error(), "without returning") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestModuleScopeSeesGlobalsNotCaller(t *testing.T) {
	err := runErr(t, `
Module inner()
   Display hidden
End Module

Module outer()
   Declare Integer hidden = 1
   Call inner()
End Module

Module main()
   Call outer()
End Module
`)
	if !strings.Contains(err.Error(), "undeclared variable hidden") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestGlobalsVisibleInModules(t *testing.T) {
	host := run(t, `
Declare Integer counter = 10

Module bump()
   Set counter = counter + 1
End Module

Module main()
   Call bump()
   Display counter
End Module
`)
	if host.displays[0] != "11" {
		t.Fatalf("unexpected displays: %v", host.displays)
	}
}

func TestBlockScopesArePopped(t *testing.T) {
	err := runErr(t, `
Declare Integer x = 1
If x == 1 Then
   Declare Integer inner = 2
End If
Display inner
`)
	if !strings.Contains(err.Error(), "undeclared variable inner") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestArgumentCountMismatch(t *testing.T) {
	err := runErr(t, `
Module greet(String name)
   Display "hi ", name
End Module

Module main()
   Call greet()
End Module
`)
	if !strings.Contains(err.Error(), "expects 1 argument") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestStopFlag(t *testing.T) {
	program, err := parser.Parse(`
Module main()
   Display "never"
End Module
`)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	host := &scriptHost{stop: true}
	err = New(program, host).Run()
	if err == nil || err.Error() != "Program stopped by user." {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(host.displays) != 0 {
		t.Fatalf("expected no output, got %v", host.displays)
	}
}

func TestShortCircuit(t *testing.T) {
	host := run(t, `
Declare Integer x = 0
If x != 0 And 1 / x > 0 Then
   Display "bad"
Else
   Display "ok"
End If
`)
	if host.displays[0] != "ok" {
		t.Fatalf("unexpected displays: %v", host.displays)
	}
}

func TestRandomWithinBounds(t *testing.T) {
	program, err := parser.Parse(`
Module main()
   Display random(1, 6)
End Module
`)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	host := &scriptHost{}
	ev := New(program, host)
	ev.Seed(42)
	if err := ev.Run(); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	n, err := strconv.Atoi(host.displays[0])
	if err != nil || n < 1 || n > 6 {
		t.Fatalf("random out of bounds: %q", host.displays[0])
	}
}

func TestDeterministicWithoutRandom(t *testing.T) {
	source := `
Declare Integer i
For i = 1 To 3
   Display i * i
End For
`
	first := run(t, source)
	second := run(t, source)
	if diff := cmp.Diff(first.displays, second.displays); diff != "" {
		t.Fatalf("runs differ (-first +second):\n%s", diff)
	}
}

func TestDebugStepCountAndSnapshots(t *testing.T) {
	program, err := parser.Parse(`Module main()
   Declare Integer x = 1
   Set x = x + 1
   Set x = x * 2
   Display x
End Module
`)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	host := &scriptHost{}
	st := NewStepper(program, host)
	defer st.Close()

	var steps []Step
	for {
		step, ok, err := st.Next()
		if err != nil {
			t.Fatalf("step failed: %v", err)
		}
		if !ok {
			break
		}
		steps = append(steps, step)
	}
	if len(steps) != 4 {
		t.Fatalf("expected 4 steps, got %d", len(steps))
	}
	if steps[0].Line != 2 || steps[3].Line != 5 {
		t.Fatalf("unexpected step lines: %d..%d", steps[0].Line, steps[3].Line)
	}
	// the fourth snapshot is taken after the third statement ran
	v, found := steps[3].Scope.Get("x")
	if !found {
		t.Fatalf("x missing from snapshot")
	}
	if v.(Value).String() != "4" {
		t.Fatalf("unexpected snapshot value: %v", v)
	}
	if diff := cmp.Diff([]string{"4"}, host.displays); diff != "" {
		t.Fatalf("display mismatch (-want +got):\n%s", diff)
	}
}

func TestDebugDoesNotStepIntoCalls(t *testing.T) {
	program, err := parser.Parse(`Module helper()
   Display "a"
   Display "b"
End Module

Module main()
   Call helper()
   Display "c"
End Module
`)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	host := &scriptHost{}
	st := NewStepper(program, host)
	defer st.Close()

	count := 0
	for {
		_, ok, err := st.Next()
		if err != nil {
			t.Fatalf("step failed: %v", err)
		}
		if !ok {
			break
		}
		count++
	}
	if count != 2 {
		t.Fatalf("expected 2 steps (Call, Display), got %d", count)
	}
	if diff := cmp.Diff([]string{"a", "b", "c"}, host.displays); diff != "" {
		t.Fatalf("display mismatch (-want +got):\n%s", diff)
	}
}

func TestDebugDrainMatchesRun(t *testing.T) {
	source := `
Declare Integer i, total = 0
For i = 1 To 4
   Set total = total + i
   Display total
End For
Display "done"
`
	runHost := run(t, source)

	program, err := parser.Parse(source)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	debugHost := &scriptHost{}
	st := NewStepper(program, debugHost)
	defer st.Close()
	for {
		_, ok, err := st.Next()
		if err != nil {
			t.Fatalf("step failed: %v", err)
		}
		if !ok {
			break
		}
	}
	if diff := cmp.Diff(runHost.displays, debugHost.displays); diff != "" {
		t.Fatalf("debug drain differs from run (-run +debug):\n%s", diff)
	}
}

func TestStepperClose(t *testing.T) {
	program, err := parser.Parse(`
Declare Integer n = 0
While 1 == 1
   Set n = n + 1
End While
`)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	st := NewStepper(program, &scriptHost{})
	if _, ok, err := st.Next(); !ok || err != nil {
		t.Fatalf("first step failed: ok=%v err=%v", ok, err)
	}
	st.Close()
	if _, ok, _ := st.Next(); ok {
		t.Fatalf("expected stepper to be finished after Close")
	}
}

func TestAutoParameterTakesCallerType(t *testing.T) {
	host := run(t, `
Module echo(v)
   Input v
   Display v
End Module

Module main()
   Declare Integer n = 0
   Call echo(n)
End Module
`, "abc", "5")
	want := []string{"Invalid input. Expected Integer. Try again:", "5"}
	if diff := cmp.Diff(want, host.displays); diff != "" {
		t.Fatalf("display mismatch (-want +got):\n%s", diff)
	}
}

func TestMainRequiredWhenModulesExist(t *testing.T) {
	err := runErr(t, `
Module helper()
   Display "x"
End Module
`)
	if !strings.Contains(err.Error(), "main") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestReturnExitsModuleEarly(t *testing.T) {
	host := run(t, `
Module main()
   Display "before"
   Return 0
   Display "after"
End Module
`)
	if diff := cmp.Diff([]string{"before"}, host.displays); diff != "" {
		t.Fatalf("display mismatch (-want +got):\n%s", diff)
	}
}
