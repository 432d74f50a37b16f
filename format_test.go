package pseudo

import "testing"

func TestFormatReindents(t *testing.T) {
	source := `Module main()
Declare Integer i
For i = 1 To 3
If i > 1 Then
Display i
Else
Display "first"
End If
End For
End Module`

	want := `Module main()
   Declare Integer i
   For i = 1 To 3
      If i > 1 Then
         Display i
      Else
         Display "first"
      End If
   End For
End Module`

	got := Format(source)
	if got != want {
		t.Fatalf("format mismatch:\n--- got ---\n%s\n--- want ---\n%s", got, want)
	}
}

func TestFormatDoUntil(t *testing.T) {
	source := `Do
Set n = n + 1
Until n > 3`

	want := `Do
   Set n = n + 1
Until n > 3`

	if got := Format(source); got != want {
		t.Fatalf("format mismatch:\n--- got ---\n%s\n--- want ---\n%s", got, want)
	}
}

func TestFormatPreservesBlankLines(t *testing.T) {
	source := "Module main()\n\nDisplay 1\nEnd Module"
	want := "Module main()\n\n   Display 1\nEnd Module"
	if got := Format(source); got != want {
		t.Fatalf("format mismatch: %q", got)
	}
}

func TestFormatIdempotent(t *testing.T) {
	sources := []string{
		"Module main()\nDeclare Integer i\nFor i = 1 To 3\nDisplay i\nEnd For\nEnd Module",
		"If a Then\nDisplay 1\nElse If b Then\nDisplay 2\nEnd If",
		"Do\nDisplay 1\nWhile x < 5",
		"",
		"   \nDisplay 1",
	}
	for _, src := range sources {
		once := Format(src)
		twice := Format(once)
		if once != twice {
			t.Fatalf("format not idempotent for %q:\n%q\nvs\n%q", src, once, twice)
		}
	}
}

func TestFormatOutdentFloorsAtZero(t *testing.T) {
	got := Format("End If\nDisplay 1")
	want := "End If\nDisplay 1"
	if got != want {
		t.Fatalf("format mismatch: %q", got)
	}
}
