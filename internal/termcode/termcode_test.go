package termcode

import "testing"

func TestCursorMoveOrder(t *testing.T) {
	got := string(CursorMove(5, 10))
	want := "\x1b[5;10H"
	if got != want {
		t.Fatalf("CursorMove(5,10) = %q, want %q", got, want)
	}
}

func TestDirectional(t *testing.T) {
	cases := []struct {
		fn   func(int) []byte
		want string
	}{
		{CursorUp, "\x1b[3A"},
		{CursorDown, "\x1b[3B"},
		{CursorForward, "\x1b[3C"},
		{CursorBack, "\x1b[3D"},
	}
	for _, c := range cases {
		if got := string(c.fn(3)); got != c.want {
			t.Errorf("got %q, want %q", got, c.want)
		}
	}
}

func TestSGREffectsFirst(t *testing.T) {
	got := string(SGR([]int{1}, 1, 4))
	want := "\x1b[1;31;44m"
	if got != want {
		t.Fatalf("SGR = %q, want %q", got, want)
	}
}

func TestSGRNoColor(t *testing.T) {
	got := string(SGR([]int{1, 4}, -1, -1))
	want := "\x1b[1;4m"
	if got != want {
		t.Fatalf("SGR = %q, want %q", got, want)
	}
}

func TestResetAndErase(t *testing.T) {
	if string(Reset()) != "\x1b[0m" {
		t.Fatal("Reset mismatch")
	}
	if string(EraseChar()) != "\b \b" {
		t.Fatal("EraseChar mismatch")
	}
	if string(EraseLine()) != "\x1b[2K\r" {
		t.Fatal("EraseLine mismatch")
	}
	if string(EraseScreen()) != "\x1b[2J" {
		t.Fatal("EraseScreen mismatch")
	}
}

func TestSetTitle(t *testing.T) {
	got := string(SetTitle("hi"))
	want := "\x1b]0;hi\x07"
	if got != want {
		t.Fatalf("SetTitle = %q, want %q", got, want)
	}
}

func TestCursorVisibility(t *testing.T) {
	if string(CursorShow()) != "\x1b[?25h" {
		t.Fatal("CursorShow mismatch")
	}
	if string(CursorHide()) != "\x1b[?25l" {
		t.Fatal("CursorHide mismatch")
	}
	if string(CursorSave()) != "\x1b[s" {
		t.Fatal("CursorSave mismatch")
	}
	if string(CursorRestore()) != "\x1b[u" {
		t.Fatal("CursorRestore mismatch")
	}
}

func TestProgressBarClamping(t *testing.T) {
	if got := string(ProgressBar(-1, 4)); got != "[    ] 0%" {
		t.Fatalf("ProgressBar(-1) = %q", got)
	}
	if got := string(ProgressBar(2, 4)); got != "[====] 100%" {
		t.Fatalf("ProgressBar(2) = %q", got)
	}
	if got := string(ProgressBar(0.5, 8)); got != "[====    ] 50%" {
		t.Fatalf("ProgressBar(0.5) = %q", got)
	}
}
