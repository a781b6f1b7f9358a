package sh

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestQuote(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "''"},
		{"plain", "plain"},
		{"a/b.c-d_e", "a/b.c-d_e"},
		{"has space", "'has space'"},
		{"it's", `'it\'s'`},
		{"$HOME", "'$HOME'"},
	}
	for _, tt := range tests {
		if got := Quote(tt.in); got != tt.want {
			t.Errorf("Quote(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestJoin(t *testing.T) {
	got := Join([]string{"echo", "hello world", "x"})
	if want := "echo 'hello world' x"; got != want {
		t.Errorf("Join = %q, want %q", got, want)
	}
}

func TestString(t *testing.T) {
	got := String(
		map[string]string{"B": "2", "A": "1"}, "run", "-v",
	).String()
	if want := "A=1 B=2 run -v"; got != want {
		t.Errorf("String = %q, want %q", got, want)
	}
}

func TestSplit(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"echo", []string{"echo"}},
		{"echo hello world", []string{"echo", "hello", "world"}},
		{"  spaced \t out ", []string{"spaced", "out"}},
		{"echo 'hello world'", []string{"echo", "hello world"}},
		{`echo "hello world"`, []string{"echo", "hello world"}},
		{`echo "a \"b\" c"`, []string{"echo", `a "b" c`}},
		{`a\ b c`, []string{"a b", "c"}},
		{`echo ''`, []string{"echo", ""}},
		{`tar -czf 'a file.tgz' dir`, []string{
			"tar", "-czf", "a file.tgz", "dir",
		}},
	}
	for _, tt := range tests {
		got, err := Split(tt.in)
		if err != nil {
			t.Fatalf("Split(%q) error: %v", tt.in, err)
		}
		if !cmp.Equal(got, tt.want) {
			t.Errorf("Split(%q) mismatch (-want +got):\n%s",
				tt.in, cmp.Diff(tt.want, got))
		}
	}
}

func TestSplitErrors(t *testing.T) {
	for _, in := range []string{"'open", `"open`, `trailing\`} {
		if _, err := Split(in); err == nil {
			t.Errorf("Split(%q) expected error", in)
		}
	}
}
