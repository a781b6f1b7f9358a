package cmdtree_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/benchpipe/benchpipe/cmdtree"
)

func TestCommandTokenizesProgram(t *testing.T) {
	c, err := cmdtree.Command("ssh -p 22 host", cmdtree.String("ls"))
	if err != nil {
		t.Fatal(err)
	}
	argv, err := cmdtree.Argv(c)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"ssh", "-p", "22", "host", "ls"}
	if !cmp.Equal(argv, want) {
		t.Errorf("argv mismatch (-want +got):\n%s", cmp.Diff(want, argv))
	}
}

func TestCommandQuotedProgram(t *testing.T) {
	c, err := cmdtree.Command(`echo 'hello world'`)
	if err != nil {
		t.Fatal(err)
	}
	argv, err := cmdtree.Argv(c)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"echo", "hello world"}
	if !cmp.Equal(argv, want) {
		t.Errorf("argv mismatch (-want +got):\n%s", cmp.Diff(want, argv))
	}
}

func TestCommandErrors(t *testing.T) {
	if _, err := cmdtree.Command(""); err == nil {
		t.Error("expected error for empty program")
	}
	if _, err := cmdtree.Command("echo 'oops"); err == nil {
		t.Error("expected error for unterminated quote")
	}
}

func TestFlattenRoundTrip(t *testing.T) {
	// Resolution is a no-op on a ground tree.
	c, err := cmdtree.Command("tar", cmdtree.Args("-czf", "out.tgz", "a dir")...)
	if err != nil {
		t.Fatal(err)
	}
	before, err := cmdtree.Flatten(c)
	if err != nil {
		t.Fatal(err)
	}
	resolved, err := cmdtree.Resolve(c, map[string]string{})
	if err != nil {
		t.Fatal(err)
	}
	after, err := cmdtree.Flatten(resolved)
	if err != nil {
		t.Fatal(err)
	}
	if before != after {
		t.Errorf("flatten changed across no-op resolve: %q != %q",
			before, after)
	}
}

func TestResolveTotalOrFails(t *testing.T) {
	c, err := cmdtree.Command("sleep", cmdtree.RuntimeVariable("duration"))
	if err != nil {
		t.Fatal(err)
	}

	resolved, err := cmdtree.Resolve(c, map[string]string{"duration": "5"})
	if err != nil {
		t.Fatal(err)
	}
	if vars := cmdtree.Variables(resolved); len(vars) != 0 {
		t.Errorf("resolved tree still has %d variables", len(vars))
	}
	flat, err := cmdtree.Flatten(resolved)
	if err != nil {
		t.Fatal(err)
	}
	if want := "sleep 5"; flat != want {
		t.Errorf("flatten = %q, want %q", flat, want)
	}

	_, err = cmdtree.Resolve(c, map[string]string{})
	var unresolved *cmdtree.UnresolvedVariableError
	if !errors.As(err, &unresolved) {
		t.Fatalf("want UnresolvedVariableError, got %v", err)
	}
	if unresolved.Name != "duration" {
		t.Errorf("unresolved name = %q, want %q", unresolved.Name, "duration")
	}
}

func TestResolveReachesInsideRemoteWrap(t *testing.T) {
	inner, err := cmdtree.Command("sleep", cmdtree.RuntimeVariable("duration"))
	if err != nil {
		t.Fatal(err)
	}
	wrapped := cmdtree.WrapRemote(inner, "h", 22)
	resolved, err := cmdtree.Resolve(wrapped, map[string]string{"duration": "1"})
	if err != nil {
		t.Fatal(err)
	}
	flat, err := cmdtree.Flatten(resolved)
	if err != nil {
		t.Fatal(err)
	}
	if want := "ssh h -p 22 -t 'sleep 1'"; flat != want {
		t.Errorf("flatten = %q, want %q", flat, want)
	}
}

func TestWrapRemoteFlatten(t *testing.T) {
	c, err := cmdtree.Command("sleep", cmdtree.String("1"))
	if err != nil {
		t.Fatal(err)
	}
	flat, err := cmdtree.Flatten(cmdtree.WrapRemote(c, "h", 22))
	if err != nil {
		t.Fatal(err)
	}
	if want := "ssh h -p 22 -t 'sleep 1'"; flat != want {
		t.Errorf("flatten = %q, want %q", flat, want)
	}
}

func TestInlineSplicing(t *testing.T) {
	inner, err := cmdtree.Command("stress-ng", cmdtree.Args("--cpu", "4")...)
	if err != nil {
		t.Fatal(err)
	}
	outer, err := cmdtree.Command("taskset",
		cmdtree.String("-c"), cmdtree.String("0-3"), cmdtree.Inline(inner))
	if err != nil {
		t.Fatal(err)
	}
	argv, err := cmdtree.Argv(outer)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"taskset", "-c", "0-3", "stress-ng", "--cpu", "4"}
	if !cmp.Equal(argv, want) {
		t.Errorf("argv mismatch (-want +got):\n%s", cmp.Diff(want, argv))
	}
}

func TestDuplicateVariableNames(t *testing.T) {
	shapes := map[string]func() (*cmdtree.CommandNode, error){
		"flat": func() (*cmdtree.CommandNode, error) {
			return cmdtree.Command("run",
				cmdtree.RuntimeVariable("n"), cmdtree.RuntimeVariable("n"))
		},
		"nested": func() (*cmdtree.CommandNode, error) {
			inner, err := cmdtree.Command("inner",
				cmdtree.BuildVariable("n"))
			if err != nil {
				return nil, err
			}
			return cmdtree.Command("outer",
				cmdtree.RuntimeVariable("n"), cmdtree.Inline(inner))
		},
	}
	for name, build := range shapes {
		t.Run(name, func(t *testing.T) {
			tree, err := build()
			if err != nil {
				t.Fatal(err)
			}
			err = cmdtree.CheckDuplicates(tree)
			var dup *cmdtree.DuplicateVariableError
			if !errors.As(err, &dup) {
				t.Fatalf("want DuplicateVariableError, got %v", err)
			}
			if dup.Name != "n" {
				t.Errorf("duplicate name = %q, want %q", dup.Name, "n")
			}
			if _, err := cmdtree.Resolve(tree,
				map[string]string{"n": "1"}); err == nil {
				t.Error("Resolve should reject duplicate names")
			}
		})
	}
}

func TestSharedVariableInstanceAllowed(t *testing.T) {
	v := cmdtree.RuntimeVariable("n")
	tree, err := cmdtree.Command("run", v, v)
	if err != nil {
		t.Fatal(err)
	}
	if err := cmdtree.CheckDuplicates(tree); err != nil {
		t.Errorf("shared instance flagged as duplicate: %v", err)
	}
	if got := len(cmdtree.Variables(tree)); got != 1 {
		t.Errorf("Variables() = %d instances, want 1", got)
	}
}

func TestVerifyGround(t *testing.T) {
	c, err := cmdtree.Command("sleep", cmdtree.SetupVariable("duration"))
	if err != nil {
		t.Fatal(err)
	}
	err = cmdtree.VerifyGround(c)
	var ng *cmdtree.NotGroundError
	if !errors.As(err, &ng) {
		t.Fatalf("want NotGroundError, got %v", err)
	}
	if !strings.Contains(ng.Kind, "Variable") {
		t.Errorf("NotGroundError.Kind = %q, want a Variable type", ng.Kind)
	}
	if _, err := cmdtree.Flatten(c); err == nil {
		t.Error("Flatten should refuse a non-ground tree")
	}
}

func TestSprint(t *testing.T) {
	c, err := cmdtree.Command("echo", cmdtree.RuntimeVariable("msg"))
	if err != nil {
		t.Fatal(err)
	}
	out := cmdtree.Sprint(c)
	for _, want := range []string{
		"CommandNode", "StringNode", "|echo", "Variable(runtime)", "||msg",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Sprint output missing %q:\n%s", want, out)
		}
	}
}

func TestVariableKinds(t *testing.T) {
	kinds := map[string]*cmdtree.Variable{
		"runtime": cmdtree.RuntimeVariable("a"),
		"build":   cmdtree.BuildVariable("b"),
		"setup":   cmdtree.SetupVariable("c"),
	}
	for want, v := range kinds {
		if got := v.Kind.String(); got != want {
			t.Errorf("kind = %q, want %q", got, want)
		}
	}
}
