package tools

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"velora/sandbox"
)

func newWorkspace(t *testing.T) (*sandbox.Resolver, string) {
	t.Helper()
	root := filepath.Join(t.TempDir(), "ws")
	if err := os.MkdirAll(filepath.Join(root, "docs"), 0700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "README.md"), []byte("line1\nline2\nline3\nline4\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "binary.bin"), []byte{0xff, 0xfe, 0x00}, 0600); err != nil {
		t.Fatal(err)
	}
	r, err := sandbox.NewResolver(root)
	if err != nil {
		t.Fatal(err)
	}
	return r, r.Root()
}

func newBuiltinRegistry(t *testing.T) *Registry {
	t.Helper()
	resolver, _ := newWorkspace(t)
	reg, err := NewRegistry(Builtins(resolver)...)
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	return reg
}

func failureOf(t *testing.T, err error) *Failure {
	t.Helper()
	var f *Failure
	if !errors.As(err, &f) {
		t.Fatalf("expected *Failure, got %T: %v", err, err)
	}
	return f
}

func TestNewRegistry(t *testing.T) {
	noop := func(ctx context.Context, args Args) (Result, error) { return Result{}, nil }

	tests := []struct {
		name    string
		tools   []Tool
		wantErr bool
	}{
		{"empty registry", nil, false},
		{"distinct names", []Tool{{Name: "a", Handler: noop}, {Name: "b", Handler: noop}}, false},
		{"duplicate names", []Tool{{Name: "a", Handler: noop}, {Name: "a", Handler: noop}}, true},
		{"empty name", []Tool{{Name: "", Handler: noop}}, true},
		{"missing handler", []Tool{{Name: "a"}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistry(tt.tools...)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewRegistry() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestListIsStableAndComplete(t *testing.T) {
	reg := newBuiltinRegistry(t)

	first := reg.List()
	if len(first) != 2 || first[0].Name != "echo" || first[1].Name != "read_text" {
		t.Fatalf("List() = %v", names(first))
	}

	if _, err := reg.Call(context.Background(), "echo", map[string]any{"text": "x"}); err != nil {
		t.Fatal(err)
	}
	_, _ = reg.Call(context.Background(), "nope", nil)

	second := reg.List()
	if len(second) != len(first) {
		t.Fatalf("List() changed after calls: %v", names(second))
	}
	for i := range first {
		if first[i].Name != second[i].Name {
			t.Errorf("List()[%d] = %s, want %s", i, second[i].Name, first[i].Name)
		}
	}
}

func names(ts []Tool) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.Name
	}
	return out
}

func TestCall(t *testing.T) {
	reg := newBuiltinRegistry(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		tool     string
		args     map[string]any
		wantText string
		wantKind Kind
		wantCode int
	}{
		{name: "echo returns text", tool: "echo", args: map[string]any{"text": "hi"}, wantText: "hi"},
		{name: "echo ignores unknown keys", tool: "echo", args: map[string]any{"text": "hi", "extra": 1.0}, wantText: "hi"},
		{name: "echo missing text", tool: "echo", args: map[string]any{}, wantKind: KindInvalid, wantCode: CodeInvalidParams},
		{name: "echo nil args", tool: "echo", args: nil, wantKind: KindInvalid, wantCode: CodeInvalidParams},
		{name: "echo wrong type", tool: "echo", args: map[string]any{"text": 3.0}, wantKind: KindInvalid, wantCode: CodeInvalidParams},
		{name: "unknown tool", tool: "write_text", args: nil, wantKind: KindToolNotFound, wantCode: CodeInvalidParams},
		{name: "read file", tool: "read_text", args: map[string]any{"relpath": "README.md"}, wantText: "line1\nline2\nline3\nline4\n"},
		{name: "read with alias", tool: "read_text", args: map[string]any{"relpath": "workspace/README.md"}, wantText: "line1\nline2\nline3\nline4\n"},
		{name: "read with cancelling traversal", tool: "read_text", args: map[string]any{"relpath": "docs/../README.md"}, wantText: "line1\nline2\nline3\nline4\n"},
		{name: "read escapes workspace", tool: "read_text", args: map[string]any{"relpath": "../../etc/passwd"}, wantKind: KindSandboxViolation, wantCode: CodeInvalidParams},
		{name: "read missing file", tool: "read_text", args: map[string]any{"relpath": "missing.txt"}, wantKind: KindNotFound, wantCode: CodeResourceNotFound},
		{name: "read directory", tool: "read_text", args: map[string]any{"relpath": "docs"}, wantKind: KindHandler, wantCode: CodeInternalError},
		{name: "read binary", tool: "read_text", args: map[string]any{"relpath": "binary.bin"}, wantKind: KindHandler, wantCode: CodeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := reg.Call(ctx, tt.tool, tt.args)
			if tt.wantKind == "" {
				if err != nil {
					t.Fatalf("Call() error = %v", err)
				}
				if len(res.Content) != 1 || res.Content[0].Kind != PartText || res.Content[0].Text != tt.wantText {
					t.Errorf("Call() = %+v, want text %q", res, tt.wantText)
				}
				return
			}

			f := failureOf(t, err)
			if f.Kind != tt.wantKind || f.Code != tt.wantCode {
				t.Errorf("failure = %+v, want kind %s code %d", f, tt.wantKind, tt.wantCode)
			}
			if len(res.Content) != 0 {
				t.Errorf("failed call returned content %+v", res.Content)
			}
		})
	}
}

func TestSandboxViolationDoesNotLeakExistence(t *testing.T) {
	reg := newBuiltinRegistry(t)
	ctx := context.Background()

	_, errExisting := reg.Call(ctx, "read_text", map[string]any{"relpath": "../../../../../../etc/passwd"})
	_, errMissing := reg.Call(ctx, "read_text", map[string]any{"relpath": "../../../../../../no/such/file"})

	a, b := failureOf(t, errExisting), failureOf(t, errMissing)
	if a.Message != b.Message || a.Message != sandbox.ViolationMessage {
		t.Errorf("violation messages differ: %q vs %q", a.Message, b.Message)
	}
}

func TestSymlinkOutOfWorkspaceDoesNotLeakExistence(t *testing.T) {
	resolver, root := newWorkspace(t)
	outside := filepath.Join(filepath.Dir(root), "outside")
	if err := os.Mkdir(outside, 0700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(outside, "exists.txt"), []byte("secret"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink("../outside", filepath.Join(root, "out")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	reg, err := NewRegistry(Builtins(resolver)...)
	if err != nil {
		t.Fatal(err)
	}

	for _, relpath := range []string{"out/exists.txt", "out/missing.txt"} {
		t.Run(relpath, func(t *testing.T) {
			_, err := reg.Call(context.Background(), "read_text", map[string]any{"relpath": relpath})
			f := failureOf(t, err)
			if f.Kind != KindSandboxViolation || f.Message != sandbox.ViolationMessage {
				t.Errorf("failure = %+v, want sandbox violation", f)
			}
		})
	}
}

func TestHandlerPanicIsContained(t *testing.T) {
	reg, err := NewRegistry(Tool{
		Name: "boom",
		Handler: func(ctx context.Context, args Args) (Result, error) {
			panic("kaboom")
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	_, err = reg.Call(context.Background(), "boom", nil)
	f := failureOf(t, err)
	if f.Kind != KindHandler || f.Code != CodeInternalError {
		t.Errorf("failure = %+v", f)
	}
}

func TestHandlerErrorMessagePreserved(t *testing.T) {
	reg, err := NewRegistry(Tool{
		Name: "fail",
		Handler: func(ctx context.Context, args Args) (Result, error) {
			return TextResult("partial"), errors.New("disk on fire")
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	res, err := reg.Call(context.Background(), "fail", nil)
	f := failureOf(t, err)
	if f.Message != "disk on fire" || f.Kind != KindHandler {
		t.Errorf("failure = %+v", f)
	}
	if len(res.Content) != 0 {
		t.Error("failed call must not return partial content")
	}
}

func TestSchemaValidateTypes(t *testing.T) {
	s := Schema{Fields: []Field{
		{Name: "n", Type: TypeNumber},
		{Name: "i", Type: TypeInteger},
		{Name: "b", Type: TypeBoolean},
	}}

	tests := []struct {
		name    string
		args    map[string]any
		wantErr bool
	}{
		{"all optional absent", map[string]any{}, false},
		{"valid values", map[string]any{"n": 1.5, "i": 3.0, "b": true}, false},
		{"null optional", map[string]any{"n": nil}, false},
		{"fractional integer", map[string]any{"i": 3.5}, true},
		{"string number", map[string]any{"n": "1"}, true},
		{"string bool", map[string]any{"b": "true"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.Validate(tt.args)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
