// Package tools holds the named, schema-validated operations the tool
// server exposes and the logic for invoking them safely.
package tools

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"

	"velora/config"
)

const PartText = "text"

// Part is one typed piece of tool output.
type Part struct {
	Kind string
	Text string
}

// Result is the success half of a tool call result.
type Result struct {
	Content []Part
}

func TextResult(text string) Result {
	return Result{Content: []Part{{Kind: PartText, Text: text}}}
}

type Handler func(ctx context.Context, args Args) (Result, error)

type Tool struct {
	Name        string
	Description string
	Schema      Schema
	ReadOnly    bool
	Handler     Handler
}

// Registry is built once at startup and never modified afterwards, so it
// can be shared by concurrent callers without locking.
type Registry struct {
	tools map[string]Tool
	order []string
}

func NewRegistry(tools ...Tool) (*Registry, error) {
	r := &Registry{tools: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		if t.Name == "" {
			return nil, fmt.Errorf("tool name cannot be empty")
		}
		if t.Handler == nil {
			return nil, fmt.Errorf("tool %q has no handler", t.Name)
		}
		if _, dup := r.tools[t.Name]; dup {
			return nil, fmt.Errorf("tool %q registered twice", t.Name)
		}
		r.tools[t.Name] = t
		r.order = append(r.order, t.Name)
	}
	sort.Strings(r.order)
	return r, nil
}

// List returns every registered tool sorted by name.
func (r *Registry) List() []Tool {
	out := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

// Call looks up, validates and runs a tool. On failure the returned
// error is always a *Failure and the Result is zero.
func (r *Registry) Call(ctx context.Context, name string, args map[string]any) (Result, error) {
	t, ok := r.tools[name]
	if !ok {
		return Result{}, NewFailure(KindToolNotFound, "tool '%s' not found", name)
	}

	if args == nil {
		args = map[string]any{}
	}
	if err := t.Schema.Validate(args); err != nil {
		return Result{}, err
	}

	res, err := invoke(ctx, t, Args(args))
	if err != nil {
		f := AsFailure(err)
		if config.DebugLog != nil {
			config.DebugLog.Printf("[Tools] %s failed (%s): %s", name, f.Kind, f.Message)
		}
		return Result{}, f
	}
	return res, nil
}

func invoke(ctx context.Context, t Tool, args Args) (res Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			if config.DebugLog != nil {
				config.DebugLog.Printf("[Tools] %s panicked: %v\n%s", t.Name, p, debug.Stack())
			}
			res = Result{}
			err = NewFailure(KindHandler, "tool %s panicked: %v", t.Name, p)
		}
	}()
	return t.Handler(ctx, args)
}
