package tools

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"velora/sandbox"
)

const DefaultMaxReadBytes = 1 << 20

func Echo() Tool {
	return Tool{
		Name:        "echo",
		Description: "Returns the provided text",
		Schema: Schema{Fields: []Field{
			{Name: "text", Type: TypeString, Required: true, Description: "Text to return unchanged"},
		}},
		ReadOnly: true,
		Handler: func(ctx context.Context, args Args) (Result, error) {
			return TextResult(args.String("text")), nil
		},
	}
}

// ReadText reads a UTF-8 file from the workspace. Every path goes through
// the resolver; nothing here builds a filesystem path from input directly.
func ReadText(resolver *sandbox.Resolver, maxBytes int64) Tool {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxReadBytes
	}

	return Tool{
		Name:        "read_text",
		Description: "Reads a text file from the workspace directory",
		Schema: Schema{Fields: []Field{
			{Name: "relpath", Type: TypeString, Required: true, Description: "Path relative to the workspace root"},
		}},
		ReadOnly: true,
		Handler: func(ctx context.Context, args Args) (Result, error) {
			relpath := args.String("relpath")

			path, err := resolver.ResolveReal(relpath)
			if err != nil {
				if errors.Is(err, sandbox.ErrOutsideWorkspace) {
					return Result{}, err
				}
				if errors.Is(err, os.ErrNotExist) {
					return Result{}, NotFound("file not found: %s", relpath)
				}
				return Result{}, fmt.Errorf("failed to resolve %s: %w", relpath, err)
			}

			data, err := readLimited(path, maxBytes)
			if err != nil {
				return Result{}, fmt.Errorf("failed to read %s: %w", relpath, err)
			}
			if !utf8.Valid(data) {
				return Result{}, fmt.Errorf("failed to read %s: file is not valid UTF-8 text", relpath)
			}
			return TextResult(string(data)), nil
		},
	}
}

func readLimited(path string, maxBytes int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, errors.New("is a directory")
	}
	if info.Size() > maxBytes {
		return nil, fmt.Errorf("file is larger than %d bytes", maxBytes)
	}

	data, err := io.ReadAll(io.LimitReader(f, maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("file is larger than %d bytes", maxBytes)
	}
	return data, nil
}

// Builtins returns the tools served by "velora tools".
func Builtins(resolver *sandbox.Resolver) []Tool {
	return []Tool{Echo(), ReadText(resolver, DefaultMaxReadBytes)}
}
