// SPDX-License-Identifier: MIT

// Package dockerfile models the service's container build recipe as a
// typed value. The recipe is five strictly ordered directives: base
// image selection, tooling installation, an unconditional copy of the
// build context, dependency installation, and the startup command.
// Rendering always emits the directives in that order; the type has no
// way to express conditional steps or reordering.
package dockerfile

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"text/template"

	"github.com/google/renameio/v2"
)

// Kind identifies one of the five recipe directives.
type Kind string

// Directive kinds, listed in their required execution order.
const (
	KindBaseSelect        Kind = "base-select"
	KindToolInstall       Kind = "tool-install"
	KindCopy              Kind = "copy"
	KindDependencyInstall Kind = "dependency-install"
	KindRun               Kind = "run"
)

var (
	// ErrMissingDirective is returned when a required directive is empty.
	ErrMissingDirective = errors.New("missing directive")

	// ErrMultilineDirective is returned when a directive value contains a
	// line break. A line break would smuggle extra instructions into the
	// rendered file and break the fixed directive order.
	ErrMultilineDirective = errors.New("directive contains a line break")

	// ErrInvalidBaseImage is returned when the base image is not a single
	// image reference.
	ErrInvalidBaseImage = errors.New("base image must be a single image reference")
)

// Recipe is the build descriptor. One field per directive; WorkDir is
// auxiliary to the copy step and names the directory the context lands in.
type Recipe struct {
	// BaseImage is the base runtime image reference (FROM).
	BaseImage string

	// ToolInstall is the single tooling installation invocation (RUN).
	ToolInstall string

	// WorkDir is the image working directory for the copy and all
	// later steps.
	WorkDir string

	// CopySource and CopyTarget form the unconditional build-context
	// copy (COPY source target).
	CopySource string
	CopyTarget string

	// DependencyInstall is the project dependency installation (RUN).
	DependencyInstall string

	// RunCommand is the fixed startup command, rendered in exec form.
	RunCommand []string
}

// Directive is one rendered recipe step, used to inspect ordering.
type Directive struct {
	Kind Kind
	Text string
}

// Default is this service's own deployment descriptor.
func Default() Recipe {
	return Recipe{
		BaseImage:         "golang:1.24-alpine",
		ToolInstall:       "apk add --no-cache git",
		WorkDir:           "/app",
		CopySource:        ".",
		CopyTarget:        ".",
		DependencyInstall: "go mod download",
		RunCommand:        []string{"go", "run", "./cmd/daemon"},
	}
}

// Validate checks that every directive is present and single-line.
func (r Recipe) Validate() error {
	fields := []struct {
		name  string
		value string
	}{
		{"base image", r.BaseImage},
		{"tool install", r.ToolInstall},
		{"workdir", r.WorkDir},
		{"copy source", r.CopySource},
		{"copy target", r.CopyTarget},
		{"dependency install", r.DependencyInstall},
	}
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			return fmt.Errorf("%s: %w", f.name, ErrMissingDirective)
		}
		if strings.ContainsAny(f.value, "\r\n") {
			return fmt.Errorf("%s: %w", f.name, ErrMultilineDirective)
		}
	}

	if strings.ContainsAny(r.BaseImage, " \t") {
		return fmt.Errorf("%q: %w", r.BaseImage, ErrInvalidBaseImage)
	}

	if len(r.RunCommand) == 0 {
		return fmt.Errorf("run command: %w", ErrMissingDirective)
	}
	for _, arg := range r.RunCommand {
		if arg == "" {
			return fmt.Errorf("run command: %w", ErrMissingDirective)
		}
		if strings.ContainsAny(arg, "\r\n") {
			return fmt.Errorf("run command: %w", ErrMultilineDirective)
		}
	}

	return nil
}

// Directives returns the recipe steps in execution order.
func (r Recipe) Directives() []Directive {
	return []Directive{
		{KindBaseSelect, "FROM " + r.BaseImage},
		{KindToolInstall, "RUN " + r.ToolInstall},
		{KindCopy, "COPY " + r.CopySource + " " + r.CopyTarget},
		{KindDependencyInstall, "RUN " + r.DependencyInstall},
		{KindRun, "CMD " + execForm(r.RunCommand)},
	}
}

var recipeTemplate = template.Must(template.New("dockerfile").
	Funcs(template.FuncMap{"execForm": execForm}).
	Parse(`# Generated by dockerfilegen. Edit internal/dockerfile and regenerate.
FROM {{.BaseImage}}
RUN {{.ToolInstall}}
WORKDIR {{.WorkDir}}
COPY {{.CopySource}} {{.CopyTarget}}
RUN {{.DependencyInstall}}
CMD {{execForm .RunCommand}}
`))

// execForm renders a command as a JSON-style exec array.
func execForm(args []string) string {
	quoted := make([]string, len(args))
	for i, a := range args {
		quoted[i] = strconv.Quote(a)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

// Render validates the recipe and produces the Dockerfile contents.
func (r Recipe) Render() ([]byte, error) {
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("validate recipe: %w", err)
	}

	var buf bytes.Buffer
	if err := recipeTemplate.Execute(&buf, r); err != nil {
		return nil, fmt.Errorf("render recipe: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteFile renders the recipe and replaces path atomically, so a
// crashed regeneration never leaves a half-written file behind.
func (r Recipe) WriteFile(path string) error {
	data, err := r.Render()
	if err != nil {
		return err
	}

	pending, err := renameio.NewPendingFile(path)
	if err != nil {
		return fmt.Errorf("create pending dockerfile: %w", err)
	}
	defer func() {
		_ = pending.Cleanup()
	}()

	if _, err := pending.Write(data); err != nil {
		return fmt.Errorf("write dockerfile: %w", err)
	}

	// CloseAtomicallyReplace: fsync + rename (durable + atomic)
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace dockerfile: %w", err)
	}
	return nil
}
