// Package templates renders the chat notices sent during device authorization
package templates

import (
	"embed"
	"fmt"
	"strings"
	"text/template"
)

//go:embed text/*.tmpl
var content embed.FS

// Template names
const (
	instructions = "instructions.tmpl"
	success      = "success.tmpl"
	pending      = "pending.tmpl"
	noSession    = "no_session.tmpl"
	errorNotice  = "error.tmpl"
	startFailed  = "start_failed.tmpl"
	checkFailed  = "check_failed.tmpl"
)

// TemplateError wraps a failure to render a notice
type TemplateError struct {
	Message string
	Cause   error
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("template error: %s: %v", e.Message, e.Cause)
}

func (e *TemplateError) Unwrap() error {
	return e.Cause
}

// Templates manages the notice templates
type Templates struct {
	set *template.Template
}

// LoadTemplates loads and parses all notice templates
func LoadTemplates() (*Templates, error) {
	set, err := template.New("notices").Option("missingkey=error").ParseFS(content, "text/*.tmpl")
	if err != nil {
		return nil, &TemplateError{Message: "parsing notices", Cause: err}
	}
	return &Templates{set: set}, nil
}

// InstructionsData holds data for the authentication instructions
type InstructionsData struct {
	VerificationURI string
	UserCode        string
	ExpiresIn       int
}

// RenderInstructions renders the notice sent when authentication starts
func (t *Templates) RenderInstructions(data InstructionsData) (string, error) {
	return t.render(instructions, data)
}

// SuccessData holds data for the success notice
type SuccessData struct {
	Username  string
	SubjectID string
}

// RenderSuccess renders the notice sent once the user has authenticated
func (t *Templates) RenderSuccess(data SuccessData) (string, error) {
	return t.render(success, data)
}

// RenderPending renders the notice for an authorization that is not complete yet
func (t *Templates) RenderPending() (string, error) {
	return t.render(pending, nil)
}

// RenderNoSession renders the notice for a check with nothing pending
func (t *Templates) RenderNoSession() (string, error) {
	return t.render(noSession, nil)
}

// ErrorData holds data for the terminal error notice
type ErrorData struct {
	Description string
}

// RenderError renders the notice for a provider reported failure
func (t *Templates) RenderError(data ErrorData) (string, error) {
	return t.render(errorNotice, data)
}

// RenderStartFailed renders the notice for a start that could not reach the provider
func (t *Templates) RenderStartFailed() (string, error) {
	return t.render(startFailed, nil)
}

// RenderCheckFailed renders the notice for a transient check failure
func (t *Templates) RenderCheckFailed() (string, error) {
	return t.render(checkFailed, nil)
}

func (t *Templates) render(name string, data any) (string, error) {
	var b strings.Builder
	if err := t.set.ExecuteTemplate(&b, name, data); err != nil {
		return "", &TemplateError{Message: "rendering " + name, Cause: err}
	}
	return strings.TrimSpace(b.String()), nil
}
