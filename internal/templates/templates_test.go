package templates

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func setupTemplates(t *testing.T) *Templates {
	t.Helper()
	tmpl, err := LoadTemplates()
	if err != nil {
		t.Fatalf("LoadTemplates() error = %v", err)
	}
	return tmpl
}

func TestLoadTemplates(t *testing.T) {
	templates := setupTemplates(t)
	if templates.set == nil {
		t.Fatal("LoadTemplates() returned no template set")
	}

	for _, name := range []string{instructions, success, pending, noSession, errorNotice, startFailed, checkFailed} {
		if templates.set.Lookup(name) == nil {
			t.Errorf("template %q not loaded", name)
		}
	}
}

func TestTemplateError(t *testing.T) {
	cause := errors.New("original error")
	err := &TemplateError{
		Cause:   cause,
		Message: "template failed",
	}

	want := "template error: template failed: original error"
	if got := err.Error(); got != want {
		t.Errorf("TemplateError.Error() = %q, want %q", got, want)
	}
	if unwrapped := errors.Unwrap(err); unwrapped != cause {
		t.Errorf("errors.Unwrap() = %v, want %v", unwrapped, cause)
	}
}

func TestRenderNotices(t *testing.T) {
	templates := setupTemplates(t)

	tests := []struct {
		name   string
		render func() (string, error)
		want   []string
	}{
		{
			name: "instructions",
			render: func() (string, error) {
				return templates.RenderInstructions(InstructionsData{
					VerificationURI: "https://idp/verify?u=U1",
					UserCode:        "U1",
					ExpiresIn:       600,
				})
			},
			want: []string{"https://idp/verify?u=U1", "U1", "600 seconds"},
		},
		{
			name: "success with username",
			render: func() (string, error) {
				return templates.RenderSuccess(SuccessData{Username: "alice", SubjectID: "abc123"})
			},
			want: []string{"Authentication successful!", "alice"},
		},
		{
			name: "success with subject only",
			render: func() (string, error) {
				return templates.RenderSuccess(SuccessData{SubjectID: "abc123"})
			},
			want: []string{"Authentication successful!", "abc123"},
		},
		{
			name:   "pending",
			render: templates.RenderPending,
			want:   []string{"not complete yet"},
		},
		{
			name:   "no session",
			render: templates.RenderNoSession,
			want:   []string{"No pending authentication", "/start"},
		},
		{
			name: "error",
			render: func() (string, error) {
				return templates.RenderError(ErrorData{Description: "token expired"})
			},
			want: []string{"Authentication error: token expired"},
		},
		{
			name:   "start failed",
			render: templates.RenderStartFailed,
			want:   []string{"/start"},
		},
		{
			name:   "check failed",
			render: templates.RenderCheckFailed,
			want:   []string{"again"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.render()
			if err != nil {
				t.Fatalf("render error = %v", err)
			}
			for _, s := range tt.want {
				if !strings.Contains(got, s) {
					t.Errorf("notice %q does not contain %q", got, s)
				}
			}
			if got != strings.TrimSpace(got) {
				t.Errorf("notice %q has surrounding whitespace", got)
			}
		})
	}
}

func TestSuccessWithoutIdentity(t *testing.T) {
	templates := setupTemplates(t)

	got, err := templates.RenderSuccess(SuccessData{})
	if err != nil {
		t.Fatalf("RenderSuccess() error = %v", err)
	}
	if got != "Authentication successful!" {
		t.Errorf("RenderSuccess() = %q, want %q", got, "Authentication successful!")
	}
}

func TestGenerateQRCode(t *testing.T) {
	templates := setupTemplates(t)

	png, err := templates.GenerateQRCode("https://idp/verify?u=U1")
	if err != nil {
		t.Fatalf("GenerateQRCode() error = %v", err)
	}
	if !bytes.HasPrefix(png, []byte("\x89PNG")) {
		t.Errorf("GenerateQRCode() did not return a PNG image")
	}

	if _, err := templates.GenerateQRCode(""); err == nil {
		t.Error("GenerateQRCode() expected error for empty URI")
	}
}
