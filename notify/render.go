package notify

import (
	"errors"
	"fmt"
	"strings"
	"text/template"
)

// Template identifiers the engine enqueues with.
const (
	TemplateSignInCode        = "signin-code"
	TemplateEmailVerification = "email-verification"
	TemplatePasswordReset     = "password-reset"
)

type renderedTemplate struct {
	subject *template.Template
	body    *template.Template
}

// Renderer turns a task's template id and variables into deliverable
// content. The built-in set covers the engine's own flows; hosts can
// register replacements or additions before starting workers.
type Renderer struct {
	templates map[string]renderedTemplate
}

// NewRenderer returns a renderer preloaded with the built-in templates.
func NewRenderer() *Renderer {
	r := &Renderer{templates: map[string]renderedTemplate{}}
	// Registration of the built-ins cannot fail: the sources are constant.
	_ = r.Register(TemplateSignInCode,
		"Your sign-in code",
		"Your verification code is {{.Code}}. It expires in {{.TTL}}.")
	_ = r.Register(TemplateEmailVerification,
		"Verify your email address",
		"Confirm your address by following {{.ActionURL}}")
	_ = r.Register(TemplatePasswordReset,
		"Reset your password",
		"Reset your password by following {{.ActionURL}}. If you did not request this, ignore this message.")
	return r
}

// Register adds or replaces a template.
func (r *Renderer) Register(id, subject, body string) error {
	if id == "" {
		return errors.New("template id required")
	}
	subjectTmpl, err := template.New(id + "/subject").Parse(subject)
	if err != nil {
		return fmt.Errorf("parse subject template %q: %w", id, err)
	}
	bodyTmpl, err := template.New(id + "/body").Parse(body)
	if err != nil {
		return fmt.Errorf("parse body template %q: %w", id, err)
	}
	r.templates[id] = renderedTemplate{subject: subjectTmpl, body: bodyTmpl}
	return nil
}

// Render produces the subject and body for a task.
func (r *Renderer) Render(task *Task) (string, string, error) {
	tmpl, ok := r.templates[task.Template]
	if !ok {
		return "", "", fmt.Errorf("unknown template %q", task.Template)
	}

	vars := map[string]string{}
	for k, v := range task.Vars {
		vars[k] = v
	}

	var subject, body strings.Builder
	if err := tmpl.subject.Execute(&subject, vars); err != nil {
		return "", "", err
	}
	if err := tmpl.body.Execute(&body, vars); err != nil {
		return "", "", err
	}
	return subject.String(), body.String(), nil
}
