package notify

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	texttpl "text/template"
)

// Ids de plantilla.
const (
	TemplateMfaEmail             = "mfa_email"
	TemplateMfaText              = "mfa_text"
	TemplateResetPassword        = "reset_password"
	TemplateResetPasswordConfirm = "reset_password_confirm"
	TemplateResetUnavailable     = "reset_password_unavailable"
	TemplateVerifyEmail          = "verify_email"
	TemplateInitialPassword      = "initial_password"
)

//go:embed templates/*.tmpl
var embedded embed.FS

// ErrUnknownTemplate indica un id de plantilla sin definir.
var ErrUnknownTemplate = errors.New("notify: unknown template")

type template struct {
	subject *texttpl.Template
	body    *texttpl.Template
}

// Templates contiene las plantillas parseadas. Cada id tiene un archivo
// <id>.txt.tmpl y opcionalmente <id>.subject.tmpl.
type Templates struct {
	byID map[string]template
}

// LoadTemplates carga las plantillas embebidas y luego, si dir no es vacío,
// las sobreescribe con las del directorio.
func LoadTemplates(dir string) (*Templates, error) {
	t := &Templates{byID: map[string]template{}}
	sub, err := fs.Sub(embedded, "templates")
	if err != nil {
		return nil, err
	}
	if err := t.load(sub); err != nil {
		return nil, err
	}
	if dir != "" {
		if err := t.load(os.DirFS(dir)); err != nil {
			return nil, fmt.Errorf("templates dir %s: %w", dir, err)
		}
	}
	return t, nil
}

func (t *Templates) load(fsys fs.FS) error {
	bodies, err := fs.Glob(fsys, "*.txt.tmpl")
	if err != nil {
		return err
	}
	for _, name := range bodies {
		id := strings.TrimSuffix(filepath.Base(name), ".txt.tmpl")
		body, err := parse(fsys, name)
		if err != nil {
			return err
		}
		tpl := template{body: body}
		if subj, err := parse(fsys, id+".subject.tmpl"); err == nil {
			tpl.subject = subj
		} else if !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		t.byID[id] = tpl
	}
	return nil
}

func parse(fsys fs.FS, name string) (*texttpl.Template, error) {
	b, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, err
	}
	return texttpl.New(name).Option("missingkey=zero").Parse(string(b))
}

// Render ejecuta la plantilla con los parámetros dados.
func (t *Templates) Render(id string, params map[string]string) (subject, body string, err error) {
	tpl, ok := t.byID[id]
	if !ok {
		return "", "", fmt.Errorf("%w: %s", ErrUnknownTemplate, id)
	}
	var buf bytes.Buffer
	if tpl.subject != nil {
		if err := tpl.subject.Execute(&buf, params); err != nil {
			return "", "", err
		}
		subject = strings.TrimSpace(buf.String())
		buf.Reset()
	}
	if err := tpl.body.Execute(&buf, params); err != nil {
		return "", "", err
	}
	return subject, buf.String(), nil
}
