package notify

import (
	"bytes"
	"errors"
	"text/template"
)

const DefaultTemplate = `[{{.Title}}]
{{.Body}}
Parameter: {{.ParameterName}}
Value: {{.Value}}{{.Unit}}
Optimal Range: {{.Range}}
Condition: {{.Condition}}
Implication: {{.Implication}}
{{ if .Action }}Recommended Action: {{.Action}}
{{ end }}Time: {{.FiredAt}}
{{ if .DashboardURL }}
Dashboard: {{.DashboardURL}}
{{ end }}`

// TemplateData provides fields for rendering notification content.
type TemplateData struct {
	Title         string
	Body          string
	Parameter     string
	ParameterName string
	Value         string
	Unit          string
	Range         string
	Kind          string
	Condition     string
	Implication   string
	Action        string
	FiredAt       string
	DashboardURL  string
}

// Template renders notification content.
type Template struct {
	tpl *template.Template
}

// NewTemplate parses a notification template, falling back to DefaultTemplate.
func NewTemplate(tpl string) (*Template, error) {
	if tpl == "" {
		tpl = DefaultTemplate
	}
	parsed, err := template.New("alert-notification").Parse(tpl)
	if err != nil {
		return nil, err
	}
	return &Template{tpl: parsed}, nil
}

// Render applies the template to data.
func (t *Template) Render(data TemplateData) (string, error) {
	if t == nil || t.tpl == nil {
		return "", errors.New("alert template: nil")
	}
	var buf bytes.Buffer
	if err := t.tpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
