package mailer

import (
	"bytes"
	htmltemplate "html/template"
	"text/template"
)

// RenderHTML renders an HTML template with the provided data. Values are
// escaped for HTML context.
func RenderHTML(tmpl string, data any) (string, error) {
	tpl, err := htmltemplate.New("body").Parse(tmpl)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		return "", err
	}

	return buf.String(), nil
}

// RenderText renders a plain text template, used for subjects and the text
// alternative part.
func RenderText(tmpl string, data any) (string, error) {
	tpl, err := template.New("text").Parse(tmpl)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		return "", err
	}

	return buf.String(), nil
}
