package notify

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
	"time"

	alertapp "iot-climate-monitor/internal/alerts/application"
)

// DefaultTemplate renders one line per event.
const DefaultTemplate = `[{{.Event}}] {{.Room}}{{if .Location}} ({{.Location}}){{end}}: {{.Metric}} {{printf "%.2f" .Value}} > {{printf "%.2f" .Threshold}} at {{.Time}}`

// TemplateData is exposed to notification templates.
type TemplateData struct {
	Event     string
	AlertID   int64
	RoomID    int64
	Room      string
	Location  string
	Metric    string
	Value     float64
	Threshold float64
	Status    string
	Time      string
}

// Template renders alert events into text.
type Template struct {
	tmpl *template.Template
}

// NewTemplate parses text; empty text selects DefaultTemplate.
func NewTemplate(text string) (*Template, error) {
	if strings.TrimSpace(text) == "" {
		text = DefaultTemplate
	}
	tmpl, err := template.New("alert").Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("notify: parse template: %w", err)
	}
	return &Template{tmpl: tmpl}, nil
}

// Render executes the template for event.
func (t *Template) Render(event alertapp.AlertEvent) (string, error) {
	var buf bytes.Buffer
	if err := t.tmpl.Execute(&buf, dataFor(event)); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func dataFor(event alertapp.AlertEvent) TemplateData {
	alert := event.Alert
	at := alert.CreatedAt
	if event.Type == alertapp.EventResolved && alert.ResolvedAt != nil {
		at = *alert.ResolvedAt
	}
	room := alert.RoomName
	if room == "" {
		room = fmt.Sprintf("room %d", alert.RoomID)
	}
	return TemplateData{
		Event:     strings.ToUpper(event.Type),
		AlertID:   alert.ID,
		RoomID:    alert.RoomID,
		Room:      room,
		Location:  alert.Location,
		Metric:    string(alert.Metric),
		Value:     alert.Value,
		Threshold: alert.Threshold,
		Status:    string(alert.Status),
		Time:      at.UTC().Format(time.RFC3339),
	}
}
