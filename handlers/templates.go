package handlers

import (
	"embed"
	"html/template"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

// Templates parses the embedded HTML templates. Content is escaped by
// html/template for both the markup and the inline script contexts.
func Templates() *template.Template {
	return template.Must(template.New("").Funcs(template.FuncMap{
		"deref":   func(i *int) int { return *i },
		"isoTime": isoTime,
	}).ParseFS(templateFS, "templates/*.html"))
}

// isoTime formats like JavaScript's toISOString: UTC with millisecond precision
func isoTime(v any) string {
	switch t := v.(type) {
	case time.Time:
		return t.UTC().Format(isoLayout)
	case *time.Time:
		if t == nil {
			return ""
		}
		return t.UTC().Format(isoLayout)
	}
	return ""
}

const isoLayout = "2006-01-02T15:04:05.000Z07:00"
