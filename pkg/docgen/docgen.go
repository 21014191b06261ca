// Package docgen renders the dataset catalog as markdown.
//
// Generate writes an index table plus one page per dataset, built from
// the registry's catalog cards. Output is deterministic: datasets are
// ordered by name and templates carry no timestamps.
package docgen

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/scancat/scancat/pkg/dataset"
)

const indexTmpl = `# Datasets

| Name | Modality | Body region | Task | License | Raw size | Cached size |
|---|---|---|---|---|---|---|
{{range .}}| [{{.Name}}]({{.Name}}.md) | {{join .Description.Modality}} | {{join .Description.BodyRegion}} | {{join .Description.Task}} | {{license .Description.License}} | {{orDash .Description.RawDataSize}} | {{orDash .Description.PrepDataSize}} |
{{end}}`

const datasetTmpl = `# {{.Name}}

{{if .Description.Link}}Source: <{{.Description.Link}}>

{{end}}{{if .Description.License.Name}}License: {{license .Description.License}}

{{end}}| | |
|---|---|
{{if .Description.Modality}}| Modality | {{join .Description.Modality}} |
{{end}}{{if .Description.BodyRegion}}| Body region | {{join .Description.BodyRegion}} |
{{end}}{{if .Description.Task}}| Task | {{join .Description.Task}} |
{{end}}{{if .Description.RawDataSize}}| Raw size | {{.Description.RawDataSize}} |
{{end}}{{if .Description.PrepDataSize}}| Cached size | {{.Description.PrepDataSize}} |
{{end}}
## Fields

| Field | Kind | Description |
|---|---|---|
{{range .Fields}}| {{.Name}} | {{.Kind}} | {{.Doc}} |
{{end}}`

var funcs = template.FuncMap{
	"join": func(parts []string) string {
		if len(parts) == 0 {
			return "-"
		}
		return strings.Join(parts, ", ")
	},
	"orDash": func(s string) string {
		if s == "" {
			return "-"
		}
		return s
	},
	"license": func(l dataset.License) string {
		switch {
		case l.Name == "":
			return "-"
		case l.URL == "":
			return l.Name
		}
		return "[" + l.Name + "](" + l.URL + ")"
	},
}

var (
	index = template.Must(template.New("index").Funcs(funcs).Parse(indexTmpl))
	page  = template.Must(template.New("dataset").Funcs(funcs).Parse(datasetTmpl))
)

// RenderIndex renders the markdown table over all registered datasets.
func RenderIndex(reg *dataset.Registry) ([]byte, error) {
	var buf bytes.Buffer
	if err := index.Execute(&buf, reg.All()); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// RenderDataset renders the page for one dataset.
func RenderDataset(e dataset.Entry) ([]byte, error) {
	var buf bytes.Buffer
	if err := page.Execute(&buf, e); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Generate writes datasets.md plus one page per dataset into dir.
func Generate(dir string, reg *dataset.Registry) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	data, err := RenderIndex(reg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, "datasets.md"), data, 0o644); err != nil {
		return err
	}
	for _, e := range reg.All() {
		data, err := RenderDataset(e)
		if err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(dir, e.Name+".md"), data, 0o644); err != nil {
			return err
		}
	}
	return nil
}
