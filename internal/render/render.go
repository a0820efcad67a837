// Package render turns a report spec into slide descriptors and assembles
// them into a single local document.
package render

import (
	"context"
	"fmt"
	"html/template"
	"os"
	"path/filepath"

	"github.com/sitebrief/sitebrief/pkg/models"
)

// summaryBulletsPerSlide bounds how many bullets fit on one summary slide.
const summaryBulletsPerSlide = 5

// Slide is one rendered page: either a text slide (Bullets) or a photo slide
// (ImagePath + Caption).
type Slide struct {
	Title     string
	Bullets   []string
	ImagePath string
	Caption   string
}

// Assembler renders ordered slides into a single document under workDir and
// returns the document path.
type Assembler interface {
	Assemble(ctx context.Context, spec models.ReportSpec, slides []Slide, workDir string) (string, error)
}

// BuildSlides maps a report spec to its slide sequence: a title slide, the
// summary bullets chunked across slides, then one slide per selected image in
// spec order.
func BuildSlides(spec models.ReportSpec) []Slide {
	const dayFormat = "Jan 2, 2006"

	slides := []Slide{{
		Title: spec.ProjectName,
		Bullets: []string{
			fmt.Sprintf("Progress report: %s – %s",
				spec.PeriodStart.Format(dayFormat), spec.PeriodEnd.Format(dayFormat)),
		},
	}}

	for i := 0; i < len(spec.SummaryBullets); i += summaryBulletsPerSlide {
		end := i + summaryBulletsPerSlide
		if end > len(spec.SummaryBullets) {
			end = len(spec.SummaryBullets)
		}
		slides = append(slides, Slide{
			Title:   "Summary",
			Bullets: spec.SummaryBullets[i:end],
		})
	}

	for _, img := range spec.Images {
		slides = append(slides, Slide{
			Title:     img.TakenOn.Format(dayFormat),
			ImagePath: filepath.Base(img.LocalPath),
			Caption:   img.Caption,
		})
	}

	return slides
}

// HTMLAssembler writes the deck as a single self-contained HTML file. It
// stands in for the document library used in production deployments; anything
// satisfying Assembler can replace it.
type HTMLAssembler struct {
	tmpl *template.Template
}

func NewHTMLAssembler() *HTMLAssembler {
	return &HTMLAssembler{tmpl: template.Must(template.New("deck").Parse(deckTemplate))}
}

func (a *HTMLAssembler) Assemble(_ context.Context, spec models.ReportSpec, slides []Slide, workDir string) (string, error) {
	outPath := filepath.Join(workDir, "report.html")

	f, err := os.Create(outPath)
	if err != nil {
		return "", fmt.Errorf("creating document: %w", err)
	}
	defer f.Close()

	data := struct {
		Title  string
		Slides []Slide
	}{
		Title:  spec.ProjectName,
		Slides: slides,
	}
	if err := a.tmpl.Execute(f, data); err != nil {
		return "", fmt.Errorf("rendering document: %w", err)
	}
	return outPath, nil
}

const deckTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
  .slide { page-break-after: always; padding: 2em; font-family: sans-serif; }
  .slide img { max-width: 100%; max-height: 70vh; }
  .caption { font-style: italic; color: #444; }
</style>
</head>
<body>
{{range .Slides}}<section class="slide">
  <h1>{{.Title}}</h1>
  {{if .Bullets}}<ul>{{range .Bullets}}<li>{{.}}</li>{{end}}</ul>{{end}}
  {{if .ImagePath}}<img src="{{.ImagePath}}" alt="{{.Caption}}">
  <p class="caption">{{.Caption}}</p>{{end}}
</section>
{{end}}</body>
</html>
`

var _ Assembler = (*HTMLAssembler)(nil)
