package report

import (
	"net/url"
	"strings"

	"github.com/roach88/fidelity/internal/config"
)

// Image is one picture in the viewer.
type Image struct {
	Label string `json:"label"`
	Src   string `json:"src"`
	Width int    `json:"width"`
}

// GoldenView shows one comparison.
type GoldenView struct {
	Name     string  `json:"name"`
	Analysis string  `json:"analysis"`
	Images   []Image `json:"images"`
}

// ScenarioView shows every comparison of one scenario under a heading.
type ScenarioView struct {
	Heading string       `json:"heading"`
	Width   int          `json:"width"`
	Height  int          `json:"height"`
	Goldens []GoldenView `json:"goldens"`
}

// Layout is everything the viewer renders, in order.
type Layout struct {
	Scenarios []ScenarioView `json:"scenarios"`
}

// Build derives the viewer layout from cfg. It reads nothing from disk; the
// returned sources are relative to the results root.
//
// Callers rebuild the layout whenever the configuration changes.
func Build(cfg config.Config) Layout {
	layout := Layout{Scenarios: make([]ScenarioView, 0, len(cfg))}
	for _, s := range cfg {
		view := ScenarioView{
			Heading: s.Slug,
			Width:   s.Dimensions.Width,
			Height:  s.Dimensions.Height,
			Goldens: make([]GoldenView, 0, len(s.Goldens)),
		}
		for _, g := range s.Goldens {
			gv := GoldenView{
				Name:     g.Name,
				Analysis: Src(s.Slug, g.Name, AnalysisFile),
				Images:   make([]Image, 0, len(ViewOrder)),
			}
			for _, file := range ViewOrder {
				gv.Images = append(gv.Images, Image{
					Label: strings.TrimSuffix(file, ".png"),
					Src:   Src(s.Slug, g.Name, file),
					Width: s.Dimensions.Width,
				})
			}
			view.Goldens = append(view.Goldens, gv)
		}
		layout.Scenarios = append(layout.Scenarios, view)
	}
	return layout
}

// Src returns the URL path of file in the <slug>/<golden> directory,
// relative to the results root.
func Src(slug, golden, file string) string {
	return url.PathEscape(slug) + "/" + url.PathEscape(golden) + "/" + file
}
