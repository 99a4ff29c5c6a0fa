// pkg/report/palette.go

package report

import (
	"github.com/fatih/color"
)

// Palette colours the message and tag part of a report line by tag
type Palette struct {
	enabled bool
	colors  map[string]*color.Color
}

// NewPalette creates a palette. With noColors set, text passes through unchanged.
func NewPalette(noColors bool) *Palette {
	p := &Palette{
		enabled: !noColors,
		colors: map[string]*color.Color{
			TagWarning:  color.New(color.FgYellow),
			TagCritical: color.New(color.FgRed, color.Bold),
			TagInvalid:  color.New(color.FgMagenta),
			TagError:    color.New(color.FgRed),
			TagExpanded: color.New(color.FgGreen),
		},
	}
	// Colour follows --no-colors only, not terminal detection
	for _, c := range p.colors {
		if p.enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

// Paint colours text for tag. Unknown tags and the OK tag are left as is.
func (p *Palette) Paint(tag, text string) string {
	if p == nil || !p.enabled {
		return text
	}
	c, ok := p.colors[tag]
	if !ok {
		return text
	}
	return c.Sprint(text)
}
