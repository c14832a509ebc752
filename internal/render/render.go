// Package render draws a user list snapshot on a terminal.
package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/illmade-knight/random-user/app"
	"github.com/illmade-knight/random-user/pkg/users"
)

const (
	DefaultColumns   = 3
	DefaultCellWidth = 28
)

// Renderer prints the active tab of a State in its grid or list layout.
type Renderer struct {
	columns   int
	cellWidth int

	header  *color.Color
	male    *color.Color
	female  *color.Color
	pending *color.Color
	muted   *color.Color
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithColumns sets how many cells a grid row holds.
func WithColumns(n int) Option {
	return func(r *Renderer) {
		if n > 0 {
			r.columns = n
		}
	}
}

// WithCellWidth sets the width of a grid cell, marker included.
func WithCellWidth(n int) Option {
	return func(r *Renderer) {
		if n > 4 {
			r.cellWidth = n
		}
	}
}

// WithoutColor turns off escape sequences regardless of the terminal.
func WithoutColor() Option {
	return func(r *Renderer) {
		for _, c := range []*color.Color{r.header, r.male, r.female, r.pending, r.muted} {
			c.DisableColor()
		}
	}
}

func New(opts ...Option) *Renderer {
	r := &Renderer{
		columns:   DefaultColumns,
		cellWidth: DefaultCellWidth,
		header:    color.New(color.FgCyan, color.Bold),
		male:      color.New(color.FgBlue),
		female:    color.New(color.FgMagenta),
		pending:   color.New(color.FgRed, color.Bold),
		muted:     color.New(color.Faint),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render writes the header line followed by the selected projection.
func (r *Renderer) Render(w io.Writer, st app.State) error {
	if err := r.renderHeader(w, st); err != nil {
		return err
	}
	list := st.Active()
	if len(list) == 0 {
		_, err := r.muted.Fprintln(w, "  (no users)")
		return err
	}
	if st.Layout == app.LayoutList {
		return r.renderList(w, st, list)
	}
	return r.renderGrid(w, st, list)
}

func (r *Renderer) renderHeader(w io.Writer, st app.State) error {
	line := fmt.Sprintf("%s | page %d | %d users | %s", st.Tab, st.Page, len(st.Active()), st.Mode)
	if st.Mode == app.ModeDelete {
		line += fmt.Sprintf(" (%d selected)", len(st.Pending))
	}
	if st.Loading {
		line += " | loading..."
	}
	_, err := r.header.Fprintln(w, line)
	return err
}

func (r *Renderer) renderGrid(w io.Writer, st app.State, list []users.User) error {
	var b strings.Builder
	for i, u := range list {
		text := truncate(r.marker(st, u.ID)+" "+u.DisplayName, r.cellWidth-1)
		b.WriteString(r.colorFor(st, u).Sprintf("%-*s", r.cellWidth, text))
		if (i+1)%r.columns == 0 || i == len(list)-1 {
			b.WriteString("\n")
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func (r *Renderer) renderList(w io.Writer, st app.State, list []users.User) error {
	for _, u := range list {
		name := r.colorFor(st, u).Sprintf("%s %s", r.marker(st, u.ID), u.DisplayName)
		if _, err := fmt.Fprintf(w, "%s  %s  %s\n", name, r.muted.Sprint(u.Email), r.muted.Sprint(u.Phone)); err != nil {
			return err
		}
	}
	return nil
}

func (r *Renderer) marker(st app.State, id string) string {
	if st.Mode != app.ModeDelete {
		return "-"
	}
	if st.IsPending(id) {
		return "[x]"
	}
	return "[ ]"
}

func (r *Renderer) colorFor(st app.State, u users.User) *color.Color {
	if st.IsPending(u.ID) {
		return r.pending
	}
	if u.Gender == users.GenderFemale {
		return r.female
	}
	return r.male
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "~"
}
