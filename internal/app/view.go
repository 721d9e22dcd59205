package app

import (
	"path/filepath"

	"github.com/corey/ccflags/internal/adapters/socket"
	"github.com/corey/ccflags/internal/domain/viewconfig"
)

// view is a request's file snapshot. It implements ports.SourceView.
type view struct {
	path     string
	text     string
	lang     string
	row, col int
}

func newView(file, text, lang string, row, col int) *view {
	if abs, err := filepath.Abs(file); err == nil && file != "" {
		file = abs
	}
	return &view{
		path: viewconfig.Identity(file),
		text: text,
		lang: lang,
		row:  row,
		col:  col,
	}
}

func viewFromParams(p socket.ViewParams) *view {
	return newView(p.File, p.Text, p.Lang, p.Row, p.Col)
}

func (v *view) FilePath() string   { return v.path }
func (v *view) Text() string       { return v.text }
func (v *view) Cursor() (int, int) { return v.row, v.col }
func (v *view) LangHint() string   { return v.lang }
