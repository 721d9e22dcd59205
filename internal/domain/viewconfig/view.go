package viewconfig

// View is a plain ports.SourceView built from a request.
type View struct {
	Path    string `json:"file"`
	Content string `json:"text,omitempty"`
	Lang    string `json:"lang,omitempty"`
	Row     int    `json:"row,omitempty"`
	Col     int    `json:"col,omitempty"`
}

func (v View) FilePath() string   { return v.Path }
func (v View) Text() string       { return v.Content }
func (v View) Cursor() (int, int) { return v.Row, v.Col }
func (v View) LangHint() string   { return v.Lang }
