package compiler

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/mannyrayner/C-LARA-2/internal"
	"github.com/mannyrayner/C-LARA-2/internal/document"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

var templates = template.Must(template.New("").Funcs(template.FuncMap{
	"fileURL": fileURL,
}).ParseFS(templateFS, "templates/*.html"))

// Result describes a compiled artifact.
type Result struct {
	HTMLPath    string   `json:"html_path"`
	RunRoot     string   `json:"run_root"`
	HTMLRoot    string   `json:"html_root"`
	Pages       []string `json:"pages"`
	Concordance []Entry  `json:"concordance"`
}

// Compiler writes HTML artifacts.
type Compiler struct {
	logger zerolog.Logger
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithLogger sets the compiler's logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Compiler) {
		c.logger = logger
	}
}

// New creates a compiler.
func New(opts ...Option) *Compiler {
	c := &Compiler{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type tokenView struct {
	Surface  string
	Lexical  bool
	Lemma    string
	Slug     string
	Gloss    string
	POS      string
	MWEID    string
	Audio    string
	Pinyin   string
	Position string
}

type segmentView struct {
	ID          string
	Page        int
	Index       int
	Surface     string
	Tokens      []tokenView
	Translation string
	Audio       string
}

type pageView struct {
	Title    string
	Lang     string
	Number   int
	Total    int
	First    string
	Prev     string
	Next     string
	Last     string
	Audio    string
	Segments []segmentView
}

type concordanceView struct {
	Title string
	Lang  string
	Entry Entry
	Links []occurrenceView
}

type occurrenceView struct {
	Occurrence
	PageNumber int
	Before     string
	Match      string
	After      string
}

type indexView struct {
	Title   string
	Lang    string
	Entries []Entry
}

// Compile renders text under outputDir/html. Page writes are fatal; a
// missing audio file only drops that clip.
func (c *Compiler) Compile(text *document.Text, outputDir string) (Result, error) {
	htmlRoot := filepath.Join(outputDir, "html")
	if err := os.MkdirAll(htmlRoot, 0755); err != nil {
		return Result{}, fmt.Errorf("failed to create html directory: %w", err)
	}
	if err := writeStatic(htmlRoot); err != nil {
		return Result{}, err
	}

	title := text.Title
	if title == "" {
		title = "Annotated text"
	}
	audio := &audioCopier{root: htmlRoot, copied: map[string]string{}, logger: c.logger}
	concordance := BuildConcordance(text)

	total := max(len(text.Pages), 1)
	result := Result{
		RunRoot:     outputDir,
		HTMLRoot:    htmlRoot,
		Concordance: concordance,
	}

	for p := 0; p < total; p++ {
		view := pageView{
			Title:  title,
			Lang:   text.L2,
			Number: p + 1,
			Total:  total,
			First:  pageFile(1),
			Last:   pageFile(total),
		}
		if p > 0 {
			view.Prev = pageFile(p)
		}
		if p+1 < total {
			view.Next = pageFile(p + 2)
		}
		if p < len(text.Pages) {
			page := text.Pages[p]
			view.Audio = audio.copy(page.Annotations.String(document.KeyAudio))
			for s := range page.Segments {
				view.Segments = append(view.Segments, segmentViewFor(&page.Segments[s], p, s, audio))
			}
		}

		path := filepath.Join(htmlRoot, pageFile(p+1))
		if err := render(path, "page.html", view); err != nil {
			return Result{}, err
		}
		result.Pages = append(result.Pages, path)
	}
	result.HTMLPath = result.Pages[0]

	if err := render(filepath.Join(htmlRoot, "concordance.html"), "index.html", indexView{
		Title:   title,
		Lang:    text.L2,
		Entries: concordance,
	}); err != nil {
		return Result{}, err
	}

	for _, entry := range concordance {
		view := concordanceView{Title: title, Lang: text.L2, Entry: entry}
		for _, occ := range entry.Occurrences {
			view.Links = append(view.Links, occurrenceViewFor(text, occ))
		}
		if err := render(filepath.Join(htmlRoot, ConcordanceFile(entry.Lemma)), "concordance.html", view); err != nil {
			return Result{}, err
		}
	}

	c.logger.Info().
		Str("html_root", htmlRoot).
		Int("pages", len(result.Pages)).
		Int("lemmas", len(concordance)).
		Int("audio_files", len(audio.copied)).
		Msg("compiled html")
	return result, nil
}

func pageFile(n int) string {
	return fmt.Sprintf("page_%d.html", n)
}

func segmentViewFor(seg *document.Segment, page, index int, audio *audioCopier) segmentView {
	view := segmentView{
		ID:          fmt.Sprintf("seg-%d-%d", page, index),
		Page:        page,
		Index:       index,
		Surface:     seg.Surface,
		Translation: seg.Annotations.String(document.KeyTranslation),
		Audio:       audio.copy(seg.Annotations.String(document.KeyAudio)),
	}
	for t, tok := range seg.Tokens {
		tv := tokenView{
			Surface:  tok.Surface,
			Lexical:  document.IsLexical(tok.Surface) || len(tok.Annotations) > 0,
			Lemma:    tok.Annotations.String(document.KeyLemma),
			Gloss:    tok.Annotations.String(document.KeyGloss),
			POS:      tok.Annotations.String(document.KeyPOS),
			MWEID:    tok.Annotations.String(document.KeyMWEID),
			Pinyin:   tok.Annotations.String(document.KeyPinyin),
			Audio:    audio.copy(tok.Annotations.String(document.KeyAudio)),
			Position: fmt.Sprintf("%d-%d-%d", page, index, t),
		}
		if tv.Lemma != "" {
			tv.Slug = Slug(tv.Lemma)
		}
		view.Tokens = append(view.Tokens, tv)
	}
	return view
}

// occurrenceViewFor splits the segment surface around the occurrence so the
// concordance line can show the match in context.
func occurrenceViewFor(text *document.Text, occ Occurrence) occurrenceView {
	view := occurrenceView{Occurrence: occ, PageNumber: occ.Page + 1, Before: occ.SegmentRaw}
	seg := text.Pages[occ.Page].Segments[occ.Segment]

	offset := 0
	for i := 0; i < occ.Token && i < len(seg.Tokens); i++ {
		offset += len(seg.Tokens[i].Surface)
	}
	surface := seg.Tokens[occ.Token].Surface
	if offset+len(surface) <= len(seg.Surface) && seg.Surface[offset:offset+len(surface)] == surface {
		view.Before = seg.Surface[:offset]
		view.Match = surface
		view.After = seg.Surface[offset+len(surface):]
	}
	return view
}

func render(path, name string, data any) error {
	var b strings.Builder
	if err := templates.ExecuteTemplate(&b, name, data); err != nil {
		return fmt.Errorf("failed to render %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func writeStatic(htmlRoot string) error {
	return fs.WalkDir(staticFS, "static", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		target := filepath.Join(htmlRoot, filepath.FromSlash(path))
		if d.IsDir() {
			return os.MkdirAll(target, 0755)
		}
		data, err := staticFS.ReadFile(path)
		if err != nil {
			return err
		}
		if err := os.WriteFile(target, data, 0644); err != nil {
			return fmt.Errorf("failed to write static asset: %w", err)
		}
		return nil
	})
}

// audioCopier copies referenced audio into html/audio, naming each copy by
// the hash of its source path.
type audioCopier struct {
	root   string
	copied map[string]string
	logger zerolog.Logger
}

// copy returns the path of src relative to the HTML root, or "" when src is
// empty or cannot be copied.
func (a *audioCopier) copy(src string) string {
	if src == "" {
		return ""
	}
	if rel, ok := a.copied[src]; ok {
		return rel
	}

	rel := "audio/" + internal.ContentHash(src) + ".wav"
	if err := copyFile(src, filepath.Join(a.root, filepath.FromSlash(rel))); err != nil {
		a.logger.Warn().Err(err).Str("audio", src).Msg("audio not copied")
		a.copied[src] = ""
		return ""
	}
	a.copied[src] = rel
	return rel
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0644)
}
