package compiler

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/net/html"

	"github.com/mannyrayner/C-LARA-2/internal/audio"
	"github.com/mannyrayner/C-LARA-2/internal/document"
)

func annotatedCat() *document.Text {
	return &document.Text{
		L2:      "en",
		L1:      "fr",
		Title:   "Cats",
		Surface: "A cat sleeps.",
		Pages: []document.Page{{
			Surface: "A cat sleeps.",
			Segments: []document.Segment{{
				Surface:     "A cat sleeps.",
				Annotations: document.Annotations{"translation": "Un chat dort."},
				Tokens: []document.Token{
					{Surface: "A", Annotations: document.Annotations{"lemma": "a", "pos": "DET"}},
					{Surface: " "},
					{Surface: "cat", Annotations: document.Annotations{"lemma": "cat", "pos": "NOUN", "gloss": "chat"}},
					{Surface: " "},
					{Surface: "sleeps", Annotations: document.Annotations{"lemma": "sleep", "pos": "VERB"}},
					{Surface: "."},
				},
			}},
		}},
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read %s: %v", path, err)
	}
	return string(data)
}

// tokenSpans parses an HTML page and returns the attributes of every
// span.token in document order.
func tokenSpans(t *testing.T, page string) []map[string]string {
	t.Helper()
	root, err := html.Parse(strings.NewReader(page))
	if err != nil {
		t.Fatalf("html.Parse() error = %v", err)
	}

	var spans []map[string]string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "span" {
			attrs := map[string]string{}
			for _, a := range n.Attr {
				attrs[a.Key] = a.Val
			}
			if attrs["class"] == "token" {
				spans = append(spans, attrs)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return spans
}

func TestCompileTokenAttributes(t *testing.T) {
	out := t.TempDir()
	result, err := New().Compile(annotatedCat(), out)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	if result.HTMLRoot != filepath.Join(out, "html") || result.RunRoot != out {
		t.Errorf("roots = %q, %q", result.RunRoot, result.HTMLRoot)
	}
	if result.HTMLPath != filepath.Join(out, "html", "page_1.html") {
		t.Errorf("HTMLPath = %q", result.HTMLPath)
	}

	page := readFile(t, result.HTMLPath)
	if !strings.Contains(page, `data-lemma="cat"`) {
		t.Error(`page should contain data-lemma="cat"`)
	}

	spans := tokenSpans(t, page)
	if len(spans) != 3 {
		t.Fatalf("token spans = %d, want 3", len(spans))
	}
	cat := spans[1]
	if cat["data-gloss"] != "chat" || cat["data-pos"] != "NOUN" || cat["data-lemma-slug"] != "cat" {
		t.Errorf("cat span attributes = %v", cat)
	}

	if !strings.Contains(page, "A cat sleeps.") && !strings.Contains(page, ">cat</span>") {
		t.Error("token text missing from page")
	}
	if !strings.Contains(page, `class="segment-translation hidden">Un chat dort.`) {
		t.Error("translation should be rendered hidden")
	}
	for _, asset := range []string{"static/style.css", "static/script.js", "concordance.html", "concordance_cat.html"} {
		if _, err := os.Stat(filepath.Join(result.HTMLRoot, asset)); err != nil {
			t.Errorf("missing %s: %v", asset, err)
		}
	}
}

func TestCompileSlugForQuoteLemma(t *testing.T) {
	text := annotatedCat()
	text.Pages[0].Segments[0].Tokens[5].Annotations = document.Annotations{"lemma": `"`}

	result, err := New().Compile(text, t.TempDir())
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	if _, err := os.Stat(filepath.Join(result.HTMLRoot, "concordance_%22.html")); err != nil {
		t.Errorf("percent-encoded concordance file missing: %v", err)
	}

	spans := tokenSpans(t, readFile(t, result.HTMLPath))
	var found bool
	for _, span := range spans {
		if span["data-lemma"] == `"` {
			found = true
			if span["data-lemma-slug"] != "%22" {
				t.Errorf("data-lemma-slug = %q, want %%22", span["data-lemma-slug"])
			}
		}
	}
	if !found {
		t.Error(`no token carries data-lemma="&#34;"`)
	}

	index := readFile(t, filepath.Join(result.HTMLRoot, "concordance.html"))
	if !strings.Contains(index, `href="concordance_%2522.html"`) {
		t.Error("index link should escape the percent sign so it resolves to the encoded file")
	}
}

func TestCompileLongAndCaseVariantLemmas(t *testing.T) {
	long := strings.Repeat("猫", 100)
	text := annotatedCat()
	tokens := text.Pages[0].Segments[0].Tokens
	tokens[0].Annotations = document.Annotations{"lemma": long}
	tokens[2].Annotations = document.Annotations{"lemma": "Cat"}
	tokens[4].Annotations = document.Annotations{"lemma": "cat"}

	result, err := New().Compile(text, t.TempDir())
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	for _, lemma := range []string{long, "Cat", "cat"} {
		page := readFile(t, filepath.Join(result.HTMLRoot, ConcordanceFile(lemma)))
		if !strings.Contains(page, "concordance-entry") {
			t.Errorf("concordance page for %q is not an entry page", lemma)
		}
	}

	spans := tokenSpans(t, readFile(t, result.HTMLPath))
	for _, span := range spans {
		if span["data-lemma"] == "" {
			continue
		}
		if want := Slug(span["data-lemma"]); span["data-lemma-slug"] != want {
			t.Errorf("data-lemma-slug for %q = %q, want %q", span["data-lemma"], span["data-lemma-slug"], want)
		}
	}
}

func TestCompilePagesAndNavigation(t *testing.T) {
	text := annotatedCat()
	text.Pages = append(text.Pages, document.Page{
		Surface:  "Dogs bark.",
		Segments: []document.Segment{{Surface: "Dogs bark."}},
	})

	result, err := New().Compile(text, t.TempDir())
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if len(result.Pages) != 2 {
		t.Fatalf("pages = %d, want 2", len(result.Pages))
	}

	first := readFile(t, result.Pages[0])
	second := readFile(t, result.Pages[1])
	if !strings.Contains(first, `class="nav-next" href="page_2.html"`) {
		t.Error("first page should link to the next page")
	}
	if !strings.Contains(first, `nav-prev disabled`) {
		t.Error("first page should have a disabled prev link")
	}
	if !strings.Contains(second, `class="nav-prev" href="page_1.html"`) {
		t.Error("second page should link back")
	}
	if !strings.Contains(second, "Dogs bark.") {
		t.Error("untokenized segment should render its surface")
	}
}

func TestCompileEmptyDocument(t *testing.T) {
	result, err := New().Compile(&document.Text{L2: "en"}, t.TempDir())
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if len(result.Pages) != 1 {
		t.Errorf("pages = %d, want 1", len(result.Pages))
	}
	if !strings.Contains(readFile(t, filepath.Join(result.HTMLRoot, "concordance.html")), "No lemmas available.") {
		t.Error("empty concordance message missing")
	}
}

func TestCompileCopiesAudio(t *testing.T) {
	cache := t.TempDir()
	clip := filepath.Join(cache, "clip.wav")
	if err := audio.NewOfflineEngine().SynthesizeToPath(context.Background(), "cat", clip, "", ""); err != nil {
		t.Fatal(err)
	}

	text := annotatedCat()
	seg := &text.Pages[0].Segments[0]
	seg.Tokens[2].Annotations["audio"] = clip
	seg.Tokens[4].Annotations["audio"] = filepath.Join(cache, "missing.wav")
	seg.Annotations["audio"] = clip

	result, err := New().Compile(text, t.TempDir())
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	spans := tokenSpans(t, readFile(t, result.HTMLPath))
	rel := spans[1]["data-audio"]
	if !strings.HasPrefix(rel, "audio/") || !strings.HasSuffix(rel, ".wav") {
		t.Fatalf("data-audio = %q, want audio/<hash>.wav", rel)
	}
	if _, err := os.Stat(filepath.Join(result.HTMLRoot, filepath.FromSlash(rel))); err != nil {
		t.Errorf("copied audio missing: %v", err)
	}
	if _, ok := spans[2]["data-audio"]; ok {
		t.Error("missing source audio should be dropped")
	}
	if !strings.Contains(readFile(t, result.HTMLPath), `data-audio="`+rel+`" title="Play segment"`) {
		t.Error("segment should reuse the same copied clip")
	}
}

func TestCompilePinyinRuby(t *testing.T) {
	text := &document.Text{L2: "zh", Pages: []document.Page{{Segments: []document.Segment{{
		Surface: "我",
		Tokens:  []document.Token{{Surface: "我", Annotations: document.Annotations{"pinyin": "wo3", "lemma": "我"}}},
	}}}}}

	result, err := New().Compile(text, t.TempDir())
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if !strings.Contains(readFile(t, result.HTMLPath), "<ruby>我<rt>wo3</rt></ruby>") {
		t.Error("pinyin should be rendered as ruby")
	}
}
