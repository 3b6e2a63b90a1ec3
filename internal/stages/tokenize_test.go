package stages

import (
	"reflect"
	"testing"
)

func surfaces(t *testing.T, s string) []string {
	t.Helper()
	var out []string
	for _, tok := range Tokenize(s) {
		out = append(out, tok.Surface)
	}
	return out
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"simple sentence", "A cat sleeps.", []string{"A", " ", "cat", " ", "sleeps", "."}},
		{"repeated word", "echo echo", []string{"echo", " ", "echo"}},
		{"apostrophe inside word", "don't stop", []string{"don't", " ", "stop"}},
		{"trailing hyphen", "well- done", []string{"well", "-", " ", "done"}},
		{"whitespace run", "a  b", []string{"a", "  ", "b"}},
		{"han characters", "我喜欢。", []string{"我", "喜", "欢", "。"}},
		{"mixed scripts", "A股很好", []string{"A", "股", "很", "好"}},
		{"punctuation run", "Hi!!", []string{"Hi", "!", "!"}},
		{"empty", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := surfaces(t, tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Tokenize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestTokenizeReproducesSurface(t *testing.T) {
	inputs := []string{
		"The quick brown fox, it's said, jumps.",
		"Сегодня — хороший день!",
		"我们去公园吧？好的。",
		"  leading and trailing  ",
	}
	for _, in := range inputs {
		joined := ""
		for _, tok := range Tokenize(in) {
			joined += tok.Surface
		}
		if joined != in {
			t.Errorf("Tokenize(%q) joined = %q", in, joined)
		}
	}
}
