package cry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractFromWikitext(t *testing.T) {
	tests := []struct {
		name     string
		wikitext string
		want     []string
	}{
		{
			name:     "media link markup",
			wikitext: "intro [[Fichier:Cri 4G 0001.ogg|120px]] outro",
			want:     []string{"Cri 4G 0001.ogg"},
		},
		{
			name:     "file prefix with underscores",
			wikitext: "[[file: Pika_cry.ogg]]",
			want:     []string{"Pika cry.ogg"},
		},
		{
			name:     "cry parameter",
			wikitext: "| cri = Cri_0025.ogg\n| taille = 0.4 m",
			want:     []string{"Cri 0025.ogg"},
		},
		{
			name:     "absolute url",
			wikitext: "(voir https://cdn.example/sounds/a.ogg)",
			want:     []string{"https://cdn.example/sounds/a.ogg"},
		},
		{
			name:     "case insensitive dedupe",
			wikitext: "[[Fichier:Cri.ogg]] [[Fichier:cri.ogg]]",
			want:     []string{"Cri.ogg"},
		},
		{
			name:     "non audio files ignored",
			wikitext: "[[Fichier:Carte.png]] [[Fichier:Artwork.jpg|thumb]]",
			want:     nil,
		},
		{
			name:     "empty input",
			wikitext: "",
			want:     nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractFromWikitext(tt.wikitext))
		})
	}
}

func TestExtractFromWikitextKeepsExtractionOrder(t *testing.T) {
	wikitext := "[[Fichier:bar.mp3]]\n| cri = foo.ogg\nhttps://cdn.example/baz.wav"
	got := extractFromWikitext(wikitext)
	assert.Equal(t, []string{"bar.mp3", "foo.ogg", "https://cdn.example/baz.wav"}, got)
}

func TestExtractFromHTML(t *testing.T) {
	html := `<div>
		<a href="https://www.pokepedia.fr/Fichier:Cri_0025.ogg">cri</a>
		<audio src="/images/cries/0025.ogg"></audio>
		<a href="https://cdn.example/other/track.mp3">mp3</a>
	</div>`

	got := extractFromHTML(html)
	assert.Contains(t, got, "Cri 0025.ogg")
	assert.Contains(t, got, "images/cries/0025.ogg")
	assert.Contains(t, got, "https://cdn.example/other/track.mp3")
}

func TestExtractFromHTMLRelativeAnchorOnlyFoundByDOMWalk(t *testing.T) {
	// No textual pattern matches a bare relative href; only the DOM walk
	// can surface it.
	html := `<a href="sons/cri-custom.wav">cri</a>`
	assert.Equal(t, []string{"sons/cri-custom.wav"}, extractFromHTML(html))
}

func TestNormalizeMediaName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "brackets and prefix", in: "[[Fichier:Cri_0001.ogg]]", want: "Cri 0001.ogg"},
		{name: "site url prefix", in: "https://www.pokepedia.fr/Fichier:Cri_0001.ogg", want: "Cri 0001.ogg"},
		{name: "leading slashes", in: "//files.example/cri.ogg", want: "files.example/cri.ogg"},
		{name: "trailing punctuation", in: "Cri.ogg).,;", want: "Cri.ogg"},
		{name: "fragment and query", in: "Cri.ogg#t=2?x=1", want: "Cri.ogg"},
		{name: "percent decoding", in: "Cri_%C3%89voli.ogg", want: "Cri Évoli.ogg"},
		{name: "whitespace collapse", in: "  Cri   0001.ogg  ", want: "Cri 0001.ogg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeMediaName(tt.in))
		})
	}
}

func TestPickBest(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		assert.Equal(t, "", pickBest(nil))
	})

	t.Run("single candidate accepted without scoring", func(t *testing.T) {
		assert.Equal(t, "random.mp3", pickBest([]string{"random.mp3"}))
	})

	t.Run("keyword beats extension only", func(t *testing.T) {
		assert.Equal(t, "cri-0025.wav", pickBest([]string{"intro.ogg", "cri-0025.wav"}))
	})

	t.Run("ogg breaks keyword tie", func(t *testing.T) {
		assert.Equal(t, "cry-b.ogg", pickBest([]string{"cry-a.mp3", "cry-b.ogg"}))
	})

	t.Run("equal scores keep extraction order", func(t *testing.T) {
		assert.Equal(t, "cri-a.ogg", pickBest([]string{"cri-a.ogg", "cri-b.ogg"}))
	})
}
