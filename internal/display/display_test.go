package display

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const root = "https://lms.example.org"

func TestResolve_ExplicitModeWins(t *testing.T) {
	urls := []string{
		"http://x.com/a.png",
		"http://x.com/a.pdf",
		root + "/admin/report.php",
		"teamspeak://voice.example.org",
	}
	for _, mode := range []Mode{Embed, Frame, NewWindow, Download, Open, Popup} {
		for _, u := range urls {
			assert.Equal(t, mode, Resolve(mode, u, root), "Resolve(%s, %q)", mode, u)
		}
	}
}

func TestResolve_Automatic(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want Mode
	}{
		{"local script", root + "/admin/report.php", Open},
		{"local script uppercase", root + "/course/VIEW.PHP?id=3", Open},
		{"local file serving script", root + "/file.php?f=1", Download},
		{"local pluginfile path", root + "/file.php/12/a.png", Embed},
		{"png image", "http://x.com/a.png", Embed},
		{"jpeg with query", "http://x.com/photo.JPG?size=large", Embed},
		{"svg", "http://x.com/diagram.svg", Embed},
		{"mp4 video", "http://x.com/lecture.mp4#t=30", Embed},
		{"mp3 audio", "http://x.com/podcast.mp3", Embed},
		{"flash", "http://x.com/old.swf", Embed},
		{"pdf", "http://x.com/a.pdf", Download},
		{"zip", "http://x.com/a.zip", Download},
		{"tarball", "http://x.com/a.tar", Download},
		{"gzip", "http://x.com/a.tgz", Download},
		{"html page", "http://x.com/index.html", Download},
		{"remote php page", "http://x.com/index.php?a=b", Download},
		{"unknown extension", "http://x.com/a.xyz", Open},
		{"no extension", "http://x.com/about", Open},
		{"bare host", "http://x.com", Open},
		{"directory", "http://x.com/docs/", Open},
		{"word document", "http://x.com/a.docx", Open},
		{"other site with same prefix scheme", "https://other.example.org/a.php", Download},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Resolve(Automatic, tt.url, root))
		})
	}
}

func TestResolve_NoSiteRoot(t *testing.T) {
	// Without a site root no link counts as a local page
	assert.Equal(t, Download, Resolve(Automatic, "/admin/report.php", ""))

	page := "http://lms.example/mod/page/view.php"
	assert.Equal(t, Resolve(Automatic, page, "http://elsewhere.example"), Resolve(Automatic, page, ""))
	assert.Equal(t, Open, Resolve(Automatic, page, "http://lms.example"))
}

func TestGuessMimeType(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"http://x.com/a.png", "image/png"},
		{"http://x.com/A.PNG", "image/png"},
		{"http://x.com/a.pdf?download=1", "application/pdf"},
		{"http://x.com/a.pdf#page=2", "application/pdf"},
		{"http://x.com/file.php?file=/2/notes.pdf", "application/pdf"},
		{"http://x.com/pluginfile.php/2/mod/a.mp4", "video/mp4"},
		{"http://x.com/a.xyz", UnknownMimeType},
		{"http://x.com", UnknownMimeType},
		{"http://x.com.au", UnknownMimeType},
		{"http://x.com/", UnknownMimeType},
		{"", UnknownMimeType},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, GuessMimeType(tt.url), "GuessMimeType(%q)", tt.url)
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"automatic", Automatic, false},
		{"Popup", Popup, false},
		{" new ", NewWindow, false},
		{"5", Open, false},
		{"0", Automatic, false},
		{"7", Automatic, true},
		{"sideways", Automatic, true},
	}

	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if tt.wantErr {
			assert.Error(t, err, "ParseMode(%q)", tt.in)
			continue
		}
		require.NoError(t, err, "ParseMode(%q)", tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestMode_TextRoundTrip(t *testing.T) {
	text, err := Frame.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "frame", string(text))

	var m Mode
	require.NoError(t, m.UnmarshalText([]byte("2")))
	assert.Equal(t, Frame, m)
	assert.Error(t, m.UnmarshalText([]byte("nope")))
	assert.Equal(t, "mode(42)", Mode(42).String())
}

func TestEmbedKind(t *testing.T) {
	assert.Equal(t, KindImage, EmbedKind("image/png"))
	assert.Equal(t, KindObject, EmbedKind("image/svg+xml"))
	assert.Equal(t, KindVideo, EmbedKind("video/mp4"))
	assert.Equal(t, KindAudio, EmbedKind("audio/mp3"))
	assert.Equal(t, KindObject, EmbedKind("application/x-shockwave-flash"))
}

func TestPopupOnClick(t *testing.T) {
	got := PopupOnClick("http://x.com/a?b=1&amp;c='2'", 0, 300)
	assert.Equal(t,
		`window.open('http://x.com/a?b=1&amp;c=\'2\'', '', 'width=620,height=300,toolbar=no,location=no,menubar=no,copyhistory=no,status=no,directories=no,scrollbars=yes,resizable=yes'); return false;`,
		got)
	assert.Equal(t, `window.open('http://x.com/'); return false;`, NewWindowOnClick("http://x.com/"))
}

func TestOnClick_ScriptURLs(t *testing.T) {
	tests := []struct {
		url    string
		script bool
	}{
		{"javascript:alert(1)", true},
		{"JavaScript:alert(1)", true},
		{" java\tscript:alert(1)", false},
		{"java\tscript:alert(1)", false},
		{"java	script:alert(1)", true},
		{"vbscript:msgbox(1)", true},
		{"data:text/html;base64,PHNjcmlwdD4=", true},
		{"http://x.com/?next=javascript:1", false},
		{"mailto:a@example.org", false},
		{"/mod/url2/view.php?id=1", false},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.script, IsScriptURL(tt.url))
			if tt.script {
				assert.Empty(t, PopupOnClick(tt.url, 0, 0))
				assert.Empty(t, NewWindowOnClick(tt.url))
			} else {
				assert.NotEmpty(t, PopupOnClick(tt.url, 0, 0))
			}
		})
	}
}

func TestGuessIcon(t *testing.T) {
	tests := []struct {
		url  string
		size int
		want string
	}{
		{"http://x.com", 24, ""},
		{"http://x.com/docs/", 24, ""},
		{"http://x.com/index.html", 24, ""},
		{"http://x.com/script.php", 24, ""},
		{"http://x.com/a.xyz", 24, ""},
		{"http://x.com/a.pdf", 24, "f/pdf-24"},
		{"http://x.com/a.pdf", 0, "f/pdf"},
		{"http://x.com/media/talk.mp3", 24, "f/mp3-24"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, GuessIcon(tt.url, tt.size), "GuessIcon(%q, %d)", tt.url, tt.size)
	}
}
