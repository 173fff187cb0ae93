package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"url2/internal/display"
)

func TestParameterTemplate_Set(t *testing.T) {
	var tmpl ParameterTemplate
	tmpl.Set("uid", "userid")
	tmpl.Set("c", "courseid")
	tmpl.Set("uid", "userusername")

	assert.Equal(t, ParameterTemplate{
		{Name: "uid", Variable: "userusername"},
		{Name: "c", Variable: "courseid"},
	}, tmpl)

	v, ok := tmpl.Get("c")
	assert.True(t, ok)
	assert.Equal(t, "courseid", v)

	_, ok = tmpl.Get("missing")
	assert.False(t, ok)
}

func TestURL2_HasUsableURL(t *testing.T) {
	tests := []struct {
		url      string
		expected bool
	}{
		{"", false},
		{"   ", false},
		{"http://", false},
		{" http:// ", false},
		{"https://", true},
		{"http://example.com", true},
		{"/mod/page/view.php?id=1", true},
	}

	for _, tt := range tests {
		u := &URL2{ExternalURL: tt.url}
		if got := u.HasUsableURL(); got != tt.expected {
			t.Errorf("HasUsableURL(%q) = %v, want %v", tt.url, got, tt.expected)
		}
	}
}

func TestURL2_NeedsHealthCheck(t *testing.T) {
	u := &URL2{}
	assert.True(t, u.NeedsHealthCheck(time.Hour))

	recent := time.Now().Add(-time.Minute)
	u.HealthCheckedAt = &recent
	assert.False(t, u.NeedsHealthCheck(time.Hour))

	old := time.Now().Add(-2 * time.Hour)
	u.HealthCheckedAt = &old
	assert.True(t, u.NeedsHealthCheck(time.Hour))
}

func TestDisplayOptions_JSONOmitsUnsetFields(t *testing.T) {
	b, err := json.Marshal(DisplayOptions{PopupWidth: 800, PopupHeight: 600})
	require.NoError(t, err)
	assert.JSONEq(t, `{"popupwidth":800,"popupheight":600}`, string(b))

	b, err = json.Marshal(DisplayOptions{PrintIntro: true})
	require.NoError(t, err)
	assert.JSONEq(t, `{"printintro":true}`, string(b))
}

func TestURL2_JSONDisplayName(t *testing.T) {
	b, err := json.Marshal(URL2{Display: display.Popup})
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Equal(t, "popup", out["display"])
}

func TestCourseModule_TracksViews(t *testing.T) {
	assert.True(t, (&CourseModule{Completion: CompletionAutomatic, CompletionView: true}).TracksViews())
	assert.False(t, (&CourseModule{Completion: CompletionAutomatic}).TracksViews())
	assert.False(t, (&CourseModule{Completion: CompletionManual, CompletionView: true}).TracksViews())
}
