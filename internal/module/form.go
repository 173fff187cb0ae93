package module

import (
	"sort"
	"strings"
	"time"

	"url2/internal/config"
	"url2/internal/display"
	"url2/internal/models"
	"url2/internal/validation"
)

// Form is the author input for creating or editing a resource.
type Form struct {
	Name        string       `json:"name"`
	Intro       string       `json:"intro"`
	IntroFormat int          `json:"introformat"`
	ExternalURL string       `json:"externalurl2"`
	Display     display.Mode `json:"display"`
	PopupWidth  int          `json:"popupwidth"`
	PopupHeight int          `json:"popupheight"`
	PrintIntro  bool         `json:"printintro"`

	// Parameters are the parameter/variable rows of the form. Rows with an
	// empty name or variable are ignored.
	Parameters []models.Parameter `json:"parameters"`

	Section            int        `json:"section"`
	Visible            *bool      `json:"visible,omitempty"`
	IDNumber           string     `json:"idnumber"`
	ShowDescription    bool       `json:"showdescription"`
	Completion         int        `json:"completion"`
	CompletionView     bool       `json:"completionview"`
	CompletionExpected *time.Time `json:"completionexpected,omitempty"`
}

// FormErrors maps form fields to validation messages.
type FormErrors map[string]string

func (e FormErrors) Error() string {
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = f + ": " + e[f]
	}
	return "invalid form: " + strings.Join(parts, "; ")
}

// ValidateForm checks a submitted form. It returns nil or FormErrors.
func ValidateForm(f *Form, settings config.ModuleSettings) error {
	errs := FormErrors{}

	if strings.TrimSpace(f.Name) == "" {
		errs["name"] = "Required"
	}
	if ok, msg := validation.ValidateSubmittedURL(f.ExternalURL); !ok {
		errs["externalurl2"] = msg
	}
	if !f.Display.Valid() || !settings.Allows(f.Display) {
		errs["display"] = "Display option is not available"
	}
	if f.Display == display.Popup && (f.PopupWidth < 0 || f.PopupHeight < 0) {
		errs["popupwidth"] = "Popup size must be positive"
	}
	if len(f.Parameters) > models.MaxParameters {
		errs["parameters"] = "Too many parameters"
	}
	if f.Completion < models.CompletionNone || f.Completion > models.CompletionAutomatic {
		errs["completion"] = "Unknown completion tracking mode"
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

// parameterTemplate collects the non-empty parameter rows. A repeated name
// keeps its first position and takes the last variable.
func (f *Form) parameterTemplate() models.ParameterTemplate {
	tmpl := models.ParameterTemplate{}
	for i, p := range f.Parameters {
		if i >= models.MaxParameters {
			break
		}
		if p.Name == "" || p.Variable == "" {
			continue
		}
		tmpl.Set(p.Name, p.Variable)
	}
	return tmpl
}

// displayOptions keeps only the options that apply to the chosen mode.
func (f *Form) displayOptions() models.DisplayOptions {
	var opts models.DisplayOptions
	switch f.Display {
	case display.Popup:
		opts.PopupWidth = f.PopupWidth
		opts.PopupHeight = f.PopupHeight
	case display.Automatic, display.Embed, display.Frame:
		opts.PrintIntro = f.PrintIntro
	}
	return opts
}

// apply writes the form onto a resource record.
func (f *Form) apply(u *models.URL2, now time.Time) {
	u.Name = strings.TrimSpace(f.Name)
	u.Intro = f.Intro
	u.IntroFormat = f.IntroFormat
	u.ExternalURL = validation.NormalizeURL(f.ExternalURL)
	u.Display = f.Display
	u.DisplayOptions = f.displayOptions()
	u.Parameters = f.parameterTemplate()
	u.TimeModified = now
}

// applyPlacement writes the course module settings of the form.
func (f *Form) applyPlacement(cm *models.CourseModule) {
	cm.Section = f.Section
	cm.Visible = f.Visible == nil || *f.Visible
	cm.IDNumber = f.IDNumber
	cm.ShowDescription = f.ShowDescription
	cm.Completion = f.Completion
	cm.CompletionView = f.CompletionView
	cm.CompletionExpected = f.CompletionExpected
}

// FormFor fills a form from an existing resource, for editing.
func FormFor(u *models.URL2, cm *models.CourseModule) *Form {
	visible := cm.Visible
	f := &Form{
		Name:               u.Name,
		Intro:              u.Intro,
		IntroFormat:        u.IntroFormat,
		ExternalURL:        u.ExternalURL,
		Display:            u.Display,
		PopupWidth:         u.DisplayOptions.PopupWidth,
		PopupHeight:        u.DisplayOptions.PopupHeight,
		PrintIntro:         u.DisplayOptions.PrintIntro,
		Parameters:         append([]models.Parameter(nil), u.Parameters...),
		Section:            cm.Section,
		Visible:            &visible,
		IDNumber:           cm.IDNumber,
		ShowDescription:    cm.ShowDescription,
		Completion:         cm.Completion,
		CompletionView:     cm.CompletionView,
		CompletionExpected: cm.CompletionExpected,
	}
	return f
}
