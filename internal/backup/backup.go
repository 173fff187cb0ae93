// Package backup writes and reads the activity document of a url2 resource
// and converts resources from the legacy 1.x backup format.
package backup

import (
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"url2/internal/display"
	"url2/internal/models"
)

// ErrWrongModule is returned when an activity document belongs to another
// module.
var ErrWrongModule = errors.New("activity is not a url2 resource")

// Activity is the root element of an activity document.
type Activity struct {
	XMLName    xml.Name `xml:"activity"`
	ID         string   `xml:"id,attr"`
	ModuleID   string   `xml:"moduleid,attr"`
	ModuleName string   `xml:"modulename,attr"`
	ContextID  string   `xml:"contextid,attr"`
	URL2       Record   `xml:"url2"`
}

// Record is the resource row as stored in a backup. Display is the numeric
// mode, options and parameters are JSON and times are unix seconds.
type Record struct {
	ID             string `xml:"id,attr"`
	Name           string `xml:"name"`
	Intro          string `xml:"intro"`
	IntroFormat    int    `xml:"introformat"`
	ExternalURL    string `xml:"externalurl2"`
	Display        int    `xml:"display"`
	DisplayOptions string `xml:"displayoptions"`
	Parameters     string `xml:"parameters"`
	TimeModified   int64  `xml:"timemodified"`
}

// Path is the location of the activity document inside a backup archive.
func Path(cmID uuid.UUID) string {
	return "activities/" + models.ModuleName + "_" + cmID.String() + "/" + models.ModuleName + ".xml"
}

// Export writes the activity document of a resource.
func Export(u *models.URL2, cm *models.CourseModule) ([]byte, error) {
	rec, err := recordOf(u)
	if err != nil {
		return nil, err
	}

	doc := Activity{
		ID:         u.ID.String(),
		ModuleID:   cm.ID.String(),
		ModuleName: models.ModuleName,
		ContextID:  cm.ID.String(),
		URL2:       *rec,
	}

	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal activity: %w", err)
	}
	return append([]byte(xml.Header), append(out, '\n')...), nil
}

func recordOf(u *models.URL2) (*Record, error) {
	opts, err := json.Marshal(u.DisplayOptions)
	if err != nil {
		return nil, fmt.Errorf("encode display options: %w", err)
	}
	parameters := u.Parameters
	if parameters == nil {
		parameters = models.ParameterTemplate{}
	}
	ps, err := json.Marshal(parameters)
	if err != nil {
		return nil, fmt.Errorf("encode parameters: %w", err)
	}

	return &Record{
		ID:             u.ID.String(),
		Name:           u.Name,
		Intro:          u.Intro,
		IntroFormat:    u.IntroFormat,
		ExternalURL:    u.ExternalURL,
		Display:        int(u.Display),
		DisplayOptions: string(opts),
		Parameters:     string(ps),
		TimeModified:   u.TimeModified.Unix(),
	}, nil
}

// Import reads an activity document. The returned resource has no ID or
// course; the caller assigns them on restore.
func Import(data []byte) (*models.URL2, error) {
	var doc Activity
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse activity: %w", err)
	}
	if doc.ModuleName != models.ModuleName {
		return nil, ErrWrongModule
	}

	rec := doc.URL2
	mode := display.Mode(rec.Display)
	if !mode.Valid() {
		return nil, fmt.Errorf("unknown display mode %d", rec.Display)
	}

	u := &models.URL2{
		Name:         rec.Name,
		Intro:        rec.Intro,
		IntroFormat:  rec.IntroFormat,
		ExternalURL:  rec.ExternalURL,
		Display:      mode,
		TimeModified: time.Unix(rec.TimeModified, 0).UTC(),
		HealthStatus: models.HealthUnknown,
	}
	if s := strings.TrimSpace(rec.DisplayOptions); s != "" {
		if err := json.Unmarshal([]byte(s), &u.DisplayOptions); err != nil {
			return nil, fmt.Errorf("decode display options: %w", err)
		}
	}
	if s := strings.TrimSpace(rec.Parameters); s != "" {
		var ps models.ParameterTemplate
		if err := json.Unmarshal([]byte(s), &ps); err != nil {
			return nil, fmt.Errorf("decode parameters: %w", err)
		}
		for _, p := range ps {
			u.Parameters.Set(p.Name, p.Variable)
		}
	}
	return u, nil
}

// ErrNotLegacyResource is returned when a 1.x module element is not a
// resource.
var ErrNotLegacyResource = errors.New("module is not a legacy resource")

// LegacyResource is a link resource from a 1.x course backup.
type LegacyResource struct {
	ID           string `xml:"ID"`
	Name         string `xml:"NAME"`
	Intro        string `xml:"SUMMARY"`
	IntroFormat  int    `xml:"INTROFORMAT"`
	Reference    string `xml:"REFERENCE"`
	Options      string `xml:"OPTIONS"`
	Popup        string `xml:"POPUP"`
	AllText      string `xml:"ALLTEXT"`
	TimeModified int64  `xml:"TIMEMODIFIED"`
}

type legacyModule struct {
	XMLName xml.Name `xml:"MOD"`
	ModType string   `xml:"MODTYPE"`
	LegacyResource
}

// ImportLegacy reads one <MOD> element of a 1.x moodle.xml and converts it.
func ImportLegacy(data []byte) (*models.URL2, error) {
	var mod legacyModule
	if err := xml.Unmarshal(data, &mod); err != nil {
		return nil, fmt.Errorf("parse legacy module: %w", err)
	}
	if mod.ModType != "resource" {
		return nil, ErrNotLegacyResource
	}
	return ConvertLegacy(mod.LegacyResource), nil
}

// ConvertLegacy maps a 1.x link resource onto a url2 resource.
func ConvertLegacy(r LegacyResource) *models.URL2 {
	u := &models.URL2{
		Name:           r.Name,
		Intro:          r.Intro,
		IntroFormat:    r.IntroFormat,
		ExternalURL:    r.Reference,
		DisplayOptions: models.DisplayOptions{PrintIntro: true},
		HealthStatus:   models.HealthUnknown,
	}
	if r.TimeModified > 0 {
		u.TimeModified = time.Unix(r.TimeModified, 0).UTC()
	}

	switch {
	case r.Options == "frame":
		u.Display = display.Frame
	case r.Options == "objectframe":
		u.Display = display.Embed
	case r.Popup != "" && r.Popup != "0":
		u.Display = display.Popup
		for _, opt := range strings.Split(r.Popup, ",") {
			name, value, _ := strings.Cut(strings.TrimSpace(opt), "=")
			n, err := strconv.Atoi(strings.TrimSpace(value))
			if err != nil || n <= 0 {
				continue
			}
			switch name {
			case "width":
				u.DisplayOptions.PopupWidth = n
			case "height":
				u.DisplayOptions.PopupHeight = n
			}
		}
	default:
		u.Display = display.Automatic
	}

	// alltext pairs are variable=parameter
	if r.AllText != "" {
		for _, pair := range strings.Split(r.AllText, ",") {
			variable, name, ok := strings.Cut(strings.TrimSpace(pair), "=")
			if !ok {
				continue
			}
			u.Parameters.Set(name, variable)
		}
	}
	return u
}
