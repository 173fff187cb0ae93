package module

import "url2/internal/models"

// Feature names a host capability the module may support.
type Feature string

// Features queried by the host.
const (
	FeatureGroups               Feature = "groups"
	FeatureGroupings            Feature = "groupings"
	FeatureIntro                Feature = "intro"
	FeatureCompletionTracksView Feature = "completion_tracks_views"
	FeatureBackup               Feature = "backup"
	FeatureShowDescription      Feature = "showdescription"
)

// Archetype places the module among the course resources rather than the
// activities.
const Archetype = "resource"

var supported = map[Feature]bool{
	FeatureGroups:               false,
	FeatureGroupings:            false,
	FeatureIntro:                true,
	FeatureCompletionTracksView: true,
	FeatureBackup:               true,
	FeatureShowDescription:      true,
}

// Supports reports whether the module supports f. Unknown features are
// unsupported.
func Supports(f Feature) bool {
	return supported[f]
}

// ViewActions are the log actions counted as views.
func ViewActions() []string {
	return []string{"view", "view all"}
}

// PostActions are the log actions counted as posts.
func PostActions() []string {
	return []string{"update", "add"}
}

// ExtraCapabilities lists capabilities checked beyond the module's own.
func ExtraCapabilities() []string {
	return []string{"moodle/site:accessallgroups"}
}

// ResetStatus reports one step of a course reset.
type ResetStatus struct {
	Component string `json:"component"`
	Item      string `json:"item"`
	Error     bool   `json:"error"`
}

// ResetUserdata clears user data of the module on course reset. Resources
// hold no user data, so nothing is reported.
func ResetUserdata() []ResetStatus {
	return []ResetStatus{}
}

// DndType is a content type accepted by drag-and-drop on the course page.
type DndType struct {
	Type     string `json:"type"`
	Message  string `json:"message"`
	Priority int    `json:"priority"`
}

// DndTypes lists the drop types the module handles.
func DndTypes() []DndType {
	return []DndType{{Type: "url", Message: "Add a URL link", Priority: 0}}
}

// Metadata is the static description of the module.
type Metadata struct {
	Name              string           `json:"name"`
	Archetype         string           `json:"archetype"`
	Features          map[Feature]bool `json:"features"`
	ViewActions       []string         `json:"view_actions"`
	PostActions       []string         `json:"post_actions"`
	ExtraCapabilities []string         `json:"extra_capabilities"`
	DndTypes          []DndType        `json:"dnd_types"`
}

// Describe returns the module metadata.
func Describe() Metadata {
	features := make(map[Feature]bool, len(supported))
	for f, ok := range supported {
		features[f] = ok
	}
	return Metadata{
		Name:              models.ModuleName,
		Archetype:         Archetype,
		Features:          features,
		ViewActions:       ViewActions(),
		PostActions:       PostActions(),
		ExtraCapabilities: ExtraCapabilities(),
		DndTypes:          DndTypes(),
	}
}
