// Package params resolves the variable catalog and appends author-defined
// query parameters to a resource URL.
package params

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"url2/internal/models"
)

// Config carries the site settings the expander depends on.
type Config struct {
	SiteRoot      string
	SecretPhrase  string
	RolesInParams bool
}

// VariableContext is the request-scoped state variables are resolved from.
// It is never persisted.
type VariableContext struct {
	Course       models.Course
	Instance     models.URL2
	CourseModule models.CourseModule
	SiteName     string
	Lang         string
	Now          time.Time
	// User is nil for anonymous requests; user variables are then absent.
	User       *models.User
	ServerZone *time.Location
	RemoteAddr string
	// Roles are the course roles with their course-local display names.
	Roles []models.Role
}

// Values resolves the variable catalog against vc.
func Values(vc VariableContext, cfg Config) map[string]string {
	values := map[string]string{
		"courseid":        vc.Course.ID.String(),
		"coursefullname":  vc.Course.FullName,
		"courseshortname": vc.Course.ShortName,
		"courseidnumber":  vc.Course.IDNumber,
		"coursesummary":   vc.Course.Summary,
		"courseformat":    vc.Course.Format,
		"lang":            vc.Lang,
		"sitename":        vc.SiteName,
		"serverurl":       cfg.SiteRoot,
		"currenttime":     strconv.FormatInt(vc.Now.Unix(), 10),
		"url2instance":    vc.Instance.ID.String(),
		"url2cmid":        vc.CourseModule.ID.String(),
		"url2name":        vc.Instance.Name,
		"url2idnumber":    vc.CourseModule.IDNumber,
	}

	if u := vc.User; u != nil {
		values["userid"] = u.ID.String()
		values["userusername"] = u.Username
		values["useridnumber"] = u.IDNumber
		values["userfirstname"] = u.FirstName
		values["userlastname"] = u.LastName
		values["userfullname"] = u.FullName()
		values["useremail"] = u.Email
		values["usericq"] = u.ICQ
		values["userphone1"] = u.Phone1
		values["userphone2"] = u.Phone2
		values["userinstitution"] = u.Institution
		values["userdepartment"] = u.Department
		values["useraddress"] = u.Address
		values["usercity"] = u.City
		values["usertimezone"] = timezoneHours(vc.Now, u.Location(serverZone(vc)))
		values["userurl"] = u.URL
	}

	if cfg.SecretPhrase != "" {
		values["encryptedcode"] = EncryptedCode(vc.RemoteAddr, cfg.SecretPhrase)
	}

	if cfg.RolesInParams {
		for _, r := range vc.Roles {
			values["course"+r.ShortName] = r.Name
		}
	}

	// Templates restored from old backups use these names.
	for legacy, name := range legacyNames {
		if v, ok := values[name]; ok {
			values[legacy] = v
		}
	}

	return values
}

var legacyNames = map[string]string{
	"serverurl2": "serverurl",
	"userurl2":   "userurl",
}

// EncryptedCode is the weak single sign-on token: hex MD5 of the client
// address followed by the shared secret.
func EncryptedCode(remoteAddr, secret string) string {
	sum := md5.Sum([]byte(remoteAddr + secret))
	return hex.EncodeToString(sum[:])
}

func serverZone(vc VariableContext) *time.Location {
	if vc.ServerZone != nil {
		return vc.ServerZone
	}
	return time.Local
}

// timezoneHours is the UTC offset at now in hours, e.g. "1", "-3.5", "5.75".
func timezoneHours(now time.Time, loc *time.Location) string {
	_, offset := now.In(loc).Zone()
	return strconv.FormatFloat(float64(offset)/3600, 'f', -1, 64)
}

// Options returns the catalog grouped for the author's variable picker.
func Options(cfg Config, roles []models.Role) []models.VariableGroup {
	misc := []models.VariableOption{
		{Name: "sitename", Label: "Full site name"},
		{Name: "serverurl", Label: "Server URL"},
		{Name: "currenttime", Label: "Time"},
		{Name: "lang", Label: "Language"},
	}
	if cfg.SecretPhrase != "" {
		misc = append(misc, models.VariableOption{Name: "encryptedcode", Label: "Encrypted code"})
	}

	groups := []models.VariableGroup{
		{Label: "Course", Variables: []models.VariableOption{
			{Name: "courseid", Label: "id"},
			{Name: "coursefullname", Label: "Course full name"},
			{Name: "courseshortname", Label: "Course short name"},
			{Name: "courseidnumber", Label: "Course ID number"},
			{Name: "coursesummary", Label: "Summary"},
			{Name: "courseformat", Label: "Format"},
		}},
		{Label: "URL", Variables: []models.VariableOption{
			{Name: "url2instance", Label: "id"},
			{Name: "url2cmid", Label: "cmid"},
			{Name: "url2name", Label: "Name"},
			{Name: "url2idnumber", Label: "ID number"},
		}},
		{Label: "Miscellaneous", Variables: misc},
		{Label: "User", Variables: []models.VariableOption{
			{Name: "userid", Label: "id"},
			{Name: "userusername", Label: "Username"},
			{Name: "useridnumber", Label: "ID number"},
			{Name: "userfirstname", Label: "First name"},
			{Name: "userlastname", Label: "Last name"},
			{Name: "userfullname", Label: "User full name"},
			{Name: "useremail", Label: "Email address"},
			{Name: "usericq", Label: "ICQ number"},
			{Name: "userphone1", Label: "Phone"},
			{Name: "userphone2", Label: "Mobile phone"},
			{Name: "userinstitution", Label: "Institution"},
			{Name: "userdepartment", Label: "Department"},
			{Name: "useraddress", Label: "Address"},
			{Name: "usercity", Label: "City/town"},
			{Name: "usertimezone", Label: "Timezone"},
			{Name: "userurl", Label: "Web page"},
		}},
	}

	if cfg.RolesInParams {
		opts := make([]models.VariableOption, 0, len(roles))
		for _, r := range roles {
			opts = append(opts, models.VariableOption{
				Name:  "course" + r.ShortName,
				Label: fmt.Sprintf("Your word for '%s'", r.Name),
			})
		}
		groups = append(groups, models.VariableGroup{Label: "Roles", Variables: opts})
	}

	return groups
}
