package publish

import "strings"

// ErrorClass is the closed set of failure causes the executor acts on.
// The publish primitive only exposes human-readable message text, so
// classification is substring matching against known registry and npm
// CLI phrasings; the tables live here and nowhere else.
type ErrorClass string

const (
	ClassTransient           ErrorClass = "transient"
	ClassAuth                ErrorClass = "auth"
	ClassAlreadyExists       ErrorClass = "already_exists"
	ClassVersionOrdering     ErrorClass = "version_ordering"
	ClassPrereleaseTagNeeded ErrorClass = "prerelease_tag_required"
	ClassUnknown             ErrorClass = "unknown"
)

// alreadyExistsMarkers match the registry refusing a duplicate publish.
var alreadyExistsMarkers = []string{
	"cannot publish over the previously published version",
	"cannot publish over previously published version",
	"this package is already present",
	"already exists",
	"epublishconflict",
	"cannot modify pre-existing version",
}

// versionOrderingMarkers match the registry refusing an out-of-order
// publish because a higher version is already tagged latest.
var versionOrderingMarkers = []string{
	"must specify a tag",
	"is lower than the current latest",
	"cannot be published over the latest",
	"requires an explicit tag",
}

// prereleaseTagMarkers match the registry demanding a tag for a
// prerelease version specifically.
var prereleaseTagMarkers = []string{
	"tag when publishing a prerelease",
	"prerelease versions must be published with a tag",
}

// authMarkers match credential problems.
var authMarkers = []string{
	"eneedauth",
	"unauthorized",
	"forbidden",
	"401",
	"403",
	"authentication required",
	"auth required",
}

// transientMarkers match network conditions that a retry can fix.
var transientMarkers = []string{
	"etimedout",
	"timed out",
	"timeout",
	"econnreset",
	"econnrefused",
	"eai_again",
	"enotfound",
	"epipe",
	"socket hang up",
	"network error",
	"bad gateway",
	"service unavailable",
	"502",
	"503",
	"504",
}

// Classify maps raw failure text to an ErrorClass. Matching is
// case-insensitive. Order matters: prerelease-tag demands are a special
// case of the tag-required phrasing and must win over version ordering,
// and conflict classes must win over the broad transient markers.
func Classify(message string) ErrorClass {
	msg := strings.ToLower(message)

	for _, marker := range alreadyExistsMarkers {
		if strings.Contains(msg, marker) {
			return ClassAlreadyExists
		}
	}
	for _, marker := range prereleaseTagMarkers {
		if strings.Contains(msg, marker) {
			return ClassPrereleaseTagNeeded
		}
	}
	for _, marker := range versionOrderingMarkers {
		if strings.Contains(msg, marker) {
			return ClassVersionOrdering
		}
	}
	for _, marker := range authMarkers {
		if strings.Contains(msg, marker) {
			return ClassAuth
		}
	}
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return ClassTransient
		}
	}
	return ClassUnknown
}
