package types

import "regexp"

// Identifier rules. Project names and team slugs end up in filenames,
// unit names, and shell arguments, so the character class is deliberately
// tight: lowercase alphanumerics and single hyphens, no leading or
// trailing hyphen.
var (
	projectNameRe = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,48}[a-z0-9])?$`)
	teamIDRe      = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{1,28}[a-z0-9])$`)
)

// ValidateProjectName checks a project name: lowercase alphanumeric with
// hyphens, 1-50 characters.
func ValidateProjectName(name string) error {
	if name == "" {
		return E(KindValidation, "project name is empty")
	}
	if len(name) > 50 || !projectNameRe.MatchString(name) {
		return E(KindValidation, "invalid project name %q: must be lowercase alphanumeric with hyphens, 1-50 chars", name)
	}
	return nil
}

// ValidateTeamID checks a team slug: lowercase alphanumeric with hyphens,
// 3-30 characters.
func ValidateTeamID(id string) error {
	if len(id) < 3 || len(id) > 30 || !teamIDRe.MatchString(id) {
		return E(KindValidation, "invalid team id %q: must be lowercase alphanumeric with hyphens, 3-30 chars", id)
	}
	return nil
}
