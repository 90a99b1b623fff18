package homebrew

import (
	"regexp"
	"strings"
)

var (
	rubyDesc        = regexp.MustCompile(`(?m)^\s*desc\s+"((?:[^"\\]|\\.)*)"`)
	rubyName        = regexp.MustCompile(`(?m)^\s*name\s+"((?:[^"\\]|\\.)*)"`)
	rubyVersion     = regexp.MustCompile(`(?m)^\s*version\s+"([^"]+)"`)
	rubyApp         = regexp.MustCompile(`(?m)^\s*app\s+"([^"]+)"`)
	rubyAutoUpdates = regexp.MustCompile(`(?m)^\s*auto_updates\s+true\b`)
	rubyURLVersion  = regexp.MustCompile(`(?m)^\s*url\s+"[^"]*?[-_/v](\d+(?:\.\d+)+)(?:\.tar|\.zip|\.tgz|/)`)
)

// rubyFile holds what the regex fallback extracts from a cask or formula.
type rubyFile struct {
	Description string
	Names       []string
	Version     string
	Apps        []string
	AutoUpdates bool
}

// parseRuby extracts metadata from a cask or formula definition without
// evaluating it. Only literal strings are understood.
func parseRuby(src string) rubyFile {
	var rf rubyFile
	if m := rubyDesc.FindStringSubmatch(src); m != nil {
		rf.Description = unescapeRuby(m[1])
	}
	for _, m := range rubyName.FindAllStringSubmatch(src, -1) {
		rf.Names = append(rf.Names, unescapeRuby(m[1]))
	}
	if m := rubyVersion.FindStringSubmatch(src); m != nil {
		rf.Version = m[1]
	} else if m := rubyURLVersion.FindStringSubmatch(src); m != nil {
		// formulae usually infer the version from the url
		rf.Version = m[1]
	}
	for _, m := range rubyApp.FindAllStringSubmatch(src, -1) {
		rf.Apps = append(rf.Apps, m[1])
	}
	rf.AutoUpdates = rubyAutoUpdates.MatchString(src)
	return rf
}

func unescapeRuby(s string) string {
	return strings.NewReplacer(`\"`, `"`, `\\`, `\`).Replace(s)
}
