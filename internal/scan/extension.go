// Package scan enumerates recognized audio files under directory trees.
package scan

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// Extension is a recognized audio file extension, lower case and without
// the leading dot.
type Extension string

// Recognized audio extensions.
const (
	MP3  Extension = "mp3"
	WAV  Extension = "wav"
	FLAC Extension = "flac"
	AAC  Extension = "aac"
	OGG  Extension = "ogg"
	OPUS Extension = "opus"
	M4A  Extension = "m4a"
	WMA  Extension = "wma"
	AIFF Extension = "aiff"
	AIF  Extension = "aif"
	APE  Extension = "ape"
	WV   Extension = "wv"
)

var recognized = map[Extension]bool{
	MP3: true, WAV: true, FLAC: true, AAC: true, OGG: true, OPUS: true,
	M4A: true, WMA: true, AIFF: true, AIF: true, APE: true, WV: true,
}

// ExtensionSet is a set of recognized extensions.
type ExtensionSet map[Extension]bool

// DefaultExtensions returns every recognized extension.
func DefaultExtensions() ExtensionSet {
	set := make(ExtensionSet, len(recognized))
	for ext := range recognized {
		set[ext] = true
	}
	return set
}

// ParseExtensions builds a set from user-supplied names such as "mp3" or
// ".FLAC". Names outside the recognized set are rejected.
func ParseExtensions(names []string) (ExtensionSet, error) {
	set := make(ExtensionSet, len(names))
	for _, name := range names {
		ext := Extension(strings.ToLower(strings.TrimPrefix(strings.TrimSpace(name), ".")))
		if !recognized[ext] {
			return nil, fmt.Errorf("unrecognized audio extension %q", name)
		}
		set[ext] = true
	}
	return set, nil
}

// Contains reports whether ext is in the set.
func (s ExtensionSet) Contains(ext Extension) bool {
	return s[ext]
}

// Match returns the extension of path if it is in the set.
func (s ExtensionSet) Match(path string) (Extension, bool) {
	ext, ok := ExtensionOf(path)
	if !ok || !s[ext] {
		return "", false
	}
	return ext, true
}

// Sorted returns the extensions in lexical order.
func (s ExtensionSet) Sorted() []Extension {
	out := make([]Extension, 0, len(s))
	for ext := range s {
		out = append(out, ext)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ExtensionOf returns the recognized extension of path, case-insensitively.
func ExtensionOf(path string) (Extension, bool) {
	ext := Extension(strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")))
	if !recognized[ext] {
		return "", false
	}
	return ext, true
}
