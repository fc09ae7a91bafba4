// Package voices reduces the backend voice catalog to the voices offered to
// a Spanish-speaking user and derives their display labels.
package voices

import (
	"regexp"
	"strings"

	"pdf-audio/internal/domain"
)

// DefaultLanguage is the language subtag offered in the voice picker.
const DefaultLanguage = "es"

// DefaultPreferredVoice is selected whenever the catalog contains it.
const DefaultPreferredVoice = "es-CL-LorenzoNeural"

const neuralSuffix = "Neural"

var countryNames = map[string]string{
	"AR": "Argentina",
	"BO": "Bolivia",
	"CL": "Chile",
	"CO": "Colombia",
	"CR": "Costa Rica",
	"CU": "Cuba",
	"DO": "Rep. Dominicana",
	"EC": "Ecuador",
	"SV": "El Salvador",
	"GQ": "Guinea Ecuatorial",
	"GT": "Guatemala",
	"HN": "Honduras",
	"MX": "México",
	"NI": "Nicaragua",
	"PA": "Panamá",
	"PY": "Paraguay",
	"PE": "Perú",
	"PR": "Puerto Rico",
	"ES": "España",
	"US": "EE.UU.",
	"UY": "Uruguay",
	"VE": "Venezuela",
}

// personNamePattern captures the word run right before "Neural", e.g.
// "Lorenzo" in "Microsoft Server Speech Text to Speech Voice (es-CL, LorenzoNeural)".
var personNamePattern = regexp.MustCompile(`(\w+)` + neuralSuffix)

// FilterAndLabel keeps the descriptors whose language subtag equals
// languagePrefix and labels each one. Input order is preserved.
func FilterAndLabel(catalog []domain.VoiceDescriptor, languagePrefix string) []domain.FilteredVoice {
	out := make([]domain.FilteredVoice, 0, len(catalog))
	for _, voice := range catalog {
		if !matchesLanguage(voice.Locale, languagePrefix) {
			continue
		}
		out = append(out, domain.FilteredVoice{
			VoiceDescriptor: voice,
			DisplayLabel:    Label(voice),
		})
	}
	return out
}

// Label formats a descriptor as "{country}: {name} ({gender})".
func Label(voice domain.VoiceDescriptor) string {
	return CountryName(voice.Locale) + ": " + PersonName(voice) + " (" + GenderLabel(voice.Gender) + ")"
}

// CountryName maps the locale's region subtag to a Spanish country name.
// Unknown regions are returned verbatim; a locale without region is returned whole.
func CountryName(locale string) string {
	parts := strings.Split(locale, "-")
	if len(parts) < 2 {
		return locale
	}
	region := parts[1]
	if name, ok := countryNames[region]; ok {
		return name
	}
	return region
}

// PersonName extracts the speaker name from the descriptor.
func PersonName(voice domain.VoiceDescriptor) string {
	if match := personNamePattern.FindStringSubmatch(voice.Name); match != nil {
		return match[1]
	}

	short := voice.ShortName
	if idx := strings.LastIndex(short, "-"); idx >= 0 {
		short = short[idx+1:]
	}
	return strings.TrimSuffix(short, neuralSuffix)
}

// GenderLabel translates the catalog gender to the label shown in the picker.
func GenderLabel(gender domain.Gender) string {
	if gender == domain.GenderMale {
		return "Masculino"
	}
	return "Femenino"
}

// DefaultVoice returns preferredID when present, otherwise the first voice,
// otherwise an empty id.
func DefaultVoice(filtered []domain.FilteredVoice, preferredID string) string {
	if len(filtered) == 0 {
		return ""
	}
	if preferredID != "" && Contains(filtered, preferredID) {
		return preferredID
	}
	return filtered[0].ID()
}

// Contains reports whether id names one of the filtered voices.
func Contains(filtered []domain.FilteredVoice, id string) bool {
	for _, voice := range filtered {
		if voice.ID() == id {
			return true
		}
	}
	return false
}

func matchesLanguage(locale, prefix string) bool {
	if prefix == "" {
		return false
	}
	return locale == prefix || strings.HasPrefix(locale, prefix+"-")
}
