package export

import (
	"regexp"
	"slices"
	"strings"
)

const (
	maxFilenameLength = 100
	fallbackFilename  = "synthetic_dataset"
	timestampLayout   = "20060102_150405"
	extension         = ".csv"
)

var (
	stopWords   = regexp.MustCompile(`\b(generate|create|dataset|data|for|the|a|an|with|and|or)\b`)
	unsafeChars = regexp.MustCompile(`[^\p{L}\p{N}_\-.]`)
	underscores = regexp.MustCompile(`_{2,}`)

	genericNames = []string{"dataset", "data", fallbackFilename}
)

// Filename suggests a file name for a dataset described by description in domain.
// The domain prefixes the name unless it is "general". Generic names get a timestamp suffix.
func (e Exporter) Filename(description, domain string) string {
	base := strings.TrimSpace(description)
	if base == "" {
		base = fallbackFilename
	}
	if domain != "" && strings.ToLower(domain) != "general" {
		base = domain + "_" + base
	}

	name := sanitize(base)
	if r := []rune(name); len(r) > maxFilenameLength {
		name = string(r[:maxFilenameLength])
	}

	if slices.Contains(genericNames, name) {
		name += "_" + e.now().Format(timestampLayout)
	}

	if !strings.HasSuffix(name, extension) {
		name += extension
	}
	return name
}

func sanitize(text string) string {
	name := strings.ToLower(text)
	name = stopWords.ReplaceAllString(name, "")
	name = unsafeChars.ReplaceAllString(name, "_")
	name = underscores.ReplaceAllString(name, "_")
	name = strings.Trim(name, "_")

	if len([]rune(name)) < 3 {
		return fallbackFilename
	}
	return name
}
