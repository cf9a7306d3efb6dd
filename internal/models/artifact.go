package models

import (
	"fmt"
	"regexp"
	"strconv"
)

// DefaultSuffix is appended to generated artifact names
const DefaultSuffix = ".png"

var artifactPattern = regexp.MustCompile(`^([0-9a-f]{32,})_(\d+)_(.*)$`)

// Artifact describes a cached rendering decoded from its filename
type Artifact struct {
	Identity string `json:"identity"`
	Baseline int    `json:"baseline"`
	Suffix   string `json:"suffix"`
}

// Name returns the filename of the artifact
func (a Artifact) Name() string {
	return ArtifactName(a.Identity, a.Baseline, a.Suffix)
}

// ArtifactName generates the cache filename
// Format: {identity}_{baseline}_{suffix}
func ArtifactName(identity string, baseline int, suffix string) string {
	return fmt.Sprintf("%s_%d_%s", identity, baseline, suffix)
}

// ParseArtifactName decodes a filename produced by ArtifactName
func ParseArtifactName(name string) (Artifact, bool) {
	m := artifactPattern.FindStringSubmatch(name)
	if m == nil {
		return Artifact{}, false
	}
	baseline, err := strconv.Atoi(m[2])
	if err != nil {
		return Artifact{}, false
	}
	return Artifact{
		Identity: m[1],
		Baseline: baseline,
		Suffix:   m[3],
	}, true
}

// MatchBaseline returns the baseline encoded in name if it is an artifact
// of the given identity
func MatchBaseline(identity, name string) (int, bool) {
	a, ok := ParseArtifactName(name)
	if !ok || a.Identity != identity {
		return 0, false
	}
	return a.Baseline, true
}
