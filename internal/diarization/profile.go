package diarization

import (
	"encoding/json"
	"io"

	"github.com/vitalscribe/core/internal/coreerr"
)

// ProfileSchemaVersion is bumped whenever the on-disk profile format changes incompatibly.
const ProfileSchemaVersion = 1

type profileFile struct {
	SchemaVersion int              `json:"schema_version"`
	Profiles      []profileRecord  `json:"profiles"`
}

type profileRecord struct {
	Name      string    `json:"name"`
	Embedding []float32 `json:"embedding"`
}

// LoadProfiles reads a schema-versioned enrolled-speaker profile file. Profiles are read-only
// from this package's perspective; enrollment is produced by an offline tool, not the core.
func LoadProfiles(r io.Reader) ([]EnrolledProfile, error) {
	var f profileFile
	if err := json.NewDecoder(r).Decode(&f); err != nil {
		return nil, coreerr.Wrap(err, coreerr.InvalidInput, "diarization: decode profile file")
	}
	if f.SchemaVersion != ProfileSchemaVersion {
		return nil, coreerr.Newf(coreerr.InvalidInput, "diarization: profile schema version %d, want %d", f.SchemaVersion, ProfileSchemaVersion)
	}

	out := make([]EnrolledProfile, 0, len(f.Profiles))
	for _, p := range f.Profiles {
		if len(p.Embedding) == 0 {
			return nil, coreerr.Newf(coreerr.InvalidInput, "diarization: profile %q has empty embedding", p.Name)
		}
		out = append(out, EnrolledProfile{Name: p.Name, Embedding: p.Embedding})
	}
	return out, nil
}
