package rpt

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// tomlBuildMeta mirrors BuildMeta's shape for decoding the header-meta file
// consumed by the build CLI verb. It stays private: rpt.Build itself never
// depends on TOML, only LoadBuildMeta does.
type tomlBuildMeta struct {
	DomainID  uint32 `toml:"domain_id"`
	SpeciesID uint32 `toml:"species_id"`
	Timestamp string `toml:"timestamp"`
	Sections  []struct {
		ID        uint32 `toml:"id"`
		StartPage int    `toml:"start_page"`
		PageCount int    `toml:"page_count"`
	} `toml:"sections"`
}

// LoadBuildMeta reads a header-meta TOML file (domain_id, species_id,
// timestamp, and a [[sections]] array) into a BuildMeta.
func LoadBuildMeta(path string) (BuildMeta, error) {
	var raw tomlBuildMeta
	if _, err := toml.DecodeFile(path, &raw); err != nil {
		return BuildMeta{}, fmt.Errorf("rpt: decode header-meta %s: %w", path, err)
	}

	meta := BuildMeta{
		DomainID:  raw.DomainID,
		SpeciesID: raw.SpeciesID,
		Timestamp: raw.Timestamp,
	}
	for _, s := range raw.Sections {
		meta.Sections = append(meta.Sections, SectionRange{
			ID:        s.ID,
			StartPage: s.StartPage,
			PageCount: s.PageCount,
		})
	}
	return meta, nil
}
