// Package kvpdict loads the master key-value-pair dictionary and
// builds the alias lookup used to normalize extracted field names to
// their canonical form, grounded on
// original_source/worker/kvp_processor.py's load_master_kvps and
// build_alias_map.
package kvpdict

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// KeyDef is one canonical key definition within a sector.
type KeyDef struct {
	Key      string   `yaml:"key"`
	Aliases  []string `yaml:"aliases"`
	Category string   `yaml:"category"`
	Required bool     `yaml:"required"`
}

// Sector groups key definitions under a named business domain (e.g.
// "healthcare", "logistics"), matching master_kvps.json's
// sectors-based format.
type Sector struct {
	Name string   `yaml:"name"`
	KVPs []KeyDef `yaml:"kvps"`
}

// MasterDict is the parsed master KVP dictionary: sectors mapping to
// their key definitions, flattened into a single keys list on load.
type MasterDict struct {
	Sectors map[string]Sector `yaml:"sectors"`
	Keys    []FlatKeyDef
}

// FlatKeyDef is a KeyDef flattened out of its owning sector, matching
// load_master_kvps's flattened_keys list.
type FlatKeyDef struct {
	KeyDef
	Sector     string
	SectorName string
}

// Load reads and flattens a master KVP dictionary from a YAML file.
func Load(path string) (*MasterDict, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading master kvp dictionary %s: %w", path, err)
	}

	var dict MasterDict
	if err := yaml.Unmarshal(data, &dict); err != nil {
		return nil, fmt.Errorf("parsing master kvp dictionary %s: %w", path, err)
	}

	for sectorID, sector := range dict.Sectors {
		sectorName := sector.Name
		if sectorName == "" {
			sectorName = sectorID
		}
		for _, kvp := range sector.KVPs {
			if kvp.Category == "" {
				kvp.Category = "other"
			}
			dict.Keys = append(dict.Keys, FlatKeyDef{
				KeyDef:     kvp,
				Sector:     sectorID,
				SectorName: sectorName,
			})
		}
	}
	return &dict, nil
}

// KeyInfo is the canonical-key lookup value returned by AliasMap,
// matching build_alias_map's standard_to_info.
type KeyInfo struct {
	Category   string
	Sector     string
	SectorName string
	Required   bool
}

// AliasMap is the pair of lookup tables build_alias_map produces:
// AliasToStandard maps any lowercased alias (including the canonical
// key itself) to the canonical key, and StandardToInfo maps a
// canonical key to its category/sector/required metadata.
type AliasMap struct {
	AliasToStandard map[string]string
	StandardToInfo  map[string]KeyInfo
}

// BuildAliasMap constructs both lookup tables from a MasterDict.
func BuildAliasMap(dict *MasterDict) AliasMap {
	am := AliasMap{
		AliasToStandard: make(map[string]string),
		StandardToInfo:  make(map[string]KeyInfo),
	}

	for _, kvp := range dict.Keys {
		info := KeyInfo{Category: kvp.Category, Sector: kvp.Sector, SectorName: kvp.SectorName, Required: kvp.Required}
		am.StandardToInfo[kvp.Key] = info

		aliases := append([]string{kvp.Key}, kvp.Aliases...)
		for _, alias := range aliases {
			am.AliasToStandard[strings.ToLower(strings.TrimSpace(alias))] = kvp.Key
		}
	}
	return am
}

// Canonicalize resolves a raw extracted key name to its canonical
// key, the empty string if no alias matches.
func (am AliasMap) Canonicalize(rawKey string) string {
	return am.AliasToStandard[strings.ToLower(strings.TrimSpace(rawKey))]
}

// RequiredKeys returns the set of canonical keys marked required.
func (d *MasterDict) RequiredKeys() map[string]bool {
	required := make(map[string]bool)
	for _, k := range d.Keys {
		if k.Required {
			required[k.Key] = true
		}
	}
	return required
}
