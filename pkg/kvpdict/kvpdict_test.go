package kvpdict_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prismlabs/prism/pkg/kvpdict"
)

const sampleYAML = `
sectors:
  healthcare:
    name: Healthcare
    kvps:
      - key: patient_name
        aliases: [Patient Name, "PT NAME"]
        category: identity
        required: true
      - key: diagnosis_code
        aliases: [ICD Code]
        category: clinical
  logistics:
    kvps:
      - key: tracking_number
        aliases: [Tracking #]
`

func writeSample(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "master_kvps.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o644))
	return path
}

func TestLoadFlattensSectorsIntoKeys(t *testing.T) {
	dict, err := kvpdict.Load(writeSample(t))
	require.NoError(t, err)
	require.Len(t, dict.Keys, 3)

	var names []string
	for _, k := range dict.Keys {
		names = append(names, k.Key)
	}
	assert.ElementsMatch(t, []string{"patient_name", "diagnosis_code", "tracking_number"}, names)
}

func TestLoadDefaultsEmptyCategoryToOther(t *testing.T) {
	dict, err := kvpdict.Load(writeSample(t))
	require.NoError(t, err)
	// tracking_number has no category in the fixture.
	for _, k := range dict.Keys {
		if k.Key == "tracking_number" {
			assert.Equal(t, "other", k.Category)
		}
	}
}

func TestLoadDefaultsSectorNameToSectorIDWhenUnnamed(t *testing.T) {
	dict, err := kvpdict.Load(writeSample(t))
	require.NoError(t, err)
	for _, k := range dict.Keys {
		if k.Key == "tracking_number" {
			assert.Equal(t, "logistics", k.SectorName)
		}
	}
}

func TestLoadReturnsErrorForMissingFile(t *testing.T) {
	_, err := kvpdict.Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.Error(t, err)
}

func TestBuildAliasMapCanonicalizesByAliasCaseInsensitively(t *testing.T) {
	dict, err := kvpdict.Load(writeSample(t))
	require.NoError(t, err)
	am := kvpdict.BuildAliasMap(dict)

	assert.Equal(t, "patient_name", am.Canonicalize("pt name"))
	assert.Equal(t, "patient_name", am.Canonicalize("  Patient Name  "))
	assert.Equal(t, "diagnosis_code", am.Canonicalize("ICD Code"))
	assert.Equal(t, "", am.Canonicalize("unknown field"))
}

func TestBuildAliasMapCanonicalKeyIsItsOwnAlias(t *testing.T) {
	dict, err := kvpdict.Load(writeSample(t))
	require.NoError(t, err)
	am := kvpdict.BuildAliasMap(dict)

	assert.Equal(t, "tracking_number", am.Canonicalize("tracking_number"))
}

func TestBuildAliasMapStandardToInfoCarriesMetadata(t *testing.T) {
	dict, err := kvpdict.Load(writeSample(t))
	require.NoError(t, err)
	am := kvpdict.BuildAliasMap(dict)

	info, ok := am.StandardToInfo["patient_name"]
	require.True(t, ok)
	assert.Equal(t, "identity", info.Category)
	assert.Equal(t, "healthcare", info.Sector)
	assert.True(t, info.Required)
}

func TestRequiredKeysReturnsOnlyRequiredCanonicalKeys(t *testing.T) {
	dict, err := kvpdict.Load(writeSample(t))
	require.NoError(t, err)

	required := dict.RequiredKeys()
	assert.True(t, required["patient_name"])
	assert.False(t, required["diagnosis_code"])
	assert.False(t, required["tracking_number"])
}
