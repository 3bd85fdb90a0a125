package pageproc

import (
	"context"
	"math/rand"
	"testing"

	"github.com/prismlabs/prism/pkg/kvpdict"
	"github.com/prismlabs/prism/pkg/modeladapter/modeladaptertest"
	"github.com/prismlabs/prism/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessHTMLProducesPrimaryAndDerivedTXT(t *testing.T) {
	adapter := modeladaptertest.New(
		"German",
		`<span class="title" data-bbox="100 50 400 90" data-font="sans">Rechnung</span>`,
	)
	proc := New(adapter)

	result, err := proc.Process(context.Background(), PageInput{
		ImageJPEG:  []byte("fake-jpeg"),
		Dimensions: PageDimensions{WidthPx: 2550, HeightPx: 3300},
		Format:     types.FormatHTML,
	})
	require.NoError(t, err)

	assert.Equal(t, "German", result.DetectedLanguage)
	assert.Contains(t, string(result.Primary.Body), "Rechnung")
	assert.Contains(t, string(result.DerivedTXT), "Rechnung")
	assert.False(t, result.Diagnostic)

	require.Len(t, adapter.Calls, 2)
	assert.Equal(t, 20, adapter.Calls[0].Params.MaxTokens)
	assert.Equal(t, 16000, adapter.Calls[1].Params.MaxTokens)
}

func TestProcessJSONSoftFailsOnUnparsableOutput(t *testing.T) {
	adapter := modeladaptertest.New("not even close to json")
	proc := New(adapter)

	result, err := proc.Process(context.Background(), PageInput{Format: types.FormatJSON})
	require.NoError(t, err)
	assert.True(t, result.Diagnostic)
	assert.Contains(t, string(result.Primary.Body), "no valid json")
}

func TestProcessJSONParsesExtractedPairs(t *testing.T) {
	adapter := modeladaptertest.New(`{"document_type": "invoice", "extracted_pairs": [{"key": "Total", "value": "100"}]}`)
	proc := New(adapter)

	result, err := proc.Process(context.Background(), PageInput{Format: types.FormatJSON})
	require.NoError(t, err)
	assert.False(t, result.Diagnostic)
	assert.Equal(t, "invoice", result.DocumentType)
	assert.Contains(t, string(result.Primary.Body), "Total")
}

func TestProcessKVPNormalizesAndBuildsSelectedOutput(t *testing.T) {
	dict := &kvpdict.MasterDict{
		Sectors: map[string]kvpdict.Sector{
			"finance": {Name: "Finance", KVPs: []kvpdict.KeyDef{
				{Key: "invoice_number", Aliases: []string{"invoice no", "rechnungsnummer"}, Category: "header", Required: true},
			}},
		},
	}
	dict.Keys = append(dict.Keys, kvpdict.FlatKeyDef{
		KeyDef:     kvpdict.KeyDef{Key: "invoice_number", Aliases: []string{"invoice no"}, Category: "header", Required: true},
		Sector:     "finance", SectorName: "Finance",
	})
	aliasMap := kvpdict.BuildAliasMap(dict)

	adapter := modeladaptertest.New(`{"items": [{"key": "Invoice No", "value": "2025-1", "confidence": "high"}], "tables": []}`)
	proc := New(adapter)

	result, err := proc.Process(context.Background(), PageInput{
		Format:   types.FormatKVP,
		AliasMap: aliasMap,
		Options: types.FormatOptions{KVP: &types.KVPOptions{
			SelectedFields: []types.SelectedKVP{{KeyName: "invoice_number"}},
		}},
	})
	require.NoError(t, err)
	require.Len(t, result.Side, 2)
	assert.Contains(t, string(result.Side[0].Body), "header")
	assert.Contains(t, string(result.Side[1].Body), "2025-1")
}

func TestProcessAnonProducesMappingAndAudit(t *testing.T) {
	adapter := modeladaptertest.New(`{"items": [{"key": "name", "value": "John Smith", "confidence": "high"}], "tables": []}`)
	proc := New(adapter)

	result, err := proc.Process(context.Background(), PageInput{
		Format:     types.FormatAnon,
		RandSource: rand.NewSource(1),
		Options: types.FormatOptions{Anon: &types.AnonOptions{
			Strategy:      types.AnonStrategySynthetic,
			GenerateAudit: true,
		}},
	})
	require.NoError(t, err)
	require.Len(t, result.Side, 3)
	assert.NotContains(t, string(result.Primary.Body), "John Smith")
	assert.Contains(t, string(result.Side[1].Body), "John Smith")
	assert.True(t, result.Side[1].Sensitive)
	assert.True(t, result.Side[2].Sensitive)
	assert.NotContains(t, string(result.Side[2].Body), "John Smith")
}

func TestProcessAnonRequiresOptions(t *testing.T) {
	adapter := modeladaptertest.New("")
	proc := New(adapter)

	_, err := proc.Process(context.Background(), PageInput{Format: types.FormatAnon})
	assert.Error(t, err)
}

func TestProcessUnsupportedFormat(t *testing.T) {
	adapter := modeladaptertest.New("")
	proc := New(adapter)

	_, err := proc.Process(context.Background(), PageInput{Format: types.FormatTXT})
	assert.Error(t, err)
}
