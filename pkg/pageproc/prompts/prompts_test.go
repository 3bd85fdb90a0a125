package prompts

import (
	"testing"

	"github.com/prismlabs/prism/pkg/types"
	"github.com/stretchr/testify/assert"
)

func TestHTMLUserPromptIncludesLanguage(t *testing.T) {
	assert.Contains(t, HTMLUserPrompt("German"), "Language: German")
}

func TestKVPUserPromptNarrowsToSelectedFields(t *testing.T) {
	base := KVPUserPrompt(nil)
	narrowed := KVPUserPrompt([]types.SelectedKVP{{KeyName: "invoice_number"}})

	assert.NotContains(t, base, "Extract ONLY values for these exact keys")
	assert.Contains(t, narrowed, `"invoice_number"`)
	assert.Contains(t, narrowed, "Extract ONLY values for these exact keys")
}

func TestAnonUserPromptAlwaysExtractsEverything(t *testing.T) {
	narrowed := AnonUserPrompt([]types.SelectedKVP{{KeyName: "ssn"}})
	assert.Contains(t, narrowed, "extract ALL fields for complete anonymization")
	assert.Contains(t, narrowed, `"ssn"`)
}
