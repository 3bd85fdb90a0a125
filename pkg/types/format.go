package types

import "encoding/json"

// FormatType is the sum-type tag for the four output formats the
// pipeline can produce. Handlers in pkg/pageproc dispatch on this
// value rather than on raw strings.
type FormatType string

const (
	FormatHTML FormatType = "html"
	FormatJSON FormatType = "json"
	FormatKVP  FormatType = "kvp"
	FormatAnon FormatType = "anon"

	// FormatTXT is never requested by a user; it exists only as the
	// derived-format row a Worker inserts alongside a completed HTML
	// unit (spec §4.6).
	FormatTXT FormatType = "txt"
)

// Valid reports whether f is one of the formats a Dispatcher may
// accept directly from a task submission (derived formats are not
// user-requestable).
func (f FormatType) Valid() bool {
	switch f {
	case FormatHTML, FormatJSON, FormatKVP, FormatAnon:
		return true
	default:
		return false
	}
}

// AnonStrategy names one of the four anonymization value-replacement
// strategies (spec §4.5.4).
type AnonStrategy string

const (
	AnonStrategyRedact     AnonStrategy = "redact"
	AnonStrategySynthetic  AnonStrategy = "synthetic"
	AnonStrategyGeneralize AnonStrategy = "generalize"
	AnonStrategyMask       AnonStrategy = "mask"
)

// SelectedKVP names a single field the caller asked to have extracted,
// either by its master-dictionary key name or a free-form custom name.
type SelectedKVP struct {
	KeyName       string `json:"key_name,omitempty"`
	CustomKeyName string `json:"custom_key_name,omitempty"`
}

// Name returns whichever of KeyName/CustomKeyName is set.
func (s SelectedKVP) Name() string {
	if s.KeyName != "" {
		return s.KeyName
	}
	return s.CustomKeyName
}

// KVPOptions carries the per-format parameters for a kvp PageUnit.
type KVPOptions struct {
	SelectedFields []SelectedKVP `json:"selected_fields,omitempty"`
}

// AnonOptions carries the per-format parameters for an anon PageUnit.
type AnonOptions struct {
	Strategy       AnonStrategy  `json:"strategy"`
	GenerateAudit  bool          `json:"generate_audit"`
	SelectedFields []SelectedKVP `json:"selected_fields,omitempty"`
}

// FormatOptions is the tagged union of per-format parameters
// (spec §3's format_options). Exactly one of KVP/Anon is meaningful,
// selected by the format the options are attached to; html and json
// carry no options today.
type FormatOptions struct {
	KVP  *KVPOptions  `json:"kvp,omitempty"`
	Anon *AnonOptions `json:"anon,omitempty"`
}

// Raw marshals the options for the format-specific sub-object the
// wire/ledger boundary stores, or nil if there is nothing to carry.
func (o FormatOptions) Raw(format FormatType) (json.RawMessage, error) {
	switch format {
	case FormatKVP:
		if o.KVP == nil {
			return nil, nil
		}
		return json.Marshal(o.KVP)
	case FormatAnon:
		if o.Anon == nil {
			return nil, nil
		}
		return json.Marshal(o.Anon)
	default:
		return nil, nil
	}
}
