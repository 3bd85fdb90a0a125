package ledger

import (
	"encoding/json"

	"github.com/prismlabs/prism/pkg/types"
)

func formatStrings(formats []types.FormatType) []string {
	out := make([]string, len(formats))
	for i, f := range formats {
		out[i] = string(f)
	}
	return out
}

func toFormatTypes(formats []string) []types.FormatType {
	out := make([]types.FormatType, len(formats))
	for i, f := range formats {
		out[i] = types.FormatType(f)
	}
	return out
}

func marshalFormatOptions(opts types.FormatOptions) ([]byte, error) {
	return json.Marshal(opts)
}

func unmarshalFormatOptions(raw []byte) (types.FormatOptions, error) {
	var opts types.FormatOptions
	if len(raw) == 0 {
		return opts, nil
	}
	if err := json.Unmarshal(raw, &opts); err != nil {
		return types.FormatOptions{}, err
	}
	return opts, nil
}
