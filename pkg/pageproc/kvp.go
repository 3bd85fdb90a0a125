package pageproc

import (
	"sort"
	"strings"

	"github.com/prismlabs/prism/pkg/kvpdict"
	"github.com/prismlabs/prism/pkg/types"
)

// RawExtractionItem is one {key, value, confidence, uncertain} object
// from the model's raw kvp extraction response.
type RawExtractionItem struct {
	Key        string `json:"key"`
	Value      string `json:"value"`
	Confidence string `json:"confidence"`
	Uncertain  bool   `json:"uncertain"`
}

// RawExtractionTable is one {headers, rows} table from the model's
// raw kvp extraction response; each row maps a header to a cell
// value.
type RawExtractionTable struct {
	Headers []string          `json:"headers"`
	Rows    []map[string]any `json:"rows"`
}

// RawExtraction is the expected shape of a kvp unit's model response
// before normalization: flat items plus zero or more tables.
type RawExtraction struct {
	Items  []RawExtractionItem   `json:"items"`
	Tables []RawExtractionTable  `json:"tables"`
}

// NormalizedField is one categorized, alias-resolved extraction
// result, matching normalize_extracted_output's per-field shape.
type NormalizedField struct {
	VisibleKey      string `json:"visible_key"`
	StandardizedKey string `json:"standardized_key,omitempty"`
	Value           string `json:"value"`
	Confidence      string `json:"confidence"`
	Uncertain       bool   `json:"uncertain"`
	Required        bool   `json:"required"`
	Found           bool   `json:"found"`
	Sector          string `json:"sector,omitempty"`
	SectorName      string `json:"sector_name,omitempty"`
}

// SectorHit names a sector detected in the extracted fields.
type SectorHit struct {
	SectorID   string `json:"sector_id"`
	SectorName string `json:"sector_name"`
}

// ExtractionStats summarizes extraction completeness, matching
// normalize_extracted_output's extraction_stats block.
type ExtractionStats struct {
	TotalStandardizedKeys  int     `json:"total_standardized_keys"`
	KeysFound              int     `json:"keys_found"`
	LineItemsFound         int     `json:"line_items_found"`
	RequiredKeys           int     `json:"required_keys"`
	RequiredKeysFound      int     `json:"required_keys_found"`
	CompletenessPct        float64 `json:"completeness_pct"`
	RequiredCompletenessPct float64 `json:"required_completeness_pct"`
	SectorsMatched         int     `json:"sectors_matched"`
}

// NormalizedExtraction is the full normalized kvp document a Worker
// uploads as the unit's primary artifact.
type NormalizedExtraction struct {
	DocumentType   string                       `json:"document_type"`
	Fields         map[string][]NormalizedField `json:"fields"`
	LineItems      []map[string]any             `json:"line_items"`
	SectorsDetected []SectorHit                 `json:"sectors_detected"`
	Stats          ExtractionStats              `json:"extraction_stats"`
}

var fieldCategories = []string{"header", "supplier", "customer", "delivery", "totals", "payment", "other"}

// NormalizeExtraction transforms a RawExtraction into categorized,
// alias-resolved fields plus completeness stats, matching
// normalize_extracted_output. aliasMap may be a zero-value AliasMap
// (no dictionary loaded), in which case every key resolves to
// "other"/unrecognized, matching the Python function's
// master_kvps=None branch.
func NormalizeExtraction(raw RawExtraction, aliasMap kvpdict.AliasMap, totalStandardKeys, totalRequired int) NormalizedExtraction {
	out := NormalizedExtraction{
		DocumentType: "unknown",
		Fields:       map[string][]NormalizedField{},
	}
	for _, cat := range fieldCategories {
		out.Fields[cat] = []NormalizedField{}
	}

	sectorsFound := map[string]string{}
	requiredKeys := map[string]bool{}
	for k, info := range aliasMap.StandardToInfo {
		if info.Required {
			requiredKeys[k] = true
		}
	}

	for _, item := range raw.Items {
		stdKey := aliasMap.Canonicalize(item.Key)
		info := aliasMap.StandardToInfo[stdKey]
		category := info.Category
		if category == "" {
			category = "other"
		}

		if info.Sector != "" && item.Value != "" {
			sectorsFound[info.Sector] = info.SectorName
		}

		out.Fields[category] = append(out.Fields[category], NormalizedField{
			VisibleKey:      item.Key,
			StandardizedKey: stdKey,
			Value:           item.Value,
			Confidence:      item.Confidence,
			Uncertain:       item.Uncertain,
			Required:        stdKey != "" && requiredKeys[stdKey],
			Found:           item.Value != "",
			Sector:          info.Sector,
			SectorName:      info.SectorName,
		})
	}

	for _, table := range raw.Tables {
		for _, row := range table.Rows {
			lineItem := map[string]any{}
			for _, header := range table.Headers {
				value, ok := row[header]
				if !ok {
					continue
				}
				stdKey := aliasMap.Canonicalize(header)
				if stdKey == "" {
					stdKey = header
				}
				lineItem[stdKey] = value

				info := aliasMap.StandardToInfo[stdKey]
				if info.Sector != "" && value != "" {
					sectorsFound[info.Sector] = info.SectorName
				}
			}
			if conf, ok := row["confidence"]; ok {
				lineItem["confidence"] = conf
			} else {
				lineItem["confidence"] = "medium"
			}
			out.LineItems = append(out.LineItems, lineItem)
		}
	}

	sectorIDs := make([]string, 0, len(sectorsFound))
	for id := range sectorsFound {
		sectorIDs = append(sectorIDs, id)
	}
	sort.Strings(sectorIDs)
	for _, id := range sectorIDs {
		out.SectorsDetected = append(out.SectorsDetected, SectorHit{SectorID: id, SectorName: sectorsFound[id]})
	}

	totalKeysFound, requiredKeysFound := 0, 0
	for _, fields := range out.Fields {
		for _, f := range fields {
			if f.Found {
				totalKeysFound++
				if f.Required {
					requiredKeysFound++
				}
			}
		}
	}

	if totalRequired == 0 {
		totalRequired = 5
	}

	stats := ExtractionStats{
		TotalStandardizedKeys:   totalStandardKeys,
		KeysFound:               totalKeysFound,
		LineItemsFound:          len(out.LineItems),
		RequiredKeys:            totalRequired,
		RequiredKeysFound:       requiredKeysFound,
		RequiredCompletenessPct: 100.0,
		SectorsMatched:          len(sectorsFound),
	}
	if totalStandardKeys > 0 {
		stats.CompletenessPct = round1(float64(totalKeysFound) / float64(totalStandardKeys) * 100)
	}
	if totalRequired > 0 {
		stats.RequiredCompletenessPct = round1(float64(requiredKeysFound) / float64(totalRequired) * 100)
	}
	out.Stats = stats

	return out
}

func round1(v float64) float64 {
	return float64(int(v*10+0.5)) / 10
}

// BuildSelectedOutput projects a RawExtraction down to only the
// fields the caller selected, matching build_structured_output: a
// flat key->value map seeded with empty strings for every selected
// key, filled in by alias match, higher-confidence matches winning
// ties.
func BuildSelectedOutput(raw RawExtraction, selected []types.SelectedKVP, aliasMap kvpdict.AliasMap) map[string]string {
	output := make(map[string]string, len(selected))
	for _, kvp := range selected {
		if name := kvp.Name(); name != "" {
			output[name] = ""
		}
	}

	for _, item := range raw.Items {
		rawKey := strings.ToLower(strings.TrimSpace(item.Key))
		stdKey := aliasMap.AliasToStandard[rawKey]

		if stdKey != "" {
			if existing, ok := output[stdKey]; ok {
				if existing == "" || item.Confidence == "high" {
					output[stdKey] = item.Value
				}
			}
		}

		normalizedRaw := normalizeKeyText(item.Key)
		for selectedKey := range output {
			if normalizeKeyText(selectedKey) == normalizedRaw {
				if output[selectedKey] == "" || item.Confidence == "high" {
					output[selectedKey] = item.Value
				}
			}
		}
	}
	return output
}

func normalizeKeyText(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "_", " ")
	s = strings.ReplaceAll(s, "-", " ")
	return s
}
