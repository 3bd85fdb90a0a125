package pageproc

import (
	"math/rand"
	"strings"
	"time"

	"github.com/prismlabs/prism/pkg/anonymize"
	"github.com/prismlabs/prism/pkg/kvpdict"
	"github.com/prismlabs/prism/pkg/types"
)

// AnonField is one extracted key/value pair after anonymization,
// carrying the replacement value and whether the value was replaced.
type AnonField struct {
	Key         string `json:"key"`
	Value       string `json:"value"`
	WasAnon     bool   `json:"was_anonymized"`
}

// AnonDocument is the anonymized JSON primary artifact a Worker
// uploads for an anon unit, matching spec.md §4.5.4's "anonymized
// JSON (primary)".
type AnonDocument struct {
	DocumentType string      `json:"document_type"`
	Fields       []AnonField `json:"fields"`
}

// AnonResult bundles every artifact an anon unit produces: the
// anonymized JSON primary, the tokenized plain-text rendering, the
// token->original mapping, and an optional audit trail.
type AnonResult struct {
	Document AnonDocument
	TokenTXT string
	Mapping  anonymize.Mapping
	Audit    []anonymize.AuditRecord
}

// RunAnonymization applies opts.Strategy to every item in raw, using
// aliasMap (the same KVP master dictionary used for kvp-format units)
// to resolve a token kind for each key when the fixed dictionary
// doesn't already recognize it. It parses the model's raw output the
// same way a kvp unit does (spec.md §6: "same parser as kvp"), so
// callers pass the already-decoded RawExtraction.
func RunAnonymization(raw RawExtraction, opts types.AnonOptions, aliasMap kvpdict.AliasMap, rng *rand.Rand) AnonResult {
	allocator := anonymize.NewTokenAllocator()
	result := AnonResult{Document: AnonDocument{DocumentType: "unknown"}}

	var tokenLines []string
	for _, item := range raw.Items {
		stdKey := aliasMap.Canonicalize(item.Key)
		aliasKind := anonymize.TokenKind("")
		if stdKey != "" {
			aliasKind = aliasKindFromCategory(aliasMap.StandardToInfo[stdKey].Category)
		}
		kind := anonymize.ClassifyKey(item.Key, aliasKind)

		if item.Value == "" {
			result.Document.Fields = append(result.Document.Fields, AnonField{Key: item.Key, Value: ""})
			continue
		}

		replacement := anonymize.Replace(opts.Strategy, item.Key, item.Value, kind, rng)
		result.Document.Fields = append(result.Document.Fields, AnonField{Key: item.Key, Value: replacement, WasAnon: true})

		token := allocator.Next(kind)
		result.Mapping.Entries = append(result.Mapping.Entries, anonymize.MappingEntry{
			Token: token, Original: item.Value, Key: item.Key,
		})
		tokenLines = append(tokenLines, item.Key+": "+token)

		if opts.GenerateAudit {
			result.Audit = append(result.Audit, anonymize.AuditRecord{
				Key:            item.Key,
				OriginalHash16: anonymize.HashOriginal16(item.Value),
				OriginalLength: len([]rune(item.Value)),
				Strategy:       string(opts.Strategy),
				Timestamp:      time.Now().UTC(),
			})
		}
	}

	result.TokenTXT = strings.Join(tokenLines, "\n")
	return result
}

// aliasKindFromCategory maps a KVP category (as assigned by the
// master dictionary) onto a token kind, so fields the alias map
// already recognizes as e.g. "customer" or "payment" get a sharper
// classification than the fixed key-name dictionary alone would give.
func aliasKindFromCategory(category string) anonymize.TokenKind {
	switch category {
	case "payment":
		return anonymize.TokenMoney
	case "totals":
		return anonymize.TokenMoney
	default:
		return ""
	}
}
