// Package pageproc dispatches a single page's processing on its
// format_type, calling the Model Adapter and turning its raw output
// into the artifacts a Worker persists, grounded on
// original_source/worker/page_processor.py's per-format dispatch and
// qwen_worker.py's call sequencing (language detection before HTML
// layout extraction).
package pageproc

import (
	"context"
	"fmt"
	"math/rand"
	"strings"

	"github.com/prismlabs/prism/pkg/kvpdict"
	"github.com/prismlabs/prism/pkg/modeladapter"
	"github.com/prismlabs/prism/pkg/pageproc/prompts"
	"github.com/prismlabs/prism/pkg/types"
)

// Per-format decoding parameter defaults, matching spec.md §6's table
// exactly. They are package-level and unexported; Process always uses
// them as they are.
var (
	languageDetectionParams = modeladapter.DecodingParams{Temperature: 0.0, MaxTokens: 20}
	htmlLayoutParams        = modeladapter.DecodingParams{Temperature: 0.1, MaxTokens: 16000, TopP: 0.4, RepetitionPenalty: 1.05}
	jsonExtractParams       = modeladapter.DecodingParams{Temperature: 0.0, MaxTokens: 4000}
	kvpExtractParams        = modeladapter.DecodingParams{Temperature: 0.0, MaxTokens: 20000}
	anonExtractParams       = modeladapter.DecodingParams{Temperature: 0.0, MaxTokens: 20000}
)

// PageInput is everything a Processor needs to run one PageUnit,
// independent of how the caller obtained it (object store download,
// ledger lookup, queue message).
type PageInput struct {
	ImageJPEG  []byte
	Dimensions PageDimensions
	Format     types.FormatType
	Options    types.FormatOptions
	AliasMap   kvpdict.AliasMap

	// TotalStandardKeys/TotalRequired size the kvp completeness stats;
	// zero values fall back to NormalizeExtraction's own defaults.
	TotalStandardKeys int
	TotalRequired     int

	// RandSource seeds the anon synthetic-value generator. Callers
	// processing real traffic should leave it nil (process-global
	// entropy); tests pass a fixed source for determinism.
	RandSource rand.Source
}

// Artifact is one named byte blob a Worker uploads to the object
// store for a PageUnit (or its derived sibling rows).
type Artifact struct {
	Key         string
	ContentType string
	Body        []byte
	// Sensitive marks an artifact that must be stored under the
	// restricted sensitive/ prefix (objectstore.SensitiveResultKey),
	// rather than the ordinary result prefix.
	Sensitive bool
}

// PageResult is everything Process produced for one unit: the primary
// artifact, any side artifacts, and — for html units only — the
// derived plain-text body a Worker upserts as a sibling txt PageUnit.
type PageResult struct {
	DocumentType     string
	DetectedLanguage string
	Primary          Artifact
	Side             []Artifact
	DerivedTXT       []byte
	Diagnostic       bool
}

// Processor runs each format's extraction pipeline against a Model
// Adapter. It holds no per-call state and is safe to reuse across
// units within a worker process (the Adapter itself is the
// single-threaded resource, per spec.md §4.4).
type Processor struct {
	adapter modeladapter.Adapter
}

// New returns a Processor backed by adapter.
func New(adapter modeladapter.Adapter) *Processor {
	return &Processor{adapter: adapter}
}

// Process dispatches on in.Format and returns the resulting artifacts.
// It never returns an error for a malformed model response — parse
// failures are represented as soft-failed artifacts per spec.md §7
// error kind 3 — only for infrastructure failures (the Adapter call
// itself erroring, e.g. on timeout or OOM, spec.md §7 error kind 2).
func (p *Processor) Process(ctx context.Context, in PageInput) (*PageResult, error) {
	switch in.Format {
	case types.FormatHTML:
		return p.processHTML(ctx, in)
	case types.FormatJSON:
		return p.processJSON(ctx, in)
	case types.FormatKVP:
		return p.processKVP(ctx, in)
	case types.FormatAnon:
		return p.processAnon(ctx, in)
	default:
		return nil, fmt.Errorf("pageproc: unsupported format %q", in.Format)
	}
}

func (p *Processor) processHTML(ctx context.Context, in PageInput) (*PageResult, error) {
	langRaw, err := p.adapter.Generate(ctx, prompts.HTMLSystemPrompt(), prompts.LanguageDetectionPrompt(), in.ImageJPEG, languageDetectionParams)
	if err != nil {
		return nil, fmt.Errorf("detecting language: %w", err)
	}
	language := firstNonEmptyLine(langRaw)
	if language == "" {
		language = "English"
	}

	rawHTML, err := p.adapter.Generate(ctx, prompts.HTMLSystemPrompt(), prompts.HTMLUserPrompt(language), in.ImageJPEG, htmlLayoutParams)
	if err != nil {
		return nil, fmt.Errorf("extracting html layout: %w", err)
	}

	reconstructed := ReconstructHTML(rawHTML, in.Dimensions, language)
	plainText := ExtractPlainText(rawHTML)

	return &PageResult{
		DetectedLanguage: language,
		Primary:          Artifact{ContentType: "text/html", Body: []byte(reconstructed)},
		DerivedTXT:       []byte(plainText),
	}, nil
}

func (p *Processor) processJSON(ctx context.Context, in PageInput) (*PageResult, error) {
	raw, err := p.adapter.Generate(ctx, prompts.JSONSystemPrompt(), prompts.JSONUserPrompt(), in.ImageJPEG, jsonExtractParams)
	if err != nil {
		return nil, fmt.Errorf("extracting key-value json: %w", err)
	}

	doc, diag := ParseKeyValueDocument(raw, 0)
	if diag != nil {
		body, _ := marshalOrEmpty(diag)
		return &PageResult{Primary: Artifact{ContentType: "application/json", Body: body}, Diagnostic: true}, nil
	}
	body, marshalErr := marshalOrEmpty(doc)
	if marshalErr != nil {
		return nil, fmt.Errorf("marshaling extracted document: %w", marshalErr)
	}
	return &PageResult{DocumentType: doc.DocumentType, Primary: Artifact{ContentType: "application/json", Body: body}}, nil
}

func (p *Processor) processKVP(ctx context.Context, in PageInput) (*PageResult, error) {
	var selected []types.SelectedKVP
	if in.Options.KVP != nil {
		selected = in.Options.KVP.SelectedFields
	}

	raw, err := p.adapter.Generate(ctx, prompts.KVPSystemPrompt(), prompts.KVPUserPrompt(selected), in.ImageJPEG, kvpExtractParams)
	if err != nil {
		return nil, fmt.Errorf("extracting kvp data: %w", err)
	}

	extraction, diag := parseRawExtraction(raw)
	if diag != nil {
		body, _ := marshalOrEmpty(diag)
		return &PageResult{Primary: Artifact{ContentType: "text/html", Body: body}, Diagnostic: true}, nil
	}

	normalized := NormalizeExtraction(*extraction, in.AliasMap, in.TotalStandardKeys, in.TotalRequired)
	normalizedJSON, err := marshalOrEmpty(normalized)
	if err != nil {
		return nil, fmt.Errorf("marshaling normalized kvp extraction: %w", err)
	}

	result := &PageResult{
		DocumentType: normalized.DocumentType,
		Primary:      Artifact{ContentType: "text/html", Body: []byte(renderKVPHTML(normalized))},
		Side:         []Artifact{{ContentType: "application/json", Body: normalizedJSON}},
	}

	if len(selected) > 0 {
		output := BuildSelectedOutput(*extraction, selected, in.AliasMap)
		selectedJSON, err := marshalOrEmpty(output)
		if err != nil {
			return nil, fmt.Errorf("marshaling selected kvp output: %w", err)
		}
		result.Side = append(result.Side, Artifact{ContentType: "application/json", Body: selectedJSON})
	}

	return result, nil
}

func (p *Processor) processAnon(ctx context.Context, in PageInput) (*PageResult, error) {
	if in.Options.Anon == nil {
		return nil, fmt.Errorf("pageproc: anon format requires anon options")
	}
	opts := *in.Options.Anon

	var selected []types.SelectedKVP
	if opts.SelectedFields != nil {
		selected = opts.SelectedFields
	}

	raw, err := p.adapter.Generate(ctx, prompts.AnonSystemPrompt(), prompts.AnonUserPrompt(selected), in.ImageJPEG, anonExtractParams)
	if err != nil {
		return nil, fmt.Errorf("extracting data for anonymization: %w", err)
	}

	extraction, diag := parseRawExtraction(raw)
	if diag != nil {
		body, _ := marshalOrEmpty(diag)
		return &PageResult{Primary: Artifact{ContentType: "application/json", Body: body}, Diagnostic: true}, nil
	}

	rng := rand.New(in.RandSource)
	if in.RandSource == nil {
		rng = rand.New(rand.NewSource(processEntropySeed()))
	}

	anonResult := RunAnonymization(*extraction, opts, in.AliasMap, rng)

	primaryJSON, err := marshalOrEmpty(anonResult.Document)
	if err != nil {
		return nil, fmt.Errorf("marshaling anonymized document: %w", err)
	}
	mappingJSON, err := marshalOrEmpty(anonResult.Mapping)
	if err != nil {
		return nil, fmt.Errorf("marshaling anonymization mapping: %w", err)
	}

	result := &PageResult{
		DocumentType: anonResult.Document.DocumentType,
		Primary:      Artifact{ContentType: "application/json", Body: primaryJSON},
		Side: []Artifact{
			{ContentType: "text/plain", Body: []byte(anonResult.TokenTXT)},
			{ContentType: "application/json", Body: mappingJSON, Sensitive: true},
		},
	}

	if opts.GenerateAudit && len(anonResult.Audit) > 0 {
		auditJSON, err := marshalOrEmpty(anonResult.Audit)
		if err != nil {
			return nil, fmt.Errorf("marshaling anonymization audit: %w", err)
		}
		result.Side = append(result.Side, Artifact{ContentType: "application/json", Body: auditJSON, Sensitive: true})
	}

	return result, nil
}

func firstNonEmptyLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}
