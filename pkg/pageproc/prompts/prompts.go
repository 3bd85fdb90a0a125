// Package prompts holds the fixed system/user prompt templates sent
// to the Model Adapter for each format type, ported function-for-
// function from original_source/worker/prompts.py,
// kvp_processor.py's build_kvp_extraction_prompt, and
// anon_processor.py's build_anon_extraction_prompt.
package prompts

import (
	"fmt"
	"strings"

	"github.com/prismlabs/prism/pkg/types"
)

// HTMLSystemPrompt is the system prompt for html-format units.
func HTMLSystemPrompt() string {
	return "You are a precise document layout extractor. Output ONLY valid HTML with tight data-bbox attributes."
}

// HTMLUserPrompt builds the bbox+font-classification extraction
// prompt for the given detected document language.
func HTMLUserPrompt(language string) string {
	return fmt.Sprintf(htmlUserTemplate, language)
}

const htmlUserTemplate = `You are a visual-layout expert. Parse this document and extract text with TIGHT BOUNDING BOXES + FONT CLASSIFICATION at the LINE LEVEL.

Language: %s

CRITICAL RULES (1st-Principle + Font-Aware):
1. Every text element MUST be at the individual line level-do NOT merge multiple lines into one element, even if they form a paragraph. Provide a separate span for each visual horizontal line of text.
   - For multi-line paragraphs, output each line as its own <span> with a unique tight bbox.
   - If a line wraps or has natural breaks, treat as separate lines based on visual baselines.

2. Every element MUST have:
   - data-bbox="x1 y1 x2 y2" (normalized 0-1000 scale, 0,0=top-left)-tightly around the line's ink only, NO extra vertical padding for line spacing.
   - data-font="type" (font classification - see below)

3. Format: <span class="type" data-bbox="x1 y1 x2 y2" data-font="mono">exact text of the line</span>
   - Do NOT insert <br> or placeholders; each line is independent.

4. TIGHT BOUNDING BOXES (Critical for Lines):
   - Top (y1): Top of tallest ascender in the line.
   - Bottom (y2): Bottom of lowest descender in the line.
   - Left (x1): Left edge of leftmost character.
   - Right (x2): Right edge of rightmost character.
   - Box per line only-NO block boxes for paragraphs.
   - Include bounding boxes for even the smallest or isolated text elements, such as single digits or characters in table cells.

5. FONT CLASSIFICATION (Critical for character width):
   Classify the font style with ONE of these tags for data-font:
   - "mono"  -> fixed-width, every glyph same width
   - "sans"  -> proportional sans-serif
   - "serif" -> proportional serif
   - "hand"  -> hand-written or cursive appearance
   - "other" -> anything else / uncertain

6. TEXT PRESERVATION:
   - Extract VERBATIM text per line-NO merging, NO rewrapping.
   - Preserve ALL hyphens, numbers, punctuation as seen.
   - Accurately recognize digits vs letters, especially in numerical values, tables, and mono fonts.
   - Do not skip or ignore small, isolated, or single-character text.
   - Do NOT "fix" or reformat anything.

7. Special elements:
   - Checkboxes: [x] if checked, [ ] if unchecked
   - Tables: Each cell line separately (not entire table)
   - Prioritize numerical accuracy for cell values.

Classes (for semantic context only):
- title: Large headings
- header: Section headers
- label: Form labels
- value: Form values
- text: Regular text
- small: Fine print

Extract EVERY line of text with TIGHT line-level bounding boxes AND font classification (no padding, no line spacing). Output ONLY the HTML spans-NO extra text or wrappers.`

// JSONSystemPrompt is the system prompt for json-format units.
func JSONSystemPrompt() string {
	return "You are an expert forensic document reader. Extract key-value pairs with perfect fidelity."
}

// JSONUserPrompt is the user prompt for the flat extracted_pairs
// extraction shape.
func JSONUserPrompt() string {
	return jsonUserPrompt
}

const jsonUserPrompt = `You are an expert forensic document reader working for a global archiving & compliance team.
You process millions of scanned invoices, receipts, delivery notes, contracts, ID cards, bank statements and forms in any language, handwriting, and layout.

Your only job right now:
1. Instantly recognise what kind of document this is.
2. Extract every single visible key-value pair with 100% fidelity.

You are multilingual by birth and never translate or rephrase anything.

Output exactly this JSON and nothing else - no markdown, no explanations, no extra text:

{
  "document_type": "invoice",
  "extracted_pairs": [
    {"key": "Invoice Number:", "value": "2025-98765"},
    {"key": "Date:", "value": "21.11.2025"}
  ]
}

Rules you never break:
- document_type = one short lowercase English word (invoice / receipt / delivery_note / bank_statement / id_card / contract / form / certificate / letter / other)
- If unsure -> "form"
- key = copied character-perfect from the page (language, case, punctuation, colon yes/no)
- value = everything that visually belongs to that key; if empty -> null
- Never invent keys that are not visible
- One array entry per visual key on the page
- Raw JSON only`

// LanguageDetectionPrompt asks the model to name the document's
// language in one word, used before the html prompt is built.
func LanguageDetectionPrompt() string {
	return `What language is this document written in?

Reply with ONLY the language name (e.g., "German", "English", "French", etc.). No explanation.`
}

// KVPSystemPrompt is the system prompt for kvp-format units.
func KVPSystemPrompt() string {
	return "You are a meticulous key-value pair extraction engine. Output only valid JSON."
}

// KVPUserPrompt builds the extraction prompt, narrowing to selected
// when the caller passed a non-empty field whitelist, matching
// build_kvp_extraction_prompt.
func KVPUserPrompt(selected []types.SelectedKVP) string {
	return buildExtractionPrompt(kvpProcessPrompt, selected, false)
}

// AnonUserPrompt builds the anonymization extraction prompt. Unlike
// KVPUserPrompt, a non-empty selection narrows emphasis only -  the
// model is always told to extract everything, matching
// build_anon_extraction_prompt's "extract ALL fields for complete
// anonymization" behavior.
func AnonUserPrompt(selected []types.SelectedKVP) string {
	return buildExtractionPrompt(anonExtractPrompt, selected, true)
}

// AnonSystemPrompt is the system prompt for anon-format units.
func AnonSystemPrompt() string {
	return "You are a meticulous document transcription engine extracting every visible field for anonymization. Output only valid JSON."
}

func buildExtractionPrompt(base string, selected []types.SelectedKVP, extractAllRegardless bool) string {
	var keyNames []string
	for _, s := range selected {
		if name := s.Name(); name != "" {
			keyNames = append(keyNames, name)
		}
	}
	if len(keyNames) == 0 {
		return base
	}

	quoted := make([]string, len(keyNames))
	for i, k := range keyNames {
		quoted[i] = `"` + k + `"`
	}
	list := strings.Join(quoted, ", ")

	if extractAllRegardless {
		return base + "\n\nNOTE: User is particularly interested in these fields: " + list +
			"\nHowever, extract ALL fields for complete anonymization."
	}
	return base + "\n\nExtract ONLY values for these exact keys: " + list + ". Ignore all other data."
}

const kvpProcessPrompt = `You are extracting key-value pairs from this document image using thinking mode: think step-by-step before outputting. Follow this process exactly. Output only valid JSON.

PROCESS STEPS:
1. Visually analyze the document layout top-to-bottom, left-to-right. Identify all visible labels, headers, and associated values.
2. Transcribe exactly as visible: no corrections, assumptions, or inventions. If no value, use null.
3. For ambiguous text, mark "uncertain": true only if genuinely unclear. Confidence: "high" (clear print), "medium" (degraded), "low" (faded/handwritten).
4. If tables are present, use headers as keys, extract rows as objects with per-row confidence.
5. Extract all visible key-value pairs without filtering unless told otherwise below.

OUTPUT JSON SCHEMA:
{
  "items": [{"key": "exact_key", "value": "exact_value", "confidence": "high|medium|low", "uncertain": true|false}],
  "tables": [{"headers": ["header1", "..."], "rows": [{"header1": "value", "confidence": "high|medium|low"}]}]
}

Think deeply about the entire process, then output only the JSON object. No extra text.`

const anonExtractPrompt = `Extract ALL key-value pairs from this document. Output only valid JSON.

EXTRACTION RULES:

1. NON-TABLE CONTENT
   - Key is typically LEFT of or ABOVE its value
   - Extract the key exactly as written, then its associated value

2. TABLE CONTENT
   - Column headers become KEYS
   - Each cell value pairs with its column header
   - Extract row by row, preserving row grouping

3. FIDELITY
   - Transcribe EXACTLY as visible (no corrections, no assumptions)
   - Preserve original language, formatting, symbols
   - If a field label exists but has NO value, use null

4. CONFIDENCE
   - "high": clear, sharp, machine-printed
   - "medium": readable but degraded/small
   - "low": handwritten, faded, partially obscured

OUTPUT FORMAT (valid JSON only):
{
  "items": [{"key": "Invoice No", "value": "12345", "confidence": "high"}],
  "tables": [{"headers": ["Item", "Qty", "Price"], "rows": [{"Item": "Widget A", "Qty": "10", "Price": "5.00", "confidence": "high"}]}]
}

IMPORTANT: Extract EVERYTHING visible. This data will be anonymized for privacy compliance.`
