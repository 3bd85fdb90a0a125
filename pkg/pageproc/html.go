package pageproc

import (
	"fmt"
	"html"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// PageDimensions is the pixel size of a page image at the 300 DPI the
// VLM was shown, matching html_reconstructor.py's `dimensions` dict.
type PageDimensions struct {
	WidthPx  int
	HeightPx int
}

// dpiScale converts the 300 DPI source raster to the 96 DPI the
// reconstructed page is displayed at.
const dpiScale = 96.0 / 300.0

// taggedElement is one parsed <span data-bbox=... data-font=...>text</span>
// region from the model's raw HTML output.
type taggedElement struct {
	bboxAttr string
	fontAttr string
	class    string
	text     string
}

var taggedElementPattern = regexp.MustCompile(
	`(?is)<(?:div|span|p)\b([^>]*)>(.*?)</(?:div|span|p)>`,
)
var attrPattern = regexp.MustCompile(`([a-zA-Z-]+)\s*=\s*"([^"]*)"`)
var tagStripPattern = regexp.MustCompile(`(?is)<[^>]+>`)
var brPattern = regexp.MustCompile(`(?i)<br\s*/?>`)

func parseTaggedElements(raw string) []taggedElement {
	matches := taggedElementPattern.FindAllStringSubmatch(raw, -1)
	elements := make([]taggedElement, 0, len(matches))
	for _, m := range matches {
		attrs := parseAttrs(m[1])
		bbox, ok := attrs["data-bbox"]
		if !ok {
			continue
		}
		inner := brPattern.ReplaceAllString(m[2], "___LINEBREAK___")
		text := tagStripPattern.ReplaceAllString(inner, "")
		if strings.TrimSpace(strings.ReplaceAll(text, "___LINEBREAK___", "")) == "" {
			continue
		}
		class := "text"
		if c, ok := attrs["class"]; ok && c != "" {
			class = strings.Fields(c)[0]
		}
		elements = append(elements, taggedElement{
			bboxAttr: bbox,
			fontAttr: attrs["data-font"],
			class:    class,
			text:     strings.ReplaceAll(text, "___LINEBREAK___", "<br>"),
		})
	}
	return elements
}

func parseAttrs(s string) map[string]string {
	out := make(map[string]string)
	for _, m := range attrPattern.FindAllStringSubmatch(s, -1) {
		out[strings.ToLower(m[1])] = m[2]
	}
	return out
}

// positionedElement is a taggedElement resolved to pixel coordinates
// and a concrete font size/family, ready for final HTML emission.
type positionedElement struct {
	left, top, width, height int
	text                     string
	class                    string
	fontSizePx               int
	fontFamily               string
	isVertical               bool
}

var fontFamilyByType = map[string]string{
	"mono":  "'VT323', monospace",
	"sans":  "system-ui, sans-serif",
	"serif": "'Times New Roman', serif",
	"hand":  "'Courier New', monospace",
	"other": "system-ui, sans-serif",
}

func resolvePositions(elements []taggedElement, dims PageDimensions) []positionedElement {
	out := make([]positionedElement, 0, len(elements))
	for _, el := range elements {
		parts := strings.Fields(el.bboxAttr)
		if len(parts) != 4 {
			continue
		}
		coords := make([]float64, 4)
		valid := true
		for i, p := range parts {
			v, err := strconv.ParseFloat(p, 64)
			if err != nil {
				valid = false
				break
			}
			coords[i] = v
		}
		if !valid {
			continue
		}

		x1 := int(coords[0] * float64(dims.WidthPx) / 1000)
		y1 := int(coords[1] * float64(dims.HeightPx) / 1000)
		x2 := int(coords[2] * float64(dims.WidthPx) / 1000)
		y2 := int(coords[3] * float64(dims.HeightPx) / 1000)
		widthPx := x2 - x1
		heightPx := y2 - y1

		textLen := len([]rune(strings.ReplaceAll(strings.ReplaceAll(el.text, "___LINEBREAK___", ""), "<br>", "")))
		if textLen < 1 {
			continue
		}
		charWidth := float64(widthPx) / float64(textLen)

		// Character-width-based font sizing, clamped to [8, 200]px.
		// Truncates rather than rounds, matching the original
		// implementation's int() cast.
		fontSize := int(charWidth * 1.9)
		if fontSize < 8 {
			fontSize = 8
		}
		if fontSize > 200 {
			fontSize = 200
		}

		fontType := el.fontAttr
		if fontType == "" {
			fontType = "sans"
		}
		if fontType == "hand" {
			fontSize = int(float64(fontSize) * 0.7)
		}

		isVertical := false
		if widthPx > 0 && heightPx > 0 && float64(heightPx)/float64(widthPx) > 3.0 {
			isVertical = true
		}

		fontFamily, ok := fontFamilyByType[fontType]
		if !ok {
			fontFamily = fontFamilyByType["sans"]
		}

		out = append(out, positionedElement{
			left: x1, top: y1, width: widthPx, height: heightPx,
			text: el.text, class: el.class,
			fontSizePx: fontSize, fontFamily: fontFamily, isVertical: isVertical,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].top != out[j].top {
			return out[i].top < out[j].top
		}
		return out[i].left < out[j].left
	})
	return out
}

var languageToISOCode = map[string]string{
	"english": "en", "german": "de", "french": "fr", "spanish": "es",
	"italian": "it", "czech": "cs", "polish": "pl", "russian": "ru",
	"chinese": "zh", "japanese": "ja", "korean": "ko",
}

// ReconstructHTML converts a model's raw bbox-tagged HTML into a
// pixel-positioned standalone document, grounded on
// html_reconstructor.py's reconstruct_html_with_positioning.
func ReconstructHTML(rawModelHTML string, dims PageDimensions, language string) string {
	elements := resolvePositions(parseTaggedElements(rawModelHTML), dims)
	if len(elements) == 0 {
		return emptyPageHTML(dims, language)
	}

	var spans strings.Builder
	for _, el := range elements {
		escaped := html.EscapeString(el.text)
		escaped = strings.ReplaceAll(escaped, "___LINEBREAK___", "<br>")

		verticalClass, verticalStyle := "", ""
		if el.isVertical {
			verticalClass = " vertical-text"
			verticalStyle = " writing-mode: vertical-rl; text-orientation: mixed; transform: rotate(180deg);"
		}

		fmt.Fprintf(&spans,
			"<span class=\"word %s%s\" style=\"position:absolute; left:%dpx; top:%dpx; "+
				"font-size:%dpx; line-height:1.2; font-family:%s; white-space:nowrap;%s\">%s</span>\n",
			el.class, verticalClass, el.left, el.top, el.fontSizePx, el.fontFamily, verticalStyle, escaped,
		)
	}

	langCode := languageToISOCode[strings.ToLower(language)]
	if langCode == "" {
		langCode = "en"
	}

	displayW := int(float64(dims.WidthPx) * dpiScale)
	displayH := int(float64(dims.HeightPx) * dpiScale)

	return fmt.Sprintf(htmlPageTemplate,
		time.Now().UTC().Format(time.RFC3339), dims.WidthPx, dims.HeightPx, displayW, displayH,
		langCode, displayW, displayH, dims.WidthPx, dims.HeightPx, dpiScale, spans.String())
}

func emptyPageHTML(dims PageDimensions, language string) string {
	displayW := int(float64(dims.WidthPx) * dpiScale)
	displayH := int(float64(dims.HeightPx) * dpiScale)
	return fmt.Sprintf(emptyPageTemplate, language, displayW, displayH, dims.WidthPx, dims.HeightPx, dpiScale)
}

const htmlPageTemplate = `<!DOCTYPE html>
<html lang="%[6]s">
<head>
<!--
Generated: %[1]sZ
Source: %[2]d×%[3]dpx (300 DPI)
Display: %[4]d×%[5]dpx (96 DPI, scaled)
Font Sizing: Width-based (bbox_width / char_count x 1.9)
-->
<meta charset="UTF-8">
<title>Document</title>
<style>
    * { margin:0; padding:0; box-sizing:border-box; }
    body { background:#f9f9f9; display:flex; justify-content:center; align-items:flex-start; padding:20px; }
    .page-wrapper { width:%[7]dpx; height:%[8]dpx; }
    .page-container {
        position:relative; width:%[9]dpx; height:%[10]dpx; background:white;
        margin:20px auto; box-shadow:0 0 10px rgba(0,0,0,0.1); overflow:hidden;
        transform: scale(%[11].4f); transform-origin: top left;
    }
    .word { position:absolute; white-space:nowrap; line-height:1.2 !important; margin:0; padding:0; overflow:visible; }
    .vertical-text { writing-mode: vertical-rl; text-orientation: mixed; }
</style>
</head>
<body>
<div class="page-wrapper">
    <div class="page-container">
%[12]s    </div>
</div>
</body>
</html>`

const emptyPageTemplate = `<!DOCTYPE html>
<html lang="%[1]s">
<head>
<meta charset="UTF-8">
<title>Document</title>
<style>
    * { margin:0; padding:0; box-sizing:border-box; }
    body { background:#f9f9f9; display:flex; justify-content:center; align-items:flex-start; padding:20px; }
    .page-wrapper { width:%[2]dpx; height:%[3]dpx; }
    .page-container {
        position:relative; width:%[4]dpx; height:%[5]dpx; background:white;
        margin:20px auto; box-shadow:0 0 10px rgba(0,0,0,0.1); overflow:hidden;
        transform: scale(%[6].4f); transform-origin: top left;
    }
    .error { position:absolute; top:50%%; left:50%%; transform:translate(-50%%,-50%%); color:#999; font-size:24px; text-align:center; }
</style>
</head>
<body>
<div class="page-wrapper">
    <div class="page-container">
        <div class="error">No content extracted</div>
    </div>
</div>
</body>
</html>`

// ExtractPlainText strips every tagged element's text content into
// the derived txt artifact a Worker uploads alongside a completed
// html unit (spec.md §4.6 derived-format rule).
func ExtractPlainText(rawModelHTML string) string {
	elements := parseTaggedElements(rawModelHTML)
	lines := make([]string, 0, len(elements))
	for _, el := range elements {
		text := strings.ReplaceAll(el.text, "___LINEBREAK___", "\n")
		text = strings.ReplaceAll(text, "<br>", "\n")
		lines = append(lines, text)
	}
	return strings.Join(lines, "\n")
}
