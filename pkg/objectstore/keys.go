package objectstore

import (
	"fmt"
	"time"

	"github.com/prismlabs/prism/pkg/types"
)

// UploadKey returns the key shape for an uploaded source document,
// matching s3_client.py's generate_s3_key default folder ('uploads').
func UploadKey(now time.Time, userID, fileID, filename string) string {
	return fmt.Sprintf("uploads/%s/%s/%s/%s", userID, dateStamp(now), fileID, filename)
}

// PageImageKey returns the key shape for a rasterized page image
// derived from an uploaded document, per spec.md §6.
func PageImageKey(now time.Time, userID, fileID string, pageNumber int) string {
	return fmt.Sprintf("uploads/%s/%s/%s/page_%d.jpg", userID, dateStamp(now), fileID, pageNumber)
}

// resultExtensions maps a format to the file extension its primary
// artifact carries, per spec.md §6 ("extensions html|json|txt").
var resultExtensions = map[types.FormatType]string{
	types.FormatHTML: "html",
	types.FormatJSON: "json",
	types.FormatKVP:  "html",
	types.FormatAnon: "json",
	types.FormatTXT:  "txt",
}

// ResultKey returns the key shape for a unit's primary result
// artifact: results/{user}/{YYYY-MM}/{task}/page_{N}_{format}_{ts}.{ext}.
func ResultKey(now time.Time, userID, taskID string, pageNumber int, format types.FormatType) string {
	ext := resultExtensions[format]
	if ext == "" {
		ext = "json"
	}
	return fmt.Sprintf("results/%s/%s/%s/page_%d_%s_%d.%s",
		userID, dateStamp(now), taskID, pageNumber, format, now.Unix(), ext)
}

// ResultSideKey builds a key for a non-sensitive side artifact a
// format's pipeline produces alongside its primary result (e.g. kvp's
// normalized-json and selected-fields-json siblings to its primary
// html), distinguished by suffix rather than format/extension.
func ResultSideKey(now time.Time, userID, taskID string, pageNumber int, format types.FormatType, suffix string) string {
	return fmt.Sprintf("results/%s/%s/%s/page_%d_%s_%s_%d.json",
		userID, dateStamp(now), taskID, pageNumber, format, suffix, now.Unix())
}

// SensitiveResultKey builds a result key under a sensitive/ sub-prefix
// for artifacts that must never be served through the same
// access-control path as ordinary results: the anonymization mapping
// file, which carries the original-to-token lookup, and the audit file
// stored beside it (spec.md §9's Open
// Question on mapping-file access control, resolved in DESIGN.md by
// giving the gateway a distinct prefix a separate bucket policy can
// target).
func SensitiveResultKey(now time.Time, userID, taskID string, pageNumber int, suffix string) string {
	return fmt.Sprintf("results/%s/%s/%s/sensitive/page_%d_%s_%d.json",
		userID, dateStamp(now), taskID, pageNumber, suffix, now.Unix())
}
