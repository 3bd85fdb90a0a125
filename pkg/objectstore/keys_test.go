package objectstore_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/prismlabs/prism/pkg/objectstore"
	"github.com/prismlabs/prism/pkg/types"
)

func TestUploadKeyShape(t *testing.T) {
	now := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)
	key := objectstore.UploadKey(now, "user-1", "file-9", "scan.pdf")
	assert.Equal(t, "uploads/user-1/2026-03/file-9/scan.pdf", key)
}

func TestPageImageKeyShape(t *testing.T) {
	now := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)
	key := objectstore.PageImageKey(now, "user-1", "file-9", 2)
	assert.Equal(t, "uploads/user-1/2026-03/file-9/page_2.jpg", key)
}

func TestResultKeyExtensionByFormat(t *testing.T) {
	now := time.Date(2026, 3, 5, 12, 0, 0, 0, time.UTC)

	htmlKey := objectstore.ResultKey(now, "user-1", "task-1", 1, types.FormatHTML)
	assert.Contains(t, htmlKey, "page_1_html_")
	assert.Regexp(t, `\.html$`, htmlKey)

	jsonKey := objectstore.ResultKey(now, "user-1", "task-1", 1, types.FormatJSON)
	assert.Regexp(t, `\.json$`, jsonKey)

	txtKey := objectstore.ResultKey(now, "user-1", "task-1", 1, types.FormatTXT)
	assert.Regexp(t, `\.txt$`, txtKey)
}

func TestSensitiveResultKeyUnderSensitivePrefix(t *testing.T) {
	now := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)
	key := objectstore.SensitiveResultKey(now, "user-1", "task-1", 3, "anon_mapping")
	assert.Contains(t, key, "/sensitive/")
	assert.Contains(t, key, "page_3_anon_mapping_")
}
