package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewScreenshotAttachment(t *testing.T) {
	data := []byte{0x89, 0x50, 0x4E, 0x47}
	att := NewScreenshotAttachment("Page Loaded - Redbrick", "screenshots/Page Loaded - Redbrick_20260101_101010.png", data)

	assert.Equal(t, "Page Loaded - Redbrick", att.Name)
	assert.Equal(t, ContentTypePNG, att.ContentType)
	assert.Equal(t, data, att.Body)
	assert.True(t, att.IsImage())

	assert.Equal(t, AttachmentScreenshot, NewScreenshotAttachment("", "x.png", nil).Name)
}

func TestNewPageSourceAttachment(t *testing.T) {
	att := NewPageSourceAttachment("source.xml", []byte(`<Window Name="Shift"/>`))

	assert.Equal(t, AttachmentPageSource, att.Name)
	assert.Equal(t, ContentTypeXML, att.ContentType)
	assert.False(t, att.IsImage())
}
