// Package core provides the execution model types for shift-runner:
// error taxonomy, statuses, attachments and scenario results.
package core

// Attachment is a file captured during a scenario, usually a screenshot.
type Attachment struct {
	Name        string `json:"name"` // label, e.g. "About Shift - Version Visible"
	ContentType string `json:"contentType"`
	Path        string `json:"path"`
	Body        []byte `json:"-"`
}

// Default attachment names.
const (
	AttachmentScreenshot = "screenshot"
	AttachmentPageSource = "page_source"
)

// Content types of captured files.
const (
	ContentTypePNG = "image/png"
	ContentTypeXML = "application/xml"
)

// NewScreenshotAttachment describes a PNG written to path. An empty label
// becomes AttachmentScreenshot.
func NewScreenshotAttachment(label, path string, data []byte) Attachment {
	if label == "" {
		label = AttachmentScreenshot
	}
	return Attachment{Name: label, ContentType: ContentTypePNG, Path: path, Body: data}
}

// NewPageSourceAttachment describes a saved UI automation tree.
func NewPageSourceAttachment(path string, data []byte) Attachment {
	return Attachment{Name: AttachmentPageSource, ContentType: ContentTypeXML, Path: path, Body: data}
}

// IsImage reports whether the attachment can be shown inline.
func (a Attachment) IsImage() bool {
	return a.ContentType == ContentTypePNG
}
