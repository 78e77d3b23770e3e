package extract

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Declared MIME types understood by the extractor.
const (
	MimePDF   = "application/pdf"
	MimeDOCX  = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MimePPTX  = "application/vnd.openxmlformats-officedocument.presentationml.presentation"
	MimeText  = "text/plain"
	mimeOctet = "application/octet-stream"
)

// Kind identifies how a file's content is surfaced to the model.
type Kind int

const (
	KindUnknown Kind = iota
	KindPDF
	KindDOCX
	KindPPTX
	KindImage
	KindText
)

func (k Kind) String() string {
	switch k {
	case KindPDF:
		return "pdf"
	case KindDOCX:
		return "docx"
	case KindPPTX:
		return "pptx"
	case KindImage:
		return "image"
	case KindText:
		return "text"
	default:
		return "unknown"
	}
}

var (
	// ErrUnsupportedFileType is matched by every UnsupportedFileTypeError.
	ErrUnsupportedFileType = errors.New("unsupported file type")
	// ErrEmptyFile indicates the upload carried no bytes.
	ErrEmptyFile = errors.New("file is empty")
	// ErrFileTooLarge indicates the upload exceeded the configured limit.
	ErrFileTooLarge = errors.New("file exceeds maximum allowed size")
	// ErrUnreadableDocument indicates a supported document could not be parsed.
	ErrUnreadableDocument = errors.New("document could not be read")
)

// UnsupportedFileTypeError carries the rejected MIME type.
type UnsupportedFileTypeError struct {
	MimeType string
}

func (e *UnsupportedFileTypeError) Error() string {
	if e.MimeType == "" {
		return ErrUnsupportedFileType.Error()
	}
	return fmt.Sprintf("%s: %s", ErrUnsupportedFileType.Error(), e.MimeType)
}

// Is lets errors.Is match ErrUnsupportedFileType.
func (e *UnsupportedFileTypeError) Is(target error) bool {
	return target == ErrUnsupportedFileType
}

// File is an uploaded document held in memory.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Content is the model-facing surface of a file: text, or an embeddable image.
type Content struct {
	Text      string `json:"text,omitempty"`
	ImageData string `json:"imageData,omitempty"`
	FileName  string `json:"fileName"`
	FileType  string `json:"fileType"`
}

// HasImage reports whether the content must be sent as a multimodal message.
func (c Content) HasImage() bool {
	return c.ImageData != ""
}

// Extractor converts uploads into Content. It holds no per-call state.
type Extractor struct {
	maxBytes int64
	tracer   trace.Tracer
}

// New builds an extractor enforcing maxBytes (0 disables the limit).
func New(maxBytes int64) *Extractor {
	return &Extractor{
		maxBytes: maxBytes,
		tracer:   otel.Tracer("github.com/noah-isme/rubiai-api/pkg/extract"),
	}
}

// Classify resolves the kind of file and the MIME type it was resolved from.
// The declared type wins; undeclared or generic types are sniffed from the bytes.
func (e *Extractor) Classify(file File) (Kind, string, error) {
	if len(file.Data) == 0 {
		return KindUnknown, "", ErrEmptyFile
	}
	if e.maxBytes > 0 && int64(len(file.Data)) > e.maxBytes {
		return KindUnknown, "", ErrFileTooLarge
	}

	declared := normalizeMime(file.ContentType)
	if kind := kindForMime(declared, file.Name); kind != KindUnknown {
		return kind, declared, nil
	}

	if declared != "" && declared != mimeOctet {
		return KindUnknown, declared, &UnsupportedFileTypeError{MimeType: declared}
	}

	detected := normalizeMime(mimetype.Detect(file.Data).String())
	if kind := kindForMime(detected, file.Name); kind != KindUnknown {
		return kind, detected, nil
	}

	return KindUnknown, detected, &UnsupportedFileTypeError{MimeType: detected}
}

// Extract reads the file and returns its text or image representation.
func (e *Extractor) Extract(ctx context.Context, file File) (Content, error) {
	_, span := e.tracer.Start(ctx, "extract.content", trace.WithAttributes(
		attribute.String("file.name", file.Name),
		attribute.Int("file.size_bytes", len(file.Data)),
	))
	defer span.End()

	if err := ctx.Err(); err != nil {
		return Content{}, err
	}

	kind, mimeType, err := e.Classify(file)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "classification failed")
		return Content{}, err
	}
	span.SetAttributes(attribute.String("file.kind", kind.String()), attribute.String("file.mime", mimeType))

	content := Content{
		FileName: file.Name,
		FileType: file.ContentType,
	}
	if content.FileType == "" || normalizeMime(content.FileType) == mimeOctet {
		content.FileType = mimeType
	}

	switch kind {
	case KindImage:
		content.ImageData = dataURI(mimeType, file.Data)
		return content, nil
	case KindText:
		content.Text = string(bytes.TrimPrefix(file.Data, []byte("\xef\xbb\xbf")))
		return content, nil
	}

	var text string
	switch kind {
	case KindPDF:
		text, err = pdfText(file.Data)
	case KindDOCX:
		text, err = docxText(file.Data)
	case KindPPTX:
		text, err = pptxText(file.Data)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "document parse failed")
		return Content{}, fmt.Errorf("%w: %s: %v", ErrUnreadableDocument, file.Name, err)
	}

	if strings.TrimSpace(text) == "" {
		text = fmt.Sprintf("No extractable text was found in %s (%s). Evaluate based on whatever structure the document implies.", file.Name, kind)
	}
	content.Text = text
	return content, nil
}

func kindForMime(mimeType string, name string) Kind {
	switch {
	case mimeType == MimePDF:
		return KindPDF
	case mimeType == MimeDOCX:
		return KindDOCX
	case mimeType == MimePPTX:
		return KindPPTX
	case strings.HasPrefix(mimeType, "image/"):
		return KindImage
	case mimeType == MimeText:
		return KindText
	case strings.EqualFold(filepath.Ext(name), ".txt"):
		return KindText
	default:
		return KindUnknown
	}
}

func normalizeMime(value string) string {
	lower := strings.ToLower(strings.TrimSpace(value))
	if idx := strings.Index(lower, ";"); idx >= 0 {
		lower = strings.TrimSpace(lower[:idx])
	}
	return lower
}

func dataURI(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
