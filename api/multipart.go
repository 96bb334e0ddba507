package api

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"sort"
)

// Multipart is a pre-encoded multipart/form-data payload.
type Multipart struct {
	// ContentType includes the boundary the body was encoded with.
	ContentType string
	Body        []byte
}

// MultipartFile is a file part of a multipart payload.
type MultipartFile struct {
	Field    string
	Filename string
	Content  io.Reader
}

// NewMultipart encodes fields and files as multipart/form-data. Fields are
// written in name order, followed by the files in the order given.
func NewMultipart(fields map[string]string, files ...MultipartFile) (*Multipart, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := w.WriteField(name, fields[name]); err != nil {
			return nil, fmt.Errorf("failed to write field %q: %w", name, err)
		}
	}

	for _, f := range files {
		if f.Field == "" {
			return nil, fmt.Errorf("file %q has no field name", f.Filename)
		}
		part, err := w.CreateFormFile(f.Field, f.Filename)
		if err != nil {
			return nil, fmt.Errorf("failed to create part %q: %w", f.Field, err)
		}
		if f.Content != nil {
			if _, err := io.Copy(part, f.Content); err != nil {
				return nil, fmt.Errorf("failed to write part %q: %w", f.Field, err)
			}
		}
	}

	if err := w.Close(); err != nil {
		return nil, err
	}

	return &Multipart{
		ContentType: w.FormDataContentType(),
		Body:        buf.Bytes(),
	}, nil
}
