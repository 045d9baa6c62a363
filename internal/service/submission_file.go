package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
)

// MaxSubmissionBytes bounds uploaded source files.
const MaxSubmissionBytes = 256 * 1024

// SubmissionArchive keeps a copy of uploaded source files.
type SubmissionArchive interface {
	Store(ctx context.Context, assignmentID, name string, reader io.Reader) (string, error)
}

// readSubmissionFile returns the text content of an uploaded source file.
func readSubmissionFile(file *multipart.FileHeader) ([]byte, error) {
	if file.Size > MaxSubmissionBytes {
		return nil, invalidRequest("file exceeds %d bytes", MaxSubmissionBytes)
	}

	handle, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("open submission file: %w", err)
	}
	defer handle.Close()

	content, err := io.ReadAll(io.LimitReader(handle, MaxSubmissionBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read submission file: %w", err)
	}
	if len(content) > MaxSubmissionBytes {
		return nil, invalidRequest("file exceeds %d bytes", MaxSubmissionBytes)
	}
	if len(bytes.TrimSpace(content)) == 0 {
		return nil, invalidRequest("file is empty")
	}

	if !isTextMime(mimetype.Detect(content)) || !utf8.Valid(content) {
		return nil, invalidRequest("file must be a plain text source file")
	}
	return content, nil
}

func isTextMime(detected *mimetype.MIME) bool {
	for m := detected; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}
