package httpclient

import (
	"bytes"
	"errors"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"sort"
	"strings"
)

const defaultUploadField = "file"

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// encodeMultipart buffers the whole form so the retry stage can replay it.
func encodeMultipart(file UploadFile) ([]byte, string, error) {
	if file.Content == nil {
		return nil, "", errors.New("upload content is nil")
	}
	if file.FileName == "" {
		return nil, "", errors.New("upload file name is empty")
	}
	content, err := readAll(file.Content)
	if err != nil {
		return nil, "", fmt.Errorf("read upload content: %w", err)
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	names := make([]string, 0, len(file.Fields))
	for k := range file.Fields {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		if err := w.WriteField(k, file.Fields[k]); err != nil {
			return nil, "", err
		}
	}

	field := file.FieldName
	if field == "" {
		field = defaultUploadField
	}
	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		quoteEscaper.Replace(field), quoteEscaper.Replace(file.FileName)))
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(content); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
