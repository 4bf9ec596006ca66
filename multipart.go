package opensandbox

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"path/filepath"
)

// multipartFileWriter wraps multipart assembly for file uploads to execd.
type multipartFileWriter struct {
	w *multipart.Writer
}

func newMultipartWriter(w io.Writer) *multipartFileWriter {
	return &multipartFileWriter{w: multipart.NewWriter(w)}
}

// contentType returns the multipart Content-Type header value.
func (m *multipartFileWriter) contentType() string {
	return m.w.FormDataContentType()
}

// writeFile adds one file part. The part filename is the base name only.
func (m *multipartFileWriter) writeFile(fieldName, fileName string, data []byte) error {
	part, err := m.w.CreateFormFile(fieldName, filepath.Base(fileName))
	if err != nil {
		return err
	}
	_, err = part.Write(data)
	return err
}

// writeFileFullPath adds one file part keeping the full path as the part
// filename. Batch uploads need this because execd takes the destination path
// from the part filename; CreateFormFile would strip it to the base name.
func (m *multipartFileWriter) writeFileFullPath(fieldName, fullPath string, data []byte) error {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, fieldName, fullPath))
	h.Set("Content-Type", "application/octet-stream")
	part, err := m.w.CreatePart(h)
	if err != nil {
		return err
	}
	_, err = part.Write(data)
	return err
}

func (m *multipartFileWriter) close() error {
	return m.w.Close()
}
