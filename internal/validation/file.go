package validation

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"slices"
	"strings"
)

// sniffed content types accepted for each extension.
var contentTypes = map[string][]string{
	"jpg":  {"image/jpeg"},
	"jpeg": {"image/jpeg"},
	"png":  {"image/png"},
	"pdf":  {"application/pdf"},
	"gif":  {"image/gif"},
	"webp": {"image/webp"},
}

// FileRule describes an acceptable upload.
type FileRule struct {
	Required   bool
	Extensions []string
	MaxBytes   int64
}

// Check returns an empty string when fh satisfies the rule, otherwise the
// message to show for field. A nil fh is only valid for optional rules.
func (r FileRule) Check(field string, fh *multipart.FileHeader) string {
	label := Label(field)
	if fh == nil {
		if r.Required {
			return fmt.Sprintf("The %s field is required.", label)
		}
		return ""
	}

	typeMsg := fmt.Sprintf("The %s must be a file of type: %s.", label, strings.Join(r.Extensions, ", "))

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(fh.Filename), "."))
	if !slices.Contains(r.Extensions, ext) {
		return typeMsg
	}

	if r.MaxBytes > 0 && fh.Size > r.MaxBytes {
		return fmt.Sprintf("The %s may not be greater than %d kilobytes.", label, r.MaxBytes/1024)
	}

	if allowed, known := contentTypes[ext]; known {
		sniffed, err := sniff(fh)
		if err != nil || !slices.Contains(allowed, sniffed) {
			return typeMsg
		}
	}
	return ""
}

func sniff(fh *multipart.FileHeader) (string, error) {
	f, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", err
	}
	ct := http.DetectContentType(head[:n])
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return ct, nil
}
