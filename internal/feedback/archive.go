package feedback

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ayusman/moodlens/internal/emotion"
)

// ArchiveDirName is the archive directory inside the data directory.
const ArchiveDirName = "submittedEmotions"

const (
	timestampLayout = "20060102-150405"
	maxCollisions   = 1000
)

// ErrInvalidReport is returned for reports with a missing or unusable frame
// or emotion.
var ErrInvalidReport = errors.New("invalid misclassification report")

// Archive stores reported frames as submittedEmotions/<emotion>/<emotion>_<timestamp>.jpg.
type Archive struct {
	root string
	now  func() time.Time
}

// NewArchive returns an Archive rooted at root, normally
// <data dir>/submittedEmotions.
func NewArchive(root string) *Archive {
	return &Archive{root: root, now: time.Now}
}

// Root returns the archive directory.
func (a *Archive) Root() string {
	return a.root
}

// Save decodes the base64 payload of dataURL and writes it under the emotion's
// directory. It returns the written path and size.
//
// The payload is the text after the first comma. The emotion need not be one
// of the known labels but must be usable as a single path element. A second
// report in the same second gets a numeric suffix instead of overwriting the
// first.
func (a *Archive) Save(label, dataURL string) (string, int64, error) {
	if label == "" || dataURL == "" {
		return "", 0, fmt.Errorf("%w: frame and emotion are required", ErrInvalidReport)
	}
	if !emotion.SafePathElement(label) {
		return "", 0, fmt.Errorf("%w: unsafe emotion %q", ErrInvalidReport, label)
	}

	data, err := DecodeDataURL(dataURL)
	if err != nil {
		return "", 0, err
	}

	dir := filepath.Join(a.root, label)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", 0, fmt.Errorf("create archive dir: %w", err)
	}

	base := fmt.Sprintf("%s_%s", label, a.now().Format(timestampLayout))
	for i := 0; i < maxCollisions; i++ {
		name := base + ".jpg"
		if i > 0 {
			name = fmt.Sprintf("%s-%d.jpg", base, i)
		}
		path := filepath.Join(dir, name)

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", 0, fmt.Errorf("create archive file: %w", err)
		}

		n, err := f.Write(data)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return "", 0, fmt.Errorf("write archive file: %w", err)
		}
		return path, int64(n), nil
	}

	return "", 0, fmt.Errorf("archive %s: too many reports in one second", base)
}

// DecodeDataURL returns the decoded base64 segment following the first comma
// of a data URL such as "data:image/jpeg;base64,/9j/...".
func DecodeDataURL(dataURL string) ([]byte, error) {
	_, payload, ok := strings.Cut(dataURL, ",")
	if !ok {
		return nil, fmt.Errorf("%w: frame is not a data URL", ErrInvalidReport)
	}
	if i := strings.IndexByte(payload, ','); i >= 0 {
		payload = payload[:i]
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidReport, err)
	}
	return data, nil
}
