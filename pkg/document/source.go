package document

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/nextdoor/kingpin/pkg/kperrors"
)

// fetch resolves ref to its raw bytes. Recognized schemes: file://, bare
// filesystem paths, http://, https://, and (D6) sftp://. ftp:// and any
// other scheme are rejected as InvalidScriptName, per spec.md §4.2.
func (l *Loader) fetch(ref string) ([]byte, error) {
	switch {
	case strings.HasPrefix(ref, "file://"):
		return os.ReadFile(strings.TrimPrefix(ref, "file://"))

	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		return fetchHTTP(ref)

	case strings.HasPrefix(ref, "sftp://"):
		return l.fetchSFTP(ref)

	case strings.HasPrefix(ref, "ftp://"):
		return nil, kperrors.Fatalf(kperrors.CodeInvalidScriptName, "ftp:// sources are not supported: %q", ref)

	case strings.Contains(ref, "://"):
		return nil, kperrors.Fatalf(kperrors.CodeInvalidScriptName, "unrecognized source scheme: %q", ref)

	default:
		return os.ReadFile(ref)
	}
}

func fetchHTTP(ref string) ([]byte, error) {
	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Get(ref)
	if err != nil {
		return nil, kperrors.Wrap(kperrors.Fatal, kperrors.CodeInvalidScriptName, fmt.Sprintf("fetching %q", ref), err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, kperrors.Fatalf(kperrors.CodeInvalidScriptName, "fetching %q: HTTP %d", ref, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, kperrors.Wrap(kperrors.Fatal, kperrors.CodeInvalidScriptName, fmt.Sprintf("reading response body for %q", ref), err)
	}
	return body, nil
}
