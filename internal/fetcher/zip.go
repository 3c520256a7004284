package fetcher

import (
	"bytes"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
	"github.com/rotisserie/eris"
)

// ErrMemberNotFound is returned when an archive has no entry with the requested name.
var ErrMemberNotFound = eris.New("zip: member not found")

// OpenZIP opens an in-memory ZIP archive.
func OpenZIP(data []byte) (*zip.Reader, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, eris.Wrap(err, "zip: open archive")
	}
	return zr, nil
}

// FindZIPMember returns the entry named name. Leading "./" and backslash
// separators are normalized on both sides.
func FindZIPMember(zr *zip.Reader, name string) (*zip.File, error) {
	want := memberName(name)
	for _, f := range zr.File {
		if memberName(f.Name) == want {
			return f, nil
		}
	}
	return nil, eris.Wrapf(ErrMemberNotFound, "zip: %q", name)
}

// ReadZIPMember returns the uncompressed contents of the named entry.
func ReadZIPMember(zr *zip.Reader, name string) ([]byte, error) {
	f, err := FindZIPMember(zr, name)
	if err != nil {
		return nil, err
	}
	rc, err := f.Open()
	if err != nil {
		return nil, eris.Wrapf(err, "zip: open entry %q", f.Name)
	}
	defer rc.Close() //nolint:errcheck

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, eris.Wrapf(err, "zip: read entry %q", f.Name)
	}
	return data, nil
}

func memberName(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	return path.Clean(strings.TrimPrefix(name, "./"))
}

// ExtractZIP extracts all files from the archive to the destination directory.
// Returns the list of extracted file paths.
func ExtractZIP(zr *zip.Reader, destDir string) ([]string, error) {
	var extracted []string
	for _, f := range zr.File {
		p, err := extractZIPEntry(f, destDir)
		if err != nil {
			return extracted, err
		}
		if p != "" {
			extracted = append(extracted, p)
		}
	}
	return extracted, nil
}

// extractZIPEntry extracts a single zip.File to the destination directory.
// Returns the extracted file path, or empty string for directories.
func extractZIPEntry(f *zip.File, destDir string) (string, error) {
	destPath, err := ResolveUnder(destDir, f.Name)
	if err != nil {
		return "", err
	}

	if f.FileInfo().IsDir() {
		if err := os.MkdirAll(destPath, 0o755); err != nil {
			return "", eris.Wrap(err, "zip: create directory")
		}
		return "", nil
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return "", eris.Wrap(err, "zip: create parent directory")
	}

	rc, err := f.Open()
	if err != nil {
		return "", eris.Wrap(err, "zip: open entry")
	}
	defer rc.Close() //nolint:errcheck

	out, err := os.Create(destPath)
	if err != nil {
		return "", eris.Wrap(err, "zip: create file")
	}
	defer out.Close() //nolint:errcheck

	if _, err := io.Copy(out, rc); err != nil {
		return "", eris.Wrap(err, "zip: write file")
	}

	return destPath, nil
}

// ResolveUnder joins an archive-relative name onto dir and rejects names
// that would escape it (zip slip).
func ResolveUnder(dir, name string) (string, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return "", eris.Wrap(err, "zip: resolve destination")
	}
	p := filepath.Join(root, filepath.FromSlash(strings.ReplaceAll(name, `\`, "/")))
	if !strings.HasPrefix(p, root+string(os.PathSeparator)) {
		return "", eris.Errorf("zip: illegal path %q (zip slip attempt)", name)
	}
	return p, nil
}
