package download

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
)

var errEmptyArchive = errors.New("zip archive has no entries")

// firstEntry returns the name and decompressed bytes of the first entry in
// central-directory order.
func firstEntry(b []byte, limit int64) (string, []byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		return "", nil, fmt.Errorf("open zip: %w", err)
	}
	if len(zr.File) == 0 {
		return "", nil, errEmptyArchive
	}

	f := zr.File[0]
	rc, err := f.Open()
	if err != nil {
		return "", nil, fmt.Errorf("open zip entry %q: %w", f.Name, err)
	}
	defer rc.Close()

	out, err := readLimited(rc, limit)
	if err != nil {
		return "", nil, fmt.Errorf("read zip entry %q: %w", f.Name, err)
	}
	return f.Name, out, nil
}

var errTooLarge = errors.New("payload exceeds size limit")

// readLimited reads r fully, failing if it holds more than limit bytes.
// A limit of zero or less means no limit.
func readLimited(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		return io.ReadAll(r)
	}
	b, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(b)) > limit {
		return nil, fmt.Errorf("%w of %d bytes", errTooLarge, limit)
	}
	return b, nil
}
