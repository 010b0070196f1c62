package lifecycle

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.klb.dev/clipbridge/internal/codec"
)

// MarkerMaxAge bounds how old a marker may be and still be reported.
const MarkerMaxAge = 5 * time.Minute

// Marker is written just before the process replaces itself so the next
// incarnation can log why it was started.
type Marker struct {
	Reason string    `cbor:"reason"`
	From   string    `cbor:"from,omitempty"`
	To     string    `cbor:"to,omitempty"`
	PID    int       `cbor:"pid"`
	Time   time.Time `cbor:"time"`
}

// WriteMarker stores m at path: temp file, fsync, rename.
func WriteMarker(path string, m Marker) error {
	data, err := codec.Marshal(m)
	if err != nil {
		return fmt.Errorf("encoding restart marker: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating marker directory: %w", err)
	}

	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("creating temporary marker: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("writing temporary marker: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("syncing temporary marker: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("closing temporary marker: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("renaming marker into place: %w", err)
	}
	return nil
}

// ReadMarker loads the marker at path.
func ReadMarker(path string) (Marker, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Marker{}, err
	}
	var m Marker
	if err := codec.Unmarshal(data, &m); err != nil {
		return Marker{}, fmt.Errorf("parsing restart marker %s: %w", path, err)
	}
	return m, nil
}

// CheckMarker reads and removes the marker at path. found is false when
// there is no marker or it is older than maxAge.
func CheckMarker(path string, maxAge time.Duration) (m Marker, found bool, err error) {
	m, err = ReadMarker(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Marker{}, false, nil
		}
		ClearMarker(path)
		return Marker{}, false, err
	}
	if err := ClearMarker(path); err != nil {
		return Marker{}, false, err
	}
	if time.Since(m.Time) > maxAge {
		return Marker{}, false, nil
	}
	return m, true, nil
}

// ClearMarker removes the marker. A missing file is not an error.
func ClearMarker(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing restart marker: %w", err)
	}
	return nil
}
