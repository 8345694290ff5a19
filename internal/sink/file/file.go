// Package file stores feed artifacts in a local directory. Each put writes a
// temporary file and renames it over the target, so readers never observe a
// partial object.
package file

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/ajitpratap0/facilityfeed/internal/sink"
	"github.com/ajitpratap0/facilityfeed/pkg/errors"
	"github.com/ajitpratap0/facilityfeed/pkg/json"
)

// metadataSuffix names the sidecar holding the put options of an object
const metadataSuffix = ".meta.json"

// Writer writes objects below a root directory
type Writer struct {
	root   string
	logger *zap.Logger
}

// New creates root if needed.
func New(root string, logger *zap.Logger) (*Writer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if root == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "output directory is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to create output directory")
	}
	return &Writer{root: root, logger: logger.With(zap.String("dir", root))}, nil
}

// Put implements sink.Writer. Put options are written to a sidecar file
// next to the object when they are not empty.
func (w *Writer) Put(ctx context.Context, key string, body []byte, opts sink.PutOptions) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeUpload, "put cancelled")
	}

	target, err := w.path(key)
	if err != nil {
		return err
	}
	if err := writeAtomic(target, body); err != nil {
		return errors.Wrap(err, errors.ErrorTypeUpload, "failed to write object").WithDetail("key", key)
	}

	if opts != (sink.PutOptions{}) {
		meta, err := json.MarshalIndent(metadata{ContentType: opts.ContentType, ContentEncoding: opts.ContentEncoding}, "", "  ")
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeData, "failed to encode object metadata")
		}
		if err := writeAtomic(target+metadataSuffix, meta); err != nil {
			return errors.Wrap(err, errors.ErrorTypeUpload, "failed to write object metadata").WithDetail("key", key)
		}
	}

	w.logger.Debug("object stored", zap.String("key", key), zap.Int("bytes", len(body)))
	return nil
}

// Options reads back the put options stored for key.
func (w *Writer) Options(key string) (sink.PutOptions, error) {
	target, err := w.path(key)
	if err != nil {
		return sink.PutOptions{}, err
	}
	data, err := os.ReadFile(target + metadataSuffix) //nolint:gosec // G304: path is confined to root
	if os.IsNotExist(err) {
		return sink.PutOptions{}, nil
	}
	if err != nil {
		return sink.PutOptions{}, err
	}
	var meta metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return sink.PutOptions{}, err
	}
	return sink.PutOptions{ContentType: meta.ContentType, ContentEncoding: meta.ContentEncoding}, nil
}

type metadata struct {
	ContentType     string `json:"content_type,omitempty"`
	ContentEncoding string `json:"content_encoding,omitempty"`
}

// path maps a key to a file below root, rejecting keys that escape it.
func (w *Writer) path(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if key == "" || filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", errors.Newf(errors.ErrorTypeUpload, "invalid object key %q", key)
	}
	return filepath.Join(w.root, clean), nil
}

func writeAtomic(target string, body []byte) error {
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(target)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // gone after a successful rename

	if _, err := tmp.Write(body); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), target)
}
