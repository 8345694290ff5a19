package feed

import (
	"fmt"
	"path"
	"sort"

	"github.com/ajitpratap0/facilityfeed/pkg/json"
	"github.com/ajitpratap0/facilityfeed/pkg/metrics"
)

const (
	// ManifestFileName is the key of the run manifest
	ManifestFileName = "metadata.json"
	// ContentTypeJSON is stored with every artifact
	ContentTypeJSON = "application/json"

	filePrefix = "facility_feed"
)

// Manifest lists the feed files of a successful run
type Manifest struct {
	GenerationTimestamp int64    `json:"generation_timestamp"`
	DataFile            []string `json:"data_file"`
}

// NewManifest builds a manifest with files in lexical order. files is not
// modified.
func NewManifest(generationTimestamp int64, files []string) Manifest {
	sorted := make([]string, len(files))
	copy(sorted, files)
	sort.Strings(sorted)
	return Manifest{GenerationTimestamp: generationTimestamp, DataFile: sorted}
}

// Encode renders the manifest as compact JSON
func (m Manifest) Encode() ([]byte, error) {
	return json.MarshalCompact(m)
}

// DecodeManifest parses a manifest
func DecodeManifest(data []byte) (Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, err
	}
	return m, nil
}

// FileName returns the feed file name of a chunk. ext is the compression
// suffix including its dot, such as ".gz".
func FileName(generationTimestamp int64, index int, ext string) string {
	return fmt.Sprintf("%s_%d_%d.json%s", filePrefix, generationTimestamp, index, ext)
}

// UploadKind labels keys for upload metrics
func UploadKind(key string) string {
	if path.Base(key) == ManifestFileName {
		return metrics.KindManifest
	}
	return metrics.KindFeed
}
