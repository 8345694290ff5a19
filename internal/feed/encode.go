package feed

import (
	"github.com/ajitpratap0/facilityfeed/internal/facility"
	"github.com/ajitpratap0/facilityfeed/pkg/errors"
	"github.com/ajitpratap0/facilityfeed/pkg/json"
)

// Payload is the document stored in each feed file
type Payload struct {
	Data []facility.FeedRecord `json:"data"`
}

// EncodeChunk transforms a chunk and serializes it as a Payload. With strict
// set, a record without an id fails the whole chunk.
func EncodeChunk(chunk facility.Chunk, strict bool) ([]byte, error) {
	if strict {
		for i, raw := range chunk {
			if err := facility.Validate(raw); err != nil {
				return nil, errors.Wrap(err, errors.ErrorTypeTransform, "invalid record").
					WithDetail("position", i+1)
			}
		}
	}

	payload := Payload{Data: facility.TransformChunk(chunk)}
	data, err := json.MarshalCompact(payload)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to serialize chunk")
	}
	return data, nil
}
