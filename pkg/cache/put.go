package cache

import (
	"context"
	"encoding/json"

	"github.com/scancat/scancat/pkg/dataset"
	"github.com/scancat/scancat/pkg/storage"
)

// Put serializes a field value, writes it to blob storage and records
// the index entry. Returns the blob digest, which doubles as the value's
// checksum.
func Put(ctx context.Context, index Store, blobs *storage.Store, dsName, id, field string, kind dataset.Kind, v any) (storage.Digest, error) {
	ser, err := ForKind(kind)
	if err != nil {
		return "", err
	}
	data, err := ser.Marshal(v)
	if err != nil {
		return "", err
	}
	digest, err := blobs.WriteBytes(data)
	if err != nil {
		return "", err
	}
	raw, err := json.Marshal(entry{Digest: digest, Serializer: ser.Name()})
	if err != nil {
		return "", err
	}
	if err := index.Set(ctx, Key(dsName, id, field), raw); err != nil {
		return "", err
	}
	return digest, nil
}

// PutIDs records a dataset's id list in the index.
func PutIDs(ctx context.Context, index Store, dsName string, ids []string) error {
	raw, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	return index.Set(ctx, IDsKey(dsName), raw)
}
