package draftstore

import (
	"context"
	"fmt"

	"github.com/kamnsolar/field_capture/config"
	"github.com/kamnsolar/field_capture/utils"
	"github.com/sirupsen/logrus"
)

// OpenFromEnv builds the Store for the DRAFT_STORE provider and loads it.
func OpenFromEnv(ctx context.Context) (*Store, error) {
	backend, err := BackendFromEnv(ctx)
	if err != nil {
		return nil, err
	}
	store := New(backend)
	store.Load(ctx)
	config.GetLogger().WithFields(logrus.Fields{
		"module":  "draftstore",
		"backend": backend.Name(),
	}).Debug("draft store opened")
	return store, nil
}

func BackendFromEnv(ctx context.Context) (Backend, error) {
	key := config.DraftKey()
	switch provider := utils.GetStorageProvider(); provider {
	case utils.StorageProviderFile:
		return NewFileBackend(config.DraftFile()), nil
	case utils.StorageProviderRedis:
		client, locker, err := config.ConnectRedis(ctx, config.RedisAddress(), 3)
		if err != nil {
			return nil, fmt.Errorf("connect redis draft store: %w", err)
		}
		return NewRedisBackend(client, locker, key), nil
	case utils.StorageProviderSQL:
		db, err := config.ConnectDatabase(config.DraftDBDriver(), config.DraftDBDSN())
		if err != nil {
			return nil, fmt.Errorf("connect sql draft store: %w", err)
		}
		backend := NewSQLBackend(db, key)
		if err := backend.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("migrate sql draft store: %w", err)
		}
		return backend, nil
	case utils.StorageProviderGCS:
		bucket, err := utils.GCSBucket()
		if err != nil {
			return nil, err
		}
		client, err := utils.GetGCSClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client: %w", err)
		}
		return NewGCSBackend(client, bucket, "drafts/"+key+".json"), nil
	default:
		return nil, fmt.Errorf("unsupported DRAFT_STORE %q", provider)
	}
}
