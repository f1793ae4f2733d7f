package utils

import (
	"os"
	"strings"
)

const (
	StorageProviderFile  = "file"
	StorageProviderRedis = "redis"
	StorageProviderSQL   = "sql"
	StorageProviderGCS   = "gcs"
)

// GetStorageProvider selects where the draft is persisted.
func GetStorageProvider() string {
	provider := strings.TrimSpace(strings.ToLower(os.Getenv("DRAFT_STORE")))
	if provider == "" {
		return StorageProviderFile
	}
	return provider
}
