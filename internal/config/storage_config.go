package config

import (
	"github.com/jrsteele09/go-auth-client/storage/redisstore"
	"github.com/jrsteele09/go-auth-client/storage/sealed"
)

const (
	StorageMemory = "memory"
	StorageRedis  = "redis"
)

type StorageConfig interface {
	GetStorageBackend() string
	GetRedisConfig() redisstore.Config
	// GetSealKey returns the at-rest encryption key and whether one is configured.
	GetSealKey() ([32]byte, bool, error)
}

type Storage struct {
	Backend string `env:"STORAGE_BACKEND" envDefault:"memory"`
	SealKey string `env:"STORAGE_SEAL_KEY"` // base64 encoded 32 byte key
	Redis   redisstore.Config
}

var _ StorageConfig = Storage{}

func (s Storage) GetStorageBackend() string {
	return s.Backend
}

func (s Storage) GetRedisConfig() redisstore.Config {
	return s.Redis
}

func (s Storage) GetSealKey() ([32]byte, bool, error) {
	if s.SealKey == "" {
		return [32]byte{}, false, nil
	}
	key, err := sealed.KeyFromBase64(s.SealKey)
	if err != nil {
		return [32]byte{}, false, err
	}
	return key, true, nil
}
