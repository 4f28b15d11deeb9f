package storage_adapter

import (
	"encoding/binary"
	"fmt"

	"github.com/annel0/chunkloader/internal/config"
	"github.com/annel0/chunkloader/internal/logging"
	"github.com/annel0/chunkloader/internal/storage"
	"github.com/annel0/chunkloader/internal/storage_interface"
)

// CodecFromConfig собирает SetCodec из настроек хранилища
func CodecFromConfig(cfg config.StorageConfig) SetCodec {
	codec := SetCodec{Uncompressed: cfg.Uncompressed}
	if cfg.LittleEndian {
		codec.Order = binary.LittleEndian
	}
	return codec
}

// NewProvider создает провайдер наборов чанков по настройкам хранилища
func NewProvider(cfg config.StorageConfig) (storage_interface.SetProvider, error) {
	codec := CodecFromConfig(cfg)

	switch cfg.Backend {
	case config.BackendBadger, "":
		ws, err := storage.NewWorldStorage(cfg.DataPath)
		if err != nil {
			return nil, err
		}
		logging.GetStorageLogger().Info("💾 BadgerDB хранилище открыто: %s", ws.Path())
		return NewBlobSetAdapter(ws, codec), nil

	case config.BackendFile:
		fsa, err := NewFileStorageAdapter(cfg.DataPath, cfg.FileName, codec)
		if err != nil {
			return nil, err
		}
		logging.GetStorageLogger().Info("💾 Файловое хранилище: %s", fsa.Path())
		return fsa, nil

	case config.BackendMaria:
		repo, err := storage.NewMariaSetRepo(cfg.MariaDSN)
		if err != nil {
			return nil, err
		}
		logging.GetStorageLogger().Info("💾 MariaDB хранилище подключено")
		return NewBlobSetAdapter(repo, codec), nil

	case config.BackendMemory:
		logging.GetStorageLogger().Warn("⚠️ Хранилище в памяти: данные теряются при перезапуске")
		return NewBlobSetAdapter(storage.NewMemoryBlobRepo(), codec), nil
	}

	return nil, fmt.Errorf("неизвестный backend хранилища %q", cfg.Backend)
}
