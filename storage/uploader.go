package storage

import (
	"context"
	"io"
)

// UploadResult описывает загруженный объект. Location — публичный URL,
// если бакет раздаётся наружу.
type UploadResult struct {
	Key      string
	Location string
	ETag     string
}

// FileUploader — хранилище медиафайлов приложения: баннеры турниров,
// логотипы команд, фото игроков. Ключи формируют сервисы, хранилище
// их не интерпретирует.
type FileUploader interface {
	Upload(ctx context.Context, key string, contentType string, reader io.Reader) (*UploadResult, error)
	Delete(ctx context.Context, key string) error
	GetPublicURL(key string) string
}
