package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	gstorage "cloud.google.com/go/storage"
	"github.com/airbusgeo/geocube/interface/storage"
	"github.com/airbusgeo/geocube/interface/storage/uri"
)

// ErrFileNotFound is an error returned by Delete
type ErrFileNotFound struct {
	File string
}

func (e ErrFileNotFound) Error() string {
	return fmt.Sprintf("File not found: %s", e.File)
}

func isErrNotFound(err error) bool {
	var epath *os.PathError
	return errors.Is(err, gstorage.ErrObjectNotExist) ||
		(errors.As(err, &epath) && os.IsNotExist(epath))
}

// Storage is a service to store the outputs, identified by their path relative to the root of the storage
type Storage interface {
	// Save persists the local file into the storage and returns its uri
	Save(ctx context.Context, localFile, name string) (string, error)
	// Exists returns true if the file is in the storage
	Exists(ctx context.Context, name string) (bool, error)
	// Delete deletes the file from the storage
	// Raise ErrFileNotFound
	Delete(ctx context.Context, name string) error
}

// StorageStrategy implements Storage using geocube.Strategy (local directory or gs://bucket/prefix)
type StorageStrategy struct {
	storage storage.Strategy
	uri     uri.DefaultUri
}

// NewStorageStrategy creates a new StorageStrategy
func NewStorageStrategy(ctx context.Context, storageURI string) (*StorageStrategy, error) {
	uri, err := uri.ParseUri(storageURI)
	if err != nil {
		return nil, fmt.Errorf("NewStorageStrategy.ParseURI: %w", err)
	}

	storageClient, err := uri.NewStorageStrategy(ctx)
	if err != nil {
		return nil, fmt.Errorf("NewStorageStrategy: %w", err)
	}

	return &StorageStrategy{storage: storageClient, uri: uri}, nil
}

// Save implements Storage
func (ss *StorageStrategy) Save(ctx context.Context, localFile, name string) (string, error) {
	f, err := os.Open(localFile)
	if err != nil {
		return "", fmt.Errorf("Save.Open: %w", err)
	}
	defer f.Close()

	dst := ss.getPath(name)
	if err := ss.storage.UploadFile(ctx, dst, f); err != nil {
		return "", fmt.Errorf("Save.UploadFile to %s: %w", dst, err)
	}
	return dst, nil
}

// Exists implements Storage
func (ss *StorageStrategy) Exists(ctx context.Context, name string) (bool, error) {
	tmp, err := os.CreateTemp("", "exists")
	if err != nil {
		return false, MakeTemporary(fmt.Errorf("Exists.CreateTemp: %w", err))
	}
	tmp.Close()
	defer os.Remove(tmp.Name())

	src := ss.getPath(name)
	if err := ss.storage.DownloadToFile(ctx, src, tmp.Name()); err != nil {
		if isErrNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("Exists.DownloadToFile from %s: %w", src, err)
	}
	return true, nil
}

// Delete implements Storage
func (ss *StorageStrategy) Delete(ctx context.Context, name string) error {
	file := ss.getPath(name)
	if err := ss.storage.Delete(ctx, file); err != nil {
		if isErrNotFound(err) {
			return ErrFileNotFound{file}
		}
		return fmt.Errorf("Delete: %w", err)
	}
	return nil
}

// getPath returns the uri of the file in the storage
func (ss *StorageStrategy) getPath(name string) string {
	uri := ss.uri.String()
	if !strings.HasSuffix(uri, "/") {
		uri += "/"
	}
	return uri + path.Clean(name)
}

// WithExt replaces the extension of the file
func WithExt(filePath string, ext string) string {
	filePath = strings.TrimSuffix(filePath, filepath.Ext(filePath))
	if ext != "" {
		return fmt.Sprintf("%s.%s", filePath, ext)
	}
	return filePath
}
