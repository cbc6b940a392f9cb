package service

import "github.com/andresuchdata/s3master/internal/storage"

func invalid(op, message string) error {
	return &storage.Error{Kind: storage.KindValidation, Op: op, Message: message}
}
