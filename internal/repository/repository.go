// Package repository maps engine models onto owner-scoped storage documents.
package repository

import (
	"context"
	"errors"
	"fmt"

	apperrors "github.com/julianstephens/daybook/internal/errors"
	"github.com/julianstephens/daybook/internal/logger"
	"github.com/julianstephens/daybook/internal/storage"
)

func checkOwner(ownerID string) error {
	if err := storage.ValidateSegment(ownerID); err != nil {
		return apperrors.InvalidTransition("owner", err.Error())
	}
	return nil
}

// load reads one document into v. A document that does not decode is logged
// and reported as not found so callers can fall back to a default.
func load(ctx context.Context, s storage.Store, collection, key string, v any) error {
	doc, err := s.Get(ctx, collection, key)
	if err != nil {
		if errors.Is(err, apperrors.ErrDecode) {
			logger.Warn("Treating undecodable document as missing", "collection", collection, "key", key, "error", err)
			return apperrors.NotFound(fmt.Sprintf("%s/%s", collection, key))
		}
		return err
	}
	if err := storage.Decode(doc, v); err != nil {
		logger.Warn("Treating undecodable document as missing", "collection", collection, "key", key, "error", err)
		return apperrors.NotFound(fmt.Sprintf("%s/%s", collection, key))
	}
	return nil
}

func save(ctx context.Context, s storage.Store, collection, key string, v any, merge bool) error {
	doc, err := storage.Encode(v)
	if err != nil {
		return err
	}
	return s.Set(ctx, collection, key, doc, merge)
}

// decodeChange decodes a subscription change. ok is false when the document
// is missing or undecodable.
func decodeChange(c storage.Change, v any) bool {
	if !c.Exists() {
		return false
	}
	if err := storage.Decode(c.Doc, v); err != nil {
		logger.Warn("Ignoring undecodable document change", "collection", c.Collection, "key", c.Key, "error", err)
		return false
	}
	return true
}
