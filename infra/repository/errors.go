package repository

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/travelagency/backoffice/pkg/domain/ledger"
	"gorm.io/gorm"
)

// mapGormError converts gorm's not-found sentinel into the domain's typed
// NotFoundError so callers never import gorm. Other errors pass through.
func mapGormError(err error, entity string, key string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &ledger.NotFoundError{Entity: entity, Key: key}
	}
	return err
}

func mapGormErrorByID(err error, entity string, id uuid.UUID) error {
	return mapGormError(err, entity, id.String())
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func newIDIfNil(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
