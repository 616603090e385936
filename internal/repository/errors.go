package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"private-lending/internal/errs"
)

// notFound translates gorm.ErrRecordNotFound into errs.ErrNotFound.
func notFound(err error, what string, key interface{}) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s %v", errs.ErrNotFound, what, key)
	}
	return err
}
