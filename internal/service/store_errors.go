package service

import (
	"errors"
	"strings"

	appErrors "github.com/noah-isme/yoga-booking-api/pkg/errors"
)

// storeFailure passes typed errors through and turns anything else into a retryable StoreUnavailable.
func storeFailure(err error, op string) error {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return appErrors.Unavailable(err, op)
}

func isStoreFailure(err error) bool {
	return errors.Is(err, appErrors.ErrStoreUnavailable) || errors.Is(err, appErrors.ErrInternal)
}

// outcomeLabel maps an operation result to a low cardinality metric label.
func outcomeLabel(err error, success string) string {
	if err == nil {
		return success
	}
	return strings.ToLower(appErrors.FromError(err).Code)
}

func validationError(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
}
