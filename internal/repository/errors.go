package repository

import (
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// ErrDuplicate is returned when an insert violates a unique constraint.
var ErrDuplicate = errors.New("duplicate record")

// CapacityError reports that a class cannot shrink below its enrolled count.
type CapacityError struct {
	Enrolled int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("class has %d enrollments", e.Enrolled)
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
