package aggregates

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	repoconv "github.com/clinicore/conventions/internal/data/repos/conventions"
	domainagg "github.com/clinicore/conventions/internal/domain/aggregates"
	"github.com/clinicore/conventions/internal/domain/pricing"
)

// Markers for failures raised inside a transaction body before MapError tags them.
var (
	errValidation = errors.New("validation failed")
	errInvariant  = errors.New("invariant violated")
	errConflict   = errors.New("concurrent change")
	errRetryable  = errors.New("transient failure")
)

func tagged(marker error, msg string) error {
	return errors.Join(marker, errors.New(strings.TrimSpace(msg)))
}

func ValidationError(msg string) error { return tagged(errValidation, msg) }
func InvariantError(msg string) error  { return tagged(errInvariant, msg) }
func ConflictError(msg string) error   { return tagged(errConflict, msg) }
func RetryableError(msg string) error  { return tagged(errRetryable, msg) }

// sentinelCodes is checked in order; the first errors.Is match wins.
var sentinelCodes = []struct {
	err  error
	code domainagg.ErrorCode
}{
	{errValidation, domainagg.CodeValidation},
	{errInvariant, domainagg.CodeInvariantViolation},
	{errConflict, domainagg.CodeConflict},
	{errRetryable, domainagg.CodeRetryable},
	{repoconv.ErrStaleRevision, domainagg.CodeConflict},
	{repoconv.ErrRevisionCycle, domainagg.CodeInvariantViolation},
	{pricing.ErrNegativePrice, domainagg.CodeValidation},
	{pricing.ErrNegativeCeiling, domainagg.CodeValidation},
	{pricing.ErrDiscountRange, domainagg.CodeValidation},
	{gorm.ErrRecordNotFound, domainagg.CodeNotFound},
	{context.Canceled, domainagg.CodeRetryable},
	{context.DeadlineExceeded, domainagg.CodeRetryable},
}

// Postgres SQLSTATEs worth a dedicated code.
var pgStateCodes = map[string]domainagg.ErrorCode{
	"23505": domainagg.CodeConflict,           // unique_violation: second head line
	"23503": domainagg.CodePreconditionFailed, // foreign_key_violation
	"40001": domainagg.CodeRetryable,          // serialization_failure
	"40P01": domainagg.CodeRetryable,          // deadlock_detected
	"55P03": domainagg.CodeRetryable,          // lock_not_available
}

// Driver messages for errors that carry no typed code, mostly sqlite.
var messageCodes = []struct {
	fragment string
	code     domainagg.ErrorCode
}{
	{"unique constraint failed", domainagg.CodeConflict},
	{"duplicate key", domainagg.CodeConflict},
	{"database is locked", domainagg.CodeRetryable},
	{"deadlock", domainagg.CodeRetryable},
	{"serialization", domainagg.CodeRetryable},
	{"timeout", domainagg.CodeRetryable},
}

// MapError tags err with the aggregate code callers branch on. Errors that already
// carry a code pass through untouched.
func MapError(op string, err error) error {
	if err == nil {
		return nil
	}
	var aggErr *domainagg.Error
	if errors.As(err, &aggErr) {
		return err
	}
	return domainagg.Wrap(classify(err), op, err)
}

func classify(err error) domainagg.ErrorCode {
	for _, s := range sentinelCodes {
		if errors.Is(err, s.err) {
			return s.code
		}
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if code, ok := pgStateCodes[strings.TrimSpace(pgErr.Code)]; ok {
			return code
		}
	}
	msg := strings.ToLower(err.Error())
	for _, m := range messageCodes {
		if strings.Contains(msg, m.fragment) {
			return m.code
		}
	}
	return domainagg.CodeInternal
}
