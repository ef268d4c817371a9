package tenantdata

import (
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	// ErrMissingTenant is returned by writes on a collection without an organization scope.
	ErrMissingTenant = errors.New("Missing organization ID") //nolint:staticcheck // shown to users verbatim
	// ErrNotFound means no row with that id exists for the tenant.
	ErrNotFound = errors.New("record not found")
	// ErrUnknownColumn means a partial update named a column that cannot be written.
	ErrUnknownColumn = errors.New("unknown or protected column")
	// ErrConflict means a unique constraint rejected the write.
	ErrConflict = errors.New("record already exists")
)

// mapPostgresError turns driver errors into sentinel errors or readable messages.
func mapPostgresError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case pgerrcode.UniqueViolation:
		return fmt.Errorf("%w: %s", ErrConflict, pgErr.ConstraintName)
	case pgerrcode.ForeignKeyViolation:
		return fmt.Errorf("referenced record does not exist (%s): %w", pgErr.ConstraintName, err)
	case pgerrcode.NotNullViolation:
		return fmt.Errorf("%s is required: %w", pgErr.ColumnName, err)
	case pgerrcode.CheckViolation:
		return fmt.Errorf("check constraint violation: %s: %w", pgErr.ConstraintName, err)
	case pgerrcode.InvalidTextRepresentation, pgerrcode.InvalidDatetimeFormat, pgerrcode.NumericValueOutOfRange:
		return fmt.Errorf("invalid value: %s: %w", pgErr.Message, err)
	case pgerrcode.UndefinedTable, pgerrcode.UndefinedColumn:
		return fmt.Errorf("schema mismatch: %s: %w", pgErr.Message, err)
	case pgerrcode.ConnectionException,
		pgerrcode.ConnectionDoesNotExist,
		pgerrcode.ConnectionFailure,
		pgerrcode.CannotConnectNow,
		pgerrcode.SQLClientUnableToEstablishSQLConnection,
		pgerrcode.AdminShutdown,
		pgerrcode.CrashShutdown,
		pgerrcode.TooManyConnections:
		return fmt.Errorf("database unavailable: %w", err)
	case pgerrcode.QueryCanceled:
		return fmt.Errorf("query canceled: %w", err)
	default:
		return fmt.Errorf("postgres error [%s]: %s: %w", pgErr.Code, pgErr.Message, err)
	}
}
