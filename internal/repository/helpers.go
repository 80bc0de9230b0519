package repository

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// ErrDuplicate is returned when a unique constraint rejects a write.
var ErrDuplicate = errors.New("duplicate record")

// ErrReferenced is returned when a restricting foreign key blocks a delete.
var ErrReferenced = errors.New("record is still referenced")

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

func translateWriteErr(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case uniqueViolation:
			return fmt.Errorf("%s: %w", op, ErrDuplicate)
		case foreignKeyViolation:
			return fmt.Errorf("%s: %w", op, ErrReferenced)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// conditions accumulates WHERE clauses with positional arguments. The format
// passed to add receives the placeholder index via %[1]d. base offsets the
// indexes when earlier placeholders are already taken.
type conditions struct {
	base    int
	clauses []string
	args    []interface{}
}

func (c *conditions) add(format string, arg interface{}) {
	c.args = append(c.args, arg)
	c.clauses = append(c.clauses, fmt.Sprintf(format, c.base+len(c.args)))
}

func (c *conditions) where() string {
	if len(c.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(c.clauses, " AND ")
}

func normalizePage(page, pageSize, fallback, max int) (int, int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > max {
		pageSize = fallback
	}
	return page, pageSize, (page - 1) * pageSize
}
