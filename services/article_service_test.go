package services

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

func TestIsUniqueViolation(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"translated", gorm.ErrDuplicatedKey, true},
		{"wrapped translated", fmt.Errorf("create failed: %w", gorm.ErrDuplicatedKey), true},
		{"driver 23505", &pgconn.PgError{Code: "23505"}, true},
		{"wrapped driver", fmt.Errorf("create failed: %w", &pgconn.PgError{Code: "23505"}), true},
		{"other driver error", &pgconn.PgError{Code: "23503"}, false},
		{"unrelated", errors.New("connection refused"), false},
	}

	for _, c := range cases {
		if got := isUniqueViolation(c.err); got != c.want {
			t.Errorf("%s: isUniqueViolation = %v, want %v", c.name, got, c.want)
		}
	}
}
