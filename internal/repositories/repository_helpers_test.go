package repositories

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
)

func TestPagination(t *testing.T) {
	tests := []struct {
		name           string
		page           int
		count          int
		expectedLimit  int
		expectedOffset int
	}{
		{name: "defaults", page: 0, count: 0, expectedLimit: 20, expectedOffset: 0},
		{name: "third page", page: 3, count: 10, expectedLimit: 10, expectedOffset: 20},
		{name: "count capped", page: 1, count: 1000, expectedLimit: 100, expectedOffset: 0},
		{name: "negative page", page: -2, count: 5, expectedLimit: 5, expectedOffset: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limit, offset := pagination(tt.page, tt.count)
			assert.Equal(t, tt.expectedLimit, limit)
			assert.Equal(t, tt.expectedOffset, offset)
		})
	}
}

func TestIsDuplicateEntry(t *testing.T) {
	dup := &mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'a' for key 'uq_users_email'"}

	assert.True(t, isDuplicateEntry(dup))
	assert.True(t, isDuplicateEntry(fmt.Errorf("wrapped: %w", dup)))
	assert.False(t, isDuplicateEntry(&mysql.MySQLError{Number: 1213}))
	assert.False(t, isDuplicateEntry(errors.New("Duplicate entry")))
}
