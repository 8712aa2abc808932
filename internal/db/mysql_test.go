package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRedactDSN(t *testing.T) {
	assert.Equal(t,
		"***@tcp(localhost:3306)/messmate?parseTime=True",
		redactDSN("user:password@tcp(localhost:3306)/messmate?parseTime=True"))
	assert.Equal(t, "tcp(localhost:3306)/messmate", redactDSN("tcp(localhost:3306)/messmate"))
}
