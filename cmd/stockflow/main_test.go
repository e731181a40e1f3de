package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	sftesting "github.com/stockflow/stockflow/testing"
)

func TestMain(m *testing.M) {
	sftesting.Main(m)
}

func TestRunTemplate(t *testing.T) {
	assert.Equal(t, 0, run(context.Background(), []string{"template", "products"}))
	assert.Equal(t, 1, run(context.Background(), []string{"template", "widgets"}))
}

func TestRunUnknownCommand(t *testing.T) {
	assert.Equal(t, 2, run(context.Background(), []string{"frobnicate"}))
}

func TestRunExportFromMemory(t *testing.T) {
	t.Setenv("DATASTORE", "memory")
	assert.Equal(t, 0, run(context.Background(), []string{"export", "-format", "json"}))
	assert.Equal(t, 2, run(context.Background(), []string{"export", "-nope"}))
}
