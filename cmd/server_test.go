package cmd

import (
	"testing"

	"github.com/GurgoSoft/MIND-sub001/internal/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseServices(t *testing.T) {
	got, err := parseServices([]string{"diary", "all", "users"})
	require.NoError(t, err)
	assert.Equal(t, []server.Service{server.ServiceDiary, server.ServiceUsers, server.ServiceAgenda}, got)

	_, err = parseServices([]string{"users", "billing"})
	assert.Error(t, err)
}
