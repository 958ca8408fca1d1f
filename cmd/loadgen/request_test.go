package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/keypart/internal/wire"
)

func TestParseRequestsHandlesAllKinds(t *testing.T) {
	in := strings.Join([]string{
		"# a comment",
		"",
		"W 1 hello world",
		"R 1",
		"S 1 3",
	}, "\n")

	reqs, err := parseRequests(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, reqs, 3)

	assert.Equal(t, wire.Write, reqs[0].msg.Kind)
	assert.Equal(t, int64(1), reqs[0].msg.Key)
	assert.Equal(t, "hello world", string(reqs[0].msg.Args))

	assert.Equal(t, wire.Read, reqs[1].msg.Kind)

	assert.Equal(t, wire.Scan, reqs[2].msg.Kind)
	assert.Equal(t, "3", string(reqs[2].msg.Args))

	assert.Equal(t, int32(0), reqs[0].msg.ID)
	assert.Equal(t, int32(1), reqs[1].msg.ID)
	assert.Equal(t, int32(2), reqs[2].msg.ID)
}

func TestParseRequestsRejectsUnknownOp(t *testing.T) {
	_, err := parseRequests(strings.NewReader("X 1"))
	assert.Error(t, err)
}

func TestParseRequestsRejectsMissingScanCount(t *testing.T) {
	_, err := parseRequests(strings.NewReader("S 1"))
	assert.Error(t, err)
}

func TestParseRequestsRejectsMissingWriteValue(t *testing.T) {
	_, err := parseRequests(strings.NewReader("W 1"))
	assert.Error(t, err)
}
