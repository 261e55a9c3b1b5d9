package detect_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/codescope-dev/codescope/pkg/detect"
)

func TestCodequiryOracleSkipsWithoutAPIKey(t *testing.T) {
	t.Parallel()

	oracle := detect.NewCodequiryOracle("")

	_, ok := oracle(context.Background(), "package main")
	assert.False(t, ok)
}

func TestCopyleaksOracleSkipsWithoutCredentials(t *testing.T) {
	t.Parallel()

	oracle := detect.NewCopyleaksOracle("", "")

	_, ok := oracle(context.Background(), "package main")
	assert.False(t, ok)

	oracle = detect.NewCopyleaksOracle("user@example.com", "")

	_, ok = oracle(context.Background(), "package main")
	assert.False(t, ok)
}
