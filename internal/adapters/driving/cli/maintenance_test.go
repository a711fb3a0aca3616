package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sheetdex/internal/core/domain"
)

func TestPendingCmd_NothingPending(t *testing.T) {
	setupTestServices(t)

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"pending"})

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, buf.String(), "No chunks pending embedding.")
}

func TestPendingCmd_Retries(t *testing.T) {
	ts := setupTestServices(t)
	ts.ingest.pending = &domain.PendingReport{Attempted: 5, Resolved: 4, StillPending: []string{"c9"}}

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"pending"})

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, buf.String(), "Attempted 5, resolved 4, still pending 1.")
}

func TestPendingCmd_NoProvider(t *testing.T) {
	ts := setupTestServices(t)
	ts.ingest.err = domain.ErrEmbeddingUnavailable

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"pending"})

	err := rootCmd.Execute()

	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
}

func TestCheckCmd_OK(t *testing.T) {
	ts := setupTestServices(t)
	ts.ingest.integrity = &domain.IntegrityReport{Chunks: 42}

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"check"})

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, buf.String(), "Checked 42 chunks: OK")
}

func TestCheckCmd_Problems(t *testing.T) {
	ts := setupTestServices(t)
	ts.ingest.integrity = &domain.IntegrityReport{
		Chunks: 42,
		Problems: []domain.IntegrityError{
			{ChunkID: "row1", MissingID: "sec1"},
		},
	}

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"check"})

	err := rootCmd.Execute()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 integrity problems")
	assert.Contains(t, buf.String(), "integrity error on chunk row1: ancestor sec1 missing")
}
