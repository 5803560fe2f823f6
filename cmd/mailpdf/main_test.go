package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/nhle/mailpdf/internal/model"
	"github.com/nhle/mailpdf/tests/testutil"
)

func TestHistoryCommand(t *testing.T) {
	dir := t.TempDir()
	ledgerPath := filepath.Join(dir, "ledger.db")

	testutil.SeedDownloads(t, testutil.OpenTestLedger(t, ledgerPath), model.Download{
		MessageID: "m1", AttachmentName: "invoice.pdf", Path: "bils/invoice.pdf", Size: 6,
	})

	cfgPath := filepath.Join(dir, "mailpdf.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("ledger:\n  path: "+ledgerPath+"\n"), 0o600))

	var out bytes.Buffer
	cliApp := newCLI()
	cliApp.Writer = &out

	err := cliApp.Run([]string{"mailpdf", "--env-file", "", "-c", cfgPath, "history", "--limit", "5"})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "bils/invoice.pdf")
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("MAILPDF_TEST_VALUE=from-dotenv\n"), 0o600))
	t.Setenv("MAILPDF_TEST_VALUE", "")
	os.Unsetenv("MAILPDF_TEST_VALUE")

	cliApp := newCLI()
	cliApp.Action = func(*cli.Context) error { return nil }
	require.NoError(t, cliApp.Run([]string{"mailpdf", "--env-file", envPath}))
	assert.Equal(t, "from-dotenv", os.Getenv("MAILPDF_TEST_VALUE"))

	cliApp = newCLI()
	cliApp.Action = func(*cli.Context) error { return nil }
	assert.NoError(t, cliApp.Run([]string{"mailpdf", "--env-file", filepath.Join(dir, "missing.env")}))
}
