package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledgerbook/internal/apitest"
	"ledgerbook/internal/core"
)

type result struct {
	stdout, stderr string
}

func setEnv(t *testing.T, backend string) {
	t.Helper()
	for _, key := range []string{
		"API_BASE_URL", "REQUEST_TIMEOUT", "PAGE_SIZE", "CATEGORY_CACHE_TTL",
		"AMQP_URL", "GOOGLE_SPREADSHEET_ID", "GOOGLE_SERVICE_ACCOUNT_FILE",
		"GOOGLE_SERVICE_ACCOUNT_JSON", "LEDGERBOOK_CONFIG",
	} {
		t.Setenv(key, "")
	}
	t.Setenv("DATA_BACKEND", backend)
	t.Setenv("STORAGE_PATH", filepath.Join(t.TempDir(), "ledgerbook.db"))
	t.Setenv("LOG_LEVEL", "error")
}

func ledgerbook(t *testing.T, stdin string, args ...string) (result, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), args, strings.NewReader(stdin), &stdout, &stderr)
	return result{stdout: stdout.String(), stderr: stderr.String()}, err
}

func mustRun(t *testing.T, stdin string, args ...string) string {
	t.Helper()
	res, err := ledgerbook(t, stdin, args...)
	require.NoError(t, err, "ledgerbook %s\nstderr: %s", strings.Join(args, " "), res.stderr)
	return res.stdout
}

func TestHelp(t *testing.T) {
	out := mustRun(t, "")
	assert.Contains(t, out, "COMMANDS:")
	for _, name := range []string{"login", "list", "add", "edit", "delete", "dashboard", "export"} {
		assert.Contains(t, out, name)
	}

	out = mustRun(t, "", "help", "add")
	assert.Contains(t, out, "ledgerbook add -type income|expense")

	_, err := ledgerbook(t, "", "frobnicate")
	assert.EqualError(t, err, `unknown command "frobnicate"`)
}

func TestCommandsRequireLogin(t *testing.T) {
	setEnv(t, "offline")

	_, err := ledgerbook(t, "", "list")
	assert.ErrorIs(t, err, errNotSignedIn)
}

func TestInvalidConfiguration(t *testing.T) {
	setEnv(t, "offline")
	t.Setenv("PAGE_SIZE", "500")

	_, err := ledgerbook(t, "", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid page size 500")
}

func TestOfflineSession(t *testing.T) {
	setEnv(t, "offline")

	_, err := ledgerbook(t, "wrong\n", "login", "-email", "demo@example.com")
	require.Error(t, err)
	assert.Equal(t, "Email หรือรหัสผ่านไม่ถูกต้อง", err.Error())

	out := mustRun(t, "password\n", "login", "-email", "demo@example.com")
	assert.Equal(t, "Signed in as Demo User <demo@example.com>\n", out)

	out = mustRun(t, "", "whoami")
	assert.Contains(t, out, "Demo User <demo@example.com> (id 1)")

	out = mustRun(t, "", "list", "-limit", "5")
	assert.Contains(t, out, "page 1 of 2 (10 entries)")

	out = mustRun(t, "", "dashboard")
	assert.Contains(t, out, "฿18,500")
	assert.Contains(t, out, "฿8,800")
	assert.Contains(t, out, "฿9,700")

	mustRun(t, "", "logout")
	_, err = ledgerbook(t, "", "list")
	assert.ErrorIs(t, err, errNotSignedIn)
}

func TestOfflineLedgerLifecycle(t *testing.T) {
	setEnv(t, "offline")
	mustRun(t, "password\n", "login", "-email", "demo@example.com")

	out := mustRun(t, "", "add", "-type", "expense", "-amount", "250", "-category", "อาหาร", "-date", "2025-05-15", "-remark", "coffee")
	assert.Contains(t, out, "expense ฿250 อาหาร")
	id := strings.TrimSuffix(strings.Fields(out)[1], ":")

	out = mustRun(t, "", "dashboard")
	assert.Contains(t, out, "฿9,050")

	out = mustRun(t, "", "edit", "-amount", "300.5", "-remark", "latte", id)
	assert.Contains(t, out, "฿300.50")

	out = mustRun(t, "", "show", id)
	assert.Contains(t, out, "latte")
	assert.Contains(t, out, "2025-05-15")

	out = mustRun(t, "", "delete", id)
	assert.Equal(t, "Deleted "+id+"\n", out)

	_, err := ledgerbook(t, "", "show", id)
	assert.Error(t, err)

	_, err = ledgerbook(t, "", "edit", "3")
	assert.ErrorIs(t, err, core.ErrEmptyPatch)
	_, err = ledgerbook(t, "", "add", "-type", "expense", "-amount", "-5", "-category", "4")
	assert.ErrorIs(t, err, core.ErrInvalidAmount)
}

func TestOfflineDeleteStepsBackFromEmptyPage(t *testing.T) {
	setEnv(t, "offline")
	t.Setenv("PAGE_SIZE", "3")
	mustRun(t, "password\n", "login", "-email", "demo@example.com")

	// ten entries at three per page leaves one entry, id 10, on page four
	out := mustRun(t, "", "delete", "-page", "4", "10")
	assert.Contains(t, out, "page 4 is now empty, showing page 3")
}

func TestOfflineLocalListing(t *testing.T) {
	setEnv(t, "offline")
	mustRun(t, "password\n", "login", "-email", "demo@example.com")

	out := mustRun(t, "", "list", "-local", "-type", "income", "-sort", "amount", "-asc")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 5, out)
	assert.Contains(t, lines[1], "ของขวัญ")
	assert.Contains(t, lines[3], "เงินเดือน")
	assert.Equal(t, "showing 1-3 of 3, pages [1]", lines[4])

	_, err := ledgerbook(t, "", "list", "-sort", "amount")
	assert.EqualError(t, err, "-sort other than date needs -local")
}

func TestOfflineExportCSV(t *testing.T) {
	setEnv(t, "offline")
	mustRun(t, "password\n", "login", "-email", "demo@example.com")

	out := mustRun(t, "", "export", "-type", "income")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "date,type,category,remark,amount", lines[0])

	path := filepath.Join(t.TempDir(), "out.csv")
	out = mustRun(t, "", "export", "-o", path)
	assert.Equal(t, "Exported 10 entries\n", out)
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 11, strings.Count(string(b), "\n"))

	_, err = ledgerbook(t, "", "export", "-format", "sheets")
	assert.ErrorContains(t, err, "GOOGLE_SPREADSHEET_ID")
}

func TestRemoteFlow(t *testing.T) {
	srv := apitest.New(t)
	srv.AddUser("Somchai", "somchai@example.com", "secret1")
	srv.Seed("somchai@example.com",
		core.Ledger{Type: core.Income, Amount: decimal.NewFromInt(30000), CategoryID: "1", Date: core.NewDate(2025, 5, 1), Remark: "salary"},
		core.Ledger{Type: core.Expense, Amount: decimal.NewFromInt(120), CategoryID: "4", Date: core.NewDate(2025, 5, 2), Remark: "noodles"},
	)
	setEnv(t, "remote")
	t.Setenv("API_BASE_URL", srv.BaseURL())

	out := mustRun(t, "secret1\n", "login", "-email", "somchai@example.com")
	assert.Equal(t, "Signed in as Somchai <somchai@example.com>\n", out)

	out = mustRun(t, "", "list")
	assert.Contains(t, out, "noodles")
	assert.Contains(t, out, "page 1 of 1 (2 entries)")

	out = mustRun(t, "", "add", "-type", "expense", "-amount", "80", "-category", "5", "-date", "2025-05-03")
	assert.Contains(t, out, "การเดินทาง")
	assert.Len(t, srv.Ledgers("somchai@example.com"), 3)

	out = mustRun(t, "", "categories", "-type", "income")
	assert.Contains(t, out, "เงินเดือน")
	assert.NotContains(t, out, "อาหาร")

	// an expired access token is refreshed without the user noticing
	srv.ExpireAccessTokens()
	out = mustRun(t, "", "dashboard")
	assert.Contains(t, out, "฿29,800")
	assert.Equal(t, 1, srv.Hits("POST", "/user/refresh"))
}

func TestRemoteSessionExpiry(t *testing.T) {
	srv := apitest.New(t)
	srv.AddUser("Somchai", "somchai@example.com", "secret1")
	setEnv(t, "remote")
	t.Setenv("API_BASE_URL", srv.BaseURL())

	mustRun(t, "secret1\n", "login", "-email", "somchai@example.com")

	srv.ExpireAccessTokens()
	srv.RevokeRefreshTokens()

	res, err := ledgerbook(t, "", "list")
	require.Error(t, err)
	assert.Contains(t, res.stderr, "run `ledgerbook login` to sign in again")

	_, err = ledgerbook(t, "", "list")
	assert.ErrorIs(t, err, errNotSignedIn)
}

func TestRegisterValidatesBeforeSubmitting(t *testing.T) {
	srv := apitest.New(t)
	setEnv(t, "remote")
	t.Setenv("API_BASE_URL", srv.BaseURL())

	_, err := ledgerbook(t, "secret1\nsecret2\n", "register", "-name", "Malee", "-email", "malee@example.com")
	assert.ErrorIs(t, err, core.ErrPasswordMismatch)
	assert.Zero(t, srv.Hits("POST", "/user/register"))

	out := mustRun(t, "secret1\nsecret1\n", "register", "-name", "Malee", "-email", "malee@example.com")
	assert.Contains(t, out, "Registered Malee <malee@example.com>")

	out = mustRun(t, "secret1\n", "login", "-email", "malee@example.com")
	assert.Contains(t, out, "Signed in as Malee")
}
