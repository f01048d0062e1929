//go:build blackbox

package blackbox

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

var ledgerBin string

func TestMain(m *testing.M) {
	tmp, err := os.MkdirTemp("", "ledger-blackbox-*")
	if err != nil {
		panic(err)
	}
	defer os.RemoveAll(tmp)

	ledgerBin = filepath.Join(tmp, "ledger")

	// Build the binary once for all tests.
	cmd := exec.Command("go", "build", "-o", ledgerBin, "../../cmd/ledger")
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		panic(err)
	}

	os.Exit(m.Run())
}

func run(t *testing.T, args ...string) string {
	t.Helper()

	cmd := exec.Command(ledgerBin, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		// CombinedOutput merges stdout/stderr; still useful in failures.
		t.Fatalf("command failed: %v\nargs: %v\noutput:\n%s", err, args, string(out))
	}
	return string(out)
}

// runFail expects a non-zero exit and returns the combined output.
func runFail(t *testing.T, args ...string) string {
	t.Helper()

	cmd := exec.Command(ledgerBin, args...)
	out, err := cmd.CombinedOutput()
	if err == nil {
		t.Fatalf("command succeeded, want failure\nargs: %v\noutput:\n%s", args, string(out))
	}
	return string(out)
}
