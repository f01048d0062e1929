//go:build blackbox

package blackbox

import (
	"fmt"
	"os"
	"strings"
	"testing"
)

func contains(s, sub string) bool { return strings.Contains(s, sub) }

// writeSignalsCSV writes a replay file with a header row.
func writeSignalsCSV(t *testing.T, path string, rows [][]string) {
	t.Helper()

	var b strings.Builder
	b.WriteString("time,symbol,type,price,quantity,reason\n")
	for _, r := range rows {
		fmt.Fprintln(&b, strings.Join(r, ","))
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
}
