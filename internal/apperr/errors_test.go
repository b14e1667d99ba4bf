package apperr

import (
	"errors"
	"strings"
	"testing"
)

func TestNotFoundUnwraps(t *testing.T) {
	err := NotFound(ErrConfigNotFound, "/home/u/.claude.json", "/home/u/.config/claude/claude.json")
	if !errors.Is(err, ErrConfigNotFound) {
		t.Fatal("errors.Is should match the wrapped sentinel")
	}
	var nf *NotFoundError
	if !errors.As(err, &nf) || len(nf.Searched) != 2 {
		t.Fatalf("errors.As = %v", nf)
	}
	if !strings.Contains(err.Error(), ".config/claude/claude.json") {
		t.Errorf("message should list searched paths: %s", err)
	}
}

func TestNotFoundWithoutPaths(t *testing.T) {
	if got := NotFound(ErrNoBackups).Error(); got != ErrNoBackups.Error() {
		t.Errorf("Error() = %q", got)
	}
}
