package marker

import (
	"fmt"
	"regexp"

	"github.com/semmidev/strata/internal/domain"
)

var sourceIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

func key(sourceID string, t domain.BackupType) (string, error) {
	if !sourceIDPattern.MatchString(sourceID) {
		return "", fmt.Errorf("source id %q: %w", sourceID, domain.ErrInvalidKey)
	}
	if !t.Valid() {
		return "", fmt.Errorf("backup type %v: %w", t, domain.ErrInvalidKey)
	}
	return sourceID + "." + t.String(), nil
}
