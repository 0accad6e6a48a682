package usecase

import (
	"time"

	"github.com/semmidev/strata/internal/domain"
)

// SelectType decides the backup type for one source on the given calendar
// day. A single forced flag wins over the policy. Both flags set is
// ambiguous: the default policy applies and ErrAmbiguousOverride is
// returned alongside the type so the caller can warn.
//
// Default policy: Saturday and Sunday run full, weekdays incremental.
func SelectType(o domain.Override, day time.Weekday) (domain.BackupType, error) {
	switch {
	case o.Full && !o.Incremental:
		return domain.Full, nil
	case o.Incremental && !o.Full:
		return domain.Incremental, nil
	}

	policy := domain.Incremental
	if day == time.Saturday || day == time.Sunday {
		policy = domain.Full
	}

	if o.Full && o.Incremental {
		return policy, domain.ErrAmbiguousOverride
	}
	return policy, nil
}
