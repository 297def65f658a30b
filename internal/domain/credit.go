package domain

// CreditLevel classifies how many credits a package has left
type CreditLevel string

const (
	CreditLevelNormal    CreditLevel = "normal"
	CreditLevelLow       CreditLevel = "low"
	CreditLevelExhausted CreditLevel = "exhausted"
)

// Low-credit thresholds. A notification fires when a recording leaves the
// package at exactly one of these values.
const (
	LowCreditUpper = 2
	LowCreditLower = 1
)

// Remaining returns total minus used, floored at zero.
func Remaining(pkg *LessonPackage) int {
	r := pkg.TotalLessons - pkg.UsedLessons
	if r < 0 {
		return 0
	}
	return r
}

// Classify maps a remaining-credit count to its level.
func Classify(remaining int) CreditLevel {
	switch {
	case remaining <= 0:
		return CreditLevelExhausted
	case remaining >= LowCreditLower && remaining <= LowCreditUpper:
		return CreditLevelLow
	default:
		return CreditLevelNormal
	}
}

// NextStatus returns completed when an active package has no credits left.
// Any other status is returned unchanged; completed is never demoted.
func NextStatus(pkg *LessonPackage) string {
	if pkg.Status == PackageStatusActive && Remaining(pkg) == 0 {
		return PackageStatusCompleted
	}
	return pkg.Status
}

// CanConsume is the single gate every store backend applies before taking a
// credit. A completed package that regained a credit through undo may still
// be consumed.
func CanConsume(pkg *LessonPackage) error {
	if pkg.Status == PackageStatusExpired {
		return ErrPackageExpired
	}
	if pkg.TotalLessons-pkg.UsedLessons <= 0 {
		return ErrCapacityExceeded
	}
	return nil
}

// Consume returns a copy of pkg with one more used credit and the resulting
// status applied.
func Consume(pkg *LessonPackage) (*LessonPackage, error) {
	if err := CanConsume(pkg); err != nil {
		return nil, err
	}
	next := *pkg
	next.UsedLessons++
	next.Status = NextStatus(&next)
	return &next, nil
}

// Release returns a copy of pkg with one credit given back. Status is left
// as is: undoing the completing lesson does not reactivate the package.
func Release(pkg *LessonPackage) (*LessonPackage, error) {
	if pkg.UsedLessons <= 0 {
		return nil, ErrNothingToRelease
	}
	next := *pkg
	next.UsedLessons--
	return &next, nil
}
