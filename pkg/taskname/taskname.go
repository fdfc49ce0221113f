package taskname

const (
	// Challenge tasks
	ChallengeGenerate = "gaming:challenge:generate"
	ChallengeExpire   = "gaming:challenge:expire"

	// Badge tasks
	BadgeSweep = "gaming:badge:sweep"

	// Discount tasks
	DiscountCleanupExpired = "gaming:discount:cleanup:expired"
)
