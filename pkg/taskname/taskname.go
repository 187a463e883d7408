package taskname

const (
	// Payout tasks
	PayoutSummaryDaily = "payout:summary:daily"

	// Reward pool tasks
	RewardPoolReconcile = "rewardpool:reconcile"
)
