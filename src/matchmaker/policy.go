package matchmaker

// PairPolicy selects the next two users to pair from the waiting pool.
// No fairness or waiting-time ordering is promised by the default; swap
// the policy to change that.
type PairPolicy interface {
	// Pick returns two distinct user ids from the pool, or ok=false when
	// fewer than two users are waiting.
	Pick(pool map[int64]struct{}) (first, second int64, ok bool)
}

// ArbitraryPolicy pairs whichever two users map iteration yields first.
type ArbitraryPolicy struct{}

func (ArbitraryPolicy) Pick(pool map[int64]struct{}) (first, second int64, ok bool) {
	if len(pool) < 2 {
		return 0, 0, false
	}
	picked := 0
	for userID := range pool {
		switch picked {
		case 0:
			first = userID
		case 1:
			second = userID
			return first, second, true
		}
		picked++
	}
	return 0, 0, false
}
