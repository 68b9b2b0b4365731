package farm

import "math/big"

// inWindow reports whether fewer than window seconds have passed since the
// position's deposit clock. A clock in the future counts as inside.
func inWindow(position *Position, now, window uint64) bool {
	if now < position.DepositTime {
		return true
	}
	return now-position.DepositTime < window
}

// penaltySplit divides amount into the share returned to the caller and the
// share routed to the penalty receiver. Both shares round down on their own,
// so rounding dust stays in module custody.
func (e *Engine) penaltySplit(position *Position, now uint64, amount *big.Int) (net, penalty *big.Int) {
	if e.params.PenaltyBps == 0 || !inWindow(position, now, e.params.PenaltyWindowSeconds) {
		return new(big.Int).Set(amount), big.NewInt(0)
	}
	return applyBps(amount, maxBps-e.params.PenaltyBps), applyBps(amount, e.params.PenaltyBps)
}

// PenaltyFor previews the penalty a withdrawal of amount would pay at now.
func (e *Engine) PenaltyFor(poolID uint64, owner [20]byte, now uint64, amount *big.Int) (*big.Int, error) {
	_, penalty, err := e.WithdrawQuote(poolID, owner, now, amount)
	return penalty, err
}

// WithdrawQuote previews how a withdrawal of amount at now would be split
// between the caller and the penalty receiver.
func (e *Engine) WithdrawQuote(poolID uint64, owner [20]byte, now uint64, amount *big.Int) (net, penalty *big.Int, err error) {
	if err := e.ready(); err != nil {
		return nil, nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, nil, ErrInvalidAmount
	}
	global, err := e.loadGlobal()
	if err != nil {
		return nil, nil, err
	}
	if _, err := e.loadPool(global, poolID); err != nil {
		return nil, nil, err
	}
	position, err := e.loadPosition(poolID, owner)
	if err != nil {
		return nil, nil, err
	}
	net, penalty = e.penaltySplit(position, now, amount)
	return net, penalty, nil
}
