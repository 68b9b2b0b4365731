package farm

import "farmchain/core/events"

// Initialize records the owner and writes an empty registry. It may only be
// called once per state.
func (e *Engine) Initialize(owner [20]byte) error {
	if err := e.ready(); err != nil {
		return err
	}
	if isZeroAddress(owner) {
		return ErrInvalidAddress
	}
	_, ok, err := e.state.FarmGlobalGet()
	if err != nil {
		return err
	}
	if ok {
		return ErrAlreadyInitialized
	}
	return e.state.FarmGlobalPut(&Global{Owner: owner})
}

func (e *Engine) requireOwner(global *Global, caller [20]byte) error {
	if global == nil || isZeroAddress(caller) || caller != global.Owner {
		return ErrUnauthorized
	}
	return nil
}

// Owner returns the identity allowed to administer pools.
func (e *Engine) Owner() ([20]byte, error) {
	if err := e.ready(); err != nil {
		return [20]byte{}, err
	}
	global, err := e.loadGlobal()
	if err != nil {
		return [20]byte{}, err
	}
	return global.Owner, nil
}

// TransferOwnership hands the owner role to next.
func (e *Engine) TransferOwnership(caller, next [20]byte) error {
	if err := e.ready(); err != nil {
		return err
	}
	global, err := e.loadGlobal()
	if err != nil {
		return err
	}
	if err := e.requireOwner(global, caller); err != nil {
		return err
	}
	if isZeroAddress(next) {
		return ErrInvalidAddress
	}
	previous := global.Owner
	global.Owner = next
	if err := e.state.FarmGlobalPut(global); err != nil {
		return err
	}
	e.emit(events.FarmOwnershipTransferred{Previous: previous, Owner: next})
	return nil
}
