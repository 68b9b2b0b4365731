package farm

import "errors"

var (
	ErrNilState                  = errors.New("farm: state not configured")
	ErrNotInitialized            = errors.New("farm: module not initialised")
	ErrAlreadyInitialized        = errors.New("farm: module already initialised")
	ErrInvalidPoolID             = errors.New("farm: invalid pool id")
	ErrUnauthorized              = errors.New("farm: unauthorized")
	ErrInvalidAmount             = errors.New("farm: amount must be positive")
	ErrInsufficientStake         = errors.New("farm: withdraw amount exceeds staked amount")
	ErrInsufficientBalance       = errors.New("farm: insufficient stake asset balance")
	ErrNothingToHarvest          = errors.New("farm: nothing to harvest")
	ErrEmergencyWithdrawDisabled = errors.New("farm: emergency withdraw disabled")
	ErrUnknownAsset              = errors.New("farm: unknown stake asset")
	ErrInvalidAddress            = errors.New("farm: invalid address")
	ErrOverflow                  = errors.New("farm: value exceeds 256 bits")
	ErrCollaboratorMissing       = errors.New("farm: asset collaborator not configured")
)
