package bank

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"

	farmstate "farmchain/core/state"
	"farmchain/observability"
)

var (
	ErrNilState           = errors.New("bank: state manager required")
	ErrUnknownToken       = errors.New("bank: token not registered")
	ErrInvalidAmount      = errors.New("bank: amount must be positive")
	ErrInsufficientFunds  = errors.New("bank: insufficient balance")
	ErrSupplyCapExceeded  = errors.New("bank: mint exceeds max supply")
	ErrMintPaused         = errors.New("bank: minting paused")
	ErrNotAdmin           = errors.New("bank: caller is not the token admin")
	ErrInvalidCapability  = errors.New("bank: minter capability not granted")
	ErrAmountOutOfBounds  = errors.New("bank: amount exceeds 256 bits")
	errZeroAddressAccount = errors.New("bank: zero address")
)

func minterRole(symbol string) string {
	return "minter:" + symbol
}

// Ledger is the native token ledger: balances, supply and minter grants held
// in the state manager.
type Ledger struct {
	state *farmstate.Manager
}

// NewLedger constructs a ledger bound to the provided state manager.
func NewLedger(state *farmstate.Manager) *Ledger {
	return &Ledger{state: state}
}

// Capability proves that Holder was granted the minter role for Symbol by the
// token admin. Only GrantMinter creates one.
type Capability struct {
	symbol string
	holder [20]byte
}

func (c Capability) Symbol() string   { return c.symbol }
func (c Capability) Holder() [20]byte { return c.holder }

// Register adds a token. admin is the identity allowed to grant minter roles.
func (l *Ledger) Register(symbol, name string, decimals uint8, maxSupply *big.Int, admin [20]byte) error {
	if l == nil || l.state == nil {
		return ErrNilState
	}
	if maxSupply != nil {
		if _, overflow := uint256.FromBig(maxSupply); overflow {
			return ErrAmountOutOfBounds
		}
	}
	return l.state.RegisterToken(farmstate.TokenMetadata{
		Symbol:    symbol,
		Name:      name,
		Decimals:  decimals,
		MaxSupply: maxSupply,
		Admin:     admin,
	})
}

func (l *Ledger) token(symbol string) (*farmstate.TokenMetadata, error) {
	if l == nil || l.state == nil {
		return nil, ErrNilState
	}
	meta, err := l.state.Token(symbol)
	if err != nil {
		return nil, err
	}
	if meta == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownToken, farmstate.NormalizeSymbol(symbol))
	}
	return meta, nil
}

// Token returns the metadata of symbol.
func (l *Ledger) Token(symbol string) (*farmstate.TokenMetadata, error) {
	return l.token(symbol)
}

// BalanceOf returns addr's balance of symbol.
func (l *Ledger) BalanceOf(addr [20]byte, symbol string) (*big.Int, error) {
	if _, err := l.token(symbol); err != nil {
		return nil, err
	}
	return l.state.Balance(addr[:], symbol)
}

// Transfer moves amount of symbol from one account to another.
func (l *Ledger) Transfer(symbol string, from, to [20]byte, amount *big.Int) error {
	if err := validAmount(amount); err != nil {
		return err
	}
	if to == ([20]byte{}) {
		return errZeroAddressAccount
	}
	meta, err := l.token(symbol)
	if err != nil {
		return err
	}
	fromBalance, err := l.state.Balance(from[:], meta.Symbol)
	if err != nil {
		return err
	}
	if fromBalance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s has %s, needs %s", ErrInsufficientFunds, meta.Symbol, fromBalance, amount)
	}
	if from == to {
		return nil
	}
	toBalance, err := l.state.Balance(to[:], meta.Symbol)
	if err != nil {
		return err
	}
	if err := l.state.SetBalance(from[:], meta.Symbol, new(big.Int).Sub(fromBalance, amount)); err != nil {
		return err
	}
	if err := l.state.SetBalance(to[:], meta.Symbol, new(big.Int).Add(toBalance, amount)); err != nil {
		return err
	}
	observability.Events().RecordTransfer(meta.Symbol)
	return nil
}

// Credit issues amount of symbol to addr on behalf of the token admin. It is
// used to fund accounts at genesis and by development tooling.
func (l *Ledger) Credit(admin, addr [20]byte, symbol string, amount *big.Int) error {
	meta, err := l.token(symbol)
	if err != nil {
		return err
	}
	if admin != meta.Admin {
		return ErrNotAdmin
	}
	return l.issue(meta, addr, amount)
}

// GrantMinter lets admin hand holder the right to mint symbol.
func (l *Ledger) GrantMinter(admin [20]byte, symbol string, holder [20]byte) (Capability, error) {
	meta, err := l.token(symbol)
	if err != nil {
		return Capability{}, err
	}
	if admin != meta.Admin {
		return Capability{}, ErrNotAdmin
	}
	if holder == ([20]byte{}) {
		return Capability{}, errZeroAddressAccount
	}
	if err := l.state.SetRole(minterRole(meta.Symbol), holder[:]); err != nil {
		return Capability{}, err
	}
	return Capability{symbol: meta.Symbol, holder: holder}, nil
}

// MinterCapability returns the handle of a grant made earlier through
// GrantMinter, for hosts restarting on existing state.
func (l *Ledger) MinterCapability(symbol string, holder [20]byte) (Capability, error) {
	meta, err := l.token(symbol)
	if err != nil {
		return Capability{}, err
	}
	if !l.state.HasRole(minterRole(meta.Symbol), holder[:]) {
		return Capability{}, ErrInvalidCapability
	}
	return Capability{symbol: meta.Symbol, holder: holder}, nil
}

// SetMintPaused lets admin stop or resume minting of symbol.
func (l *Ledger) SetMintPaused(admin [20]byte, symbol string, paused bool) error {
	meta, err := l.token(symbol)
	if err != nil {
		return err
	}
	if admin != meta.Admin {
		return ErrNotAdmin
	}
	meta.MintPaused = paused
	return l.state.PutToken(meta)
}

// Mint creates amount of the capability's token for to.
func (l *Ledger) Mint(capability Capability, to [20]byte, amount *big.Int) error {
	meta, err := l.token(capability.symbol)
	if err != nil {
		return err
	}
	if !l.state.HasRole(minterRole(meta.Symbol), capability.holder[:]) {
		return ErrInvalidCapability
	}
	if meta.MintPaused {
		return ErrMintPaused
	}
	return l.issue(meta, to, amount)
}

func (l *Ledger) issue(meta *farmstate.TokenMetadata, to [20]byte, amount *big.Int) error {
	if err := validAmount(amount); err != nil {
		return err
	}
	if to == ([20]byte{}) {
		return errZeroAddressAccount
	}
	supply := new(big.Int).Add(meta.TotalSupply, amount)
	if _, overflow := uint256.FromBig(supply); overflow {
		return ErrAmountOutOfBounds
	}
	if meta.MaxSupply.Sign() > 0 && supply.Cmp(meta.MaxSupply) > 0 {
		return fmt.Errorf("%w: %s supply %s + %s > %s", ErrSupplyCapExceeded, meta.Symbol, meta.TotalSupply, amount, meta.MaxSupply)
	}
	balance, err := l.state.Balance(to[:], meta.Symbol)
	if err != nil {
		return err
	}
	if err := l.state.SetBalance(to[:], meta.Symbol, new(big.Int).Add(balance, amount)); err != nil {
		return err
	}
	meta.TotalSupply = supply
	if err := l.state.PutToken(meta); err != nil {
		return err
	}
	observability.Events().RecordTransfer(meta.Symbol)
	return nil
}

func validAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if _, overflow := uint256.FromBig(amount); overflow {
		return ErrAmountOutOfBounds
	}
	return nil
}
