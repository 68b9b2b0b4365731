package bank

import (
	"errors"
	"math/big"
	"testing"

	farmstate "farmchain/core/state"
	"farmchain/storage"
)

var (
	testAdmin  = [20]byte{0xad}
	testFarm   = [20]byte{0xfa}
	testAlice  = [20]byte{0xa1}
	testBob    = [20]byte{0xb0}
	testVault  = [20]byte{0xcc}
	testSupply = big.NewInt(1_000)
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(func() { db.Close() })
	ledger := NewLedger(farmstate.NewManager(db))
	if err := ledger.Register("LP", "Liquidity", 6, nil, testAdmin); err != nil {
		t.Fatalf("register LP: %v", err)
	}
	if err := ledger.Register("RWD", "Reward", 18, testSupply, testAdmin); err != nil {
		t.Fatalf("register RWD: %v", err)
	}
	return ledger
}

func balance(t *testing.T, l *Ledger, addr [20]byte, symbol string) string {
	t.Helper()
	amount, err := l.BalanceOf(addr, symbol)
	if err != nil {
		t.Fatalf("balance %s: %v", symbol, err)
	}
	return amount.String()
}

func TestTransfer(t *testing.T) {
	ledger := newTestLedger(t)
	if err := ledger.Credit(testAdmin, testAlice, "lp", big.NewInt(100)); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := ledger.Credit(testBob, testAlice, "LP", big.NewInt(1)); !errors.Is(err, ErrNotAdmin) {
		t.Fatalf("expected ErrNotAdmin, got %v", err)
	}
	if err := ledger.Transfer("LP", testAlice, testBob, big.NewInt(40)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if got := balance(t, ledger, testAlice, "LP"); got != "60" {
		t.Fatalf("alice balance: got %s want 60", got)
	}
	if got := balance(t, ledger, testBob, "LP"); got != "40" {
		t.Fatalf("bob balance: got %s want 40", got)
	}
	if err := ledger.Transfer("LP", testAlice, testBob, big.NewInt(61)); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if err := ledger.Transfer("LP", testAlice, testBob, big.NewInt(0)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if err := ledger.Transfer("XYZ", testAlice, testBob, big.NewInt(1)); !errors.Is(err, ErrUnknownToken) {
		t.Fatalf("expected ErrUnknownToken, got %v", err)
	}
}

func TestMintRequiresCapabilityAndRespectsCap(t *testing.T) {
	ledger := newTestLedger(t)

	if err := ledger.Mint(Capability{symbol: "RWD", holder: testFarm}, testAlice, big.NewInt(1)); !errors.Is(err, ErrInvalidCapability) {
		t.Fatalf("expected ErrInvalidCapability, got %v", err)
	}
	if _, err := ledger.GrantMinter(testBob, "RWD", testFarm); !errors.Is(err, ErrNotAdmin) {
		t.Fatalf("expected ErrNotAdmin, got %v", err)
	}
	capability, err := ledger.GrantMinter(testAdmin, "rwd", testFarm)
	if err != nil {
		t.Fatalf("grant minter: %v", err)
	}
	if capability.Symbol() != "RWD" || capability.Holder() != testFarm {
		t.Fatalf("unexpected capability %+v", capability)
	}
	minter := ledger.RewardMinter(capability)
	if err := minter.Mint(testAlice, big.NewInt(999)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := minter.Mint(testAlice, big.NewInt(2)); !errors.Is(err, ErrSupplyCapExceeded) {
		t.Fatalf("expected ErrSupplyCapExceeded, got %v", err)
	}
	meta, err := ledger.Token("RWD")
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	if meta.TotalSupply.String() != "999" {
		t.Fatalf("total supply: got %s want 999", meta.TotalSupply)
	}

	if err := ledger.SetMintPaused(testAdmin, "RWD", true); err != nil {
		t.Fatalf("pause mint: %v", err)
	}
	if err := minter.Mint(testAlice, big.NewInt(1)); !errors.Is(err, ErrMintPaused) {
		t.Fatalf("expected ErrMintPaused, got %v", err)
	}
}

func TestStakeAssetAdapter(t *testing.T) {
	ledger := newTestLedger(t)
	if err := ledger.Credit(testAdmin, testAlice, "LP", big.NewInt(10)); err != nil {
		t.Fatalf("credit: %v", err)
	}
	asset, err := ledger.StakeAssets(testVault).StakeAsset("lp")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if err := asset.TransferIn(testAlice, big.NewInt(7)); err != nil {
		t.Fatalf("transfer in: %v", err)
	}
	if got := balance(t, ledger, testVault, "LP"); got != "7" {
		t.Fatalf("vault balance: got %s want 7", got)
	}
	if err := asset.TransferOut(testBob, big.NewInt(3)); err != nil {
		t.Fatalf("transfer out: %v", err)
	}
	held, err := asset.BalanceOf(testBob)
	if err != nil || held.String() != "3" {
		t.Fatalf("bob balance: got %v err %v", held, err)
	}
	if _, err := ledger.StakeAssets(testVault).StakeAsset("NOPE"); !errors.Is(err, ErrUnknownToken) {
		t.Fatalf("expected ErrUnknownToken, got %v", err)
	}
}

func TestBonusMinterMintsOneUnit(t *testing.T) {
	ledger := newTestLedger(t)
	if err := ledger.Register("BONUS", "Bonus", 0, big.NewInt(0), testAdmin); err != nil {
		t.Fatalf("register: %v", err)
	}
	capability, err := ledger.GrantMinter(testAdmin, "BONUS", testFarm)
	if err != nil {
		t.Fatalf("grant: %v", err)
	}
	if err := ledger.BonusMinter(capability).Mint(testAlice); err != nil {
		t.Fatalf("mint bonus: %v", err)
	}
	if got := balance(t, ledger, testAlice, "BONUS"); got != "1" {
		t.Fatalf("bonus balance: got %s want 1", got)
	}
}

func TestMinterCapabilityRestoresGrant(t *testing.T) {
	ledger := newTestLedger(t)
	if _, err := ledger.MinterCapability("RWD", testFarm); !errors.Is(err, ErrInvalidCapability) {
		t.Fatalf("expected ErrInvalidCapability before grant, got %v", err)
	}
	if _, err := ledger.GrantMinter(testAdmin, "RWD", testFarm); err != nil {
		t.Fatalf("grant: %v", err)
	}
	capability, err := ledger.MinterCapability("rwd", testFarm)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if err := ledger.Mint(capability, testAlice, big.NewInt(5)); err != nil {
		t.Fatalf("mint with restored capability: %v", err)
	}
}
