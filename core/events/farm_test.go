package events

import (
	"math/big"
	"testing"
)

func TestFarmWithdrawnOmitsZeroPenalty(t *testing.T) {
	evt := FarmPoolWithdrawn{PoolID: 3, Amount: big.NewInt(100), Penalty: big.NewInt(0)}.Event()
	if evt.Type != TypeFarmPoolWithdrawn {
		t.Fatalf("unexpected type %q", evt.Type)
	}
	if evt.Attr("poolId") != "3" || evt.Attr("amount") != "100" {
		t.Fatalf("unexpected attributes %v", evt.Attributes)
	}
	if _, ok := evt.Attributes["penalty"]; ok {
		t.Fatalf("zero penalty should not be rendered")
	}

	withPenalty := FarmPoolWithdrawn{PoolID: 3, Amount: big.NewInt(97), Penalty: big.NewInt(3)}.Event()
	if withPenalty.Attr("penalty") != "3" {
		t.Fatalf("expected penalty attribute, got %v", withPenalty.Attributes)
	}
}

func TestRecorderDrainAndFanout(t *testing.T) {
	first := &Recorder{}
	second := &Recorder{}
	fan := Fanout{first, nil, second}

	fan.Emit(FarmEmergencyStatusChanged{Enabled: true})
	fan.Emit(FarmPoolCreated{PoolID: 0, StakeAsset: "usdc", AllocationWeight: 200})

	got := first.Drain()
	if len(got) != 2 || len(second.Drain()) != 2 {
		t.Fatalf("expected both recorders to receive 2 events")
	}
	if len(first.Drain()) != 0 {
		t.Fatalf("drain should reset the buffer")
	}
	rendered := Render(got[1])
	if rendered.Attr("stakeAsset") != "USDC" {
		t.Fatalf("expected normalized asset, got %q", rendered.Attr("stakeAsset"))
	}
}
