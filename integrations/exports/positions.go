package exports

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"

	"farmchain/crypto"
	"farmchain/native/farm"
)

var positionHeader = []string{"pool_id", "address", "amount", "reward_debt", "pending", "deposit_time", "bonus_claimed"}

// PositionRow is one exported position. Pending is the reward owed at the
// snapshot block.
type PositionRow struct {
	Position *farm.Position
	Pending  *big.Int
}

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// PositionsCSV builds a CSV export of rows and returns it with its checksum.
func PositionsCSV(rows []PositionRow) ([]byte, string, error) {
	buffer := &bytes.Buffer{}
	writer := csv.NewWriter(buffer)
	if err := writer.Write(positionHeader); err != nil {
		return nil, "", err
	}
	for _, row := range rows {
		p := row.Position
		if p == nil {
			continue
		}
		record := []string{
			strconv.FormatUint(p.PoolID, 10),
			crypto.FromRaw(crypto.FarmPrefix, p.Owner).String(),
			amountString(p.Amount),
			amountString(p.RewardDebt),
			amountString(row.Pending),
			strconv.FormatUint(p.DepositTime, 10),
			strconv.FormatBool(p.BonusClaimed),
		}
		if err := writer.Write(record); err != nil {
			return nil, "", err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, "", err
	}
	data := buffer.Bytes()
	return data, Checksum(data), nil
}

// PositionsJSONL builds a JSON Lines export of rows and returns it with its
// checksum.
func PositionsJSONL(rows []PositionRow) ([]byte, string, error) {
	buffer := &bytes.Buffer{}
	encoder := json.NewEncoder(buffer)
	encoder.SetEscapeHTML(false)
	for _, row := range rows {
		p := row.Position
		if p == nil {
			continue
		}
		payload := map[string]interface{}{
			"pool_id":       p.PoolID,
			"address":       crypto.FromRaw(crypto.FarmPrefix, p.Owner).String(),
			"amount":        amountString(p.Amount),
			"reward_debt":   amountString(p.RewardDebt),
			"pending":       amountString(row.Pending),
			"deposit_time":  p.DepositTime,
			"bonus_claimed": p.BonusClaimed,
		}
		if err := encoder.Encode(payload); err != nil {
			return nil, "", fmt.Errorf("encode position: %w", err)
		}
	}
	data := buffer.Bytes()
	return data, Checksum(data), nil
}
