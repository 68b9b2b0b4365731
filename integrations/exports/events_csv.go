package exports

import (
	"bytes"
	"encoding/csv"
	"strconv"

	"farmchain/core/types"
)

// EventsCSV builds a CSV export of committed events. Attributes beyond the
// indexed columns are folded into a single sorted key=value column.
func EventsCSV(evts []types.Event) ([]byte, string, error) {
	buffer := &bytes.Buffer{}
	writer := csv.NewWriter(buffer)
	if err := writer.Write([]string{"height", "type", "pool_id", "account", "amount", "attributes"}); err != nil {
		return nil, "", err
	}
	for _, evt := range evts {
		record := []string{
			strconv.FormatUint(evt.Height, 10),
			evt.Type,
			evt.Attributes["poolId"],
			evt.Attributes["addr"],
			evt.Attributes["amount"],
			encodeAttributes(evt.Attributes),
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
