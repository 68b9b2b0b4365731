package rpc

import (
	"context"
	"encoding/base64"
	"encoding/json"

	"farmchain/integrations/exports"
)

// ExportResult carries an encoded export. Parquet payloads are base64
// encoded, text formats are returned verbatim.
type ExportResult struct {
	Format   string `json:"format"`
	Encoding string `json:"encoding"`
	Checksum string `json:"checksum"`
	Rows     int    `json:"rows"`
	Data     string `json:"data"`
}

type exportPositionsParams struct {
	PoolID uint64 `json:"poolId"`
	Format string `json:"format,omitempty"`
}

type exportEventsParams struct {
	eventsParams
	Format string `json:"format,omitempty"`
}

func exportResult(format exports.Format, rows int, data []byte, checksum string) ExportResult {
	result := ExportResult{Format: string(format), Checksum: checksum, Rows: rows}
	if format == exports.FormatParquet {
		result.Encoding = "base64"
		result.Data = base64.StdEncoding.EncodeToString(data)
		return result
	}
	result.Encoding = "utf8"
	result.Data = string(data)
	return result
}

func (s *Server) handleExportPositions(_ context.Context, raw json.RawMessage) (interface{}, *RPCError) {
	var params exportPositionsParams
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	format, err := exports.ParseFormat(params.Format)
	if err != nil {
		return nil, &RPCError{Code: codeInvalidParams, Message: err.Error()}
	}
	if format == exports.FormatParquet {
		return nil, &RPCError{Code: codeInvalidParams, Message: "positions support csv or jsonl"}
	}
	positions, err := s.node.Positions(params.PoolID)
	if err != nil {
		return nil, ledgerError(err)
	}
	rows := make([]exports.PositionRow, 0, len(positions))
	for _, position := range positions {
		pending, err := s.node.PendingReward(params.PoolID, position.Owner)
		if err != nil {
			return nil, ledgerError(err)
		}
		rows = append(rows, exports.PositionRow{Position: position, Pending: pending})
	}
	var (
		data     []byte
		checksum string
	)
	if format == exports.FormatCSV {
		data, checksum, err = exports.PositionsCSV(rows)
	} else {
		data, checksum, err = exports.PositionsJSONL(rows)
	}
	if err != nil {
		return nil, &RPCError{Code: codeServerError, Message: "export failed", Data: err.Error()}
	}
	return exportResult(format, len(rows), data, checksum), nil
}

func (s *Server) handleExportEvents(ctx context.Context, raw json.RawMessage) (interface{}, *RPCError) {
	if s.events == nil {
		return nil, &RPCError{Code: codeServerError, Message: "event index disabled"}
	}
	var params exportEventsParams
	if len(raw) > 0 {
		if rpcErr := decodeParams(raw, &params); rpcErr != nil {
			return nil, rpcErr
		}
	}
	format, err := exports.ParseFormat(params.Format)
	if err != nil {
		return nil, &RPCError{Code: codeInvalidParams, Message: err.Error()}
	}
	filter, rpcErr := params.filter()
	if rpcErr != nil {
		return nil, rpcErr
	}
	evts, err := s.events.Query(ctx, filter)
	if err != nil {
		return nil, &RPCError{Code: codeServerError, Message: "event query failed", Data: err.Error()}
	}
	data, checksum, err := exports.Events(format, evts)
	if err != nil {
		return nil, &RPCError{Code: codeServerError, Message: "export failed", Data: err.Error()}
	}
	return exportResult(format, len(evts), data, checksum), nil
}
