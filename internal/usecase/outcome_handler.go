package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"QuantLens/internal/domain/models"
	domrepo "QuantLens/internal/domain/repository"
	domsvc "QuantLens/internal/domain/service"
	pkgkafka "QuantLens/pkg/kafka"
	"QuantLens/pkg/util"
)

var validate = validator.New()

// OutcomeHandler consumes realized signal outcomes from Kafka into the ledger.
type OutcomeHandler struct {
	topic   string
	intel   domsvc.Intelligence
	metrics domrepo.Metrics
}

var _ pkgkafka.MessageHandler = (*OutcomeHandler)(nil)

func NewOutcomeHandler(topic string, intel domsvc.Intelligence, metrics domrepo.Metrics) *OutcomeHandler {
	return &OutcomeHandler{topic: topic, intel: intel, metrics: metrics}
}

func (h *OutcomeHandler) Topic() string { return h.topic }

// incoming message schema: {asset_id, signal_timestamp, score_at_signal, realized_return, regime, strategy}
// signal_timestamp is RFC3339 or unix seconds/millis, as a string or a number.
func (h *OutcomeHandler) Handle(ctx context.Context, b []byte) error {
	ev, err := DecodeOutcome(b)
	if err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}
	if err := validate.StructCtx(ctx, ev); err != nil {
		h.metrics.RecordError("consumer_validate")
		return fmt.Errorf("invalid outcome: %w", err)
	}
	if _, err := h.intel.RecordOutcome(ctx, ev); err != nil {
		h.metrics.RecordError("consumer_record")
		return err
	}
	return nil
}

// DecodeOutcome parses the wire form of an outcome event.
func DecodeOutcome(b []byte) (models.OutcomeEvent, error) {
	var m struct {
		AssetID         string          `json:"asset_id"`
		SignalTimestamp json.RawMessage `json:"signal_timestamp"`
		ScoreAtSignal   float64         `json:"score_at_signal"`
		RealizedReturn  float64         `json:"realized_return"`
		Regime          string          `json:"regime"`
		Strategy        string          `json:"strategy"`
	}
	if err := json.Unmarshal(b, &m); err != nil {
		return models.OutcomeEvent{}, fmt.Errorf("decode outcome: %w", err)
	}
	ts, err := parseTimestamp(m.SignalTimestamp)
	if err != nil {
		return models.OutcomeEvent{}, fmt.Errorf("decode outcome: %w", err)
	}
	regime := m.Regime
	if label, err := models.ParseRegimeLabel(regime); err == nil {
		regime = label.String()
	}
	return models.OutcomeEvent{
		AssetID:         util.NormalizeSymbol(m.AssetID),
		SignalTimestamp: ts,
		ScoreAtSignal:   m.ScoreAtSignal,
		RealizedReturn:  m.RealizedReturn,
		Regime:          regime,
		Strategy:        m.Strategy,
	}, nil
}

func parseTimestamp(raw json.RawMessage) (time.Time, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return time.Time{}, fmt.Errorf("signal_timestamp missing")
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return time.Time{}, err
		}
		if t, ok := util.ParseTime(s); ok {
			return t, nil
		}
		return time.Time{}, fmt.Errorf("signal_timestamp %q not understood", s)
	}
	f, err := strconv.ParseFloat(string(raw), 64)
	if err != nil || f <= 0 {
		return time.Time{}, fmt.Errorf("signal_timestamp %s not understood", raw)
	}
	return util.UnixAuto(int64(f)), nil
}
