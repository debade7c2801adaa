package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"QuantLens/internal/domain/models"
	domrepo "QuantLens/internal/domain/repository"
	"QuantLens/pkg/util"
)

const (
	defaultCandleLimit = 1000
	maxCandleLimit     = 50000
)

// ErrInvalidRange is returned when a candle window is empty or reversed.
var ErrInvalidRange = errors.New("usecase: invalid time range")

// CandlesUseCase serves stored candles for inspection of the training and prediction inputs.
type CandlesUseCase struct {
	market domrepo.MarketDataProvider
	now    func() time.Time
}

func NewCandlesUseCase(market domrepo.MarketDataProvider) *CandlesUseCase {
	return &CandlesUseCase{market: market, now: time.Now}
}

type GetCandlesParams struct {
	Symbol    string
	From      time.Time
	To        time.Time
	Timeframe domrepo.Timeframe
	Limit     int
}

type GetCandlesResult struct {
	Symbol    string          `json:"symbol"`
	Timeframe string          `json:"timeframe"`
	From      time.Time       `json:"from"`
	To        time.Time       `json:"to"`
	Count     int             `json:"count"`
	Candles   []models.Candle `json:"candles"`
}

// GetCandles returns candles in [From, To]. A zero To means now and a zero From
// reaches back Limit bars of the timeframe.
func (uc *CandlesUseCase) GetCandles(ctx context.Context, p GetCandlesParams) (*GetCandlesResult, error) {
	p.Symbol = util.NormalizeSymbol(p.Symbol)
	if p.Symbol == "" {
		return nil, fmt.Errorf("symbol required: %w", ErrInvalidRange)
	}
	if p.Limit <= 0 {
		p.Limit = defaultCandleLimit
	}
	if p.Limit > maxCandleLimit {
		p.Limit = maxCandleLimit
	}
	if p.Timeframe == "" {
		p.Timeframe = domrepo.DefaultTimeframe()
	}
	if p.To.IsZero() {
		p.To = uc.now().UTC()
	}
	if p.From.IsZero() {
		p.From = p.To.Add(-time.Duration(p.Limit) * barDuration(p.Timeframe))
	}
	if p.From.After(p.To) {
		return nil, fmt.Errorf("from must be <= to: %w", ErrInvalidRange)
	}

	candles, err := uc.market.GetCandles(ctx, p.Symbol, p.From, p.To, p.Timeframe)
	if err != nil {
		return nil, fmt.Errorf("get candles: %w", err)
	}
	if len(candles) > p.Limit {
		candles = candles[len(candles)-p.Limit:]
	}

	return &GetCandlesResult{
		Symbol:    p.Symbol,
		Timeframe: string(p.Timeframe),
		From:      p.From,
		To:        p.To,
		Count:     len(candles),
		Candles:   candles,
	}, nil
}

func barDuration(tf domrepo.Timeframe) time.Duration {
	switch tf {
	case domrepo.TF1m:
		return time.Minute
	case domrepo.TF5m:
		return 5 * time.Minute
	case domrepo.TF1h:
		return time.Hour
	default:
		return 24 * time.Hour
	}
}
