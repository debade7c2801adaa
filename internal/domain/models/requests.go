package models

// RegimeRequest selects the benchmark used for regime prediction.
type RegimeRequest struct {
	Symbol       string `query:"symbol" default:"SPY" validate:"required,max=20"`
	RequireModel bool   `query:"require_model"`
}

// TrainRequest parameterizes an on-demand training run.
type TrainRequest struct {
	Symbol     string `json:"symbol" default:"SPY" validate:"required,max=20"`
	N          int    `json:"n" default:"1500" validate:"gte=300,lte=10000"`
	Seed       int64  `json:"seed" default:"42"`
	Estimators int    `json:"estimators" default:"50" validate:"gte=1,lte=500"`
	Async      bool   `json:"async"`
}

// ScanRequest carries the universe and portfolio for a scan cycle.
type ScanRequest struct {
	Strategy         string                `json:"strategy" default:"default" validate:"required,max=64"`
	Symbol           string                `json:"symbol" default:"SPY" validate:"max=20"`
	Portfolio        Portfolio             `json:"portfolio"`
	Assets           []Asset               `json:"assets" validate:"dive"`
	History          HistoricalPerformance `json:"history"`
	MarketVolatility float64               `json:"market_volatility" validate:"gte=0"`
	SkipRegime       bool                  `json:"skip_regime"`
}

// AnalyzeRequest asks for an asset micro-report against its peers.
type AnalyzeRequest struct {
	Asset            Asset   `json:"asset"`
	Peers            []Asset `json:"peers" validate:"dive"`
	MarketVolatility float64 `json:"market_volatility" validate:"gte=0"`
}

// StrategyRequest identifies a strategy in the URL path.
type StrategyRequest struct {
	Strategy string `param:"strategy" validate:"required,max=64"`
}

// TrainParams is the service-level training input.
type TrainParams struct {
	Symbol     string
	N          int
	Seed       int64
	Estimators int
}

// CandlesRequest selects a window of stored candles.
type CandlesRequest struct {
	Symbol string `query:"symbol" validate:"required,max=20"`
	From   string `query:"from"`
	To     string `query:"to"`
	TF     string `query:"tf" default:"1d" validate:"oneof=1m 5m 1h 1d"`
	Limit  int    `query:"limit" default:"1000" validate:"gte=1,lte=50000"`
}
