package game

// Stage is the session-wide gate the instructor opens one step at a time.
type Stage int

const (
	StageLobby        Stage = 0
	StageDirectCost   Stage = 1
	StageIndirectCost Stage = 2
	StagePricing      Stage = 3
)

// Month is the survival-game state machine. It only ever moves forward.
type Month int

const (
	Month1   Month = 1
	Month2   Month = 2
	Month3   Month = 3
	Finished Month = 4
)

func (m Month) Label() string {
	switch m {
	case Month1:
		return "第一個月"
	case Month2:
		return "第二個月"
	case Month3:
		return "第三個月"
	default:
		return "結算"
	}
}

// CrisisChoice is the closed set of decisions a team can submit for the
// current month. Display labels live in crisis.go and are never parsed.
type CrisisChoice string

const (
	ChoiceA CrisisChoice = "A"
	ChoiceB CrisisChoice = "B"
	ChoiceC CrisisChoice = "C"
)

// LedgerEntry is one immutable line of a team's survival history.
type LedgerEntry struct {
	MonthLabel   string `json:"month_label"`
	Event        string `json:"event"`
	Sales        int64  `json:"sales"`
	Revenue      int64  `json:"revenue"`
	Cost         int64  `json:"cost"`
	Profit       int64  `json:"profit"`
	CapitalAfter int64  `json:"capital_after"`
}

// TeamView is the read-only projection of a team record handed to the shell
// after every transition.
type TeamView struct {
	Name string `json:"name"`

	HasRecipe  bool   `json:"has_recipe"`
	StyleID    string `json:"style_id,omitempty"`
	StyleLabel string `json:"style_label,omitempty"`
	Bean       string `json:"bean,omitempty"`
	Milk       string `json:"milk,omitempty"`
	DirectCost int64  `json:"direct_cost"`

	HasOverheads  bool  `json:"has_overheads"`
	Rent          int64 `json:"rent"`
	Depreciation  int64 `json:"depreciation"`
	Staff         int64 `json:"staff"`
	Operating     int64 `json:"operating"`
	Marketing     int64 `json:"marketing"`
	TotalIndirect int64 `json:"total_indirect_cost"`

	HasStrategy       bool    `json:"has_strategy"`
	SalesForecast     int64   `json:"sales_forecast"`
	ProfitMargin      int64   `json:"profit_margin"`
	SuggestedPrice    int64   `json:"suggested_price"`
	AllocatedIndirect float64 `json:"allocated_indirect_per_cup"`
	TotalUnitCost     float64 `json:"total_cost_per_cup"`

	HasPrice           bool  `json:"has_price"`
	FinalPrice         int64 `json:"final_price"`
	BreakEvenPoint     int64 `json:"break_even_point"`
	BreakEvenReachable bool  `json:"break_even_reachable"`
	ForecastBEPDiff    int64 `json:"forecast_bep_difference"`
	AIPredictedSales   int64 `json:"ai_predicted_sales"`
	Revenue            int64 `json:"revenue"`
	Cost               int64 `json:"cost"`
	ActualProfit       int64 `json:"actual_profit"`

	Capital    int64         `json:"capital"`
	Debt       int64         `json:"debt"`
	MonthIndex int           `json:"month_index"`
	History    []LedgerEntry `json:"history,omitempty"`
}

// RosterRow is one line of the instructor dashboard.
type RosterRow struct {
	Name            string `json:"name"`
	DirectCost      int64  `json:"direct_cost"`
	TotalIndirect   int64  `json:"total_indirect_cost"`
	SalesForecast   int64  `json:"sales_forecast"`
	ProfitMargin    int64  `json:"profit_margin"`
	FinalPrice      int64  `json:"final_price"`
	BreakEvenPoint  int64  `json:"break_even_point"`
	ForecastBEPDiff int64  `json:"forecast_bep_difference"`
	MonthIndex      int    `json:"month_index"`
	Capital         int64  `json:"capital"`
	Debt            int64  `json:"debt"`
}

type RecipeInput struct {
	Team           string
	StyleID        string
	Bean           string
	Milk           string
	IdempotencyKey string
}

type OverheadsInput struct {
	Team           string
	Staff          int64
	Operating      int64
	Marketing      int64
	IdempotencyKey string
}

type StrategyInput struct {
	Team           string
	SalesForecast  int64
	ProfitMargin   int64
	IdempotencyKey string
}

type PriceInput struct {
	Team           string
	FinalPrice     int64
	IdempotencyKey string
}

type CrisisInput struct {
	Team           string
	Choice         CrisisChoice
	IdempotencyKey string
}

// Settlement is the terminal report once the record reaches Finished.
type Settlement struct {
	NetAssets int64 `json:"net_assets"`
	Win       bool  `json:"win"`
	Shortfall int64 `json:"shortfall"`
}

// CrisisResult reports one resolved month back to the shell.
type CrisisResult struct {
	Entry      LedgerEntry `json:"entry"`
	LoanAmount int64       `json:"loan_shark_amount,omitempty"`
	MonthIndex int         `json:"month_index"`
	Capital    int64       `json:"capital"`
	Debt       int64       `json:"debt"`
	Settlement *Settlement `json:"settlement,omitempty"`
}
