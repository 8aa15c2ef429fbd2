package game

import (
	"fmt"
	"log/slog"
	"math"
	mathrand "math/rand"
	"sort"
	"strings"
	"sync"
	"time"
)

// team is the mutable aggregate for one participant. All access goes through
// its mutex; the roster map itself is guarded separately by the service.
type team struct {
	mu   sync.Mutex
	name string

	// stage 1
	hasRecipe  bool
	styleID    string
	bean       string
	milk       string
	directCost int64

	// stage 2
	hasOverheads  bool
	rent          int64
	depreciation  int64
	staff         int64
	operating     int64
	marketing     int64
	totalIndirect int64

	// stage 3
	hasStrategy      bool
	salesForecast    int64
	profitMargin     int64
	suggestedPrice   int64
	hasPrice         bool
	finalPrice       int64
	breakEven        int64
	breakEvenOK      bool
	forecastBEPDiff  int64
	aiPredictedSales int64
	revenue          int64
	cost             int64
	actualProfit     int64

	// survival game
	capital int64
	debt    int64
	month   Month
	history []LedgerEntry

	claimedKeys map[string]struct{}
}

// Service owns the in-memory roster and the instructor stage gate. Records
// are keyed by team name; each record serializes its own mutations so the
// monotonic stage/month invariants hold under concurrent requests.
type Service struct {
	log *slog.Logger

	mu    sync.RWMutex
	teams map[string]*team
	stage Stage

	randMu sync.Mutex
	rand   *mathrand.Rand
}

// NewService builds a service with an empty roster. A non-zero seed makes the
// month-3 gamble reproducible; zero seeds from the clock.
func NewService(logger *slog.Logger, seed int64) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Service{
		log:   logger,
		teams: make(map[string]*team),
		stage: StageLobby,
		rand:  mathrand.New(mathrand.NewSource(seed)),
	}
}

func (s *Service) nextFloat() float64 {
	s.randMu.Lock()
	defer s.randMu.Unlock()
	return s.rand.Float64()
}

// Stage reports the currently opened instructor stage.
func (s *Service) Stage() Stage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stage
}

// SetStage opens a stage for submissions. Stages may be reopened or skipped;
// the per-record prerequisites still gate out-of-order submissions.
func (s *Service) SetStage(stage Stage) error {
	if stage < StageLobby || stage > StagePricing {
		return fmt.Errorf("%w: stage must be between %d and %d", ErrInvalidInput, StageLobby, StagePricing)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stage = stage
	s.log.Info("stage opened", "stage", int(stage))
	return nil
}

// Reset wipes every record and closes the stage gate.
func (s *Service) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.teams = make(map[string]*team)
	s.stage = StageLobby
	s.log.Info("game reset")
}

// JoinTeam creates a record for the name, or returns the existing one so a
// returning player lands back in their game.
func (s *Service) JoinTeam(name string) (TeamView, bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return TeamView{}, false, fmt.Errorf("%w: team name is required", ErrInvalidInput)
	}
	s.mu.Lock()
	t, ok := s.teams[name]
	if !ok {
		t = &team{name: name, claimedKeys: make(map[string]struct{})}
		s.teams[name] = t
	}
	s.mu.Unlock()

	t.mu.Lock()
	defer t.mu.Unlock()
	return viewOf(t), !ok, nil
}

// Team returns the read-only projection for one record.
func (s *Service) Team(name string) (TeamView, error) {
	t, err := s.team(name)
	if err != nil {
		return TeamView{}, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return viewOf(t), nil
}

// History returns the survival ledger for one record.
func (s *Service) History(name string) ([]LedgerEntry, error) {
	t, err := s.team(name)
	if err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]LedgerEntry, len(t.history))
	copy(out, t.history)
	return out, nil
}

// SubmitRecipe resolves the stage-1 bean/milk/style selection into the fixed
// per-cup direct cost.
func (s *Service) SubmitRecipe(in RecipeInput) (TeamView, error) {
	if err := s.requireStage(StageDirectCost); err != nil {
		return TeamView{}, err
	}
	t, err := s.team(in.Team)
	if err != nil {
		return TeamView{}, err
	}

	style, err := StyleByID(in.StyleID)
	if err != nil {
		return TeamView{}, err
	}
	direct, err := DirectCost(in.Bean, in.Milk)
	if err != nil {
		return TeamView{}, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if err := claimKey(t, in.IdempotencyKey); err != nil {
		return TeamView{}, err
	}
	t.styleID = style.ID
	t.bean = in.Bean
	t.milk = in.Milk
	t.directCost = direct
	t.hasRecipe = true
	s.log.Info("recipe submitted", "team", t.name, "style", style.ID, "direct_cost", direct)
	return viewOf(t), nil
}

// SubmitOverheads records the stage-2 estimate. Rent and depreciation come
// from the chosen style; the three user-entered items must be positive.
func (s *Service) SubmitOverheads(in OverheadsInput) (TeamView, error) {
	if err := s.requireStage(StageIndirectCost); err != nil {
		return TeamView{}, err
	}
	t, err := s.team(in.Team)
	if err != nil {
		return TeamView{}, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.hasRecipe {
		return TeamView{}, fmt.Errorf("%w: submit the stage-1 recipe first", ErrOutOfSequence)
	}
	for _, item := range []struct {
		name  string
		value int64
	}{
		{"staff", in.Staff},
		{"operating", in.Operating},
		{"marketing", in.Marketing},
	} {
		if item.value <= 0 {
			return TeamView{}, fmt.Errorf("%w: %s must be > 0", ErrInvalidInput, item.name)
		}
	}

	style, err := StyleByID(t.styleID)
	if err != nil {
		return TeamView{}, err
	}
	total, err := IndirectTotal(style.Rent, style.Depreciation, in.Staff, in.Operating, in.Marketing)
	if err != nil {
		return TeamView{}, err
	}
	if err := claimKey(t, in.IdempotencyKey); err != nil {
		return TeamView{}, err
	}
	t.rent = style.Rent
	t.depreciation = style.Depreciation
	t.staff = in.Staff
	t.operating = in.Operating
	t.marketing = in.Marketing
	t.totalIndirect = total
	t.hasOverheads = true
	s.log.Info("overheads submitted", "team", t.name, "total_indirect", total)
	return viewOf(t), nil
}

// SubmitStrategy records the forecast and margin and derives the suggested
// price.
func (s *Service) SubmitStrategy(in StrategyInput) (TeamView, error) {
	if err := s.requireStage(StagePricing); err != nil {
		return TeamView{}, err
	}
	t, err := s.team(in.Team)
	if err != nil {
		return TeamView{}, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.hasRecipe || !t.hasOverheads {
		return TeamView{}, fmt.Errorf("%w: stages 1 and 2 must be completed first", ErrOutOfSequence)
	}
	suggested, err := SuggestPrice(t.directCost, t.totalIndirect, in.SalesForecast, in.ProfitMargin)
	if err != nil {
		return TeamView{}, err
	}
	if err := claimKey(t, in.IdempotencyKey); err != nil {
		return TeamView{}, err
	}
	t.salesForecast = in.SalesForecast
	t.profitMargin = in.ProfitMargin
	t.suggestedPrice = suggested
	t.hasStrategy = true
	s.log.Info("strategy submitted", "team", t.name, "forecast", in.SalesForecast, "margin", in.ProfitMargin, "suggested_price", suggested)
	return viewOf(t), nil
}

// SubmitFinalPrice locks the price, runs the break-even analysis and the AI
// sales prediction, seeds the opening-month baseline and enters the survival
// game at month 1.
func (s *Service) SubmitFinalPrice(in PriceInput) (TeamView, error) {
	if err := s.requireStage(StagePricing); err != nil {
		return TeamView{}, err
	}
	t, err := s.team(in.Team)
	if err != nil {
		return TeamView{}, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.hasStrategy {
		return TeamView{}, fmt.Errorf("%w: submit the pricing strategy first", ErrOutOfSequence)
	}
	if in.FinalPrice < 1 {
		return TeamView{}, fmt.Errorf("%w: final price must be >= 1", ErrInvalidInput)
	}
	predicted, err := PredictSales(t.styleID, in.FinalPrice, t.marketing)
	if err != nil {
		return TeamView{}, err
	}
	if err := claimKey(t, in.IdempotencyKey); err != nil {
		return TeamView{}, err
	}

	t.finalPrice = in.FinalPrice
	cups, ok := BreakEven(t.totalIndirect, in.FinalPrice, t.directCost)
	t.breakEvenOK = ok
	if ok {
		t.breakEven = int64(math.Round(cups))
		t.forecastBEPDiff = ForecastVsBEP(t.salesForecast, cups)
	} else {
		t.breakEven = -1
		t.forecastBEPDiff = 0
	}

	t.aiPredictedSales = predicted
	t.revenue = in.FinalPrice * predicted
	t.cost = t.directCost*predicted + t.totalIndirect
	t.actualProfit = t.revenue - t.cost

	t.capital = t.actualProfit
	t.debt = 0
	t.month = Month1
	t.history = []LedgerEntry{{
		MonthLabel:   "開業首月",
		Event:        "開業營運基準",
		Sales:        predicted,
		Revenue:      t.revenue,
		Cost:         t.cost,
		Profit:       t.actualProfit,
		CapitalAfter: t.capital,
	}}
	t.hasPrice = true
	s.log.Info("final price submitted", "team", t.name, "price", in.FinalPrice, "ai_sales", predicted, "opening_profit", t.actualProfit)
	return viewOf(t), nil
}

// ResolveCrisis applies the loan-shark pre-step, resolves the current month's
// decision and advances the state machine. Rejections leave the record
// untouched.
func (s *Service) ResolveCrisis(in CrisisInput) (CrisisResult, error) {
	t, err := s.team(in.Team)
	if err != nil {
		return CrisisResult{}, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.hasPrice {
		return CrisisResult{}, fmt.Errorf("%w: complete the pricing stage first", ErrOutOfSequence)
	}
	if t.month >= Finished {
		return CrisisResult{}, ErrGameFinished
	}
	if err := claimKey(t, in.IdempotencyKey); err != nil {
		return CrisisResult{}, err
	}

	loan := applyLoanShark(t)
	if loan > 0 {
		s.log.Info("loan shark triggered", "team", t.name, "amount", loan, "debt", t.debt)
	}

	var entry LedgerEntry
	switch t.month {
	case Month1:
		entry, err = resolveMonth1(t, in.Choice)
	case Month2:
		entry, err = resolveMonth2(t, in.Choice)
	case Month3:
		entry, err = resolveMonth3(t, in.Choice, s.nextFloat)
	}
	if err != nil {
		// The forced loan is part of the month-advance evaluation; a
		// rejected decision rolls it back so the next render re-applies it.
		if loan > 0 {
			t.capital -= loan
			t.debt -= loan
		}
		releaseKey(t, in.IdempotencyKey)
		return CrisisResult{}, err
	}

	out := CrisisResult{
		Entry:      entry,
		LoanAmount: loan,
		MonthIndex: int(t.month),
		Capital:    t.capital,
		Debt:       t.debt,
	}
	if t.month == Finished {
		out.Settlement = settlement(t)
		s.log.Info("game finished", "team", t.name, "net_assets", out.Settlement.NetAssets, "win", out.Settlement.Win)
	}
	return out, nil
}

// Roster returns the instructor dashboard rows, sorted by name.
func (s *Service) Roster() []RosterRow {
	s.mu.RLock()
	teams := make([]*team, 0, len(s.teams))
	for _, t := range s.teams {
		teams = append(teams, t)
	}
	s.mu.RUnlock()

	rows := make([]RosterRow, 0, len(teams))
	for _, t := range teams {
		t.mu.Lock()
		rows = append(rows, RosterRow{
			Name:            t.name,
			DirectCost:      t.directCost,
			TotalIndirect:   t.totalIndirect,
			SalesForecast:   t.salesForecast,
			ProfitMargin:    t.profitMargin,
			FinalPrice:      t.finalPrice,
			BreakEvenPoint:  t.breakEven,
			ForecastBEPDiff: t.forecastBEPDiff,
			MonthIndex:      int(t.month),
			Capital:         t.capital,
			Debt:            t.debt,
		})
		t.mu.Unlock()
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Name < rows[j].Name })
	return rows
}

func (s *Service) team(name string) (*team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.teams[strings.TrimSpace(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrTeamNotFound, strings.TrimSpace(name))
	}
	return t, nil
}

func (s *Service) requireStage(stage Stage) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.stage < stage {
		return fmt.Errorf("%w: stage %d is not open", ErrStageClosed, stage)
	}
	return nil
}

// claimKey enforces submission idempotency per record. Callers must hold the
// record lock. An empty key skips the check.
func claimKey(t *team, key string) error {
	if key == "" {
		return nil
	}
	if _, dup := t.claimedKeys[key]; dup {
		return ErrDuplicateSubmission
	}
	t.claimedKeys[key] = struct{}{}
	return nil
}

func releaseKey(t *team, key string) {
	if key != "" {
		delete(t.claimedKeys, key)
	}
}

func viewOf(t *team) TeamView {
	v := TeamView{
		Name:       t.name,
		HasRecipe:  t.hasRecipe,
		StyleID:    t.styleID,
		Bean:       t.bean,
		Milk:       t.milk,
		DirectCost: t.directCost,

		HasOverheads:  t.hasOverheads,
		Rent:          t.rent,
		Depreciation:  t.depreciation,
		Staff:         t.staff,
		Operating:     t.operating,
		Marketing:     t.marketing,
		TotalIndirect: t.totalIndirect,

		HasStrategy:    t.hasStrategy,
		SalesForecast:  t.salesForecast,
		ProfitMargin:   t.profitMargin,
		SuggestedPrice: t.suggestedPrice,

		HasPrice:           t.hasPrice,
		FinalPrice:         t.finalPrice,
		BreakEvenPoint:     t.breakEven,
		BreakEvenReachable: t.breakEvenOK,
		ForecastBEPDiff:    t.forecastBEPDiff,
		AIPredictedSales:   t.aiPredictedSales,
		Revenue:            t.revenue,
		Cost:               t.cost,
		ActualProfit:       t.actualProfit,

		Capital:    t.capital,
		Debt:       t.debt,
		MonthIndex: int(t.month),
	}
	if t.hasRecipe {
		if style, err := StyleByID(t.styleID); err == nil {
			v.StyleLabel = style.Label
		}
	}
	if t.hasStrategy && t.salesForecast > 0 {
		v.AllocatedIndirect = float64(t.totalIndirect) / float64(t.salesForecast)
		v.TotalUnitCost = float64(t.directCost) + v.AllocatedIndirect
	}
	if len(t.history) > 0 {
		v.History = make([]LedgerEntry, len(t.history))
		copy(v.History, t.history)
	}
	return v
}
