package game

import (
	"errors"
	"strings"
	"testing"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	svc := NewService(nil, 1)
	if err := svc.SetStage(StagePricing); err != nil {
		t.Fatalf("open stages: %v", err)
	}
	return svc
}

// setupPricedTeam walks the spec's worked example through all three stages:
// style A, 中級莊園豆 + 一般鮮乳 (direct 33), overheads totalling 115000,
// forecast 1000 at 50% margin, final price 222.
func setupPricedTeam(t *testing.T, svc *Service, name string) TeamView {
	t.Helper()
	if _, _, err := svc.JoinTeam(name); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := svc.SubmitRecipe(RecipeInput{Team: name, StyleID: "A", Bean: "中級莊園豆", Milk: "一般鮮乳"}); err != nil {
		t.Fatalf("recipe: %v", err)
	}
	if _, err := svc.SubmitOverheads(OverheadsInput{Team: name, Staff: 30_000, Operating: 10_000, Marketing: 5_000}); err != nil {
		t.Fatalf("overheads: %v", err)
	}
	if _, err := svc.SubmitStrategy(StrategyInput{Team: name, SalesForecast: 1000, ProfitMargin: 50}); err != nil {
		t.Fatalf("strategy: %v", err)
	}
	view, err := svc.SubmitFinalPrice(PriceInput{Team: name, FinalPrice: 222})
	if err != nil {
		t.Fatalf("final price: %v", err)
	}
	return view
}

func TestStageFlowWorkedExample(t *testing.T) {
	svc := newTestService(t)
	view := setupPricedTeam(t, svc, "拿鐵突擊隊")

	if view.DirectCost != 33 {
		t.Fatalf("direct cost = %d, want 33", view.DirectCost)
	}
	if view.TotalIndirect != 115_000 {
		t.Fatalf("total indirect = %d, want 115000", view.TotalIndirect)
	}
	if view.Rent != 50_000 || view.Depreciation != 20_000 {
		t.Fatalf("style-derived overheads wrong: rent=%d dep=%d", view.Rent, view.Depreciation)
	}
	if view.SuggestedPrice != 222 {
		t.Fatalf("suggested price = %d, want 222", view.SuggestedPrice)
	}
	if view.AIPredictedSales != 1774 {
		t.Fatalf("ai predicted sales = %d, want 1774", view.AIPredictedSales)
	}
	if view.BreakEvenPoint != 608 || !view.BreakEvenReachable {
		t.Fatalf("break-even = %d (reachable=%t), want 608", view.BreakEvenPoint, view.BreakEvenReachable)
	}
	if view.ForecastBEPDiff != 392 {
		t.Fatalf("forecast-bep diff = %d, want 392", view.ForecastBEPDiff)
	}

	// Opening-month baseline seeds capital and the first ledger entry.
	wantRevenue := int64(222 * 1774)
	wantCost := int64(33*1774 + 115_000)
	if view.Revenue != wantRevenue || view.Cost != wantCost {
		t.Fatalf("baseline revenue/cost = %d/%d, want %d/%d", view.Revenue, view.Cost, wantRevenue, wantCost)
	}
	if view.Capital != wantRevenue-wantCost {
		t.Fatalf("capital = %d, want %d", view.Capital, wantRevenue-wantCost)
	}
	if view.MonthIndex != 1 || len(view.History) != 1 {
		t.Fatalf("month=%d history=%d, want month 1 with one entry", view.MonthIndex, len(view.History))
	}
}

func TestStageGateAndSequencing(t *testing.T) {
	svc := NewService(nil, 1)
	if _, _, err := svc.JoinTeam("早起鳥"); err != nil {
		t.Fatalf("join: %v", err)
	}

	// Stage 1 not open yet.
	_, err := svc.SubmitRecipe(RecipeInput{Team: "早起鳥", StyleID: "A", Bean: "普通商用豆", Milk: "不加奶"})
	if !errors.Is(err, ErrStageClosed) {
		t.Fatalf("expected ErrStageClosed, got %v", err)
	}

	if err := svc.SetStage(StagePricing); err != nil {
		t.Fatalf("set stage: %v", err)
	}

	// Overheads before recipe.
	_, err = svc.SubmitOverheads(OverheadsInput{Team: "早起鳥", Staff: 1, Operating: 1, Marketing: 1})
	if !errors.Is(err, ErrOutOfSequence) {
		t.Fatalf("expected ErrOutOfSequence, got %v", err)
	}

	// Strategy before overheads.
	if _, err := svc.SubmitRecipe(RecipeInput{Team: "早起鳥", StyleID: "A", Bean: "普通商用豆", Milk: "不加奶"}); err != nil {
		t.Fatalf("recipe: %v", err)
	}
	_, err = svc.SubmitStrategy(StrategyInput{Team: "早起鳥", SalesForecast: 100, ProfitMargin: 10})
	if !errors.Is(err, ErrOutOfSequence) {
		t.Fatalf("expected ErrOutOfSequence, got %v", err)
	}

	// Crisis before pricing.
	_, err = svc.ResolveCrisis(CrisisInput{Team: "早起鳥", Choice: ChoiceA})
	if !errors.Is(err, ErrOutOfSequence) {
		t.Fatalf("expected ErrOutOfSequence, got %v", err)
	}

	// Unknown team.
	_, err = svc.Team("幽靈隊")
	if !errors.Is(err, ErrTeamNotFound) {
		t.Fatalf("expected ErrTeamNotFound, got %v", err)
	}
}

func TestOverheadValidation(t *testing.T) {
	svc := newTestService(t)
	if _, _, err := svc.JoinTeam("摳門隊"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := svc.SubmitRecipe(RecipeInput{Team: "摳門隊", StyleID: "B", Bean: "普通商用豆", Milk: "燕麥奶"}); err != nil {
		t.Fatalf("recipe: %v", err)
	}
	_, err := svc.SubmitOverheads(OverheadsInput{Team: "摳門隊", Staff: 0, Operating: 10_000, Marketing: 5_000})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for zero staff cost, got %v", err)
	}

	view, err := svc.Team("摳門隊")
	if err != nil {
		t.Fatalf("team: %v", err)
	}
	if view.HasOverheads {
		t.Fatalf("rejected submission must not mutate the record")
	}
}

func TestMonth1PassOnCost(t *testing.T) {
	svc := newTestService(t)
	setupPricedTeam(t, svc, "拿鐵突擊隊")

	out, err := svc.ResolveCrisis(CrisisInput{Team: "拿鐵突擊隊", Choice: ChoiceB})
	if err != nil {
		t.Fatalf("resolve month 1: %v", err)
	}

	// Price 222 * 1.2 truncates to 266; dairy direct cost rises 33 -> 38.
	wantSales := int64(982) // 3000 + (150-266)*18 + sqrt(5000)
	if out.Entry.Sales != wantSales {
		t.Fatalf("sales = %d, want %d", out.Entry.Sales, wantSales)
	}
	wantRevenue := int64(266 * 982)
	wantCost := int64(38*982 + 115_000)
	if out.Entry.Revenue != wantRevenue || out.Entry.Cost != wantCost {
		t.Fatalf("revenue/cost = %d/%d, want %d/%d", out.Entry.Revenue, out.Entry.Cost, wantRevenue, wantCost)
	}
	if out.MonthIndex != 2 {
		t.Fatalf("month = %d, want 2", out.MonthIndex)
	}

	// The stage-1 direct cost itself must stay fixed.
	view, err := svc.Team("拿鐵突擊隊")
	if err != nil {
		t.Fatalf("team: %v", err)
	}
	if view.DirectCost != 33 {
		t.Fatalf("direct cost mutated to %d", view.DirectCost)
	}
	if len(view.History) != 2 {
		t.Fatalf("history length = %d, want 2", len(view.History))
	}
}

func TestMonth1InconsistentClaim(t *testing.T) {
	svc := newTestService(t)
	before := setupPricedTeam(t, svc, "鮮乳本命")

	_, err := svc.ResolveCrisis(CrisisInput{Team: "鮮乳本命", Choice: ChoiceC})
	if !errors.Is(err, ErrInconsistentClaim) {
		t.Fatalf("expected ErrInconsistentClaim, got %v", err)
	}

	after, err := svc.Team("鮮乳本命")
	if err != nil {
		t.Fatalf("team: %v", err)
	}
	if after.DirectCost != before.DirectCost || after.FinalPrice != before.FinalPrice {
		t.Fatalf("rejected claim mutated costs or price")
	}
	if after.MonthIndex != 1 || len(after.History) != 1 || after.Capital != before.Capital {
		t.Fatalf("rejected claim advanced the game: month=%d history=%d", after.MonthIndex, len(after.History))
	}

	// A valid resubmission still goes through.
	if _, err := svc.ResolveCrisis(CrisisInput{Team: "鮮乳本命", Choice: ChoiceA}); err != nil {
		t.Fatalf("resubmission failed: %v", err)
	}
}

func TestMonth1NoDairyUnaffected(t *testing.T) {
	svc := newTestService(t)
	name := "黑咖啡至上"
	if _, _, err := svc.JoinTeam(name); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := svc.SubmitRecipe(RecipeInput{Team: name, StyleID: "A", Bean: "中級莊園豆", Milk: "不加奶"}); err != nil {
		t.Fatalf("recipe: %v", err)
	}
	if _, err := svc.SubmitOverheads(OverheadsInput{Team: name, Staff: 30_000, Operating: 10_000, Marketing: 5_000}); err != nil {
		t.Fatalf("overheads: %v", err)
	}
	if _, err := svc.SubmitStrategy(StrategyInput{Team: name, SalesForecast: 1000, ProfitMargin: 50}); err != nil {
		t.Fatalf("strategy: %v", err)
	}
	if _, err := svc.SubmitFinalPrice(PriceInput{Team: name, FinalPrice: 222}); err != nil {
		t.Fatalf("final price: %v", err)
	}

	out, err := svc.ResolveCrisis(CrisisInput{Team: name, Choice: ChoiceC})
	if err != nil {
		t.Fatalf("resolve month 1: %v", err)
	}
	// Direct cost 28 (no milk), price unchanged, sales re-predicted at 222.
	wantCost := int64(28*1774 + 115_000)
	if out.Entry.Cost != wantCost {
		t.Fatalf("cost = %d, want %d", out.Entry.Cost, wantCost)
	}
}

func TestMonth2CumulativeFixedCost(t *testing.T) {
	svc := newTestService(t)
	setupPricedTeam(t, svc, "拿鐵突擊隊")

	if _, err := svc.ResolveCrisis(CrisisInput{Team: "拿鐵突擊隊", Choice: ChoiceA}); err != nil {
		t.Fatalf("month 1: %v", err)
	}

	// Brand defense: sales x0.9, fixed cost permanently +30000.
	out, err := svc.ResolveCrisis(CrisisInput{Team: "拿鐵突擊隊", Choice: ChoiceB})
	if err != nil {
		t.Fatalf("month 2: %v", err)
	}
	wantSales := int64(1596) // 1774 * 0.9 truncated
	if out.Entry.Sales != wantSales {
		t.Fatalf("sales = %d, want %d", out.Entry.Sales, wantSales)
	}
	wantCost := int64(33*1596 + 145_000)
	if out.Entry.Cost != wantCost {
		t.Fatalf("month-2 cost = %d, want %d", out.Entry.Cost, wantCost)
	}

	// Month 3 leasing adds another 40000 on top of the raised baseline.
	out, err = svc.ResolveCrisis(CrisisInput{Team: "拿鐵突擊隊", Choice: ChoiceB})
	if err != nil {
		t.Fatalf("month 3: %v", err)
	}
	if out.Entry.Sales != 1774 {
		t.Fatalf("month-3 sales = %d, want capped baseline 1774", out.Entry.Sales)
	}
	wantCost = int64(33*1774 + 185_000)
	if out.Entry.Cost != wantCost {
		t.Fatalf("month-3 cost = %d, want %d (cumulative fixed cost)", out.Entry.Cost, wantCost)
	}
	if out.Settlement == nil {
		t.Fatalf("expected settlement after month 3")
	}
	if out.MonthIndex != int(Finished) {
		t.Fatalf("month = %d, want finished", out.MonthIndex)
	}

	// Finished games accept no further decisions.
	_, err = svc.ResolveCrisis(CrisisInput{Team: "拿鐵突擊隊", Choice: ChoiceC})
	if !errors.Is(err, ErrGameFinished) {
		t.Fatalf("expected ErrGameFinished, got %v", err)
	}
}

func TestMonth2PriceWarTransforms(t *testing.T) {
	tests := []struct {
		choice    CrisisChoice
		wantSales int64
		wantPrice int64
	}{
		{choice: ChoiceA, wantSales: 1774, wantPrice: 111},
		{choice: ChoiceC, wantSales: 443, wantPrice: 222}, // 1774 * 0.25 truncated
	}
	for _, tc := range tests {
		svc := newTestService(t)
		setupPricedTeam(t, svc, "隊伍")
		if _, err := svc.ResolveCrisis(CrisisInput{Team: "隊伍", Choice: ChoiceA}); err != nil {
			t.Fatalf("month 1: %v", err)
		}
		out, err := svc.ResolveCrisis(CrisisInput{Team: "隊伍", Choice: tc.choice})
		if err != nil {
			t.Fatalf("month 2 choice %s: %v", tc.choice, err)
		}
		if out.Entry.Sales != tc.wantSales {
			t.Fatalf("choice %s: sales = %d, want %d", tc.choice, out.Entry.Sales, tc.wantSales)
		}
		if out.Entry.Revenue != tc.wantPrice*tc.wantSales {
			t.Fatalf("choice %s: revenue = %d, want %d", tc.choice, out.Entry.Revenue, tc.wantPrice*tc.wantSales)
		}
	}
}

func TestMonth3GambleBranches(t *testing.T) {
	base := func() *team {
		return &team{
			name:             "賭徒",
			styleID:          "A",
			milk:             "不加奶",
			directCost:       28,
			totalIndirect:    115_000,
			marketing:        5_000,
			finalPrice:       222,
			aiPredictedSales: 1774,
			month:            Month3,
			claimedKeys:      map[string]struct{}{},
		}
	}

	// Losing the gamble halves sales and says so in the note.
	lost := base()
	entry, err := resolveMonth3(lost, ChoiceA, func() float64 { return 0.1 })
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if entry.Sales != 887 {
		t.Fatalf("sales = %d, want 887", entry.Sales)
	}
	if !strings.Contains(entry.Event, "腰斬") {
		t.Fatalf("losing gamble not recorded in event note: %q", entry.Event)
	}
	if lost.totalIndirect != 195_000 {
		t.Fatalf("fixed cost = %d, want 195000", lost.totalIndirect)
	}

	// Winning keeps the baseline sales.
	won := base()
	entry, err = resolveMonth3(won, ChoiceA, func() float64 { return 0.9 })
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if entry.Sales != 1774 {
		t.Fatalf("sales = %d, want 1774", entry.Sales)
	}
	if strings.Contains(entry.Event, "腰斬") {
		t.Fatalf("winning gamble recorded as a loss: %q", entry.Event)
	}

	// Hand-brewing caps sales at 800 with no fixed-cost change.
	brew := base()
	entry, err = resolveMonth3(brew, ChoiceC, func() float64 { t.Fatal("rng must not be consulted"); return 0 })
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if entry.Sales != 800 || brew.totalIndirect != 115_000 {
		t.Fatalf("sales=%d fixed=%d, want 800/115000", entry.Sales, brew.totalIndirect)
	}
}

func TestLoanSharkRule(t *testing.T) {
	svc := newTestService(t)
	name := "燒錢小舖"
	if _, _, err := svc.JoinTeam(name); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := svc.SubmitRecipe(RecipeInput{Team: name, StyleID: "C", Bean: "頂級藝妓豆", Milk: "不加奶"}); err != nil {
		t.Fatalf("recipe: %v", err)
	}
	if _, err := svc.SubmitOverheads(OverheadsInput{Team: name, Staff: 30_000, Operating: 10_000, Marketing: 500}); err != nil {
		t.Fatalf("overheads: %v", err)
	}
	if _, err := svc.SubmitStrategy(StrategyInput{Team: name, SalesForecast: 1000, ProfitMargin: 0}); err != nil {
		t.Fatalf("strategy: %v", err)
	}
	view, err := svc.SubmitFinalPrice(PriceInput{Team: name, FinalPrice: 140})
	if err != nil {
		t.Fatalf("final price: %v", err)
	}
	// 330 cups at 140 against 74690 of cost: the shop opens under water.
	if view.Capital != -28_490 {
		t.Fatalf("opening capital = %d, want -28490", view.Capital)
	}

	out, err := svc.ResolveCrisis(CrisisInput{Team: name, Choice: ChoiceC})
	if err != nil {
		t.Fatalf("month 1: %v", err)
	}
	if out.LoanAmount != LoanSharkAmount {
		t.Fatalf("loan amount = %d, want %d", out.LoanAmount, LoanSharkAmount)
	}
	if out.Debt != 30_000 {
		t.Fatalf("debt = %d, want 30000", out.Debt)
	}
	// Pre-step applied exactly once: capital went -28490 +30000 +profit.
	wantProfit := int64(140*330) - (43*330 + 60_500 + 3_000)
	if out.Entry.Profit != wantProfit {
		t.Fatalf("profit = %d, want %d", out.Entry.Profit, wantProfit)
	}
	if out.Capital != -28_490+30_000+wantProfit {
		t.Fatalf("capital = %d, want %d", out.Capital, -28_490+30_000+wantProfit)
	}

	// Still broke: the next month draws another forced loan.
	out, err = svc.ResolveCrisis(CrisisInput{Team: name, Choice: ChoiceC})
	if err != nil {
		t.Fatalf("month 2: %v", err)
	}
	if out.LoanAmount != LoanSharkAmount || out.Debt != 60_000 {
		t.Fatalf("second loan: amount=%d debt=%d, want 30000/60000", out.LoanAmount, out.Debt)
	}
}

func TestHistoryTracksMonthIndex(t *testing.T) {
	svc := newTestService(t)
	setupPricedTeam(t, svc, "記帳魔人")

	for _, choice := range []CrisisChoice{ChoiceA, ChoiceC, ChoiceB} {
		view, err := svc.Team("記帳魔人")
		if err != nil {
			t.Fatalf("team: %v", err)
		}
		if len(view.History) != view.MonthIndex {
			t.Fatalf("history length %d != month index %d", len(view.History), view.MonthIndex)
		}
		if _, err := svc.ResolveCrisis(CrisisInput{Team: "記帳魔人", Choice: choice}); err != nil {
			t.Fatalf("resolve %s: %v", choice, err)
		}
	}
	history, err := svc.History("記帳魔人")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 4 {
		t.Fatalf("final history length = %d, want 4", len(history))
	}
}

func TestIdempotencyKeys(t *testing.T) {
	svc := newTestService(t)
	if _, _, err := svc.JoinTeam("重複俠"); err != nil {
		t.Fatalf("join: %v", err)
	}
	in := RecipeInput{Team: "重複俠", StyleID: "A", Bean: "普通商用豆", Milk: "不加奶", IdempotencyKey: "k-1"}
	if _, err := svc.SubmitRecipe(in); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if _, err := svc.SubmitRecipe(in); !errors.Is(err, ErrDuplicateSubmission) {
		t.Fatalf("expected ErrDuplicateSubmission, got %v", err)
	}
}

func TestResetClearsRoster(t *testing.T) {
	svc := newTestService(t)
	setupPricedTeam(t, svc, "拿鐵突擊隊")
	if rows := svc.Roster(); len(rows) != 1 {
		t.Fatalf("roster rows = %d, want 1", len(rows))
	}

	svc.Reset()
	if rows := svc.Roster(); len(rows) != 0 {
		t.Fatalf("roster rows after reset = %d, want 0", len(rows))
	}
	if svc.Stage() != StageLobby {
		t.Fatalf("stage after reset = %d, want lobby", svc.Stage())
	}
	if _, err := svc.Team("拿鐵突擊隊"); !errors.Is(err, ErrTeamNotFound) {
		t.Fatalf("expected ErrTeamNotFound after reset, got %v", err)
	}
}

func TestJoinTeamIdempotent(t *testing.T) {
	svc := newTestService(t)
	_, created, err := svc.JoinTeam("回鍋隊")
	if err != nil || !created {
		t.Fatalf("first join: created=%t err=%v", created, err)
	}
	if _, err := svc.SubmitRecipe(RecipeInput{Team: "回鍋隊", StyleID: "B", Bean: "普通商用豆", Milk: "燕麥奶"}); err != nil {
		t.Fatalf("recipe: %v", err)
	}

	view, created, err := svc.JoinTeam("回鍋隊")
	if err != nil || created {
		t.Fatalf("rejoin: created=%t err=%v", created, err)
	}
	if !view.HasRecipe || view.DirectCost != 26 {
		t.Fatalf("rejoin lost progress: %+v", view)
	}

	if _, _, err := svc.JoinTeam("  "); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for blank name, got %v", err)
	}
}
