package game

import (
	"fmt"
	"math"
)

// monthEvent carries the display text for one scripted crisis. Labels are
// attached to the choice variants and never parsed back.
type monthEvent struct {
	Title   string
	Choices map[CrisisChoice]string
}

var monthEvents = map[Month]monthEvent{
	Month1: {
		Title: "原物料之亂：鮮乳成本暴漲一倍",
		Choices: map[CrisisChoice]string{
			ChoiceA: "自行吸收成本，售價不變",
			ChoiceB: "成本轉嫁，售價調漲兩成",
			ChoiceC: "本店不用鮮奶，不受影響",
		},
	},
	Month2: {
		Title: "削價競爭：對手咖啡全面半價",
		Choices: map[CrisisChoice]string{
			ChoiceA: "跟進降價五折",
			ChoiceB: "加碼行銷守住品牌",
			ChoiceC: "按兵不動",
		},
	},
	Month3: {
		Title: "設備之亂：咖啡機大故障",
		Choices: map[CrisisChoice]string{
			ChoiceA: "買二手機賭一把",
			ChoiceB: "租賃全新設備",
			ChoiceC: "手沖硬撐",
		},
	},
}

// EquipmentGambleFailProb is the chance the month-3 used machine breaks down
// and halves sales.
const EquipmentGambleFailProb = 0.30

// MonthChoices exposes the display labels for the given month's decision set.
func MonthChoices(m Month) (title string, choices map[CrisisChoice]string, err error) {
	event, ok := monthEvents[m]
	if !ok {
		return "", nil, fmt.Errorf("%w: no event for month %d", ErrGameFinished, m)
	}
	out := make(map[CrisisChoice]string, len(event.Choices))
	for k, v := range event.Choices {
		out[k] = v
	}
	return event.Title, out, nil
}

// applyLoanShark injects the forced loan when the team is out of cash. It is
// evaluated exactly once per month-advance, before the decision resolves.
func applyLoanShark(t *team) int64 {
	if t.capital > 0 || t.month >= Finished {
		return 0
	}
	t.capital += LoanSharkAmount
	t.debt += LoanSharkAmount
	return LoanSharkAmount
}

// resolveMonth1 handles the supply shock. The direct-cost increase equals the
// dairy milk's unit cost and applies to this month only; the stage-1
// direct_cost itself stays untouched.
func resolveMonth1(t *team, choice CrisisChoice) (LedgerEntry, error) {
	usesDairy := t.milk == DairyMilk
	direct := t.directCost
	price := t.finalPrice

	switch choice {
	case ChoiceA:
		if usesDairy {
			cost, _ := MilkCost(DairyMilk)
			direct += cost
		}
	case ChoiceB:
		if usesDairy {
			cost, _ := MilkCost(DairyMilk)
			direct += cost
		}
		price = int64(float64(price) * 1.2)
	case ChoiceC:
		if usesDairy {
			return LedgerEntry{}, fmt.Errorf("%w: 你的咖啡使用%s，無法宣稱不受鮮乳漲價影響", ErrInconsistentClaim, DairyMilk)
		}
	default:
		return LedgerEntry{}, fmt.Errorf("%w: unknown choice %q", ErrInvalidInput, choice)
	}

	sales, err := PredictSales(t.styleID, price, t.marketing)
	if err != nil {
		return LedgerEntry{}, err
	}
	return settleMonth(t, Month1, choice, sales, price, direct, t.totalIndirect, ""), nil
}

// resolveMonth2 handles the price war over the stage-3 baseline. Choice B's
// counter-spend permanently raises the fixed-cost baseline, which month 3
// inherits.
func resolveMonth2(t *team, choice CrisisChoice) (LedgerEntry, error) {
	price := t.finalPrice
	sales := t.aiPredictedSales

	switch choice {
	case ChoiceA:
		price = int64(float64(price) * 0.5)
	case ChoiceB:
		sales = int64(float64(sales) * 0.9)
		t.totalIndirect += 30_000
	case ChoiceC:
		sales = int64(float64(sales) * 0.25)
	default:
		return LedgerEntry{}, fmt.Errorf("%w: unknown choice %q", ErrInvalidInput, choice)
	}
	return settleMonth(t, Month2, choice, sales, price, t.directCost, t.totalIndirect, ""), nil
}

// resolveMonth3 handles the equipment disaster. Only choice A consults the
// random source; the outcome of the gamble is recorded in the event note.
func resolveMonth3(t *team, choice CrisisChoice, nextFloat func() float64) (LedgerEntry, error) {
	sales := t.aiPredictedSales
	note := ""

	switch choice {
	case ChoiceA:
		t.totalIndirect += 80_000
		if nextFloat() < EquipmentGambleFailProb {
			sales = int64(float64(sales) * 0.5)
			note = "（二手機當機，銷量腰斬）"
		} else {
			note = "（二手機撐住了）"
		}
	case ChoiceB:
		t.totalIndirect += 40_000
		if sales > 2000 {
			sales = 2000
		}
	case ChoiceC:
		if sales > 800 {
			sales = 800
		}
	default:
		return LedgerEntry{}, fmt.Errorf("%w: unknown choice %q", ErrInvalidInput, choice)
	}
	return settleMonth(t, Month3, choice, sales, t.finalPrice, t.directCost, t.totalIndirect, note), nil
}

// settleMonth turns a resolved decision into money movement and one ledger
// entry, then advances the month.
func settleMonth(t *team, month Month, choice CrisisChoice, sales, price, direct, fixed int64, note string) LedgerEntry {
	revenue := price * sales
	interest := monthlyInterest(t.debt)
	cost := direct*sales + fixed + interest
	profit := revenue - cost
	t.capital += profit

	event := monthEvents[month]
	entry := LedgerEntry{
		MonthLabel:   month.Label(),
		Event:        fmt.Sprintf("%s — %s%s", event.Title, event.Choices[choice], note),
		Sales:        sales,
		Revenue:      revenue,
		Cost:         cost,
		Profit:       profit,
		CapitalAfter: t.capital,
	}
	t.history = append(t.history, entry)
	t.month++
	return entry
}

// settlement computes the terminal report once the month machine has reached
// Finished.
func settlement(t *team) *Settlement {
	net := t.capital - t.debt
	out := &Settlement{NetAssets: net, Win: net > 0}
	if !out.Win {
		out.Shortfall = int64(math.Abs(float64(net)))
	}
	return out
}
