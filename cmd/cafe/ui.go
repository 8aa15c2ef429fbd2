package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"cafeboss/internal/game"

	"github.com/fatih/color"
)

var (
	stdinReader = bufio.NewReader(os.Stdin)
	accent      = color.New(color.FgCyan, color.Bold)
	success     = color.New(color.FgGreen, color.Bold)
	warn        = color.New(color.FgYellow, color.Bold)
	danger      = color.New(color.FgRed, color.Bold)
	neutral     = color.New(color.FgHiWhite)
)

type catalogPayload struct {
	Styles []game.StoreStyle `json:"styles"`
	Beans  map[string]int64  `json:"beans"`
	Milks  map[string]int64  `json:"milks"`
	Stage  int               `json:"stage"`
}

type historyPayload struct {
	History []game.LedgerEntry `json:"history"`
}

type rosterPayload struct {
	Stage int              `json:"stage"`
	Teams []game.RosterRow `json:"teams"`
}

type crisisEventPayload struct {
	MonthIndex int               `json:"month_index"`
	MonthLabel string            `json:"month_label"`
	Title      string            `json:"title"`
	Choices    map[string]string `json:"choices"`
}

func printSuccess(msg string) {
	success.Println(msg)
}

func printWarn(msg string) {
	warn.Println(msg)
}

func printInfo(msg string) {
	neutral.Println(msg)
}

func promptRequired(label string) (string, error) {
	for {
		fmt.Printf("%s: ", label)
		text, err := stdinReader.ReadString('\n')
		if err != nil {
			return "", err
		}
		text = strings.TrimSpace(text)
		if text != "" {
			return text, nil
		}
		printWarn(label + " is required.")
	}
}

func promptChoice(label string, options []string, defaultValue string) (string, error) {
	normalized := make(map[string]string, len(options))
	for _, opt := range options {
		normalized[strings.ToLower(strings.TrimSpace(opt))] = opt
	}
	for {
		if defaultValue != "" {
			fmt.Printf("%s (%s) [%s]: ", label, strings.Join(options, "/"), defaultValue)
		} else {
			fmt.Printf("%s (%s): ", label, strings.Join(options, "/"))
		}
		text, err := stdinReader.ReadString('\n')
		if err != nil {
			return "", err
		}
		text = strings.ToLower(strings.TrimSpace(text))
		if text == "" {
			text = strings.ToLower(strings.TrimSpace(defaultValue))
		}
		if opt, ok := normalized[text]; ok {
			return opt, nil
		}
		printWarn("Invalid option. Please pick one of the listed values.")
	}
}

func promptInt64(label string, min int64) (int64, error) {
	for {
		text, err := promptRequired(label)
		if err != nil {
			return 0, err
		}
		v, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			printWarn("Enter a whole number.")
			continue
		}
		if v < min {
			printWarn(fmt.Sprintf("Value must be >= %d", min))
			continue
		}
		return v, nil
	}
}

func renderCatalog(raw map[string]any) (styles, beans, milks []string, err error) {
	payload, err := decodeInto[catalogPayload](raw)
	if err != nil {
		return nil, nil, nil, err
	}

	accent.Println("\n== STOREFRONTS ==")
	fmt.Printf("%-3s %-14s %10s %12s %10s\n", "ID", "STYLE", "RENT", "DEPRECIATION", "TRAFFIC")
	for _, s := range payload.Styles {
		fmt.Printf("%-3s %-14s %10s %12s %10s\n",
			s.ID, s.Label, comma(s.Rent), comma(s.Depreciation), comma(s.BaseTraffic))
		styles = append(styles, s.ID)
	}

	accent.Println("\n== BEANS (per cup) ==")
	beans = sortedByCost(payload.Beans)
	for _, name := range beans {
		fmt.Printf("%-10s %6s\n", name, comma(payload.Beans[name]))
	}

	accent.Println("\n== MILK (per cup) ==")
	milks = sortedByCost(payload.Milks)
	for _, name := range milks {
		fmt.Printf("%-10s %6s\n", name, comma(payload.Milks[name]))
	}
	fmt.Println()
	return styles, beans, milks, nil
}

func sortedByCost(costs map[string]int64) []string {
	names := make([]string, 0, len(costs))
	for name := range costs {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if costs[names[i]] != costs[names[j]] {
			return costs[names[i]] < costs[names[j]]
		}
		return names[i] < names[j]
	})
	return names
}

func renderTeam(raw map[string]any) error {
	v, err := decodeInto[game.TeamView](raw)
	if err != nil {
		return err
	}

	accent.Printf("\n== %s ==\n", v.Name)
	if !v.HasRecipe {
		printInfo("Stage 1 pending: no recipe yet.")
		fmt.Println()
		return nil
	}
	fmt.Printf("Storefront:     %s（%s）\n", v.StyleID, v.StyleLabel)
	fmt.Printf("Recipe:         %s + %s\n", v.Bean, v.Milk)
	fmt.Printf("Direct cost:    %s /cup\n", comma(v.DirectCost))

	if v.HasOverheads {
		fmt.Printf("Rent:           %s\n", comma(v.Rent))
		fmt.Printf("Depreciation:   %s\n", comma(v.Depreciation))
		fmt.Printf("Staff:          %s\n", comma(v.Staff))
		fmt.Printf("Operating:      %s\n", comma(v.Operating))
		fmt.Printf("Marketing:      %s\n", comma(v.Marketing))
		fmt.Printf("Indirect total: %s /month\n", comma(v.TotalIndirect))
	}
	if v.HasStrategy {
		fmt.Printf("Forecast:       %s cups\n", comma(v.SalesForecast))
		fmt.Printf("Margin:         %d%%\n", v.ProfitMargin)
		fmt.Printf("Suggested:      %s /cup\n", comma(v.SuggestedPrice))
	}
	if v.HasPrice {
		fmt.Printf("Final price:    %s /cup\n", comma(v.FinalPrice))
		if v.BreakEvenReachable {
			fmt.Printf("Break-even:     %s cups\n", comma(v.BreakEvenPoint))
		} else {
			printWarn("Break-even:     unreachable at this price")
		}
		fmt.Printf("AI sales:       %s cups\n", comma(v.AIPredictedSales))
		fmt.Printf("Capital:        %s\n", colorize(v.Capital))
		fmt.Printf("Debt:           %s\n", comma(v.Debt))
		fmt.Printf("Month:          %s\n", game.Month(v.MonthIndex).Label())
	}
	fmt.Println()
	return nil
}

func renderStrategy(raw map[string]any) error {
	v, err := decodeInto[game.TeamView](raw)
	if err != nil {
		return err
	}

	accent.Println("\n== COST REVIEW ==")
	fmt.Printf("Direct cost per cup:     %s\n", comma(v.DirectCost))
	fmt.Printf("Indirect per cup (@%s): %.1f\n", comma(v.SalesForecast), v.AllocatedIndirect)
	fmt.Printf("Total cost per cup:      %.1f\n", v.TotalUnitCost)
	fmt.Printf("Margin:                  %d%%\n", v.ProfitMargin)
	success.Printf("Suggested price:         %s /cup\n", comma(v.SuggestedPrice))
	printInfo("Lock it in (or your own number) with `cafe price`.")
	fmt.Println()
	return nil
}

func renderPricing(raw map[string]any) error {
	v, err := decodeInto[game.TeamView](raw)
	if err != nil {
		return err
	}

	accent.Println("\n== OPENING REPORT ==")
	fmt.Printf("Final price:       %s /cup\n", comma(v.FinalPrice))
	if v.BreakEvenReachable {
		fmt.Printf("Break-even point:  %s cups/month\n", comma(v.BreakEvenPoint))
		if v.ForecastBEPDiff >= 0 {
			success.Printf("Forecast clears break-even by %s cups.\n", comma(v.ForecastBEPDiff))
		} else {
			danger.Printf("Forecast falls %s cups short of break-even.\n", comma(-v.ForecastBEPDiff))
		}
	} else {
		danger.Println("Price does not cover the direct cost. Break-even is unreachable.")
	}
	fmt.Printf("AI predicted sales: %s cups\n", comma(v.AIPredictedSales))
	fmt.Printf("Opening revenue:    %s\n", comma(v.Revenue))
	fmt.Printf("Opening cost:       %s\n", comma(v.Cost))
	fmt.Printf("Opening profit:     %s\n", colorize(v.ActualProfit))
	fmt.Printf("Capital:            %s\n", colorize(v.Capital))

	renderBreakEvenCurve(v)
	printInfo("The first crisis is waiting. Run `cafe crisis` when you are ready.")
	fmt.Println()
	return nil
}

// renderBreakEvenCurve tabulates revenue vs total cost over a volume range so
// the crossover is visible without a chart.
func renderBreakEvenCurve(v game.TeamView) {
	top := v.SalesForecast
	if v.BreakEvenReachable && v.BreakEvenPoint*2 > top {
		top = v.BreakEvenPoint * 2
	}
	if top < 100 {
		top = 100
	}
	step := top / 10
	if step < 1 {
		step = 1
	}

	accent.Println("\nVolume vs money")
	fmt.Printf("%10s %14s %14s %14s\n", "CUPS", "REVENUE", "COST", "PROFIT")
	for cups := int64(0); cups <= top; cups += step {
		revenue := v.FinalPrice * cups
		cost := v.DirectCost*cups + v.TotalIndirect
		marker := ""
		if v.BreakEvenReachable && cups >= v.BreakEvenPoint && cups-step < v.BreakEvenPoint {
			marker = "  <- break-even"
		}
		fmt.Printf("%10s %14s %14s %14s%s\n",
			comma(cups), comma(revenue), comma(cost), colorize(revenue-cost), marker)
	}
}

func renderCrisisEvent(raw map[string]any) error {
	event, err := decodeInto[crisisEventPayload](raw)
	if err != nil {
		return err
	}
	accent.Printf("\n== %s ==\n", event.MonthLabel)
	warn.Println(event.Title)
	keys := make([]string, 0, len(event.Choices))
	for k := range event.Choices {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("  %s) %s\n", k, event.Choices[k])
	}
	fmt.Println()
	return nil
}

func renderCrisisResult(raw map[string]any) error {
	out, err := decodeInto[game.CrisisResult](raw)
	if err != nil {
		return err
	}

	if out.LoanAmount > 0 {
		danger.Printf("地下錢莊上門了：借款 %s，記得月息一成。\n", comma(out.LoanAmount))
	}
	accent.Printf("\n== %s ==\n", out.Entry.MonthLabel)
	fmt.Printf("Event:    %s\n", out.Entry.Event)
	fmt.Printf("Sales:    %s cups\n", comma(out.Entry.Sales))
	fmt.Printf("Revenue:  %s\n", comma(out.Entry.Revenue))
	fmt.Printf("Cost:     %s\n", comma(out.Entry.Cost))
	fmt.Printf("Profit:   %s\n", colorize(out.Entry.Profit))
	fmt.Printf("Capital:  %s\n", colorize(out.Capital))
	fmt.Printf("Debt:     %s\n", comma(out.Debt))

	if out.Settlement != nil {
		accent.Println("\n== 結算 ==")
		fmt.Printf("Net assets (capital - debt): %s\n", colorize(out.Settlement.NetAssets))
		if out.Settlement.Win {
			success.Println("🎉 你活下來了！三個月風暴後咖啡店還是你的。")
		} else {
			danger.Printf("咖啡店沒能撐過去，缺口 %s。下次再來。\n", comma(out.Settlement.Shortfall))
		}
	}
	fmt.Println()
	return nil
}

func renderHistory(raw map[string]any) error {
	payload, err := decodeInto[historyPayload](raw)
	if err != nil {
		return err
	}
	accent.Println("\n== LEDGER ==")
	if len(payload.History) == 0 {
		printInfo("No entries yet. Finish the pricing stage first.")
		return nil
	}
	fmt.Printf("%-10s %8s %12s %12s %12s %14s\n", "MONTH", "SALES", "REVENUE", "COST", "PROFIT", "CAPITAL")
	for _, e := range payload.History {
		fmt.Printf("%-10s %8s %12s %12s %12s %14s\n",
			e.MonthLabel, comma(e.Sales), comma(e.Revenue), comma(e.Cost),
			colorize(e.Profit), colorize(e.CapitalAfter))
		neutral.Printf("           %s\n", e.Event)
	}
	fmt.Println()
	return nil
}

func renderRoster(raw map[string]any) error {
	payload, err := decodeInto[rosterPayload](raw)
	if err != nil {
		return err
	}
	accent.Printf("\n== ROSTER (stage %d open) ==\n", payload.Stage)
	if len(payload.Teams) == 0 {
		printInfo("No teams have joined yet.")
		return nil
	}
	fmt.Printf("%-16s %8s %12s %10s %8s %8s %6s %14s %12s\n",
		"TEAM", "DIRECT", "INDIRECT", "FORECAST", "PRICE", "BEP", "MONTH", "CAPITAL", "DEBT")
	for _, row := range payload.Teams {
		fmt.Printf("%-16s %8s %12s %10s %8s %8s %6d %14s %12s\n",
			row.Name, comma(row.DirectCost), comma(row.TotalIndirect),
			comma(row.SalesForecast), comma(row.FinalPrice), comma(row.BreakEvenPoint),
			row.MonthIndex, colorize(row.Capital), comma(row.Debt))
	}
	fmt.Println()
	return nil
}

func decodeInto[T any](in any) (T, error) {
	var out T
	raw, err := json.Marshal(in)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, err
	}
	return out, nil
}

func colorize(v int64) string {
	text := comma(v)
	if v > 0 {
		text = "+" + text
	}
	switch {
	case v > 0:
		return success.Sprint(text)
	case v < 0:
		return danger.Sprint(text)
	default:
		return neutral.Sprint(text)
	}
}

func comma(v int64) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	s := strconv.FormatInt(v, 10)
	if len(s) <= 3 {
		return sign + s
	}
	var b strings.Builder
	b.WriteString(sign)
	pre := len(s) % 3
	if pre > 0 {
		b.WriteString(s[:pre])
		b.WriteByte(',')
	}
	for i := pre; i < len(s); i += 3 {
		b.WriteString(s[i : i+3])
		if i+3 < len(s) {
			b.WriteByte(',')
		}
	}
	return b.String()
}
