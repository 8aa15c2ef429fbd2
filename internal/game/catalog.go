package game

import "fmt"

// StoreStyle is one of the fixed storefront options a team picks in stage 1.
// Rent and depreciation feed the stage-2 overhead sheet; base traffic anchors
// the sales predictor.
type StoreStyle struct {
	ID           string `json:"id"`
	Label        string `json:"label"`
	Rent         int64  `json:"rent"`
	Depreciation int64  `json:"depreciation"`
	BaseTraffic  int64  `json:"base_traffic"`
}

var storeStyles = []StoreStyle{
	{ID: "A", Label: "學區黃金店面", Rent: 50_000, Depreciation: 20_000, BaseTraffic: 3000},
	{ID: "B", Label: "社區轉角小店", Rent: 25_000, Depreciation: 12_000, BaseTraffic: 1200},
	{ID: "C", Label: "巷弄隱藏名店", Rent: 12_000, Depreciation: 8_000, BaseTraffic: 400},
}

var beanCosts = map[string]int64{
	"普通商用豆": 15,
	"中級莊園豆": 25,
	"頂級藝妓豆": 40,
}

var milkCosts = map[string]int64{
	"一般鮮乳": 5,
	"燕麥奶":  8,
	"不加奶":  0,
}

const (
	// MaterialCost is the per-cup 紙杯+杯蓋 cost.
	MaterialCost = int64(3)

	// DairyMilk is the only milk option exposed to the month-1 supply shock.
	DairyMilk = "一般鮮乳"
)

func Styles() []StoreStyle {
	out := make([]StoreStyle, len(storeStyles))
	copy(out, storeStyles)
	return out
}

func StyleByID(id string) (StoreStyle, error) {
	for _, style := range storeStyles {
		if style.ID == id {
			return style, nil
		}
	}
	return StoreStyle{}, fmt.Errorf("%w: unknown store style %q", ErrInvalidSelection, id)
}

func BeanCost(name string) (int64, error) {
	cost, ok := beanCosts[name]
	if !ok {
		return 0, fmt.Errorf("%w: unknown bean %q", ErrInvalidSelection, name)
	}
	return cost, nil
}

func MilkCost(name string) (int64, error) {
	cost, ok := milkCosts[name]
	if !ok {
		return 0, fmt.Errorf("%w: unknown milk %q", ErrInvalidSelection, name)
	}
	return cost, nil
}

func BeanOptions() map[string]int64 {
	out := make(map[string]int64, len(beanCosts))
	for name, cost := range beanCosts {
		out[name] = cost
	}
	return out
}

func MilkOptions() map[string]int64 {
	out := make(map[string]int64, len(milkCosts))
	for name, cost := range milkCosts {
		out[name] = cost
	}
	return out
}
