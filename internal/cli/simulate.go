package cli

import (
	"errors"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"skinport-sniper/internal/app"
)

var (
	simulateName      string
	simulatePrice     float64
	simulateSuggested float64
	simulateAvg       float64
	simulateWear      float64
	simulateURL       string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-deal",
	Short: "模拟一笔成交并触发告警",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulateName == "" {
			return errors.New("--item 不能为空")
		}
		if simulatePrice <= 0 || simulateSuggested <= 0 || simulateAvg <= 0 {
			return errors.New("--price、--suggested 与 --avg7d 必须大于 0")
		}

		return getApp().SimulateDeal(cmd.Context(), app.SimulateOptions{
			MarketHashName: simulateName,
			SalePrice:      decimal.NewFromFloat(simulatePrice),
			SuggestedPrice: decimal.NewFromFloat(simulateSuggested),
			Avg7d:          decimal.NewFromFloat(simulateAvg),
			Wear:           simulateWear,
			URL:            simulateURL,
		})
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateName, "item", "AK-47 | Redline (Field-Tested)", "market_hash_name of the synthetic sale")
	simulateCmd.Flags().Float64Var(&simulatePrice, "price", 150, "成交价 (major units)")
	simulateCmd.Flags().Float64Var(&simulateSuggested, "suggested", 200, "建议价 (major units)")
	simulateCmd.Flags().Float64Var(&simulateAvg, "avg7d", 180, "7 日均价 (major units)")
	simulateCmd.Flags().Float64Var(&simulateWear, "wear", 0.15, "Float value")
	simulateCmd.Flags().StringVar(&simulateURL, "url", "ak-47-redline-field-tested/0", "Item path appended to skinport.item_base_url")
}
