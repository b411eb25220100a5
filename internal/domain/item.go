package domain

// Item is a catalog entry. The catalog is owned elsewhere; tickets copy
// price and cost at order time.
type Item struct {
	Name       string   `json:"name" mapstructure:"name"`
	BaseLiquor string   `json:"base_liquor" mapstructure:"base_liquor"`
	Price      float64  `json:"price" mapstructure:"price"`
	LiquorCost float64  `json:"liquor_cost" mapstructure:"liquor_cost"`
	OtherCost  float64  `json:"other_cost" mapstructure:"other_cost"`
	Materials  []string `json:"materials" mapstructure:"materials"`
	Note       string   `json:"note" mapstructure:"note"`
}
