package router

// modelPrice holds per-token rates expressed as micro-USD per one million
// tokens, so cost arithmetic stays integral end to end.
type modelPrice struct {
	inputPerMtok  int64
	outputPerMtok int64
}

var priceTable = map[string]modelPrice{
	ModelPro:             {inputPerMtok: 1_250_000, outputPerMtok: 10_000_000},
	ModelFast:            {inputPerMtok: 300_000, outputPerMtok: 2_500_000},
	ModelLite:            {inputPerMtok: 100_000, outputPerMtok: 400_000},
	"openai/gpt-4o":      {inputPerMtok: 2_500_000, outputPerMtok: 10_000_000},
	"openai/gpt-4o-mini": {inputPerMtok: 150_000, outputPerMtok: 600_000},
}

// defaultPrice covers forced models absent from the table; priced at the
// pro tier so unknown models are never undercounted.
var defaultPrice = priceTable[ModelPro]

// Cost returns the integer micro-USD cost of one execution.
func Cost(model string, tokensInput, tokensOutput int64) int64 {
	price, ok := priceTable[model]
	if !ok {
		price = defaultPrice
	}
	return (tokensInput*price.inputPerMtok + tokensOutput*price.outputPerMtok) / 1_000_000
}
