package llm

// ExtractedWine is the fixed schema the model is prompted to emit for
// one line of wine-list text. An empty name means "not a wine".
type ExtractedWine struct {
	Name         string   `json:"name"`
	Vintage      string   `json:"vintage"`
	Producer     string   `json:"producer"`
	Region       string   `json:"region"`
	Country      string   `json:"country"`
	Varietals    []string `json:"varietals"`
	Price        string   `json:"price"`
	Style        string   `json:"style"`
	Aroma        string   `json:"aroma"`
	Taste        string   `json:"taste"`
	FoodPairings string   `json:"food_pairings"`
}
