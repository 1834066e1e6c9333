package achievement

// Category groups achievements by the counter they track.
type Category string

const (
	CategoryScans    Category = "scans"
	CategoryAccuracy Category = "accuracy"
	CategoryStreak   Category = "streak"
	CategoryLearning Category = "learning"
)

// Definition is one entry of the fixed catalog.
type Definition struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Icon        string   `json:"icon"`
	Category    Category `json:"category"`
	Target      int      `json:"target"`
	Points      int      `json:"points"`
}

// Catalog lists every achievement in display order.
var Catalog = []Definition{
	{ID: "first-scan", Title: "First Steps", Description: "Complete your first crop scan", Icon: "🌱", Category: CategoryScans, Target: 1, Points: 10},
	{ID: "10-scans", Title: "Getting Started", Description: "Complete 10 crop scans", Icon: "🌾", Category: CategoryScans, Target: 10, Points: 50},
	{ID: "50-scans", Title: "Experienced Farmer", Description: "Complete 50 crop scans", Icon: "🚜", Category: CategoryScans, Target: 50, Points: 200},
	{ID: "100-scans", Title: "Master Agriculturist", Description: "Complete 100 crop scans", Icon: "🏆", Category: CategoryScans, Target: 100, Points: 500},

	{ID: "5-accurate", Title: "Sharp Eye", Description: "Get 5 accurate diagnoses", Icon: "👁️", Category: CategoryAccuracy, Target: 5, Points: 30},
	{ID: "25-accurate", Title: "Disease Detective", Description: "Get 25 accurate diagnoses", Icon: "🔍", Category: CategoryAccuracy, Target: 25, Points: 150},

	{ID: "3-day-streak", Title: "Consistent Caretaker", Description: "Scan crops for 3 days in a row", Icon: "🔥", Category: CategoryStreak, Target: 3, Points: 40},
	{ID: "7-day-streak", Title: "Week Warrior", Description: "Scan crops for 7 days in a row", Icon: "⚡", Category: CategoryStreak, Target: 7, Points: 100},
	{ID: "30-day-streak", Title: "Monthly Monitor", Description: "Scan crops for 30 days in a row", Icon: "💎", Category: CategoryStreak, Target: 30, Points: 500},

	{ID: "5-diseases", Title: "Disease Learner", Description: "Identify 5 different diseases", Icon: "📚", Category: CategoryLearning, Target: 5, Points: 60},
	{ID: "15-diseases", Title: "Disease Expert", Description: "Identify 15 different diseases", Icon: "🎓", Category: CategoryLearning, Target: 15, Points: 250},
}

// Lookup returns the catalog entry with id.
func Lookup(id string) (Definition, bool) {
	for _, d := range Catalog {
		if d.ID == id {
			return d, true
		}
	}
	return Definition{}, false
}
