package payload

// demoJSON is a small week used by `--demo` and the dev server. It is never used as a silent
// fallback for a missing payload.
const demoJSON = `{
  "groupings": {
    "weekday": {
      "monday": {"id": "monday", "name": "Monday", "recipeIds": ["overnight-oats", "greek-yogurt", "pasta-carbonara"]},
      "tuesday": {"id": "tuesday", "name": "Tuesday", "recipeIds": ["chicken-korma", "quinoa-salad", "beef-stir-fry"]},
      "wednesday": {"id": "wednesday", "name": "Wednesday", "recipeIds": ["smoothie-bowl", "chicken-sandwich", "fish-curry"]}
    },
    "mealType": {
      "breakfast": {"id": "breakfast", "name": "Breakfast", "recipeIds": ["overnight-oats", "greek-yogurt", "pancakes", "french-toast"]},
      "lunch": {"id": "lunch", "name": "Lunch", "recipeIds": ["quinoa-salad", "chicken-sandwich", "lentil-soup"]},
      "dinner": {"id": "dinner", "name": "Dinner", "recipeIds": ["pasta-carbonara", "chicken-korma", "beef-stir-fry", "fish-curry"]}
    }
  },
  "recipes": {
    "overnight-oats": {"id": "overnight-oats", "name": "Overnight Oats (for 2)"},
    "greek-yogurt": {"id": "greek-yogurt", "name": "Greek Yogurt Bowl (for 1)"},
    "pasta-carbonara": {"id": "pasta-carbonara", "name": "Pasta Carbonara (for 3)"},
    "chicken-korma": {"id": "chicken-korma", "name": "Chicken Korma (for 4)"},
    "quinoa-salad": {"id": "quinoa-salad", "name": "Quinoa Salad (for 4)"},
    "beef-stir-fry": {"id": "beef-stir-fry", "name": "Beef Stir Fry (for 3)"},
    "smoothie-bowl": {"id": "smoothie-bowl", "name": "Smoothie Bowl (for 2)"},
    "chicken-sandwich": {"id": "chicken-sandwich", "name": "Chicken Sandwich (for 2)"},
    "fish-curry": {"id": "fish-curry", "name": "Fish Curry (for 4)"},
    "pancakes": {"id": "pancakes", "name": "Pancakes (for 3)"},
    "french-toast": {"id": "french-toast", "name": "French Toast (for 4)"},
    "lentil-soup": {"id": "lentil-soup", "name": "Lentil Soup (for 6)"}
  }
}`

// Demo returns a fresh copy of the demo week.
func Demo() *Payload {
	p, err := FromJSON([]byte(demoJSON))
	if err != nil {
		panic("payload: demo data invalid: " + err.Error())
	}
	return p
}
