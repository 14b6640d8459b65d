package domain

import "time"

var seedDrafts = []Draft{
	{Name: "Food Shopping", Description: "Get groceries for the weekend", DueDate: "2024-04-23", Importance: "5", Completed: "true"},
	{Name: "Pay Taxes", Description: "Get bank statements and make declaration"},
	{
		Name:        "Visit Rapperswil",
		Description: "Walk up to Rapperswil Castle on the Obersee lakeshore and see the Polish Museum.",
		DueDate:     "2024-04-29",
		Importance:  "2",
	},
}

// SeedItems returns the items inserted into an empty store on first load.
func SeedItems(now time.Time) []Item {
	items := make([]Item, 0, len(seedDrafts))
	for _, d := range seedDrafts {
		items = append(items, NewItemAt(d, now))
	}
	return items
}
