package preprocess

import "strings"

// knownBrands is scanned in order; the first name contained in the query wins.
var knownBrands = []string{
	"mcdonald's",
	"mcdonalds",
	"burger king",
	"wendy's",
	"wendys",
	"taco bell",
	"chick-fil-a",
	"chick fil a",
	"chipotle",
	"starbucks",
	"dunkin",
	"subway",
	"kfc",
	"popeyes",
	"five guys",
	"in-n-out",
	"shake shack",
	"panera",
	"panda express",
	"domino's",
	"dominos",
	"pizza hut",
	"papa john's",
	"little caesars",
	"jimmy john's",
	"jersey mike's",
	"arby's",
	"sonic",
	"dairy queen",
	"jack in the box",
	"whataburger",
	"raising cane's",
	"sweetgreen",
	"olive garden",
	"applebee's",
	"chili's",
	"ihop",
	"denny's",
	"costco",
	"kirkland",
	"trader joe's",
	"ben & jerry's",
	"chobani",
	"fairlife",
	"premier protein",
	"quest bar",
	"clif",
	"kind bar",
	"oreo",
	"doritos",
	"coca-cola",
	"coke",
	"pepsi",
	"red bull",
	"monster energy",
}

// DetectBrand returns the first known brand or restaurant name contained in
// the normalized text, or "" when none is present.
func DetectBrand(normalized string) string {
	s := strings.ToLower(normalized)
	for _, b := range knownBrands {
		if strings.Contains(s, b) {
			return b
		}
	}
	return ""
}
