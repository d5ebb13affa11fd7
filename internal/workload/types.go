package workload

import "fmt"

type Category string

const (
	Domestic      Category = "domestic"
	International Category = "international"
)

// Locality is where a simulated user claims to browse from.
type Locality struct {
	City   string `json:"city" mapstructure:"city"`
	Region string `json:"region" mapstructure:"region"`
}

func (l Locality) String() string {
	return fmt.Sprintf("%s, %s", l.City, l.Region)
}

type ProfileKind string

const (
	Explorer ProfileKind = "EXPLORER"
	Reader   ProfileKind = "READER"
	Scanner  ProfileKind = "SCANNER"
)

// BehaviorProfile bundles how deep a user scrolls and how many pages they open.
type BehaviorProfile struct {
	Kind        ProfileKind `json:"kind"`
	ScrollDepth float64     `json:"scroll_depth"` // fraction of page height, (0,1]
	PageVisits  int         `json:"page_visits"`
}

// Profiles is the fixed behaviour catalog. Users pick one uniformly.
var Profiles = []BehaviorProfile{
	{Kind: Explorer, ScrollDepth: 1.0, PageVisits: 3},
	{Kind: Reader, ScrollDepth: 0.8, PageVisits: 2},
	{Kind: Scanner, ScrollDepth: 0.5, PageVisits: 1},
}

// SimulatedUser is immutable for the lifetime of one session.
type SimulatedUser struct {
	ID        int             `json:"id"`
	Batch     int             `json:"batch"`
	Origin    Locality        `json:"origin"`
	Profile   BehaviorProfile `json:"profile"`
	Category  Category        `json:"category"`
	UserAgent string          `json:"user_agent"`
}

// Composition is the per-batch domestic:international ratio.
type Composition struct {
	Domestic      int `json:"domestic" mapstructure:"domestic"`
	International int `json:"international" mapstructure:"international"`
}

func (c Composition) Total() int {
	return c.Domestic + c.International
}

// Split returns how many domestic and international users a batch of size n holds.
// The ratio is exact whenever n is a multiple of Total.
func (c Composition) Split(n int) (domestic, international int) {
	if c.Total() == 0 {
		return n, 0
	}
	international = n * c.International / c.Total()
	return n - international, international
}

func (c Composition) String() string {
	return fmt.Sprintf("%d:%d", c.Domestic, c.International)
}
