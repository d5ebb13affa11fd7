package workload

// DomesticPool and InternationalPool are the default locality pools.
// They must stay disjoint; ValidatePools enforces it for custom pools too.
var DomesticPool = []Locality{
	{City: "New York", Region: "NY"},
	{City: "Los Angeles", Region: "CA"},
	{City: "Chicago", Region: "IL"},
	{City: "Houston", Region: "TX"},
	{City: "Phoenix", Region: "AZ"},
	{City: "Philadelphia", Region: "PA"},
	{City: "San Antonio", Region: "TX"},
	{City: "San Diego", Region: "CA"},
	{City: "Dallas", Region: "TX"},
	{City: "Seattle", Region: "WA"},
	{City: "Denver", Region: "CO"},
	{City: "Boston", Region: "MA"},
	{City: "Atlanta", Region: "GA"},
	{City: "Miami", Region: "FL"},
	{City: "Minneapolis", Region: "MN"},
	{City: "Portland", Region: "OR"},
}

var InternationalPool = []Locality{
	{City: "London", Region: "United Kingdom"},
	{City: "Toronto", Region: "Canada"},
	{City: "Sydney", Region: "Australia"},
	{City: "Berlin", Region: "Germany"},
	{City: "Paris", Region: "France"},
	{City: "Tokyo", Region: "Japan"},
	{City: "Singapore", Region: "Singapore"},
	{City: "Mumbai", Region: "India"},
	{City: "São Paulo", Region: "Brazil"},
	{City: "Mexico City", Region: "Mexico"},
	{City: "Dublin", Region: "Ireland"},
	{City: "Amsterdam", Region: "Netherlands"},
}
