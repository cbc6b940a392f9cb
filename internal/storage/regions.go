package storage

// DefaultRegion is the region that must not be sent as a location constraint.
const DefaultRegion = "us-east-1"

// Region pairs a region code with its display name.
type Region struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Regions lists the supported regions in display order.
var Regions = []Region{
	{Code: "us-east-1", Name: "US East (N. Virginia)"},
	{Code: "us-east-2", Name: "US East (Ohio)"},
	{Code: "us-west-1", Name: "US West (N. California)"},
	{Code: "us-west-2", Name: "US West (Oregon)"},
	{Code: "ca-central-1", Name: "Canada (Central)"},
	{Code: "eu-central-1", Name: "Europe (Frankfurt)"},
	{Code: "eu-west-1", Name: "Europe (Ireland)"},
	{Code: "eu-west-2", Name: "Europe (London)"},
	{Code: "eu-west-3", Name: "Europe (Paris)"},
	{Code: "eu-north-1", Name: "Europe (Stockholm)"},
	{Code: "ap-northeast-1", Name: "Asia Pacific (Tokyo)"},
	{Code: "ap-northeast-2", Name: "Asia Pacific (Seoul)"},
	{Code: "ap-northeast-3", Name: "Asia Pacific (Osaka)"},
	{Code: "ap-southeast-1", Name: "Asia Pacific (Singapore)"},
	{Code: "ap-southeast-2", Name: "Asia Pacific (Sydney)"},
	{Code: "ap-south-1", Name: "Asia Pacific (Mumbai)"},
	{Code: "sa-east-1", Name: "South America (São Paulo)"},
}

// RegionName returns the display name of code.
func RegionName(code string) (string, bool) {
	for _, r := range Regions {
		if r.Code == code {
			return r.Name, true
		}
	}
	return "", false
}
