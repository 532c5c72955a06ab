package build

import "strings"

var (
	Version = "dev"
	AppName = "Mnemo"
	Slug    = ""
)

func init() {
	if Slug == "" {
		Slug = strings.ToLower(AppName)
	}
}
