// The main package for the dreal-paca-scraper executable.
package main

import (
	"github.com/disclose-tech/documentcloud-dreal-paca-scraper/cmd"
)

func main() {
	cmd.Execute()
}
