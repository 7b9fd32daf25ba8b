// tagwatch - dataLayer observation tool
//
// tagwatch opens a page in Chrome and records the Google Tag Manager
// dataLayer activity it can see during an observation window.
package main

import (
	"os"

	"github.com/tagwatch/tagwatch/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
