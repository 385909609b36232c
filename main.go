// The main package for the sitechat executable.
package main

import (
	"github.com/JakeFAU/sitechat-crawler/cmd"
)

func main() {
	cmd.Execute()
}
