// Command spider is the local-only CLI entrypoint: it parses flags/config
// into a crawl spec and drives internal/spider.Spider to completion.
package main

import (
	cmd "github.com/foofork/riptide/internal/cli"
)

func main() {
	cmd.Execute()
}
