// Command blinkpayd serves the walletless session and payment-intent API.
package main

import "os"

var version = "dev"

func main() {
	if err := Execute(version); err != nil {
		os.Exit(1)
	}
}
