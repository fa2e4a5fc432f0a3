package auth

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// ShowChallengeGuide tells the operator what to do in the visible browser window
func ShowChallengeGuide(w io.Writer, pageURL string, timeout time.Duration) {
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintln(w, "🛡  VERIFICATION REQUIRED")
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintln(w)
	fmt.Fprintln(w, "The site served an anti-bot check that a headless browser cannot pass.")
	fmt.Fprintln(w, "A Chrome window has been opened on:")
	fmt.Fprintf(w, "   %s\n", pageURL)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "   1. Complete the slider or click challenge if one is shown")
	fmt.Fprintln(w, "   2. Wait until the book page has loaded normally")
	fmt.Fprintln(w, "   3. Leave the window open; it closes by itself once the token is found")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Waiting up to %s.\n", timeout)
	fmt.Fprintln(w, strings.Repeat("=", 72))
}
