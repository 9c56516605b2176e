package auth

import (
	"fmt"
	"io"
	"strings"
)

// ShowTokenGuide writes instructions for obtaining a Secure API token
func ShowTokenGuide(w io.Writer) {
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintln(w, "SECURE API TOKEN")
	fmt.Fprintln(w, strings.Repeat("=", 72))
	fmt.Fprintln(w)
	fmt.Fprintln(w, "secevents authenticates with a bearer token from your Secure account.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  1. Log in to the Secure web console")
	fmt.Fprintln(w, "  2. Open Settings > User Profile")
	fmt.Fprintln(w, "  3. Copy the value under 'Sysdig Secure API Token'")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "The token is stored in the system keyring when available, otherwise in")
	fmt.Fprintln(w, "an encrypted file in the secevents config directory. "+AccessTokenEnv)
	fmt.Fprintln(w, "is used when nothing is stored.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "The token grants read access to every event of the team. Never share it.")
	fmt.Fprintln(w, strings.Repeat("=", 72))
}
