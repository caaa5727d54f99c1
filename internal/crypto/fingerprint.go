package crypto

import (
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// Fingerprint builds the device passphrase used for key derivation. It is
// a non-secret tuple of environment properties that binds encrypted data
// to "this machine"; it is not a security boundary. Any component changing
// after storage (new hostname, moved timezone) breaks decryption of
// previously stored secrets, which surfaces as ErrDecryptionFailed and a
// prompt to re-enter the key.
func Fingerprint() string {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown-host"
	}

	locale := os.Getenv("LANG")
	if locale == "" {
		locale = os.Getenv("LC_ALL")
	}
	if locale == "" {
		locale = "en_US"
	}

	_, tzOffset := time.Now().Zone()

	components := []string{
		hostname,
		runtime.GOOS,
		runtime.GOARCH,
		strconv.Itoa(runtime.NumCPU()),
		locale,
		strconv.Itoa(tzOffset),
	}

	return strings.Join(components, "|")
}
