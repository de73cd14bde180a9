package daraja

import (
	"encoding/base64"
	"time"
)

// Timestamp renders t in the fixed-width numeric form the gateway signs
// against (YYYYMMDDHHMMSS, local gateway time).
func Timestamp(t time.Time) string {
	return t.Format("20060102150405")
}

// Password derives the STK request password. The gateway verifies this
// byte-for-byte, so the concatenation order is load-bearing:
// base64(shortcode + passkey + timestamp).
func Password(shortcode, passkey, timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(shortcode + passkey + timestamp))
}
